// =============================================================================
// agent-chat configuration loader
// =============================================================================
// Unified configuration loading: YAML or TOML file plus environment overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("agentchat.yaml").
//	    WithEnvPrefix("AGENTCHAT").
//	    Load()
//
// Precedence: defaults → file → environment
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sanchez314c/agent-chat/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Core configuration structures
// =============================================================================

// Config is the complete agent-chat configuration.
type Config struct {
	// Server is the operator HTTP API.
	Server ServerConfig `yaml:"server" toml:"server" env:"SERVER"`

	// Conversation holds the two agents and the run parameters.
	Conversation ConversationConfig `yaml:"conversation" toml:"conversation" env:"CONVERSATION"`

	// Credentials selects the credential store backend.
	Credentials CredentialsConfig `yaml:"credentials" toml:"credentials" env:"CREDENTIALS"`

	// Redis backs the redis credential store.
	Redis RedisConfig `yaml:"redis" toml:"redis" env:"REDIS"`

	// Database backs the sql credential store.
	Database DatabaseConfig `yaml:"database" toml:"database" env:"DATABASE"`

	// Catalog points model discovery at local servers.
	Catalog CatalogConfig `yaml:"catalog" toml:"catalog" env:"CATALOG"`

	// Export controls where saved transcripts go.
	Export ExportConfig `yaml:"export" toml:"export" env:"EXPORT"`

	// Log configures zap.
	Log LogConfig `yaml:"log" toml:"log" env:"LOG"`

	// Telemetry configures OpenTelemetry export.
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig configures the operator HTTP API.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" toml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" toml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// APIKeys enables X-API-Key authentication when non-empty.
	APIKeys []string `yaml:"api_keys" toml:"api_keys" env:"API_KEYS"`
	// JWTSecret enables HS256 bearer authentication when set.
	JWTSecret      string   `yaml:"jwt_secret" toml:"jwt_secret" env:"JWT_SECRET"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" toml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `yaml:"rate_limit_burst" toml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	CORSOrigins    []string `yaml:"cors_origins" toml:"cors_origins" env:"CORS_ORIGINS"`
}

// ConversationConfig configures the orchestrated exchange.
type ConversationConfig struct {
	Title         string        `yaml:"title" toml:"title" env:"TITLE"`
	SystemPrompt  string        `yaml:"system_prompt" toml:"system_prompt" env:"SYSTEM_PROMPT"`
	InitialPrompt string        `yaml:"initial_prompt" toml:"initial_prompt" env:"INITIAL_PROMPT"`
	MaxTurns      int           `yaml:"max_turns" toml:"max_turns" env:"MAX_TURNS"`
	TurnDelay     time.Duration `yaml:"turn_delay" toml:"turn_delay" env:"TURN_DELAY"`
	// ContextWindow is how many trailing history entries each request carries.
	ContextWindow int `yaml:"context_window" toml:"context_window" env:"CONTEXT_WINDOW"`
	// SteeringAgent is the agent that sees operator injections.
	SteeringAgent string      `yaml:"steering_agent" toml:"steering_agent" env:"STEERING_AGENT"`
	Agent1        AgentConfig `yaml:"agent1" toml:"agent1" env:"AGENT1"`
	Agent2        AgentConfig `yaml:"agent2" toml:"agent2" env:"AGENT2"`
}

// AgentConfig is the file/env form of types.AgentConfig.
type AgentConfig struct {
	ID               string   `yaml:"id" toml:"id" env:"ID"`
	Name             string   `yaml:"name" toml:"name" env:"NAME"`
	Provider         string   `yaml:"provider" toml:"provider" env:"PROVIDER"`
	Model            string   `yaml:"model" toml:"model" env:"MODEL"`
	Persona          string   `yaml:"persona" toml:"persona" env:"PERSONA"`
	Temperature      float64  `yaml:"temperature" toml:"temperature" env:"TEMPERATURE"`
	MaxTokens        int      `yaml:"max_tokens" toml:"max_tokens" env:"MAX_TOKENS"`
	TopP             *float64 `yaml:"top_p" toml:"top_p" env:"TOP_P"`
	TopK             *int     `yaml:"top_k" toml:"top_k" env:"TOP_K"`
	PresencePenalty  *float64 `yaml:"presence_penalty" toml:"presence_penalty" env:"PRESENCE_PENALTY"`
	FrequencyPenalty *float64 `yaml:"frequency_penalty" toml:"frequency_penalty" env:"FREQUENCY_PENALTY"`
	ReasoningEffort  string   `yaml:"reasoning_effort" toml:"reasoning_effort" env:"REASONING_EFFORT"`
	LocalHost        string   `yaml:"local_host" toml:"local_host" env:"LOCAL_HOST"`
	LocalPort        int      `yaml:"local_port" toml:"local_port" env:"LOCAL_PORT"`
}

// ToAgent converts to the runtime representation.
func (a AgentConfig) ToAgent() types.AgentConfig {
	out := types.AgentConfig{
		ID:               a.ID,
		Name:             a.Name,
		Provider:         a.Provider,
		Model:            a.Model,
		Persona:          a.Persona,
		Temperature:      a.Temperature,
		MaxTokens:        a.MaxTokens,
		TopP:             a.TopP,
		TopK:             a.TopK,
		PresencePenalty:  a.PresencePenalty,
		FrequencyPenalty: a.FrequencyPenalty,
		ReasoningEffort:  a.ReasoningEffort,
	}
	if a.LocalHost != "" || a.LocalPort != 0 {
		out.LocalServer = &types.LocalServerConfig{Host: a.LocalHost, Port: a.LocalPort}
	}
	return out
}

// Agents returns both agents in turn order.
func (c ConversationConfig) Agents() [2]types.AgentConfig {
	return [2]types.AgentConfig{c.Agent1.ToAgent(), c.Agent2.ToAgent()}
}

// CredentialsConfig selects and configures the credential store.
type CredentialsConfig struct {
	// Backend: env, memory, file, sql, redis
	Backend string `yaml:"backend" toml:"backend" env:"BACKEND"`
	// EnvOverride consults provider environment variables first.
	EnvOverride bool `yaml:"env_override" toml:"env_override" env:"ENV_OVERRIDE"`
	// FilePath is used by the file backend.
	FilePath string `yaml:"file_path" toml:"file_path" env:"FILE_PATH"`
	// KeyPrefix namespaces redis keys.
	KeyPrefix string `yaml:"key_prefix" toml:"key_prefix" env:"KEY_PREFIX"`
}

// RedisConfig configures the redis client.
type RedisConfig struct {
	Addr         string `yaml:"addr" toml:"addr" env:"ADDR"`
	Password     string `yaml:"password" toml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" toml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" toml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" toml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig configures the sql credential store.
type DatabaseConfig struct {
	// Driver: postgres, mysql, sqlite
	Driver          string        `yaml:"driver" toml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" toml:"host" env:"HOST"`
	Port            int           `yaml:"port" toml:"port" env:"PORT"`
	User            string        `yaml:"user" toml:"user" env:"USER"`
	Password        string        `yaml:"password" toml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" toml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" toml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" toml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" toml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" toml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// CatalogConfig points discovery at self-hosted servers and optionally
// shares discovered lists through Redis.
type CatalogConfig struct {
	OllamaHost   string `yaml:"ollama_host" toml:"ollama_host" env:"OLLAMA_HOST"`
	OllamaPort   int    `yaml:"ollama_port" toml:"ollama_port" env:"OLLAMA_PORT"`
	LlamaCppHost string `yaml:"llamacpp_host" toml:"llamacpp_host" env:"LLAMACPP_HOST"`
	LlamaCppPort int    `yaml:"llamacpp_port" toml:"llamacpp_port" env:"LLAMACPP_PORT"`
	// SharedCache stores discovered lists in the redis section's server.
	SharedCache    bool          `yaml:"shared_cache" toml:"shared_cache" env:"SHARED_CACHE"`
	SharedCacheTTL time.Duration `yaml:"shared_cache_ttl" toml:"shared_cache_ttl" env:"SHARED_CACHE_TTL"`
}

// ExportConfig configures the directory file sink.
type ExportConfig struct {
	Dir string `yaml:"dir" toml:"dir" env:"DIR"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" toml:"level" env:"LEVEL"`
	// Format: json, console
	Format           string   `yaml:"format" toml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" toml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" toml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" toml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" toml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" toml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" toml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" toml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader builds a Config (builder pattern).
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the AGENTCHAT env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTCHAT",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the config file path. The format follows the
// extension: .toml for TOML, anything else for YAML.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a validator run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads the configuration.
// Precedence: defaults → file → environment
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// missing file means defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(l.configPath)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse toml config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks struct fields recursively.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.Ptr:
		elem := reflect.New(field.Type().Elem())
		if err := setFieldValue(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)

	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// comma separated string slices
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// MustLoad loads the configuration or panics.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads defaults plus environment overrides only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

var validBackends = map[string]bool{"env": true, "memory": true, "file": true, "sql": true, "redis": true}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, errors.New("invalid HTTP port"))
	}
	if c.Conversation.MaxTurns <= 0 {
		errs = append(errs, errors.New("max_turns must be positive"))
	}
	if c.Conversation.TurnDelay < 0 {
		errs = append(errs, errors.New("turn_delay must not be negative"))
	}
	if c.Conversation.ContextWindow <= 0 {
		errs = append(errs, errors.New("context_window must be positive"))
	}
	for _, a := range c.Conversation.Agents() {
		if err := a.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Conversation.Agent1.ID == c.Conversation.Agent2.ID {
		errs = append(errs, errors.New("agent ids must differ"))
	}
	if s := c.Conversation.SteeringAgent; s != "" && s != c.Conversation.Agent1.ID && s != c.Conversation.Agent2.ID {
		errs = append(errs, fmt.Errorf("steering_agent %q matches neither agent id", s))
	}
	if !validBackends[c.Credentials.Backend] {
		errs = append(errs, fmt.Errorf("unknown credentials backend %q", c.Credentials.Backend))
	}
	if c.Credentials.Backend == "file" && c.Credentials.FilePath == "" {
		errs = append(errs, errors.New("credentials.file_path is required for the file backend"))
	}
	if c.Catalog.SharedCacheTTL < 0 {
		errs = append(errs, errors.New("catalog.shared_cache_ttl must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %w", errors.Join(errs...))
	}

	return nil
}

// DSN returns the driver-specific connection string.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
