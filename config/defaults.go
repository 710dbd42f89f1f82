// =============================================================================
// agent-chat default configuration
// =============================================================================
package config

import (
	"time"

	"github.com/sanchez314c/agent-chat/types"
)

// Default conversation text.
const (
	DefaultSystemPrompt  = "You are participating in a conversation between two AI agents. Stay in character and engage naturally with the other agent."
	DefaultInitialPrompt = "Hello! Let's have an interesting conversation about artificial intelligence and its potential impact on society."
	DefaultModel         = "meta-llama/llama-3.1-8b-instruct:free"

	agent1Persona = "You are a helpful, creative, and intelligent AI assistant. Engage in thoughtful conversation and provide detailed, well-reasoned responses."
	agent2Persona = "You are an analytical and detail-oriented AI assistant. Focus on logic, accuracy, and providing comprehensive analysis of topics."
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Conversation: DefaultConversationConfig(),
		Credentials:  DefaultCredentialsConfig(),
		Redis:        DefaultRedisConfig(),
		Database:     DefaultDatabaseConfig(),
		Catalog:      DefaultCatalogConfig(),
		Export:       DefaultExportConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultConversationConfig returns the stock two-agent setup.
func DefaultConversationConfig() ConversationConfig {
	return ConversationConfig{
		Title:         types.DefaultConversationTitle,
		SystemPrompt:  DefaultSystemPrompt,
		InitialPrompt: DefaultInitialPrompt,
		MaxTurns:      10,
		TurnDelay:     2 * time.Second,
		ContextWindow: 10,
		SteeringAgent: "agent1",
		Agent1:        defaultAgent("agent1", "Agent 1", agent1Persona, 0.7),
		Agent2:        defaultAgent("agent2", "Agent 2", agent2Persona, 0.5),
	}
}

func defaultAgent(id, name, persona string, temperature float64) AgentConfig {
	return AgentConfig{
		ID:               id,
		Name:             name,
		Provider:         "openrouter",
		Model:            DefaultModel,
		Persona:          persona,
		Temperature:      temperature,
		MaxTokens:        1000,
		TopP:             types.Float64Ptr(1.0),
		TopK:             types.IntPtr(40),
		PresencePenalty:  types.Float64Ptr(0),
		FrequencyPenalty: types.Float64Ptr(0),
	}
}

// DefaultCredentialsConfig keeps keys in memory with env overrides on.
func DefaultCredentialsConfig() CredentialsConfig {
	return CredentialsConfig{
		Backend:     "memory",
		EnvOverride: true,
		KeyPrefix:   "agentchat:credential:",
	}
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig returns the default database configuration.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "agentchat",
		Password:        "",
		Name:            "agentchat.db",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

// DefaultCatalogConfig targets local servers on their stock ports.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		OllamaHost:     "localhost",
		OllamaPort:     11434,
		LlamaCppHost:   "localhost",
		LlamaCppPort:   8080,
		SharedCacheTTL: 10 * time.Minute,
	}
}

// DefaultExportConfig writes transcripts to the working directory.
func DefaultExportConfig() ExportConfig {
	return ExportConfig{Dir: "."}
}

// DefaultLogConfig returns the default log configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agent-chat",
		SampleRate:   0.1,
	}
}
