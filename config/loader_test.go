// Configuration loader tests.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "agent1", cfg.Conversation.Agent1.ID)
	require.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "agentchat.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s

conversation:
  title: "Debate"
  max_turns: 4
  turn_delay: 500ms
  agent1:
    name: "Skeptic"
    provider: "anthropic"
    model: "claude-3-5-haiku-20241022"
    temperature: 0.3
    top_k: 20
  agent2:
    provider: "ollama"
    local_port: 11500

credentials:
  backend: "redis"

redis:
  addr: "redis.example.com:6379"
  db: 1

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "Debate", cfg.Conversation.Title)
	assert.Equal(t, 4, cfg.Conversation.MaxTurns)
	assert.Equal(t, 500*time.Millisecond, cfg.Conversation.TurnDelay)
	assert.Equal(t, "Skeptic", cfg.Conversation.Agent1.Name)
	assert.Equal(t, "anthropic", cfg.Conversation.Agent1.Provider)
	assert.InDelta(t, 0.3, cfg.Conversation.Agent1.Temperature, 0.001)
	require.NotNil(t, cfg.Conversation.Agent1.TopK)
	assert.Equal(t, 20, *cfg.Conversation.Agent1.TopK)
	// untouched keys keep their defaults
	assert.Equal(t, "agent1", cfg.Conversation.Agent1.ID)
	assert.Equal(t, DefaultSystemPrompt, cfg.Conversation.SystemPrompt)

	agents := cfg.Conversation.Agents()
	require.NotNil(t, agents[1].LocalServer)
	assert.Equal(t, 11500, agents[1].LocalServer.Port)

	assert.Equal(t, "redis", cfg.Credentials.Backend)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoader_LoadFromTOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "agentchat.toml")

	tomlContent := `
[server]
http_port = 7070

[conversation]
max_turns = 6
steering_agent = "agent2"

[conversation.agent2]
name = "Critic"
model = "gpt-4o-mini"
provider = "openai"

[export]
dir = "/tmp/transcripts"
`
	require.NoError(t, os.WriteFile(configPath, []byte(tomlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, 6, cfg.Conversation.MaxTurns)
	assert.Equal(t, "agent2", cfg.Conversation.SteeringAgent)
	assert.Equal(t, "Critic", cfg.Conversation.Agent2.Name)
	assert.Equal(t, "openai", cfg.Conversation.Agent2.Provider)
	assert.Equal(t, "/tmp/transcripts", cfg.Export.Dir)
	assert.Equal(t, "Agent 1", cfg.Conversation.Agent1.Name)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("AGENTCHAT_SERVER_HTTP_PORT", "7777")
	t.Setenv("AGENTCHAT_SERVER_API_KEYS", "k1, k2")
	t.Setenv("AGENTCHAT_CONVERSATION_MAX_TURNS", "3")
	t.Setenv("AGENTCHAT_CONVERSATION_TURN_DELAY", "0s")
	t.Setenv("AGENTCHAT_CONVERSATION_AGENT1_MODEL", "gpt-4o")
	t.Setenv("AGENTCHAT_CONVERSATION_AGENT2_TOP_P", "0.9")
	t.Setenv("AGENTCHAT_CREDENTIALS_ENV_OVERRIDE", "false")
	t.Setenv("AGENTCHAT_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.Equal(t, 3, cfg.Conversation.MaxTurns)
	assert.Equal(t, time.Duration(0), cfg.Conversation.TurnDelay)
	assert.Equal(t, "gpt-4o", cfg.Conversation.Agent1.Model)
	require.NotNil(t, cfg.Conversation.Agent2.TopP)
	assert.InDelta(t, 0.9, *cfg.Conversation.Agent2.TopP, 0.001)
	assert.False(t, cfg.Credentials.EnvOverride)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "agentchat.yaml")
	yamlContent := `
server:
  http_port: 8888
conversation:
  agent1:
    name: "yaml-agent"
    model: "yaml-model"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	t.Setenv("AGENTCHAT_SERVER_HTTP_PORT", "9999")
	t.Setenv("AGENTCHAT_CONVERSATION_AGENT1_NAME", "env-agent")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "env-agent", cfg.Conversation.Agent1.Name)
	assert.Equal(t, "yaml-model", cfg.Conversation.Agent1.Model)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_BadEnvValue(t *testing.T) {
	t.Setenv("AGENTCHAT_CONVERSATION_MAX_TURNS", "many")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENTCHAT_CONVERSATION_MAX_TURNS")
}

func TestLoader_WithValidator(t *testing.T) {
	validator := func(cfg *Config) error {
		if cfg.Server.HTTPPort < 1024 {
			return assert.AnError
		}
		return nil
	}
	t.Setenv("AGENTCHAT_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().WithValidator(validator).Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/non/existent/path/agentchat.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "yaml", file: "bad.yaml", content: "server:\n  http_port: [invalid\n"},
		{name: "toml", file: "bad.toml", content: "[server\nhttp_port = 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := NewLoader().WithConfigPath(path).Load()
			assert.Error(t, err)
		})
	}
}

// --- Config methods ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}, wantErr: false},
		{name: "negative port", modify: func(c *Config) { c.Server.HTTPPort = -1 }, wantErr: true},
		{name: "port too large", modify: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: true},
		{name: "zero turns", modify: func(c *Config) { c.Conversation.MaxTurns = 0 }, wantErr: true},
		{name: "negative delay", modify: func(c *Config) { c.Conversation.TurnDelay = -time.Second }, wantErr: true},
		{name: "zero window", modify: func(c *Config) { c.Conversation.ContextWindow = 0 }, wantErr: true},
		{name: "temperature too high", modify: func(c *Config) { c.Conversation.Agent2.Temperature = 3 }, wantErr: true},
		{name: "duplicate agent ids", modify: func(c *Config) { c.Conversation.Agent2.ID = "agent1" }, wantErr: true},
		{name: "unknown backend", modify: func(c *Config) { c.Credentials.Backend = "vault" }, wantErr: true},
		{name: "file backend without path", modify: func(c *Config) { c.Credentials.Backend = "file" }, wantErr: true},
		{name: "negative shared cache ttl", modify: func(c *Config) { c.Catalog.SharedCacheTTL = -time.Minute }, wantErr: true},
		{
			name: "steering agent matches neither renamed agent",
			modify: func(c *Config) {
				c.Conversation.Agent1.ID = "alice"
				c.Conversation.Agent2.ID = "bob"
			},
			wantErr: true,
		},
		{
			name: "steering agent follows renamed agent",
			modify: func(c *Config) {
				c.Conversation.Agent1.ID = "alice"
				c.Conversation.Agent2.ID = "bob"
				c.Conversation.SteeringAgent = "bob"
			},
			wantErr: false,
		},
		{name: "empty steering agent", modify: func(c *Config) { c.Conversation.SteeringAgent = "" }, wantErr: false},
		{
			name: "file backend with path",
			modify: func(c *Config) {
				c.Credentials.Backend = "file"
				c.Credentials.FilePath = "/tmp/keys.json"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver: "postgres", Host: "localhost", Port: 5432,
				User: "user", Password: "pass", Name: "dbname", SSLMode: "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver: "mysql", Host: "localhost", Port: 3306,
				User: "user", Password: "pass", Name: "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true&multiStatements=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/db.sqlite"},
			expected: "/path/to/db.sqlite",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

// --- MustLoad ---

func TestMustLoad(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(good, []byte("server:\n  http_port: 8080\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("invalid: [yaml"), 0o644))

	assert.NotPanics(t, func() {
		assert.Equal(t, 8080, MustLoad(good).Server.HTTPPort)
	})
	assert.Panics(t, func() { MustLoad(bad) })
}

func TestLoadFromEnv_Function(t *testing.T) {
	t.Setenv("AGENTCHAT_CONVERSATION_TITLE", "env-only")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.Conversation.Title)
}
