// =============================================================================
// agentchat entry point
// =============================================================================
// Drives a two-agent LLM conversation, either behind the operator HTTP API
// or headless from the command line.
//
// Usage:
//
//	agentchat serve --config agentchat.yaml   # operator API + metrics
//	agentchat run --out ./transcripts         # headless conversation
//	agentchat models openrouter               # one provider's models
//	agentchat models --all                    # every provider's models
//	agentchat test ollama                     # connection test
//	agentchat key set openai                  # store a key (read from stdin)
//	agentchat key status openai
//	agentchat key delete openai
//	agentchat migrate up                      # sql credential schema
//	agentchat version
// =============================================================================

// @title agent-chat operator API
// @version 1.0.0
// @description Configure, drive and observe a conversation between two LLM agents.
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sanchez314c/agent-chat/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// =============================================================================
// Build information (set with -ldflags)
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "run":
		err = runConversation(os.Args[2:])
	case "models":
		err = runModels(os.Args[2:])
	case "test":
		err = runTest(os.Args[2:])
	case "key":
		err = runKey(os.Args[2:])
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// Shared setup
// =============================================================================

// commandFlags registers the flags every command accepts.
func commandFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML or TOML)")
	return fs, configPath
}

// loadConfig loads and validates the configuration at path.
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// =============================================================================
// serve
// =============================================================================

func runServe(args []string) error {
	fs, configPath := commandFlags("serve")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting agentchat",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	ctx, stop := signalContext()
	defer stop()

	srv := NewServer(cfg, logger)
	if err := srv.Start(ctx); err != nil {
		_ = srv.Shutdown(context.Background())
		return err
	}

	waitErr := srv.Wait(ctx)
	if waitErr != nil {
		logger.Error("server failed", zap.Error(waitErr))
	}
	shutdownErr := srv.Shutdown(context.Background())

	logger.Info("agentchat stopped")
	return errors.Join(waitErr, shutdownErr)
}

// =============================================================================
// version and help
// =============================================================================

func printVersion() {
	fmt.Printf("agentchat %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`agentchat - two-agent LLM conversations

Usage:
  agentchat <command> [options]

Commands:
  serve                       Start the operator API and metrics servers
  run                         Run the configured conversation in the terminal
  models <provider> | --all   List available models
  test <provider>             Test connectivity to a provider
  key set|delete|status <provider>
                              Manage stored API keys
  migrate <subcommand>        Manage the sql credential schema
  version                     Show version information
  help                        Show this help message

Options (all commands):
  --config <path>   Path to configuration file (YAML or TOML)

Options for 'run':
  --out <dir>       Save the markdown transcript to dir when finished
  --turns <n>       Override the configured number of turns

Examples:
  agentchat serve --config /etc/agentchat/agentchat.yaml
  agentchat run --turns 4 --out ./transcripts
  agentchat models --all
  echo "$OPENAI_API_KEY" | agentchat key set openai`)
}

// =============================================================================
// Logging
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
