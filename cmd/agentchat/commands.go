package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sanchez314c/agent-chat/agent/conversation"
	"github.com/sanchez314c/agent-chat/internal/filesink"
	"github.com/sanchez314c/agent-chat/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// run
// =============================================================================

func runConversation(args []string) error {
	fs, configPath := commandFlags("run")
	out := fs.String("out", "", "Directory to save the markdown transcript to")
	turns := fs.Int("turns", 0, "Override the configured number of turns")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *turns > 0 {
		cfg.Conversation.MaxTurns = *turns
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	settings := conversation.SettingsFrom(cfg.Conversation)
	orch, err := conversation.New(a.manager, settings, conversation.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = orch.Close() }()

	events, unsubscribe := orch.Subscribe(0)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for ev := range events {
			printEvent(os.Stdout, settings, ev)
		}
	}()

	if err := orch.Start(ctx); err != nil {
		unsubscribe()
		<-printed
		return errors.New(conversation.ClassifyError(err))
	}

	if err := orch.Wait(ctx); err != nil {
		// interrupted: let the turn in flight land, then stop
		stop()
		fmt.Fprintln(os.Stderr, "Stopping after the current turn...")
		orch.Stop()
		_ = orch.Wait(context.Background())
	}
	unsubscribe()
	<-printed

	snap := orch.Snapshot()
	fmt.Printf("\n%s\n", snap.Summary)

	if *out != "" {
		sink := filesink.New(*out, filesink.WithLogger(logger))
		res, err := orch.Save(context.Background(), sink)
		if err != nil {
			return err
		}
		fmt.Printf("Saved transcript to %s\n", res.Path)
	}

	if snap.State == types.StateError {
		return errors.New(snap.LastError)
	}
	return nil
}

// printEvent writes messages and failures as they happen.
func printEvent(w io.Writer, s conversation.Settings, ev conversation.Event) {
	switch ev.Type {
	case conversation.EventMessage:
		if ev.Message == nil || ev.Message.Role == types.RoleSystem {
			return
		}
		fmt.Fprintf(w, "\n[%s]\n%s\n", speaker(s, *ev.Message), ev.Message.Content)
	case conversation.EventError:
		fmt.Fprintf(w, "\n[error] %s\n", ev.Error)
	}
}

func speaker(s conversation.Settings, m types.Message) string {
	switch {
	case m.IsOperator || m.Role == types.RoleOperator:
		return "Operator"
	case m.Role == types.RoleUser:
		return "Prompt"
	}
	for _, a := range s.Agents {
		if a.ID == m.AgentID {
			return a.DisplayName()
		}
	}
	return m.AgentID
}

// =============================================================================
// models
// =============================================================================

func runModels(args []string) error {
	fs, configPath := commandFlags("models")
	all := fs.Bool("all", false, "List models for every provider")
	_ = fs.Parse(args)

	if !*all && fs.NArg() != 1 {
		return errors.New("usage: agentchat models <provider> | --all")
	}

	a, logger, err := setupApp(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() { _ = a.Close() }()

	ctx, stop := signalContext()
	defer stop()

	var ids []string
	if *all {
		ids = a.registry.List()
	} else {
		id, err := a.providerID(fs.Arg(0))
		if err != nil {
			return err
		}
		ids = []string{id}
	}

	lists := make([][]string, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range ids {
		g.Go(func() error {
			lists[i] = a.manager.ListModels(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range ids {
		fmt.Printf("%s (%d models)\n", id, len(lists[i]))
		for _, m := range lists[i] {
			fmt.Printf("  %s\n", m)
		}
	}
	return nil
}

// =============================================================================
// test
// =============================================================================

func runTest(args []string) error {
	fs, configPath := commandFlags("test")
	host := fs.String("host", "", "Local server host (ollama, llamacpp)")
	port := fs.Int("port", 0, "Local server port (ollama, llamacpp)")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: agentchat test <provider>")
	}

	a, logger, err := setupApp(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() { _ = a.Close() }()

	id, err := a.providerID(fs.Arg(0))
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	cfg := types.AgentConfig{ID: "connection-test", Provider: id}
	if *host != "" || *port != 0 {
		cfg.LocalServer = &types.LocalServerConfig{Host: *host, Port: *port}
	}
	if !a.manager.TestConnection(ctx, cfg) {
		return fmt.Errorf("connection to %s failed", id)
	}
	fmt.Printf("%s: OK\n", id)
	return nil
}

// =============================================================================
// key
// =============================================================================

func runKey(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: agentchat key set|delete|status <provider>")
	}
	action := args[0]

	fs, configPath := commandFlags("key " + action)
	_ = fs.Parse(args[1:])
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: agentchat key %s <provider>", action)
	}

	a, logger, err := setupApp(*configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() { _ = a.Close() }()

	id, err := a.providerID(fs.Arg(0))
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch action {
	case "set":
		secret, err := readSecret(os.Stdin)
		if err != nil {
			return err
		}
		if err := a.manager.SaveCredential(ctx, id, secret); err != nil {
			return err
		}
		fmt.Printf("Stored API key for %s\n", id)
	case "delete":
		if err := a.manager.DeleteCredential(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Deleted API key for %s\n", id)
	case "status":
		state := "not configured"
		if a.manager.HasCredential(ctx, id) {
			state = "configured"
		}
		fmt.Printf("%s: %s\n", id, state)
	default:
		return fmt.Errorf("unknown key action %q", action)
	}
	return nil
}

// readSecret reads the first non-empty line of r.
func readSecret(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if s := strings.TrimSpace(scanner.Text()); s != "" {
			return s, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read API key: %w", err)
	}
	return "", errors.New("no API key given on stdin")
}

// setupApp loads the config and builds the provider stack for one-shot
// commands.
func setupApp(configPath string) (*app, *zap.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := initLogger(cfg.Log)
	a, err := newApp(context.Background(), cfg, logger, nil)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return a, logger, nil
}
