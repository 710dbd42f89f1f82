// Package client performs one completion call against a provider adapter.
//
// A call is exactly one HTTP POST: no retry, no client-side timeout, no
// streaming. Cancellation comes from the caller's context.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sanchez314c/agent-chat/internal/metrics"
	"github.com/sanchez314c/agent-chat/internal/telemetry"
	"github.com/sanchez314c/agent-chat/internal/tlsutil"
	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/credentials"
	"github.com/sanchez314c/agent-chat/llm/providers"
	"github.com/sanchez314c/agent-chat/types"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxResponseBytes caps how much of a provider body is read.
const maxResponseBytes = 32 << 20

// Connection test parameters.
const (
	testPrompt      = "Hello"
	testMaxTokens   = 10
	testTemperature = 0.1
)

// Request is one completion call.
type Request struct {
	Provider    string
	Messages    []types.Message
	Model       string
	MaxTokens   int
	Temperature float64
	Extra       llm.Params
	// Runtime overrides the local server address for ollama and llama.cpp.
	Runtime *types.LocalServerConfig
}

// Result is a successful completion.
type Result struct {
	Content  string          `json:"content"`
	Provider string          `json:"provider"`
	Model    string          `json:"model"`
	Usage    json.RawMessage `json:"usage,omitempty"`
	Latency  time.Duration   `json:"latency"`
}

// Client sends requests through the adapters of a registry.
type Client struct {
	registry *llm.Registry
	store    credentials.Store
	http     *http.Client
	metrics  *metrics.Collector
	tracer   trace.Tracer
	usage    *telemetry.UsageRecorder
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithMetrics records every call.
func WithMetrics(m *metrics.Collector) Option {
	return func(cl *Client) { cl.metrics = m }
}

// New creates a client. store may be nil when only local providers are used.
func New(registry *llm.Registry, store credentials.Store, opts ...Option) *Client {
	c := &Client{
		registry: registry,
		store:    store,
		http:     tlsutil.CompletionClient(),
		tracer:   telemetry.Tracer("llm/client"),
		usage:    telemetry.NewUsageRecorder("llm/client"),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "llm_client"))
	return c
}

// Send performs the call described by req.
func (c *Client) Send(ctx context.Context, req Request) (result *Result, err error) {
	adapter, ok := c.registry.Lookup(req.Provider)
	if !ok {
		return nil, types.NewError(types.ErrUnknownProvider, fmt.Sprintf("unknown provider: %s", req.Provider)).
			WithProvider(req.Provider)
	}

	ctx, span := c.tracer.Start(ctx, "llm.send", trace.WithAttributes(
		telemetry.AttrProvider.String(adapter.ID),
		telemetry.AttrModel.String(req.Model),
		attribute.Int("agentchat.messages", len(req.Messages)),
	))
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = string(types.GetErrorCode(err))
			if status == "" {
				status = "error"
			}
		}
		c.metrics.RecordLLMRequest(adapter.ID, req.Model, status, time.Since(start))
		telemetry.EndSpan(span, err)
	}()

	secret, err := c.credential(ctx, adapter)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(adapter.BuildRequest(req.Messages, req.Model, req.MaxTokens, req.Temperature, req.Extra))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to encode request body").
			WithCause(err).WithProvider(adapter.ID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, adapter.URL(req.Model, req.Runtime, secret), bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to build request").
			WithCause(err).WithProvider(adapter.ID)
	}
	for k, v := range adapter.RequestHeaders(secret) {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("provider call failed",
			zap.String("provider", adapter.ID),
			zap.String("model", req.Model),
			zap.Error(err))
		return nil, types.NewError(types.ErrTransport, err.Error()).
			WithCause(err).WithProvider(adapter.ID).WithRetryable(true)
	}
	defer resp.Body.Close()
	span.SetAttributes(telemetry.AttrHTTPStatus.Int(resp.StatusCode))

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := providers.ReadErrorMessage(raw, resp.Status)
		c.logger.Warn("provider returned error status",
			zap.String("provider", adapter.ID),
			zap.String("model", req.Model),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, providers.MapHTTPError(resp.StatusCode, msg, adapter.ID)
	}
	if readErr != nil {
		return nil, types.NewError(types.ErrTransport, "failed to read response body").
			WithCause(readErr).WithProvider(adapter.ID)
	}

	result = &Result{
		Content:  adapter.ParseResponse(raw),
		Provider: adapter.ID,
		Model:    req.Model,
		Latency:  time.Since(start),
	}
	if usage := gjson.GetBytes(raw, "usage"); usage.Exists() && gjson.ValidBytes(raw) {
		result.Usage = json.RawMessage(usage.Raw)
	}
	input, output := c.usage.Record(ctx, adapter.ID, req.Model, result.Usage)

	c.logger.Debug("provider call completed",
		zap.String("provider", adapter.ID),
		zap.String("model", req.Model),
		zap.Int("content_len", len(result.Content)),
		zap.Int64("input_tokens", input),
		zap.Int64("output_tokens", output),
		zap.Duration("latency", result.Latency))

	return result, nil
}

// credential returns the secret for adapter. Providers that need no
// authentication never touch the store.
func (c *Client) credential(ctx context.Context, adapter llm.Adapter) (string, error) {
	if !adapter.RequiresAuth {
		return "", nil
	}
	if c.store == nil {
		return "", types.NewMissingCredentialError(adapter.ID)
	}
	secret, err := c.store.Get(ctx, adapter.ID)
	if errors.Is(err, credentials.ErrNotFound) || (err == nil && secret == "") {
		return "", types.NewMissingCredentialError(adapter.ID)
	}
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "failed to read credential").
			WithCause(err).WithProvider(adapter.ID)
	}
	return secret, nil
}

// TestConnection sends a minimal prompt with the provider's default model
// and reports whether a 2xx came back.
func (c *Client) TestConnection(ctx context.Context, providerID string, rt *types.LocalServerConfig) bool {
	adapter, ok := c.registry.Lookup(providerID)
	if !ok {
		return false
	}
	_, err := c.Send(ctx, Request{
		Provider:    providerID,
		Messages:    []types.Message{types.NewUserMessage(testPrompt)},
		Model:       adapter.DefaultModel,
		MaxTokens:   testMaxTokens,
		Temperature: testTemperature,
		Runtime:     rt,
	})
	if err != nil {
		c.logger.Info("connection test failed",
			zap.String("provider", providerID),
			zap.Error(err))
		return false
	}
	return true
}
