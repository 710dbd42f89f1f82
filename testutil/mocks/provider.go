// =============================================================================
// Mock provider backend
// =============================================================================
// ProviderServer is an httptest server that speaks the OpenAI chat
// completions wire format. Replies are scripted in order; once the script
// runs out every call answers "response N".
//
// Usage:
//
//	srv := mocks.NewProviderServer(t).Reply("hi").Fail(429, "slow down")
//	adapter := srv.Adapter("fake", true)
// =============================================================================
package mocks

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/providers"
	"github.com/sanchez314c/agent-chat/llm/providers/openaicompat"
	"github.com/sanchez314c/agent-chat/testutil/fixtures"
	"github.com/sanchez314c/agent-chat/types"
)

// Reply is one scripted answer.
type Reply struct {
	Status int
	// Body is sent verbatim when set; otherwise Content is wrapped in a
	// completion body, or Message in an error body for non-2xx statuses.
	Body    string
	Content string
	Message string
	Delay   time.Duration
}

// RecordedRequest is what the server saw for one call.
type RecordedRequest struct {
	Path        string
	Query       url.Values
	Header      http.Header
	Model       string
	MaxTokens   int
	Temperature float64
	Messages    []providers.WireMessage
	Body        map[string]any
}

// ProviderServer is a scripted completion backend.
type ProviderServer struct {
	*httptest.Server

	mu       sync.Mutex
	script   []Reply
	requests []RecordedRequest
	calls    int
	gate     chan struct{}
	arrived  chan struct{}
}

// NewProviderServer starts a server closed by t.Cleanup.
func NewProviderServer(t testing.TB) *ProviderServer {
	s := &ProviderServer{arrived: make(chan struct{}, 64)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(func() {
		s.Release()
		s.Server.Close()
	})
	return s
}

// Reply queues a successful completion.
func (s *ProviderServer) Reply(content string) *ProviderServer {
	return s.Enqueue(Reply{Status: http.StatusOK, Content: content})
}

// Fail queues an error status with a nested error message.
func (s *ProviderServer) Fail(status int, message string) *ProviderServer {
	return s.Enqueue(Reply{Status: status, Message: message})
}

// Enqueue appends r to the script.
func (s *ProviderServer) Enqueue(r Reply) *ProviderServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, r)
	return s
}

// Hold makes every request wait until Release is called or the client
// goes away.
func (s *ProviderServer) Hold() *ProviderServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate == nil {
		s.gate = make(chan struct{})
	}
	return s
}

// Release lets held requests through. It is safe to call repeatedly.
func (s *ProviderServer) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// Arrived signals once per request as soon as it is recorded, before any
// hold or delay.
func (s *ProviderServer) Arrived() <-chan struct{} {
	return s.arrived
}

// Requests returns a copy of the recorded requests.
func (s *ProviderServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls returns how many requests were received.
func (s *ProviderServer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Adapter returns an OpenAI-compatible adapter pointed at the server.
func (s *ProviderServer) Adapter(id string, requiresAuth bool) llm.Adapter {
	a := openaicompat.New(openaicompat.Config{
		ProviderName: id,
		DisplayName:  "Fake " + id,
		BaseURL:      s.URL,
		DefaultModel: "fake-default",
		Models:       []string{"fake-default", "fake-large"},
	})
	a.RequiresAuth = requiresAuth
	if !requiresAuth {
		a.Headers = llm.NoHeaders
	}
	return a
}

// LocalServer returns the server address as a local runtime override.
func (s *ProviderServer) LocalServer() *types.LocalServerConfig {
	u, err := url.Parse(s.URL)
	if err != nil {
		return nil
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return nil
	}
	port, _ := strconv.Atoi(portStr)
	return &types.LocalServerConfig{Host: host, Port: port}
}

func (s *ProviderServer) handle(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := RecordedRequest{
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	}
	var wire struct {
		Model       string                  `json:"model"`
		MaxTokens   int                     `json:"max_tokens"`
		Temperature float64                 `json:"temperature"`
		Messages    []providers.WireMessage `json:"messages"`
	}
	if err := json.Unmarshal(raw, &wire); err == nil {
		rec.Model = wire.Model
		rec.MaxTokens = wire.MaxTokens
		rec.Temperature = wire.Temperature
		rec.Messages = wire.Messages
	}
	_ = json.Unmarshal(raw, &rec.Body)

	s.mu.Lock()
	s.calls++
	n := s.calls
	s.requests = append(s.requests, rec)
	reply := Reply{Status: http.StatusOK, Content: fmt.Sprintf("response %d", n)}
	if len(s.script) > 0 {
		reply = s.script[0]
		s.script = s.script[1:]
	}
	gate := s.gate
	s.mu.Unlock()

	select {
	case s.arrived <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-r.Context().Done():
			return
		}
	}

	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	body := reply.Body
	if body == "" {
		if status >= 200 && status < 300 {
			body = fixtures.ChatCompletionBody(reply.Content)
		} else if reply.Message != "" {
			body = fixtures.ErrorBody(reply.Message)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
