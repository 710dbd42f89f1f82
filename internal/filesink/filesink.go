// Package filesink writes exported conversation transcripts to a directory.
package filesink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sanchez314c/agent-chat/agent/conversation"
	"go.uber.org/zap"
)

// DirSink saves each transcript as a new markdown file in Dir.
type DirSink struct {
	dir    string
	name   string
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a DirSink.
type Option func(*DirSink)

// WithFileName fixes the file name instead of the dated default.
func WithFileName(name string) Option {
	return func(s *DirSink) { s.name = name }
}

// WithClock replaces time.Now for the dated default name.
func WithClock(now func() time.Time) Option {
	return func(s *DirSink) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *DirSink) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a sink writing to dir.
func New(dir string, opts ...Option) *DirSink {
	s := &DirSink{
		dir:    dir,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "filesink"))
	return s
}

// DefaultFileName returns AgentCHAT-YYYY-MM-DD.md for t.
func DefaultFileName(t time.Time) string {
	return "AgentCHAT-" + t.Format("2006-01-02") + ".md"
}

// Save writes markdown to a new file. An existing file of the same name
// gets a numeric suffix instead of being overwritten.
func (s *DirSink) Save(ctx context.Context, markdown string) (conversation.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return conversation.SaveResult{Cancelled: true}, nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return conversation.SaveResult{}, fmt.Errorf("create export directory: %w", err)
	}

	name := s.name
	if name == "" {
		name = DefaultFileName(s.now())
	}
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]

	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
		}
		path := filepath.Join(s.dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return conversation.SaveResult{}, fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := f.WriteString(markdown); err != nil {
			f.Close()
			return conversation.SaveResult{}, fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return conversation.SaveResult{}, fmt.Errorf("close %s: %w", path, err)
		}
		s.logger.Info("transcript written", zap.String("path", path), zap.Int("bytes", len(markdown)))
		return conversation.SaveResult{Path: path}, nil
	}
}
