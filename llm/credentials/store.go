// Package credentials stores provider API keys.
//
// Supported backends:
//   - Memory: process lifetime only (default)
//   - File: JSON document on disk, written atomically with 0600 permissions
//   - SQL: gorm table on postgres, mysql or sqlite
//   - Redis: one string key per provider under a prefix
//
// EnvStore layers provider environment variables over any backend.
package credentials

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Common errors
var (
	ErrNotFound     = errors.New("credential not found")
	ErrStoreClosed  = errors.New("credential store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// Store is the credential contract consumed by the client and the catalog.
// Get returns ErrNotFound when no secret is stored for providerID.
type Store interface {
	Get(ctx context.Context, providerID string) (string, error)
	Set(ctx context.Context, providerID, secret string) error
	Delete(ctx context.Context, providerID string) error
}

// Closer is implemented by backends holding connections or files.
type Closer interface {
	Close() error
}

// Pinger is implemented by backends that reach a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsSource is implemented by backends with a connection pool worth
// exporting.
type StatsSource interface {
	StatsCollector() prometheus.Collector
}

// StatsCollector returns the pool collector behind s, if it has one.
func StatsCollector(s Store) (prometheus.Collector, bool) {
	if src, ok := s.(StatsSource); ok {
		if c := src.StatsCollector(); c != nil {
			return c, true
		}
	}
	return nil, false
}

// Ping checks the backend behind s. Stores without a remote service are
// always reachable.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Has reports whether s holds a non-empty secret for providerID.
func Has(ctx context.Context, s Store, providerID string) bool {
	secret, err := s.Get(ctx, providerID)
	return err == nil && secret != ""
}

func validate(providerID, secret string) error {
	if strings.TrimSpace(providerID) == "" {
		return ErrInvalidInput
	}
	if strings.TrimSpace(secret) == "" {
		return ErrInvalidInput
	}
	return nil
}

func validateID(providerID string) error {
	if strings.TrimSpace(providerID) == "" {
		return ErrInvalidInput
	}
	return nil
}
