/*
Package main is the agentchat executable.

# Overview

cmd/agentchat runs one two-agent conversation either behind the operator
HTTP API (serve) or directly in the terminal (run), and offers one-shot
commands for model listing, connection tests and API key management.
Configuration comes from a YAML or TOML file plus AGENTCHAT_* environment
variables; logs go through zap.

# Core types

  - Server: builds the provider stack and the orchestrator, serves the
    API and /metrics on separate ports and shuts both down in order
  - Middleware: func(http.Handler) http.Handler
  - RouteFunc: names the mux pattern serving a request for metric labels

# Capabilities

  - Commands: serve, run, models, test, key, migrate, version
  - Middleware chain: Recovery, RequestID, SecurityHeaders, RequestLogger,
    MetricsMiddleware, OTelTracing, CORS, RateLimiter (per IP), then
    JWTAuth (HS256) or APIKeyAuth (X-API-Key)
  - Event feed: /api/v1/conversation/events upgrades to a websocket through
    the whole chain
  - Shared catalog cache: catalog.shared_cache mirrors discovered model
    lists in Redis
  - Build info: Version, BuildTime and GitCommit are set with -ldflags
*/
package main
