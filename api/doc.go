// Package api documents the agentchat operator API.
//
// # API Overview
//
// The API drives a single two-agent conversation:
//   - read and edit the conversation settings
//   - start, pause, resume, stop and reset the run
//   - inject operator messages between turns
//   - export the transcript as markdown or save it on the server
//   - follow events over a websocket
//   - list providers and their models, test connections and manage API keys
//
// # Authentication
//
// When API keys are configured every endpoint except the health and version
// probes expects the X-API-Key header:
//
//	X-API-Key: your-api-key
//
// When a JWT secret is configured, a bearer token signed with HS256 is
// expected instead:
//
//	Authorization: Bearer <token>
//
// # Base URL
//
//	http://localhost:8080/api/v1
//
// # Generating Documentation
//
//	swag init -g cmd/agentchat/main.go -o api --parseDependency --parseInternal
package api
