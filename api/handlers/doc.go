/*
Package handlers implements the operator HTTP API of agentchat.

# Overview

Every handler follows the net/http interface and answers with the same
JSON envelope (success, data, error, timestamp, request_id). Routes carry
swag annotations.

# Handlers

  - ConversationHandler: settings, lifecycle actions, operator injection,
    markdown export and the websocket event feed
  - ProviderHandler: provider listing, model catalogs, connection tests and
    credential management
  - HealthHandler: liveness with the run state, readiness probes run in
    parallel, version

# Helpers

  - WriteSuccess / WriteError / WriteServiceError map domain errors onto
    HTTP status codes
  - DecodeJSONBody reads at most 1 MB and rejects unknown fields
  - ResponseWriter records status and size and supports hijacking for
    websocket upgrades
*/
package handlers
