/*
Package types provides the shared type definitions of agent-chat.

types is the lowest-level package and imports no other package of this
module. Every cross-package contract lives here to avoid import cycles.

# Core types

  - Message           : one entry of a conversation (system, user, assistant, operator)
  - AgentConfig       : one side of the two-agent exchange (provider, model, persona, sampling)
  - Conversation      : the shared, append-only history plus both agent configs
  - RunState          : idle / running / paused / error
  - Error / ErrorCode : structured errors carrying HTTP status, retryable and provider

# Helpers

  - AsError / GetErrorCode / IsErrorCode / IsRetryable
  - IsConfigurationError distinguishes an absent credential from a provider failure
*/
package types
