/*
Package providers holds the helpers shared by every wire-family adapter.

# Shared helpers

  - WireRole / ToWireMessages : operator to user role mapping
  - MergeParams               : caller extra parameters win over defaults
  - TextAt                    : tolerant gjson text extraction used by every ResponseParser
  - SplitSystem               : first system message as a separate instruction
  - ReadErrorMessage          : error.message, error, message, then the status line
  - MapHTTPError              : HTTP status to types.Error code and retryable flag

Each sub-package (openaicompat, anthropic, gemini, huggingface, replicate,
pi, ollama, llamacpp) returns an llm.Adapter value and performs no I/O.
*/
package providers
