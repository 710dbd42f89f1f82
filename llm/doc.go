/*
Package llm is the provider abstraction layer of agent-chat.

Every supported backend is described by one [Adapter] value: a record of
pure functions that resolve the endpoint, build headers, turn a prepared
message list into the provider's native body and pull the completion text
back out. Adapters live in a [Registry] keyed by provider id; there is no
class hierarchy and adding a provider means registering one more value.

# Layout

  - llm                 : Adapter, Registry, Discovery descriptors
  - llm/providers/...   : one package per wire family (OpenAI-compatible, Anthropic, Gemini, ...)
  - llm/factory         : the default registry with all fourteen providers
  - llm/credentials     : Credential Store contract and its backends
  - llm/catalog         : model catalog resolver with fallback and caching
  - llm/client          : the single-attempt protocol client

# Invariants

  - No adapter ever emits the operator role; it is rewritten to user.
  - ResponseParser returns "" rather than failing on partial bodies.
  - Caller-supplied extra parameters override adapter defaults.
*/
package llm
