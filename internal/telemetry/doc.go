// Package telemetry wires the OpenTelemetry SDK for agent-chat and provides
// the tracer and span helpers used around provider calls and conversation
// turns, plus the gen_ai.client.token.usage histogram fed from provider
// usage blocks. When disabled, the global providers stay noop.
package telemetry
