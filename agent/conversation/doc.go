/*
Package conversation runs a two-agent dialogue and applies operator actions
to it.

# Overview

An Orchestrator owns one conversation. Start seeds the history with the
system and initial prompts, then a background loop alternates turns between
the two configured agents: turn n goes to the first agent when n is even and
to the second when odd. Each turn hands the full history to a Responder
(agent.Manager in production), which prepares the agent's view and calls
its provider. At most one turn is in flight at a time.

# Run states

	idle ──Start──▶ running ──Pause──▶ paused
	  ▲               │  ▲               │
	  │               │  └────Resume─────┘
	  │           failure
	  │               ▼
	  └────Stop──── error ──Resume/Start──▶ running

Stop is accepted from every state. A response that resolves after Stop or
Pause is still appended, but no further turn is scheduled. Resume continues
from the number of completed turns, so the turn that was in flight is never
sent twice. Start and Reset begin a new generation; a response from an older
generation is discarded.

# Operator injection

Inject appends an operator message while running or paused. Only the
steering agent sees it, as a user message carrying the
"[OPERATOR MESSAGE]: " prefix.

# Events and export

Subscribe delivers message, state, error and reset events. ExportMarkdown
and Save render the transcript; a FileSink decides where it goes.
*/
package conversation
