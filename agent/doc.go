/*
Package agent turns a conversation history into one agent's next message.

# Overview

Each agent in a dialogue sees the shared history from its own point of
view. Prepare builds that view: the agent's persona comes first as a system
message, the agent's own replies become assistant messages, and everything
said by the other agent becomes user input. The history is windowed to the
most recent messages before it is sent.

	history ──▶ Prepare ──▶ client.Send ──▶ provider
	              │
	              ├─ persona first
	              ├─ own replies → assistant
	              ├─ other agent → user
	              └─ operator → user, steering agent only

# Manager

Manager binds the provider registry, the protocol client and the model
catalog together. Respond runs one turn for an agent configuration; it fills
in the adapter's default model when none is set and repairs strict role
alternation for providers that require it. Manager also fronts credential
storage so that saving or deleting a key invalidates cached model lists.

	mgr := agent.NewManager(registry, client.New(registry, store), resolver, store,
	    agent.WithContextWindow(10),
	    agent.WithLogger(logger),
	)
	res, err := mgr.Respond(ctx, cfg, history, "agent1")

See agent/conversation for the turn loop that drives two agents.
*/
package agent
