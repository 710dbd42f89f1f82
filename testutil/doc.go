/*
Package testutil holds helpers shared by the agent-chat test suites.

# Helpers

  - Contexts: TestContext / TestContextWithTimeout / CancelledContext,
    cancelled through t.Cleanup
  - Assertions: AssertMessagesEqual, Roles, AssertEventuallyTrue
  - Waiting: WaitFor, WaitForChannel

# Subpackages

  - testutil/mocks: ProviderServer, a scripted OpenAI-compatible HTTP
    backend with request recording and a hold gate, and SpyStore, a
    credential store that counts reads and can inject failures
  - testutil/fixtures: agent pairs and provider response bodies

# Example

	srv := mocks.NewProviderServer(t).Reply("hello")
	reg := llm.NewRegistry(srv.Adapter("fake", true))
	store := mocks.NewSpyStore().WithSecret("fake", "sk-test")
*/
package testutil
