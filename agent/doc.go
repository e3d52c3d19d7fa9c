// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package agent implements a single LLM-backed conversational agent.

An [Agent] owns an immutable-by-default system prompt and an ordered message
log. [Agent.Invoke] projects the log onto the provider's message shape with
[RenderForLLM], trims it to the configured token budget with
[TrimToBudget] and calls the model. [Agent.HandleToolCall] runs the tool
loop

	idle -> awaiting_tool -> awaiting_model -> ... -> done

dispatching each requested call through llm/tools and appending the tool
result directly after the assistant message that requested it. The loop is
capped at Config.MaxToolIterations model round trips; exceeding the cap is a
TOOL_LOOP_EXCEEDED error.

Subpackages:

  - agent/orchestrator: routes a student turn through the Counselor and
    Knowledge agents using JSON envelopes.
  - agent/persistence: message and session stores.
*/
package agent
