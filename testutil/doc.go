// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package testutil holds helpers shared by package tests.

  - TestContext returns a context bounded by a timeout and cancelled on
    cleanup.
  - AssertMessagesEqual compares role and content of two logs.
  - AssertToolAdjacency checks that every tool call in a log is followed
    immediately by its result.

Subpackages:

  - testutil/mocks: ScriptedProvider, an llm.Provider that replays queued
    responses and records every request.
  - testutil/fixtures: ChatResponse builders for text, envelope and tool-call
    answers.
*/
package testutil
