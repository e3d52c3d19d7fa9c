// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package types provides the shared type definitions of the advisor.

# Overview

types is the lowest package in the module and imports no other internal
package, so agent, rag, llm, profile and api can all depend on it without
cycles.

# Core types

  - Message: a conversation event tagged with sender, recipient and chat
  - Party: student / counselor / suny
  - Envelope: the {phase, recipient, message} object agents exchange
  - ToolCall: a tool invocation requested by the model
  - ToolSchema: tool definition (name + description + JSON Schema parameters)
  - ToolResult: tool execution result, rendered back as text
  - Error: structured error with code, HTTP status and Retryable flag
  - JSONSchema: builder for tool parameter schemas
  - TokenCounter: minimal token counting interface

# Error taxonomy

Transient remote failures carry UPSTREAM_* / RATE_LIMITED / SERVICE_UNAVAILABLE
codes; the orchestrator surfaces them without retrying. MALFORMED_ENVELOPE fails the current
turn. TOOL_FAILURE is folded into the tool result text. INGESTION_FAILED and
URL_PROBE_FAILED are logged and skipped by the pipeline. AUTHORIZATION
failures carry a single uniform message.
*/
package types
