// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package llm is the language-model access layer of the advisor.

# Overview

The package defines the [Provider] contract the agents call and the request
and response types that flow through it. Concrete adapters live in
sub-packages so the agent layer never depends on a specific vendor.

# Sub-packages

  - providers, providers/openaicompat: OpenAI-compatible chat completions
    client with error mapping to types.Error
  - retry, circuitbreaker: backoff and failure isolation used by
    [ResilientProvider]
  - tokenizer: tiktoken-backed token counting with an estimator fallback
  - embedding: text → vector adapters, model registry and overlength windowing
  - rerank: cross-encoder reranking over HTTP
  - tools: tool registry and executor used by the agent tool-call loop

# Core types

  - [ChatRequest] / [ChatResponse]: chat request and response
  - [ResponseFormat]: text or json_object output enforcement
  - [HealthStatus]: provider health probe result
  - [ResilientProvider]: retries transient failures behind a circuit breaker
*/
package llm
