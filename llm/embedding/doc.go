// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package embedding maps text to fixed-dimension vectors.

# Overview

[Provider] is the low-level adapter to an embedding server. [HTTPProvider]
speaks the OpenAI-compatible /v1/embeddings API, which covers hosted OpenAI
as well as self-hosted text-embeddings-inference, Ollama and vLLM.

[Embedder] sits on top of a provider and owns the model contract: output
dimension checks and overlength handling. Inputs longer than the model limit
are cut into (max-20)-token windows with a 20-token backward overlap and the
window vectors are mean-pooled.

# Known models

  - all-MiniLM-L6-v2: 384 dimensions, 512 input tokens
  - nomic-embed-text-v1.5: 768 dimensions, 8192 input tokens, task prefixes

Other models are accepted when dimensions and max tokens are configured.
*/
package embedding
