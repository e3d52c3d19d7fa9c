// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

// Package tokenizer counts tokens for the agents' context budget and cuts
// overlong embedding inputs into windows. Known OpenAI-family and embedding
// models resolve to tiktoken BPE tokenizers; anything else, or a host where
// the BPE ranks cannot be fetched, uses a rune-count estimator.
package tokenizer
