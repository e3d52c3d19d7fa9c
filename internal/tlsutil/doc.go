// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

// Package tlsutil builds the HTTP clients used for outbound calls: model,
// embedding, rerank and vector store APIs, and the URL probes run during
// ingestion. TLS is pinned to 1.2+ with AEAD-only cipher suites.
package tlsutil
