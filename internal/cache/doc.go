// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

// Package cache is a small Redis cache used to memoize query embeddings in
// front of the embedding server. Cache errors never fail a retrieval.
package cache
