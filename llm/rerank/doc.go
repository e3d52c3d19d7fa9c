// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package rerank scores retrieved passages against a query with a cross-encoder.

[HTTPProvider] talks to a remote scoring server in one of two wire shapes:
text-embeddings-inference (POST /rerank) or the Jina/Cohere style
(POST /v1/rerank). Results are always returned sorted by relevance
descending and cut to TopN when it is set.
*/
package rerank
