// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package metrics exposes SunyAdvisor's Prometheus metrics.

A single Collector covers HTTP traffic, chat completions per agent, routed
and direct turns, knowledge-base retrieval, ingestion throughput, the query
embedding cache and database pool occupancy. It implements the observer
interfaces declared by agent, agent/orchestrator, rag and rag/ingest, so
those packages report without importing Prometheus.
*/
package metrics
