// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package rag implements retrieval over the SUNY document corpus.

# Data model

Every ingested file becomes a [SourceDocument]. Its full text is stored as a
parent point and its word windows ([WordChunker]) as chunk points in the same
collection; [Payload] tells them apart by the presence of chunk_id. Point ids
are derived from doc_id, so re-ingesting a file overwrites rather than
duplicates.

# Stores

[VectorStore] is implemented by [QdrantStore] (REST API) and
[InMemoryVectorStore].

# Retrieval

[Engine.Retrieve] embeds the query, searches chunk points first (falling back
to parents), reranks with a cross-encoder, expands each hit to its parent
text or PDF page range, and formats blocks headed by "URL:" and
"Page Number:" when that provenance is known. [NewSearchTool] exposes the
engine to models as the rag_search tool.
*/
package rag
