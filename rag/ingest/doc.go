// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package ingest turns the mirrored SUNY corpus into vector store points.

The corpus root holds one directory per university. Ingestion runs in two
phases so that expensive embedding work survives restarts:

  - Embed walks every university, extracts and chunks each HTML or PDF file,
    embeds the full text and every chunk, and records the result in the
    university's html_embeddings or pdf_embeddings cache file. Files already
    in the cache are skipped.
  - Insert streams the cache files into the vector store, skipping documents
    whose doc_id already has a point. Re-running either phase is idempotent.

HTML pages additionally get a canonical URL from [URLResolver], which probes
the live site with a small set of path suffixes.
*/
package ingest
