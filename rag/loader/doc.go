// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

// Package loader extracts text from the crawled campus files.
//
// HTMLLoader keeps the visible text of a saved page, dropping scripts,
// styles and the head. PDFLoader returns the text of every page
// of a catalogue or handbook. A Registry picks one by extension:
//
//	registry := loader.NewRegistry()
//	out, err := registry.Load(ctx, "/corpus/buffalo/admissions/index.html")
package loader
