package rag

import (
	"fmt"
	"strings"

	"github.com/ioc-assistant/eassistant/internal/knowledge"
)

// NoContextMarker is injected as the context message when retrieval or
// reranking produced no usable documents, so the model states the absence
// of evidence instead of inventing an answer.
const NoContextMarker = "No supporting documents found for this question."

// FormatContext renders documents as numbered blocks in input order.
// When includeMetadata is set, each block carries a one-line source header
// built from whichever of title, type and date are present; documents with
// no usable metadata get a generic source label. Empty input yields an
// empty string.
func FormatContext(docs []knowledge.Document, includeMetadata bool) string {
	if len(docs) == 0 {
		return ""
	}

	chunks := make([]string, 0, len(docs))
	for i, doc := range docs {
		var b strings.Builder
		fmt.Fprintf(&b, "=== Document %d ===\n", i+1)
		if includeMetadata {
			b.WriteString(sourceHeader(doc.Metadata))
			b.WriteString("\n\n")
		}
		b.WriteString(doc.Content)
		b.WriteString("\n")
		chunks = append(chunks, b.String())
	}

	return strings.Join(chunks, "\n")
}

// Documents extracts the document sequence from reranked results,
// preserving order.
func Documents(scored []Scored) []knowledge.Document {
	docs := make([]knowledge.Document, len(scored))
	for i, s := range scored {
		docs[i] = s.Document
	}
	return docs
}

func sourceHeader(metadata map[string]string) string {
	var parts []string
	if v := metadata[knowledge.MetaTitle]; v != "" {
		parts = append(parts, "Title: "+v)
	}
	if v := metadata[knowledge.MetaType]; v != "" {
		parts = append(parts, "Type: "+v)
	}
	if v := metadata[knowledge.MetaDate]; v != "" {
		parts = append(parts, "Date: "+v)
	}
	if len(parts) == 0 {
		return "Source: knowledge base"
	}
	return strings.Join(parts, " | ")
}
