package rag

import (
	"strings"
	"testing"

	"github.com/ioc-assistant/eassistant/internal/knowledge"
)

func TestFormatContextEmpty(t *testing.T) {
	if got := FormatContext(nil, true); got != "" {
		t.Errorf("FormatContext(nil) = %q, want empty string", got)
	}
	if got := FormatContext([]knowledge.Document{}, false); got != "" {
		t.Errorf("FormatContext(empty) = %q, want empty string", got)
	}
}

func TestFormatContextOrderPreserved(t *testing.T) {
	docs := []knowledge.Document{
		{ID: "d1", Content: "first content"},
		{ID: "d2", Content: "second content"},
		{ID: "d3", Content: "third content"},
	}

	got := FormatContext(docs, false)

	i1 := strings.Index(got, "=== Document 1 ===")
	i2 := strings.Index(got, "=== Document 2 ===")
	i3 := strings.Index(got, "=== Document 3 ===")
	if i1 < 0 || i2 < 0 || i3 < 0 || !(i1 < i2 && i2 < i3) {
		t.Fatalf("FormatContext() block order wrong:\n%s", got)
	}

	c1 := strings.Index(got, "first content")
	c2 := strings.Index(got, "second content")
	c3 := strings.Index(got, "third content")
	if !(i1 < c1 && c1 < i2 && i2 < c2 && c2 < i3 && i3 < c3) {
		t.Fatalf("FormatContext() content not under its numbered block:\n%s", got)
	}
}

func TestFormatContextMetadataHeader(t *testing.T) {
	docs := []knowledge.Document{
		{
			ID:      "d1",
			Content: "body",
			Metadata: map[string]string{
				"title": "Enrollment guide",
				"type":  "faq",
				"date":  "2025-09-01",
			},
		},
	}

	got := FormatContext(docs, true)
	want := "Title: Enrollment guide | Type: faq | Date: 2025-09-01"
	if !strings.Contains(got, want) {
		t.Errorf("FormatContext() missing source header %q:\n%s", want, got)
	}
}

func TestFormatContextPartialMetadata(t *testing.T) {
	docs := []knowledge.Document{
		{ID: "d1", Content: "body", Metadata: map[string]string{"date": "2025-01-15"}},
	}

	got := FormatContext(docs, true)
	if !strings.Contains(got, "Date: 2025-01-15") {
		t.Errorf("FormatContext() missing date header:\n%s", got)
	}
	if strings.Contains(got, "Title:") || strings.Contains(got, "Type:") {
		t.Errorf("FormatContext() emitted headers for absent fields:\n%s", got)
	}
}

func TestFormatContextGenericSourceLabel(t *testing.T) {
	docs := []knowledge.Document{
		{ID: "d1", Content: "body", Metadata: map[string]string{}},
	}

	got := FormatContext(docs, true)
	if !strings.Contains(got, "Source: knowledge base") {
		t.Errorf("FormatContext() missing generic source label:\n%s", got)
	}
}

func TestFormatContextWithoutMetadata(t *testing.T) {
	docs := []knowledge.Document{
		{ID: "d1", Content: "body", Metadata: map[string]string{"title": "ignored"}},
	}

	got := FormatContext(docs, false)
	if strings.Contains(got, "Title:") || strings.Contains(got, "Source:") {
		t.Errorf("FormatContext(includeMetadata=false) emitted headers:\n%s", got)
	}
}

func TestDocuments(t *testing.T) {
	scored := []Scored{
		{Document: knowledge.Document{ID: "b"}, Score: 0.9},
		{Document: knowledge.Document{ID: "a"}, Score: 0.5},
	}

	docs := Documents(scored)
	if len(docs) != 2 || docs[0].ID != "b" || docs[1].ID != "a" {
		t.Errorf("Documents() = %+v, want order preserved", docs)
	}
}
