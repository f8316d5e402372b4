package knowledge

import "time"

// Document is one chunk of corpus content with its source metadata.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Result pairs a document with its similarity to the search query.
// Similarity is cosine similarity in [0, 1], higher is closer.
type Result struct {
	Document
	Similarity float64
}

// Common metadata keys written by the corpus ingestion pipeline.
const (
	MetaTitle = "title"
	MetaType  = "type"
	MetaDate  = "date"
)
