package models

// Evidence origins.
const (
	SourceVector        = "vector"
	SourceKeyword       = "keyword"
	SourceArticleLookup = "article_lookup"
	SourceRuleLookup    = "rmf_rule_lookup"
)

// Evidence is a chunk decorated with its retrieval score and origin.
// It exists only for the lifetime of a single query and is never persisted.
type Evidence struct {
	ChunkID        int64   `json:"chunk_id"`
	DocumentID     string  `json:"document_id"`
	NormKind       string  `json:"norm_kind"`
	NormID         string  `json:"norm_id"`
	SourceFilename string  `json:"source_filename"`
	Text           string  `json:"chunk_text"`
	DocType        string  `json:"doc_type"`
	ExerciseYear   int     `json:"exercise_year"`
	PublishedDate  string  `json:"published_date"`
	PageStart      *int    `json:"page_start,omitempty"`
	PageEnd        *int    `json:"page_end,omitempty"`
	Score          float64 `json:"score"`
	Source         string  `json:"source"`
}
