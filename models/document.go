package models

import "time"

// Document types as stored in documents.doc_type.
const (
	DocTypeLey        = "ley"
	DocTypeRMF        = "rmf"
	DocTypeAnexo      = "anexo"
	DocTypeReglamento = "reglamento"
)

// Document represents a legal source (a statute, regulation or yearly RMF).
// ExerciseYear 0 means the document is evergreen (not tied to a fiscal year).
type Document struct {
	DocumentID     string     `json:"document_id"`
	Title          string     `json:"title"`
	DocFamily      string     `json:"doc_family"`
	DocType        string     `json:"doc_type"`
	ExerciseYear   int        `json:"exercise_year"`
	SourceFilename string     `json:"source_filename"`
	SourcePath     string     `json:"source_path"`
	PublishedDate  *time.Time `json:"published_date,omitempty"`
}
