package models

// Norm kinds as stored in chunks.norm_kind.
const (
	NormKindArticle   = "ARTICLE"
	NormKindPreambulo = "PREAMBULO"
	NormKindRule      = "RULE"
)

// Chunk is a retrievable text fragment of a document. NormID is the
// canonical identifier within the document ("27", "69-B", "TRANS-PRIMERO"
// for articles, "2.1.1" for RMF rules).
type Chunk struct {
	ChunkID    int64                  `json:"chunk_id"`
	DocumentID string                 `json:"document_id"`
	Text       string                 `json:"text"`
	Embedding  []float32              `json:"-"`
	NormKind   string                 `json:"norm_kind"`
	NormID     string                 `json:"norm_id"`
	PageStart  *int                   `json:"page_start,omitempty"`
	PageEnd    *int                   `json:"page_end,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
