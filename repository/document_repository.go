package repository

import (
	"context"
	"fmt"

	"sasfiscal-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository handles database operations for documents.
type DocumentRepository struct {
	db *pgxpool.Pool
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Upsert creates the document row or refreshes its mutable fields.
// Documents are never deleted under normal operation; re-ingest replaces
// their chunks only.
func (r *DocumentRepository) Upsert(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (
			document_id, title, doc_family, doc_type, exercise_year,
			source_filename, source_path, published_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (document_id) DO UPDATE SET
			title = EXCLUDED.title,
			doc_family = EXCLUDED.doc_family,
			doc_type = EXCLUDED.doc_type,
			exercise_year = EXCLUDED.exercise_year,
			source_filename = EXCLUDED.source_filename,
			source_path = EXCLUDED.source_path`

	_, err := r.db.Exec(
		ctx, query,
		doc.DocumentID,
		doc.Title,
		doc.DocFamily,
		doc.DocType,
		doc.ExerciseYear,
		doc.SourceFilename,
		doc.SourcePath,
		doc.PublishedDate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.DocumentID, err)
	}
	return nil
}

// GetByID retrieves a document by its id.
func (r *DocumentRepository) GetByID(ctx context.Context, documentID string) (*models.Document, error) {
	doc := &models.Document{}
	query := `
		SELECT document_id, title, doc_family, doc_type, exercise_year,
			source_filename, source_path, published_date
		FROM documents
		WHERE document_id = $1`

	err := r.db.QueryRow(ctx, query, documentID).Scan(
		&doc.DocumentID,
		&doc.Title,
		&doc.DocFamily,
		&doc.DocType,
		&doc.ExerciseYear,
		&doc.SourceFilename,
		&doc.SourcePath,
		&doc.PublishedDate,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteChunks removes every chunk of a document and reports how many rows
// went away. Used at the start of a re-ingest.
func (r *DocumentRepository) DeleteChunks(ctx context.Context, documentID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for %s: %w", documentID, err)
	}
	return tag.RowsAffected(), nil
}
