package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"sasfiscal-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// SearchOptions configures a vector search. Zero values mean: no doc-type
// preference, no exclusion, exact-year only, default top-k.
type SearchOptions struct {
	PreferDocType        string
	ExcludeDocType       string
	IncludeEvergreenYear bool
	IncludeNullYear      bool
	TopK                 int
}

// DefaultTopK is the fallback result cap when SearchOptions.TopK is unset.
const DefaultTopK = 12

// ChunkRepository handles database operations for chunks and evidence
// retrieval.
type ChunkRepository struct {
	db *pgxpool.Pool
}

// NewChunkRepository creates a new chunk repository.
func NewChunkRepository(db *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// Insert stores one chunk with its embedding and provenance metadata.
func (r *ChunkRepository) Insert(ctx context.Context, chunk *models.Chunk) error {
	query := `
		INSERT INTO chunks (
			document_id, text, embedding, norm_kind, norm_id,
			page_start, page_end, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(
		ctx, query,
		chunk.DocumentID,
		chunk.Text,
		pgvector.NewVector(chunk.Embedding),
		chunk.NormKind,
		chunk.NormID,
		chunk.PageStart,
		chunk.PageEnd,
		chunk.Metadata,
	)
	return err
}

const evidenceColumns = `
		c.chunk_id,
		c.document_id,
		c.norm_kind,
		c.norm_id,
		d.source_filename,
		c.text,
		d.doc_type,
		COALESCE(d.exercise_year, 0),
		d.published_date,
		c.page_start,
		c.page_end`

func scanEvidence(rows pgx.Rows, score float64, source string) ([]models.Evidence, error) {
	var out []models.Evidence
	for rows.Next() {
		var ev models.Evidence
		var pubDate *time.Time
		dest := []interface{}{
			&ev.ChunkID,
			&ev.DocumentID,
			&ev.NormKind,
			&ev.NormID,
			&ev.SourceFilename,
			&ev.Text,
			&ev.DocType,
			&ev.ExerciseYear,
			&pubDate,
			&ev.PageStart,
			&ev.PageEnd,
		}
		if score < 0 {
			dest = append(dest, &ev.Score)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		if score >= 0 {
			ev.Score = score
		}
		if pubDate != nil {
			ev.PublishedDate = pubDate.Format("2006-01-02")
		} else {
			ev.PublishedDate = "S/F"
		}
		ev.Source = source
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evidence: %w", err)
	}
	return out, nil
}

func yearClause(opts SearchOptions) string {
	switch {
	case opts.IncludeEvergreenYear && opts.IncludeNullYear:
		return "(d.exercise_year = $2 OR d.exercise_year = 0 OR d.exercise_year IS NULL)"
	case opts.IncludeEvergreenYear:
		return "(d.exercise_year = $2 OR d.exercise_year = 0)"
	case opts.IncludeNullYear:
		return "(d.exercise_year = $2 OR d.exercise_year IS NULL)"
	default:
		return "d.exercise_year = $2"
	}
}

// VectorSearch returns up to TopK chunks ordered by ascending cosine
// distance to the query vector, subject to year and doc-type filters.
func (r *ChunkRepository) VectorSearch(ctx context.Context, queryVec []float32, year int, opts SearchOptions) ([]models.Evidence, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	query := fmt.Sprintf(`
		SELECT %s,
			1 - (c.embedding <=> $1::vector) AS score
		FROM chunks c
		JOIN documents d ON c.document_id = d.document_id
		WHERE %s
			AND ($3 = '' OR d.doc_type = $3)
			AND ($4 = '' OR d.doc_type <> $4)
		ORDER BY c.embedding <=> $1::vector
		LIMIT $5`, evidenceColumns, yearClause(opts))

	rows, err := r.db.Query(ctx, query,
		pgvector.NewVector(queryVec), year, opts.PreferDocType, opts.ExcludeDocType, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to run vector search: %w", err)
	}
	defer rows.Close()

	return scanEvidence(rows, -1, models.SourceVector)
}

// escapeLike escapes LIKE metacharacters so keywords match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// KeywordSearch selects chunks whose text contains any keyword as a
// case-insensitive substring, year filter as in VectorSearch (exact year,
// evergreen and null all accepted). Results are ordered by doc-type
// priority (ley > rmf > rest) then exercise_year descending.
func (r *ChunkRepository) KeywordSearch(ctx context.Context, keywords []string, year int, limit int) ([]models.Evidence, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultTopK / 2
	}

	args := []interface{}{year}
	var conds []string
	for _, kw := range keywords {
		args = append(args, "%"+escapeLike(kw)+"%")
		conds = append(conds, fmt.Sprintf(`c.text ILIKE $%d`, len(args)))
	}
	args = append(args, limit)

	// Columns deliberately mirror evidenceColumns minus the score term;
	// keyword hits carry a fixed score of 1.0.
	query := fmt.Sprintf(`
		SELECT %s
		FROM chunks c
		JOIN documents d ON c.document_id = d.document_id
		WHERE (%s)
			AND (d.exercise_year = $1 OR d.exercise_year = 0 OR d.exercise_year IS NULL)
		ORDER BY
			CASE WHEN d.doc_type = 'ley' THEN 1
				 WHEN d.doc_type = 'rmf' THEN 2
				 ELSE 3 END,
			d.exercise_year DESC
		LIMIT $%d`, evidenceColumns, strings.Join(conds, " OR "), len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run keyword search: %w", err)
	}
	defer rows.Close()

	return scanEvidence(rows, 1.0, models.SourceKeyword)
}

// ArticleLookup deterministically retrieves the chunks of one article by
// its canonical token, ordered by chunk_id ascending.
func (r *ChunkRepository) ArticleLookup(ctx context.Context, documentID, normID string, limit int) ([]models.Evidence, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM chunks c
		JOIN documents d ON c.document_id = d.document_id
		WHERE c.document_id = $1
			AND c.norm_kind = 'ARTICLE'
			AND c.norm_id = $2
		ORDER BY c.chunk_id ASC
		LIMIT $3`, evidenceColumns)

	rows, err := r.db.Query(ctx, query, documentID, normID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to look up article %s in %s: %w", normID, documentID, err)
	}
	defer rows.Close()

	return scanEvidence(rows, 1.0, models.SourceArticleLookup)
}

// RuleLookup deterministically retrieves the chunks of an RMF rule for the
// given fiscal year. Chunks from preferDocumentID (if non-empty) sort
// first, then page_start (nulls last), then chunk_id. After ordering,
// chunks whose text opens with "<rule_id>. " are the rule's body and
// supersede index or table-of-contents entries.
func (r *ChunkRepository) RuleLookup(ctx context.Context, year int, ruleID, preferDocumentID string, limit int) ([]models.Evidence, error) {
	ruleID = strings.TrimSpace(ruleID)
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM chunks c
		JOIN documents d ON c.document_id = d.document_id
		WHERE d.doc_type = 'rmf'
			AND d.exercise_year = $1
			AND c.norm_kind = 'RULE'
			AND c.norm_id = $2
		ORDER BY
			CASE WHEN $3 <> '' AND c.document_id = $3 THEN 0 ELSE 1 END,
			c.page_start NULLS LAST,
			c.chunk_id ASC
		LIMIT $4`, evidenceColumns)

	rows, err := r.db.Query(ctx, query, year, ruleID, preferDocumentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to look up rule %s (%d): %w", ruleID, year, err)
	}
	defer rows.Close()

	evidence, err := scanEvidence(rows, 1.0, models.SourceRuleLookup)
	if err != nil {
		return nil, err
	}
	return PreferRuleBody(evidence, ruleID), nil
}

// PreferRuleBody keeps only the chunks whose text begins with the rule id
// followed by a period, when any such chunk exists. These are the bodies of
// the rule; the rest are index entries.
func PreferRuleBody(evidence []models.Evidence, ruleID string) []models.Evidence {
	bodyPat := regexp.MustCompile(`(?im)^\s*` + regexp.QuoteMeta(ruleID) + `\.\s`)
	var body []models.Evidence
	for _, ev := range evidence {
		if bodyPat.MatchString(ev.Text) {
			body = append(body, ev)
		}
	}
	if len(body) > 0 {
		return body
	}
	return evidence
}

// MergeEvidence combines vector and keyword results, vector-first, removing
// duplicates by a 200-character text prefix, capped at topK.
func MergeEvidence(vectorResults, keywordResults []models.Evidence, topK int) []models.Evidence {
	if topK <= 0 {
		topK = DefaultTopK
	}
	seen := make(map[string]bool)
	var merged []models.Evidence

	add := func(ev models.Evidence) {
		key := ev.Text
		if len(key) > 200 {
			key = key[:200]
		}
		if seen[key] {
			return
		}
		seen[key] = true
		merged = append(merged, ev)
	}

	for _, ev := range vectorResults {
		add(ev)
	}
	for _, ev := range keywordResults {
		add(ev)
	}

	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}
