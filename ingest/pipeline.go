package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"sasfiscal-backend/llm"
	"sasfiscal-backend/models"
	"sasfiscal-backend/repository"
	"sasfiscal-backend/storage"
)

// Embedding and insertion pacing defaults, overridable via env.
const (
	DefaultBatchSizeEmbed = 15
	DefaultDelayEmbedding = 100 * time.Millisecond
	DefaultDelayInsert    = 50 * time.Millisecond

	maxInsertRetries   = 5
	insertRetryBackoff = 200 * time.Millisecond
)

// Pipeline runs a full re-ingest of one document: replace its chunks with
// freshly extracted, chunked and embedded ones.
type Pipeline struct {
	docs     *repository.DocumentRepository
	chunks   *repository.ChunkRepository
	provider llm.Provider
	resolver storage.Resolver

	batchSize  int
	delayEmbed time.Duration
	delayIns   time.Duration
	dryRun     bool
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithDryRun skips deletes, embeddings and inserts; only extraction and
// chunking run, with detection stats logged.
func WithDryRun(dry bool) PipelineOption {
	return func(p *Pipeline) { p.dryRun = dry }
}

// WithBatchSize overrides the embedding batch size.
func WithBatchSize(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// NewPipeline creates a re-ingest pipeline. Pacing comes from
// BATCH_SIZE_EMBED, DELAY_EMBEDDING_MS and DELAY_INSERT_MS when set.
func NewPipeline(docs *repository.DocumentRepository, chunks *repository.ChunkRepository, provider llm.Provider, resolver storage.Resolver, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		docs:       docs,
		chunks:     chunks,
		provider:   provider,
		resolver:   resolver,
		batchSize:  envInt("BATCH_SIZE_EMBED", DefaultBatchSizeEmbed),
		delayEmbed: envDuration("DELAY_EMBEDDING_MS", DefaultDelayEmbedding),
		delayIns:   envDuration("DELAY_INSERT_MS", DefaultDelayInsert),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

// ReingestLaw re-ingests one law or regulation with article-first chunking.
func (p *Pipeline) ReingestLaw(ctx context.Context, spec DocumentSpec) error {
	return p.reingest(ctx, spec, &ChunkerConfig{Header: ArticleHeader})
}

// ReingestRMF re-ingests one RMF document with rule-first chunking.
func (p *Pipeline) ReingestRMF(ctx context.Context, spec DocumentSpec) error {
	return p.reingest(ctx, spec, &ChunkerConfig{Header: RuleHeader})
}

func (p *Pipeline) reingest(ctx context.Context, spec DocumentSpec, cfg *ChunkerConfig) error {
	localPath, cleanup, err := p.resolver.Resolve(ctx, spec.Filename)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", spec.Filename, err)
	}
	defer cleanup()

	log.Printf("    PDF: %s", localPath)

	if !p.dryRun {
		deleted, err := p.docs.DeleteChunks(ctx, spec.DocumentID)
		if err != nil {
			return fmt.Errorf("deleting previous chunks: %w", err)
		}
		log.Printf("    Previous chunks deleted: %d", deleted)

		doc := &models.Document{
			DocumentID:     spec.DocumentID,
			Title:          spec.Title,
			DocFamily:      "LEYES_FEDERALES",
			DocType:        spec.DocType,
			ExerciseYear:   spec.ExerciseYear,
			SourceFilename: spec.Filename,
			SourcePath:     localPath,
		}
		if spec.DocType == models.DocTypeRMF || spec.DocType == models.DocTypeAnexo {
			doc.DocFamily = "RMF"
		}
		if err := p.docs.Upsert(ctx, doc); err != nil {
			return fmt.Errorf("upserting document: %w", err)
		}
	} else {
		log.Printf("    DRY-RUN: nothing is deleted or inserted")
	}

	log.Printf("    Extracting pages...")
	pages, err := ExtractPages(localPath)
	if err != nil {
		return fmt.Errorf("extracting pages: %w", err)
	}

	chunks := ChunkDocument(pages, cfg)
	log.Printf("    Chunks: %d", len(chunks))

	normIDs := UniqueNormIDs(chunks)
	log.Printf("    Unique norms detected: %d", len(normIDs))
	if len(normIDs) > 0 {
		sorted := append([]string(nil), normIDs...)
		sort.Strings(sorted)
		n := len(sorted)
		if n > 12 {
			n = 12
		}
		log.Printf("    Examples: %s...", strings.Join(sorted[:n], ", "))
	}

	if p.dryRun {
		return nil
	}

	log.Printf("    Embeddings...")
	embeddings := p.embedAll(ctx, chunks)

	log.Printf("    Inserting chunks...")
	ok, bad := 0, 0
	for idx, c := range chunks {
		if embeddings[idx] == nil {
			bad++
			continue
		}

		ps, pe := c.PageStart, c.PageEnd
		chunk := &models.Chunk{
			DocumentID: spec.DocumentID,
			Text:       SanitizeText(c.Text),
			Embedding:  embeddings[idx],
			NormKind:   c.NormKind,
			NormID:     c.NormID,
			PageStart:  &ps,
			PageEnd:    &pe,
			Metadata: map[string]interface{}{
				"norm_id":     c.NormID,
				"page_start":  c.PageStart,
				"page_end":    c.PageEnd,
				"chunk_index": c.ChunkIndex,
				"char_start":  c.CharStart,
				"char_end":    c.CharEnd,
			},
		}

		if err := p.insertWithRetry(ctx, chunk); err != nil {
			bad++
			if bad <= 3 {
				log.Printf("      insert failed for chunk %d: %v", idx, err)
			}
			continue
		}
		ok++

		select {
		case <-time.After(p.delayIns):
		case <-ctx.Done():
			return ctx.Err()
		}
		if (idx+1)%100 == 0 {
			log.Printf("      Insert progress: %d/%d (ok=%d bad=%d)", idx+1, len(chunks), ok, bad)
		}
	}

	log.Printf("    Inserts: %d/%d", ok, len(chunks))
	if bad > 0 {
		log.Printf("    Failed: %d", bad)
	}
	if ok == 0 && len(chunks) > 0 {
		return fmt.Errorf("no chunks inserted for %s", spec.DocumentID)
	}
	return nil
}

// embedAll embeds chunks in batches. A failed batch falls back to per-item
// calls; items that still fail get a nil vector and are skipped at insert
// time.
func (p *Pipeline) embedAll(ctx context.Context, chunks []DocChunk) [][]float32 {
	embeddings := make([][]float32, 0, len(chunks))

	for i := 0; i < len(chunks); i += p.batchSize {
		end := i + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			texts = append(texts, c.Text)
		}

		vecs, err := p.provider.Embed(ctx, texts)
		if err != nil {
			log.Printf("      batch embedding failed: %v", err)
			vecs = p.embedOneByOne(ctx, texts)
		}
		embeddings = append(embeddings, vecs...)

		time.Sleep(p.delayEmbed)
		done := end
		if done%100 < p.batchSize || done == len(chunks) {
			log.Printf("      Embedding progress: %d/%d", done, len(chunks))
		}
	}

	return embeddings
}

func (p *Pipeline) embedOneByOne(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vecs, err := p.provider.Embed(ctx, []string{t})
		if err == nil && len(vecs) == 1 {
			out[i] = vecs[0]
		}
		time.Sleep(p.delayEmbed * 2)
	}
	return out
}

func (p *Pipeline) insertWithRetry(ctx context.Context, chunk *models.Chunk) error {
	var lastErr error
	backoff := insertRetryBackoff
	for attempt := 0; attempt < maxInsertRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
		if lastErr = p.chunks.Insert(ctx, chunk); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
