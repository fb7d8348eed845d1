package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"sasfiscal-backend/ingest"
	"sasfiscal-backend/llm"
	"sasfiscal-backend/models"
	"sasfiscal-backend/repository"
	"sasfiscal-backend/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	basePath string
	allDocs  bool
	docIDs   []string
	dryRun   bool
	rmfYear  int
)

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	root := &cobra.Command{
		Use:   "reingest",
		Short: "Single entry point for corpus re-ingestion",
	}

	laws := &cobra.Command{
		Use:   "laws",
		Short: "Re-ingest federal laws and regulations (article-first)",
		RunE:  runLaws,
	}
	laws.Flags().StringVar(&basePath, "base-path", "data/LEYES_FEDERALES", "base directory of PDFs")
	laws.Flags().BoolVar(&allDocs, "all", false, "process every law in the baseline manifest")
	laws.Flags().StringArrayVar(&docIDs, "doc", nil, "process only these document_id (repeatable)")
	laws.Flags().BoolVar(&dryRun, "dry-run", false, "extract and chunk only, no database writes")

	rmf := &cobra.Command{
		Use:   "rmf [pdf-filename]...",
		Short: "Re-ingest RMF documents (rule-first)",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRMF,
	}
	rmf.Flags().StringVar(&basePath, "base-path", "data/RMF", "base directory of PDFs")
	rmf.Flags().IntVar(&rmfYear, "year", 0, "fiscal year of the RMF documents (required)")
	rmf.Flags().BoolVar(&dryRun, "dry-run", false, "extract and chunk only, no database writes")
	rmf.MarkFlagRequired("year")

	root.AddCommand(laws, rmf)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildPipeline(ctx context.Context) (*ingest.Pipeline, *pgxpool.Pool, error) {
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		connString = os.Getenv("DIRECT_URL")
	}
	if connString == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL not set")
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	provider, err := llm.NewFromEnv(ctx)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	resolver, err := storage.NewResolverFromEnv(basePath)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	pipeline := ingest.NewPipeline(
		repository.NewDocumentRepository(pool),
		repository.NewChunkRepository(pool),
		provider,
		resolver,
		ingest.WithDryRun(dryRun),
	)
	return pipeline, pool, nil
}

func runLaws(cmd *cobra.Command, args []string) error {
	if !allDocs && len(docIDs) == 0 {
		return fmt.Errorf("specify --all or at least one --doc")
	}

	specs, missing := ingest.FilterSpecs(ingest.LeyesBaseline, docIDs)
	if len(missing) > 0 {
		log.Printf("Warning: document_id not in baseline: %s", strings.Join(missing, ", "))
	}
	if len(specs) == 0 {
		return fmt.Errorf("nothing to process")
	}

	ctx := context.Background()
	pipeline, pool, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	log.Printf("Laws re-ingest: base=%s docs=%d dry-run=%v", basePath, len(specs), dryRun)

	ok, bad := 0, 0
	for i, spec := range specs {
		log.Printf("[%d/%d] %s (%s)", i+1, len(specs), spec.Title, spec.DocumentID)
		if err := pipeline.ReingestLaw(ctx, spec); err != nil {
			bad++
			log.Printf("    Error: %v", err)
			continue
		}
		ok++
	}

	log.Printf("Done: ok=%d failed=%d", ok, bad)
	if bad > 0 && ok == 0 {
		return fmt.Errorf("all documents failed")
	}
	return nil
}

func runRMF(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	pipeline, pool, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	log.Printf("RMF re-ingest: base=%s year=%d docs=%d dry-run=%v", basePath, rmfYear, len(args), dryRun)

	ok, bad := 0, 0
	for i, filename := range args {
		docID := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		spec := ingest.DocumentSpec{
			Filename:     filename,
			DocumentID:   docID,
			Title:        docID,
			DocType:      models.DocTypeRMF,
			ExerciseYear: rmfYear,
		}

		log.Printf("[%d/%d] %s", i+1, len(args), docID)
		if err := pipeline.ReingestRMF(ctx, spec); err != nil {
			bad++
			log.Printf("    Error: %v", err)
			continue
		}
		ok++
	}

	log.Printf("Done: ok=%d failed=%d", ok, bad)
	if bad > 0 && ok == 0 {
		return fmt.Errorf("all documents failed")
	}
	return nil
}
