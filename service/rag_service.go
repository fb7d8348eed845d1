package service

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"

	"sasfiscal-backend/ingest"
	"sasfiscal-backend/llm"
	"sasfiscal-backend/models"
	"sasfiscal-backend/repository"
)

var (
	ErrRetrieverNotSet = errors.New("retriever not set")
	ErrProviderNotSet  = errors.New("llm provider not set")
)

// Retriever is the evidence-retrieval surface the orchestrator needs.
// *repository.ChunkRepository satisfies it; tests inject fakes.
type Retriever interface {
	VectorSearch(ctx context.Context, queryVec []float32, year int, opts repository.SearchOptions) ([]models.Evidence, error)
	KeywordSearch(ctx context.Context, keywords []string, year int, limit int) ([]models.Evidence, error)
	ArticleLookup(ctx context.Context, documentID, normID string, limit int) ([]models.Evidence, error)
	RuleLookup(ctx context.Context, year int, ruleID, preferDocumentID string, limit int) ([]models.Evidence, error)
}

// RAGService orchestrates retrieval and answer generation.
type RAGService struct {
	retriever Retriever
	provider  llm.Provider
	topK      int
}

// RAGServiceOption configures the service.
type RAGServiceOption func(*RAGService)

// RAGWithRetriever sets the evidence retriever.
func RAGWithRetriever(r Retriever) RAGServiceOption {
	return func(s *RAGService) {
		s.retriever = r
	}
}

// RAGWithProvider sets the LLM provider.
func RAGWithProvider(p llm.Provider) RAGServiceOption {
	return func(s *RAGService) {
		s.provider = p
	}
}

// RAGWithTopK overrides the evidence cap per retrieval pass.
func RAGWithTopK(k int) RAGServiceOption {
	return func(s *RAGService) {
		if k > 0 {
			s.topK = k
		}
	}
}

// NewRAGService creates the service with the given options.
func NewRAGService(opts ...RAGServiceOption) *RAGService {
	s := &RAGService{topK: repository.DefaultTopK}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	// ruleShortcutRe fires on "regla 2.1.1" style references, 2-6 dotted
	// segments.
	ruleShortcutRe = regexp.MustCompile(`(?i)\bregla\s+(\d+(?:\.\d+){1,5})\b`)

	// Article references come in two shapes: the worded form
	// ("artículo 27", "art. 29-A bis") and the bare "69-B" form.
	articleWordRefRe = regexp.MustCompile(`(?i)\bart(?:[ií]culo)?\.?\s+(\d{1,3})(?:\s*[-–]\s*([a-zA-Z]))?\b(\s*bis)?`)
	articleBareRefRe = regexp.MustCompile(`(?i)\b(\d{1,3})\s*[-–]\s*([a-zA-Z])\b(\s*bis)?`)

	rmfAcronymRe = regexp.MustCompile(`(?i)\brmf\b`)

	// reglaWordRe matches "regla" as a whole word only. A substring check
	// would also fire on "reglamento", which names statutory regulations,
	// not RMF rules.
	reglaWordRe = regexp.MustCompile(`(?i)\bregla\b`)
)

var literalIntentKeywords = []string{"cítame", "citame", "textualmente", "cita literal", "cita textual"}

func hasLiteralIntent(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range literalIntentKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// RetrievalResult is what the fallback orchestrator hands back: the
// evidence, the year it actually came from (0 for year-agnostic article
// lookups) and whether the caller should render a literal citation
// instead of invoking the LLM.
type RetrievalResult struct {
	Evidence []models.Evidence
	UsedYear int
	Literal  bool
	Route    string
}

// Routes reported in RetrievalResult and trace payloads.
const (
	RouteRuleLookup    = "rmf_rule_lookup"
	RouteArticleLookup = "article_lookup"
	RouteHybrid        = "hybrid"
	RouteEmpty         = "empty"
)

// retrieveWithFallback runs the retrieval ladder: rule shortcut, article
// shortcut, then hybrid search over a chain of years.
func (s *RAGService) retrieveWithFallback(ctx context.Context, question string, queryVec []float32, year int, keywords []string) (*RetrievalResult, error) {
	// Rule shortcut.
	if m := ruleShortcutRe.FindStringSubmatch(question); m != nil {
		ruleID := m[1]
		evidence, err := s.retriever.RuleLookup(ctx, year, ruleID, "", 50)
		if err != nil {
			return nil, err
		}
		literal := hasLiteralIntent(question)
		if len(evidence) > 0 || literal {
			// With literal intent an empty lookup still terminates
			// here: the bridge renders the "not found" message rather
			// than letting the model improvise a citation.
			return &RetrievalResult{Evidence: evidence, UsedYear: year, Literal: literal, Route: RouteRuleLookup}, nil
		}
	}

	// Article shortcut. Suppressed when the question says "regla": a rule
	// id like 29-A must not be misread as an article.
	if !reglaWordRe.MatchString(question) {
		if num, letter, wantsBis, ok := parseArticleRef(question); ok {
			suffixWord := ""
			if wantsBis {
				suffixWord = "BIS"
			}
			token := ingest.ComposeArticleToken(num, letter, suffixWord)

			for _, docID := range ResolveCandidateDocuments(question) {
				evidence, err := s.retriever.ArticleLookup(ctx, docID, token, 12)
				if err != nil {
					return nil, err
				}
				if !wantsBis {
					evidence = filterOutBis(evidence)
				}
				if len(evidence) > 0 {
					// Articles of federal laws are evergreen; year 0
					// suppresses the continuity note downstream.
					return &RetrievalResult{Evidence: evidence, UsedYear: 0, Literal: hasLiteralIntent(question), Route: RouteArticleLookup}, nil
				}
			}
		}
	}

	// Hybrid with temporal fallback.
	passes := s.searchPasses(question)
	for _, y := range yearChain(year) {
		for _, opts := range passes {
			vectorResults, err := s.retriever.VectorSearch(ctx, queryVec, y, opts)
			if err != nil {
				return nil, err
			}

			var keywordResults []models.Evidence
			if len(keywords) > 0 {
				keywordResults, err = s.retriever.KeywordSearch(ctx, keywords, y, s.topK/2)
				if err != nil {
					// Keyword search is complementary; a failure
					// degrades to vector-only.
					log.Printf("keyword search failed: %v", err)
					keywordResults = nil
				}
			}

			merged := repository.MergeEvidence(vectorResults, keywordResults, s.topK)
			if len(merged) > 0 {
				return &RetrievalResult{
					Evidence: applyRobustnessFilter(merged, s.topK),
					UsedYear: y,
					Route:    RouteHybrid,
				}, nil
			}
		}
	}

	return &RetrievalResult{UsedYear: year, Route: RouteEmpty}, nil
}

// parseArticleRef extracts (number, letter, wantsBis) from an article
// reference in the question, trying the worded form first.
func parseArticleRef(question string) (num, letter string, wantsBis, ok bool) {
	if m := articleWordRefRe.FindStringSubmatch(question); m != nil {
		return m[1], strings.ToUpper(m[2]), m[3] != "", true
	}
	if m := articleBareRefRe.FindStringSubmatch(question); m != nil {
		return m[1], strings.ToUpper(m[2]), m[3] != "", true
	}
	return "", "", false, false
}

// filterOutBis drops chunks mentioning "bis" when the user did not ask for
// a BIS article. Prevents 29-A BIS answering a question about 29-A.
func filterOutBis(evidence []models.Evidence) []models.Evidence {
	var out []models.Evidence
	for _, ev := range evidence {
		if !strings.Contains(strings.ToLower(ev.Text), "bis") {
			out = append(out, ev)
		}
	}
	return out
}

// yearChain returns the candidate years, newest first, never going below
// 2022 (the oldest ingested corpus).
func yearChain(year int) []int {
	if year == 2025 || year == 2026 {
		return []int{year, 2024, 2023, 2022}
	}
	var chain []int
	for y := year; y >= 2022; y-- {
		chain = append(chain, y)
	}
	if len(chain) == 0 {
		chain = []int{year}
	}
	return chain
}

// searchPasses builds the per-year pass list from question intent. Pass
// order goes most-specific to least: the first non-empty pass wins.
func (s *RAGService) searchPasses(question string) []repository.SearchOptions {
	q := strings.ToLower(question)

	hasRegla := reglaWordRe.MatchString(question)
	hasRMF := rmfAcronymRe.MatchString(question)
	mentionsAnexo := strings.Contains(q, "anexo") || strings.Contains(q, "dof")

	deductionIntent := false
	for _, kw := range []string{"requisitos", "deduccion", "deducción", "cfdi", "deducible", "isr", "lisr"} {
		if strings.Contains(q, kw) {
			deductionIntent = true
			break
		}
	}

	excludeAnexo := ""
	if !mentionsAnexo {
		excludeAnexo = models.DocTypeAnexo
	}

	base := repository.SearchOptions{IncludeEvergreenYear: true, IncludeNullYear: true, TopK: s.topK}

	switch {
	case hasRegla || hasRMF:
		// RMF rules are year-specific; the first pass restricts hard.
		strict := repository.SearchOptions{PreferDocType: models.DocTypeRMF, TopK: s.topK}
		secondary := base
		secondary.PreferDocType = models.DocTypeLey
		generic := base
		generic.ExcludeDocType = excludeAnexo
		return []repository.SearchOptions{strict, secondary, generic, base}

	case deductionIntent:
		primary := base
		primary.PreferDocType = models.DocTypeLey
		primary.ExcludeDocType = excludeAnexo
		secondary := base
		secondary.PreferDocType = models.DocTypeRMF
		generic := base
		generic.ExcludeDocType = excludeAnexo
		return []repository.SearchOptions{primary, secondary, generic, base}

	default:
		generic := base
		generic.ExcludeDocType = excludeAnexo
		return []repository.SearchOptions{generic, base}
	}
}

// applyRobustnessFilter keeps compiled-RMF chunks over modification-decree
// chunks over everything else. Compiled documents supersede the decrees
// they absorb.
func applyRobustnessFilter(evidence []models.Evidence, topK int) []models.Evidence {
	var compilados, modificaciones []models.Evidence
	for _, ev := range evidence {
		name := strings.ToLower(ev.SourceFilename)
		if strings.Contains(name, "compilado") {
			compilados = append(compilados, ev)
		} else if strings.Contains(name, "modificacion") {
			modificaciones = append(modificaciones, ev)
		}
	}
	if len(compilados) > 0 {
		if len(compilados) > topK {
			compilados = compilados[:topK]
		}
		return compilados
	}
	if len(modificaciones) > 0 {
		if len(modificaciones) > topK {
			modificaciones = modificaciones[:topK]
		}
		return modificaciones
	}
	return evidence
}
