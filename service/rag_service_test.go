package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"sasfiscal-backend/llm"
	"sasfiscal-backend/models"
	"sasfiscal-backend/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRetriever wires function fields so each test shapes exactly the
// lookups it cares about. Unset fields return nothing.
type fakeRetriever struct {
	vectorFn  func(year int, opts repository.SearchOptions) []models.Evidence
	keywordFn func(keywords []string, year int) []models.Evidence
	articleFn func(documentID, normID string) []models.Evidence
	ruleFn    func(year int, ruleID string) []models.Evidence

	articleCalls []string
	ruleCalls    []string
	vectorYears  []int
}

func (f *fakeRetriever) VectorSearch(_ context.Context, _ []float32, year int, opts repository.SearchOptions) ([]models.Evidence, error) {
	f.vectorYears = append(f.vectorYears, year)
	if f.vectorFn == nil {
		return nil, nil
	}
	return f.vectorFn(year, opts), nil
}

func (f *fakeRetriever) KeywordSearch(_ context.Context, keywords []string, year int, _ int) ([]models.Evidence, error) {
	if f.keywordFn == nil {
		return nil, nil
	}
	return f.keywordFn(keywords, year), nil
}

func (f *fakeRetriever) ArticleLookup(_ context.Context, documentID, normID string, _ int) ([]models.Evidence, error) {
	f.articleCalls = append(f.articleCalls, documentID+"/"+normID)
	if f.articleFn == nil {
		return nil, nil
	}
	return f.articleFn(documentID, normID), nil
}

func (f *fakeRetriever) RuleLookup(_ context.Context, year int, ruleID, _ string, _ int) ([]models.Evidence, error) {
	f.ruleCalls = append(f.ruleCalls, ruleID)
	if f.ruleFn == nil {
		return nil, nil
	}
	return f.ruleFn(year, ruleID), nil
}

// fakeProvider records the prompts and streams back a canned answer.
type fakeProvider struct {
	lastReq  *llm.ChatRequest
	answer   string
	chatErr  error
	embedDim int
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dim := f.embedDim
	if dim == 0 {
		dim = 4
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dim)
	}
	return out, nil
}

func (f *fakeProvider) ChatStream(_ context.Context, req llm.ChatRequest) (llm.Stream, error) {
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	r := req
	f.lastReq = &r
	answer := f.answer
	if answer == "" {
		answer = "respuesta generada"
	}
	return &cannedStream{parts: []string{answer[:len(answer)/2], answer[len(answer)/2:]}}, nil
}

type cannedStream struct {
	parts []string
	pos   int
}

func (s *cannedStream) Recv() (string, error) {
	if s.pos >= len(s.parts) {
		return "", io.EOF
	}
	s.pos++
	return s.parts[s.pos-1], nil
}

func (s *cannedStream) Close() error { return nil }

func newTestService(r Retriever, p llm.Provider) *RAGService {
	return NewRAGService(RAGWithRetriever(r), RAGWithProvider(p))
}

func ruleEvidence(ruleID string, pages ...int) []models.Evidence {
	var out []models.Evidence
	for i, p := range pages {
		page := p
		out = append(out, models.Evidence{
			ChunkID:        int64(i + 1),
			DocumentID:     "RMF_2025_compilado",
			NormKind:       models.NormKindRule,
			NormID:         ruleID,
			SourceFilename: "RMF_2025_compilado.pdf",
			DocType:        models.DocTypeRMF,
			Text:           ruleID + ". Para los efectos del CFF...",
			PageStart:      &page,
			PageEnd:        &page,
			Source:         models.SourceRuleLookup,
		})
	}
	return out
}

func TestAnswerLiteralRuleCitation(t *testing.T) {
	retriever := &fakeRetriever{
		ruleFn: func(year int, ruleID string) []models.Evidence {
			require.Equal(t, 2025, year)
			return ruleEvidence(ruleID, 3, 40)
		},
	}
	provider := &fakeProvider{}
	svc := newTestService(retriever, provider)

	res, err := svc.Answer(context.Background(), AnswerRequest{
		Question:  "Cítame textualmente la Regla 2.1.1 de la RMF 2025",
		Ejercicio: 2025,
		Trace:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2.1.1"}, retriever.ruleCalls)
	assert.True(t, strings.HasPrefix(res.Answer, "> "))
	assert.Nil(t, provider.lastReq, "literal bypass never reaches the LLM")

	require.NotNil(t, res.Debug)
	assert.Equal(t, RouteRuleLookup, res.Debug.Route)
	assert.True(t, res.Debug.Literal)
}

func TestAnswerRuleWithoutLiteralIntentUsesLLM(t *testing.T) {
	retriever := &fakeRetriever{
		ruleFn: func(year int, ruleID string) []models.Evidence {
			return ruleEvidence(ruleID, 40)
		},
	}
	provider := &fakeProvider{}
	svc := newTestService(retriever, provider)

	res, err := svc.Answer(context.Background(), AnswerRequest{
		Question:  "¿Qué establece la Regla 2.1.1 sobre días inhábiles?",
		Ejercicio: 2025,
	})
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(res.Answer, "> "))

	require.NotNil(t, provider.lastReq)
	assert.Contains(t, provider.lastReq.System, "Para los efectos del CFF")
	assert.Equal(t, 0.2, provider.lastReq.Temperature)
}

func TestAnswerLiteralRuleNotFound(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := &fakeProvider{}
	svc := newTestService(retriever, provider)

	res, err := svc.Answer(context.Background(), AnswerRequest{
		Question:  "Cítame textualmente la Regla 9.9.9 de la RMF 2025",
		Ejercicio: 2025,
	})
	require.NoError(t, err)
	assert.Equal(t, NoFragmentMessage, res.Answer)
	assert.False(t, strings.HasPrefix(res.Answer, "> "))
}

func TestAnswerArticleShortcut(t *testing.T) {
	retriever := &fakeRetriever{
		articleFn: func(documentID, normID string) []models.Evidence {
			if documentID == "CODIGO_FISCAL_DE_LA_FEDERACION" && normID == "29-A" {
				return []models.Evidence{{
					ChunkID:        10,
					DocumentID:     documentID,
					NormKind:       models.NormKindArticle,
					NormID:         normID,
					SourceFilename: "CODIGO_FISCAL_DE_LA_FEDERACION.pdf",
					DocType:        models.DocTypeLey,
					Text:           "Artículo 29-A.- Los comprobantes fiscales digitales...",
				}}
			}
			return nil
		},
	}
	provider := &fakeProvider{}
	svc := newTestService(retriever, provider)

	res, err := svc.Answer(context.Background(), AnswerRequest{
		Question:  "Cítame textualmente el Artículo 29-A del CFF 2025",
		Ejercicio: 2025,
		Trace:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"CODIGO_FISCAL_DE_LA_FEDERACION/29-A"}, retriever.articleCalls)
	assert.True(t, strings.HasPrefix(res.Answer, "> "))
	assert.Equal(t, RouteArticleLookup, res.Debug.Route)
	assert.Equal(t, 0, res.Debug.UsedYear, "articles are year-agnostic")
}

func TestAnswerArticleWithoutLiteralIntent(t *testing.T) {
	retriever := &fakeRetriever{
		articleFn: func(documentID, normID string) []models.Evidence {
			if documentID == "LEY_DEL_IMPUESTO_SOBRE_LA_RENTA" && normID == "27" {
				return []models.Evidence{{
					DocumentID: documentID,
					NormID:     normID,
					DocType:    models.DocTypeLey,
					Text:       "Artículo 27.- Las deducciones autorizadas deberán...",
				}}
			}
			return nil
		},
	}
	provider := &fakeProvider{}
	svc := newTestService(retriever, provider)

	res, err := svc.Answer(context.Background(), AnswerRequest{
		Question:  "¿Qué dice el Artículo 27 fracción XI LISR?",
		Ejercicio: 2025,
	})
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(res.Answer, "> "))

	require.NotNil(t, provider.lastReq)
	assert.Contains(t, provider.lastReq.System, "Las deducciones autorizadas")
	// used_year=0 suppresses the continuity note.
	assert.NotContains(t, provider.lastReq.User, "continuidad legal")
}

func TestAnswerReglamentoArticleUsesShortcut(t *testing.T) {
	// "reglamento" contains "regla" as a substring; only the whole word
	// suppresses the article shortcut.
	retriever := &fakeRetriever{
		articleFn: func(documentID, normID string) []models.Evidence {
			if documentID == "REGLAMENTO_LEY_DEL_IMPUESTO_VALOR_AGREGADO" && normID == "5" {
				return []models.Evidence{{
					DocumentID: documentID,
					NormKind:   models.NormKindArticle,
					NormID:     normID,
					DocType:    models.DocTypeReglamento,
					Text:       "Artículo 5.- Para los efectos del acreditamiento...",
				}}
			}
			return nil
		},
	}
	provider := &fakeProvider{}
	svc := newTestService(retriever, provider)

	res, err := svc.Answer(context.Background(), AnswerRequest{
		Question:  "¿Qué dice el artículo 5 del reglamento de la ley del IVA?",
		Ejercicio: 2025,
		Trace:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"LEY_DEL_IMPUESTO_VALOR_AGREGADO/5",
		"REGLAMENTO_LEY_DEL_IMPUESTO_VALOR_AGREGADO/5",
	}, retriever.articleCalls)
	assert.Empty(t, retriever.vectorYears, "shortcut resolves before hybrid")
	assert.Equal(t, RouteArticleLookup, res.Debug.Route)
	assert.Equal(t, 0, res.Debug.UsedYear)
}

func TestSearchPassesReglamentoIsNotRuleIntent(t *testing.T) {
	svc := newTestService(&fakeRetriever{}, &fakeProvider{})

	passes := svc.searchPasses("¿Qué establece el reglamento del CFF sobre notificaciones?")
	require.NotEmpty(t, passes)
	assert.NotEqual(t, models.DocTypeRMF, passes[0].PreferDocType)
	assert.True(t, passes[0].IncludeEvergreenYear, "evergreen laws stay in scope")

	passes = svc.searchPasses("¿Qué establece la regla 2.1.1?")
	assert.Equal(t, models.DocTypeRMF, passes[0].PreferDocType)
}

func TestAnswerBisFilter(t *testing.T) {
	retriever := &fakeRetriever{
		articleFn: func(documentID, normID string) []models.Evidence {
			if normID != "29-A" {
				return nil
			}
			return []models.Evidence{{
				DocumentID: documentID,
				NormID:     "29-A",
				Text:       "Artículo 29-A Bis.- Disposición insertada...",
			}}
		},
	}
	provider := &fakeProvider{}
	svc := newTestService(retriever, provider)

	res, err := svc.Answer(context.Background(), AnswerRequest{
		Question:  "¿Qué dice el artículo 29-A del CFF?",
		Ejercicio: 2025,
	})
	require.NoError(t, err)

	// The only hit mentioned BIS; without explicit "bis" in the question
	// it is filtered and the flow falls through to hybrid (empty here).
	require.NotNil(t, provider.lastReq)
	assert.Contains(t, provider.lastReq.System, emptyContextPlaceholder)
	_ = res
}

func TestAnswerRuleShapedIDNeverHitsArticles(t *testing.T) {
	// "Regla 29-A" is not a dotted rule id and, because the question says
	// "regla", must not fall into the article shortcut either.
	retriever := &fakeRetriever{}
	provider := &fakeProvider{}
	svc := newTestService(retriever, provider)

	res, err := svc.Answer(context.Background(), AnswerRequest{
		Question:  "Cítame textualmente la Regla 29-A de la RMF 2025",
		Ejercicio: 2025,
		Trace:     true,
	})
	require.NoError(t, err)

	assert.Empty(t, retriever.ruleCalls)
	assert.Empty(t, retriever.articleCalls)
	assert.False(t, strings.HasPrefix(res.Answer, "> "))
	assert.Equal(t, 0, res.Debug.EvidenceCount)
}

func TestYearChain(t *testing.T) {
	assert.Equal(t, []int{2025, 2024, 2023, 2022}, yearChain(2025))
	assert.Equal(t, []int{2026, 2024, 2023, 2022}, yearChain(2026))
	assert.Equal(t, []int{2027, 2026, 2025, 2024, 2023, 2022}, yearChain(2027))
	assert.Equal(t, []int{2023, 2022}, yearChain(2023))
	assert.Equal(t, []int{2022}, yearChain(2022))
}

func TestAnswerTemporalFallback(t *testing.T) {
	retriever := &fakeRetriever{
		vectorFn: func(year int, _ repository.SearchOptions) []models.Evidence {
			if year != 2023 {
				return nil
			}
			return []models.Evidence{{
				DocumentID:     "RMF_2023",
				SourceFilename: "RMF_2023.pdf",
				DocType:        models.DocTypeRMF,
				ExerciseYear:   2023,
				Text:           "disposición vigente de 2023",
			}}
		},
	}
	provider := &fakeProvider{}
	svc := newTestService(retriever, provider)

	res, err := svc.Answer(context.Background(), AnswerRequest{
		Question:  "¿Qué facilidades existen para donatarias autorizadas?",
		Ejercicio: 2025,
		Trace:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, 2023, res.Debug.UsedYear)
	assert.Contains(t, provider.lastReq.User,
		"Nota: Respuesta basada en normativa 2023 por continuidad legal.")
	assert.Contains(t, retriever.vectorYears, 2025)
	assert.Contains(t, retriever.vectorYears, 2024)
}

func TestAnswerHybridPrefersLeyForDeductions(t *testing.T) {
	var firstOpts *repository.SearchOptions
	retriever := &fakeRetriever{
		vectorFn: func(year int, opts repository.SearchOptions) []models.Evidence {
			if firstOpts == nil {
				o := opts
				firstOpts = &o
			}
			return []models.Evidence{{
				DocumentID: "LEY_DEL_IMPUESTO_SOBRE_LA_RENTA",
				DocType:    models.DocTypeLey,
				Text:       "fracción XI del artículo 93",
			}}
		},
	}
	provider := &fakeProvider{}
	svc := newTestService(retriever, provider)

	res, err := svc.Answer(context.Background(), AnswerRequest{
		// No law acronym: routed through hybrid with deduction intent.
		Question:  "¿Cuál es el tope para restar gastos de previsión social? requisitos",
		Ejercicio: 2025,
		Trace:     true,
	})
	require.NoError(t, err)

	require.NotNil(t, firstOpts)
	assert.Equal(t, models.DocTypeLey, firstOpts.PreferDocType)
	assert.Equal(t, models.DocTypeAnexo, firstOpts.ExcludeDocType)
	assert.Equal(t, RouteHybrid, res.Debug.Route)
	assert.Equal(t, 2025, res.Debug.UsedYear)
}

func TestAnswerRMFIntentRestrictsYear(t *testing.T) {
	var firstOpts *repository.SearchOptions
	retriever := &fakeRetriever{
		vectorFn: func(year int, opts repository.SearchOptions) []models.Evidence {
			if firstOpts == nil {
				o := opts
				firstOpts = &o
			}
			return []models.Evidence{{DocType: models.DocTypeRMF, Text: "regla aplicable"}}
		},
	}
	svc := newTestService(retriever, &fakeProvider{})

	_, err := svc.Answer(context.Background(), AnswerRequest{
		Question:  "¿Qué facilidades contempla la RMF para devoluciones?",
		Ejercicio: 2025,
	})
	require.NoError(t, err)

	require.NotNil(t, firstOpts)
	assert.Equal(t, models.DocTypeRMF, firstOpts.PreferDocType)
	assert.False(t, firstOpts.IncludeEvergreenYear)
	assert.False(t, firstOpts.IncludeNullYear)
}

func TestApplyRobustnessFilter(t *testing.T) {
	mixed := []models.Evidence{
		{SourceFilename: "RMF_2025_anticipada.pdf", Text: "a"},
		{SourceFilename: "RMF_2025_COMPILADO_junio.pdf", Text: "b"},
		{SourceFilename: "primera_modificacion_rmf.pdf", Text: "c"},
	}

	got := applyRobustnessFilter(mixed, 12)
	require.Len(t, got, 1)
	assert.Equal(t, "RMF_2025_COMPILADO_junio.pdf", got[0].SourceFilename)

	noCompilado := mixed[:1]
	noCompilado = append(noCompilado, mixed[2])
	got = applyRobustnessFilter(noCompilado, 12)
	require.Len(t, got, 1)
	assert.Equal(t, "primera_modificacion_rmf.pdf", got[0].SourceFilename)

	plain := []models.Evidence{{SourceFilename: "LEY_ISR.pdf"}}
	assert.Equal(t, plain, applyRobustnessFilter(plain, 12))
}

func TestAnswerHistoryTruncated(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := &fakeProvider{}
	svc := newTestService(retriever, provider)

	history := []llm.Message{
		{Role: "user", Content: "t1"}, {Role: "assistant", Content: "t2"},
		{Role: "user", Content: "t3"}, {Role: "assistant", Content: "t4"},
		{Role: "user", Content: "t5"}, {Role: "assistant", Content: "t6"},
	}

	_, err := svc.Answer(context.Background(), AnswerRequest{
		Question:  "¿Qué es una devolución?",
		Ejercicio: 2025,
		History:   history,
	})
	require.NoError(t, err)

	require.NotNil(t, provider.lastReq)
	require.Len(t, provider.lastReq.History, 4)
	assert.Equal(t, "t3", provider.lastReq.History[0].Content)
	assert.Equal(t, "t6", provider.lastReq.History[3].Content)
}

func TestAnswerEmptyQuestion(t *testing.T) {
	svc := newTestService(&fakeRetriever{}, &fakeProvider{})
	_, err := svc.Answer(context.Background(), AnswerRequest{Question: "   "})
	assert.Error(t, err)
}

func TestAnswerMissingDependencies(t *testing.T) {
	_, err := NewRAGService().Answer(context.Background(), AnswerRequest{Question: "x"})
	assert.ErrorIs(t, err, ErrRetrieverNotSet)

	_, err = NewRAGService(RAGWithRetriever(&fakeRetriever{})).
		Answer(context.Background(), AnswerRequest{Question: "x"})
	assert.ErrorIs(t, err, ErrProviderNotSet)
}
