package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"sasfiscal-backend/llm"
	"sasfiscal-backend/models"
)

// DefaultEjercicio is assumed when the request carries no fiscal year.
const DefaultEjercicio = 2025

// maxHistoryTurns caps how much prior conversation travels to the model.
const maxHistoryTurns = 4

// AnswerRequest is one chat question with its context.
type AnswerRequest struct {
	Question  string
	Regimen   string
	Ejercicio int
	History   []llm.Message
	Trace     bool
}

// Debug is the optional trace payload attached when the caller asks for
// it.
type Debug struct {
	Route         string            `json:"route"`
	UsedYear      int               `json:"used_year"`
	EvidenceCount int               `json:"evidence_count"`
	Literal       bool              `json:"literal"`
	Candidates    []string          `json:"candidates,omitempty"`
	Evidence      []models.Evidence `json:"evidence,omitempty"`
}

// AnswerResult is the completed answer plus optional trace data.
type AnswerResult struct {
	Answer string
	Debug  *Debug
}

// Answer runs the full pipeline for one question: expansion, embedding,
// retrieval with fallback, then either a literal citation or a streamed
// LLM answer (concatenated before returning).
func (s *RAGService) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	if s.retriever == nil {
		return nil, ErrRetrieverNotSet
	}
	if s.provider == nil {
		return nil, ErrProviderNotSet
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, errors.New("empty question")
	}
	ejercicio := req.Ejercicio
	if ejercicio == 0 {
		ejercicio = DefaultEjercicio
	}
	regimen := req.Regimen
	if regimen == "" {
		regimen = "General"
	}

	expanded, keywords := ExpandQuery(question)

	vecs, err := s.provider.Embed(ctx, []string{expanded})
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	if len(vecs) == 0 || vecs[0] == nil {
		return nil, errors.New("embedding question: empty result")
	}

	result, err := s.retrieveWithFallback(ctx, question, vecs[0], ejercicio, keywords)
	if err != nil {
		return nil, fmt.Errorf("retrieving evidence: %w", err)
	}

	var answer string
	if result.Literal {
		answer = FormatLiteralCitation(result.Evidence)
	} else {
		systemPrompt := BuildSystemPrompt(result.Evidence)
		userPrompt := BuildUserPrompt(question, regimen, ejercicio, result.UsedYear)

		answer, err = s.generate(ctx, systemPrompt, userPrompt, req.History)
		if err != nil {
			return nil, err
		}
	}

	res := &AnswerResult{Answer: answer}
	if req.Trace {
		res.Debug = &Debug{
			Route:         result.Route,
			UsedYear:      result.UsedYear,
			EvidenceCount: len(result.Evidence),
			Literal:       result.Literal,
			Candidates:    ResolveCandidateDocuments(question),
			Evidence:      result.Evidence,
		}
	}
	return res, nil
}

// generate streams a chat completion and concatenates the deltas. Only
// the last few history turns travel upstream.
func (s *RAGService) generate(ctx context.Context, systemPrompt, userPrompt string, history []llm.Message) (string, error) {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	stream, err := s.provider.ChatStream(ctx, llm.ChatRequest{
		System:      systemPrompt,
		User:        userPrompt,
		History:     history,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("starting chat stream: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading chat stream: %w", err)
		}
		sb.WriteString(delta)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
	}

	return sb.String(), nil
}
