package llm

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Gemini model defaults, used when MODEL_CHAT / MODEL_EMBED are unset and
// LLM_PROVIDER=gemini.
const (
	defaultGeminiChatModel  = "gemini-2.0-flash"
	defaultGeminiEmbedModel = "text-embedding-004"
)

// GeminiProvider adapts the Google generative AI SDK to the Provider
// interface.
type GeminiProvider struct {
	client     *genai.Client
	chatModel  string
	embedModel string
}

// NewGemini creates a Gemini provider backed by a genai client.
func NewGemini(ctx context.Context, cfg Config) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = defaultGeminiChatModel
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = defaultGeminiEmbedModel
	}

	return &GeminiProvider{
		client:     client,
		chatModel:  chatModel,
		embedModel: embedModel,
	}, nil
}

// Embed computes embeddings for a batch of texts in one batch call.
func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	em := p.client.EmbeddingModel(p.embedModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(strings.ReplaceAll(t, "\n", " ")))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("batch embedding failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// ChatStream starts a streamed chat. History roles "assistant" are mapped
// to the SDK's "model" role.
func (p *GeminiProvider) ChatStream(ctx context.Context, req ChatRequest) (Stream, error) {
	model := p.client.GenerativeModel(p.chatModel)
	temp := float32(req.Temperature)
	model.Temperature = &temp
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.System)},
	}

	session := model.StartChat()
	for _, m := range req.History {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	// The iterator has no close of its own; a derived context lets Close
	// stop upstream work instead of waiting for the caller's context.
	streamCtx, cancel := context.WithCancel(ctx)
	iter := session.SendMessageStream(streamCtx, genai.Text(req.User))
	return &geminiStream{iter: iter, cancel: cancel}, nil
}

type geminiStream struct {
	iter   *genai.GenerateContentResponseIterator
	cancel context.CancelFunc
	done   bool
}

func (s *geminiStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		resp, err := s.iter.Next()
		if err == iterator.Done {
			s.Close()
			return "", io.EOF
		}
		if err != nil {
			s.Close()
			return "", fmt.Errorf("stream error: %w", err)
		}

		var sb strings.Builder
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					sb.WriteString(string(text))
				}
			}
		}
		if sb.Len() > 0 {
			return sb.String(), nil
		}
	}
}

func (s *geminiStream) Close() error {
	s.done = true
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
