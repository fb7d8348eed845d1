package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Message is one prior conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest carries the prompts for one streamed completion. History, if
// any, is inserted between the system and the user prompt.
type ChatRequest struct {
	System      string
	User        string
	History     []Message
	Temperature float64
}

// Stream yields text deltas in order. Recv returns io.EOF when the
// upstream finishes; Close stops upstream work and releases the
// connection. A Stream must always be closed.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Provider abstracts the chat/embedding backend. Implementations are
// stateless and safe for concurrent use.
type Provider interface {
	// Embed returns one dense vector per input text, in input order.
	// Newlines in the inputs are flattened before the API call.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// ChatStream starts a streamed chat completion.
	ChatStream(ctx context.Context, req ChatRequest) (Stream, error)
}

// Config selects and parameterizes a provider.
type Config struct {
	Provider   string // "openai" (default) or "gemini"
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

// Model defaults.
const (
	DefaultEmbedModel = "text-embedding-3-small"
	DefaultChatModel  = "gpt-4o"

	// EmbeddingDim is the dimension of DefaultEmbedModel vectors; the
	// chunks.embedding column is declared with it.
	EmbeddingDim = 1536
)

var ErrMissingAPIKey = errors.New("llm: missing API key")

// NewFromEnv builds a provider from environment variables. LLM_PROVIDER
// selects the backend; unset means OpenAI with the default models.
func NewFromEnv(ctx context.Context) (Provider, error) {
	cfg := Config{
		Provider:   os.Getenv("LLM_PROVIDER"),
		ChatModel:  os.Getenv("MODEL_CHAT"),
		EmbedModel: os.Getenv("MODEL_EMBED"),
	}

	switch cfg.Provider {
	case "", "openai":
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrMissingAPIKey)
		}
		return NewOpenAI(cfg), nil
	case "gemini":
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", ErrMissingAPIKey)
		}
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
