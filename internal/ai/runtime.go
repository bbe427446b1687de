package ai

import "context"

// Runtime is implemented by every chat backend (Mistral, OpenAI, Anthropic,
// Gemini, Ollama) and speaks the shared request/response types of this package.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderMistral   = "mistral"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
	ProviderLocal     = "local"
)

// StreamRuntime is an optional extension that supports streaming output.
// Implementors should invoke onDelta with each partial content chunk.
type StreamRuntime interface {
	GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error
}

// Embedder turns texts into vectors. Returned slices are index-aligned with inputs.
type Embedder interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

// NormalizeProvider maps aliases onto canonical provider names.
func NormalizeProvider(p string) string {
	switch p {
	case "", ProviderMistral:
		return ProviderMistral
	case ProviderGoogle:
		return ProviderGemini
	case ProviderLocal:
		return ProviderOllama
	}
	return p
}
