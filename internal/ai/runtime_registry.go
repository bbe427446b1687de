package ai

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) Runtime

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	// Common
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Logger      *zap.Logger
	// Hosted providers
	APIKey  string
	BaseURL string
	// Ollama
	Host string
}

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// GetRuntime creates a Runtime for the given provider if registered.
func GetRuntime(name string, cfg RuntimeConfig) (Runtime, bool) {
	if f, ok := registry[NormalizeProvider(name)]; ok {
		return f(cfg), true
	}
	return nil, false
}

// RegisteredProviders lists registered provider names in sorted order.
func RegisteredProviders() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetEmbedder returns an Embedder for providers that expose an embeddings API.
func GetEmbedder(name string, cfg RuntimeConfig) (Embedder, bool) {
	rt, ok := GetRuntime(name, cfg)
	if !ok {
		return nil, false
	}
	emb, ok := rt.(Embedder)
	return emb, ok
}

func withHTTPDefaults(c RuntimeConfig, timeout time.Duration, retry int, base, max time.Duration) RuntimeConfig {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = timeout
	}
	if c.RetryMax <= 0 {
		c.RetryMax = retry
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = base
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = max
	}
	return c
}

// init registers built-in runtimes.
func init() {
	RegisterRuntime(ProviderMistral, func(c RuntimeConfig) Runtime {
		c = withHTTPDefaults(c, 60*time.Second, 3, 500*time.Millisecond, 4*time.Second)
		return NewClientWithBaseURL(c.APIKey, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay, c.BaseURL).WithLogger(c.Logger)
	})
	RegisterRuntime(ProviderOllama, func(c RuntimeConfig) Runtime {
		c = withHTTPDefaults(c, 60*time.Second, 2, 200*time.Millisecond, time.Second)
		return NewOllamaClient(c.Host, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay)
	})
	RegisterRuntime(ProviderOpenAI, func(c RuntimeConfig) Runtime {
		c = withHTTPDefaults(c, 60*time.Second, 3, 500*time.Millisecond, 4*time.Second)
		return NewOpenAIRuntime(c)
	})
	RegisterRuntime(ProviderAnthropic, func(c RuntimeConfig) Runtime {
		c = withHTTPDefaults(c, 60*time.Second, 3, 500*time.Millisecond, 4*time.Second)
		return NewAnthropicRuntime(c)
	})
	RegisterRuntime(ProviderGemini, func(c RuntimeConfig) Runtime {
		c = withHTTPDefaults(c, 60*time.Second, 3, 500*time.Millisecond, 4*time.Second)
		return NewGeminiRuntime(c)
	})
}
