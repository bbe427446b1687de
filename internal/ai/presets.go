package ai

// PresetCatalog returns the built-in curated catalog for a known provider.
func PresetCatalog(provider string) (map[string]ModelInfo, bool) {
	var list []ModelInfo
	switch NormalizeProvider(provider) {
	case ProviderMistral:
		list = []ModelInfo{
			{Name: "mistral-large-latest", ContextTokens: 128000, InputPerK: 0.002, OutputPerK: 0.006},
			{Name: "mistral-medium-latest", ContextTokens: 128000, InputPerK: 0.0004, OutputPerK: 0.002},
			{Name: "mistral-small-latest", ContextTokens: 32000, InputPerK: 0.0002, OutputPerK: 0.0006},
			{Name: "codestral-latest", ContextTokens: 256000, InputPerK: 0.0003, OutputPerK: 0.0009},
			{Name: "open-mistral-nemo", ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.00015},
		}
	case ProviderOpenAI:
		list = []ModelInfo{
			{Name: "gpt-4o", ContextTokens: 128000, InputPerK: 0.0025, OutputPerK: 0.01},
			{Name: "gpt-4o-mini", ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
			{Name: "gpt-4.1-mini", ContextTokens: 1000000, InputPerK: 0.0004, OutputPerK: 0.0016},
		}
	case ProviderAnthropic:
		list = []ModelInfo{
			{Name: "claude-3-5-sonnet-latest", ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015},
			{Name: "claude-3-5-haiku-latest", ContextTokens: 200000, InputPerK: 0.0008, OutputPerK: 0.004},
		}
	case ProviderGemini:
		list = []ModelInfo{
			{Name: "gemini-2.0-flash", ContextTokens: 1000000, InputPerK: 0.0001, OutputPerK: 0.0004},
			{Name: "gemini-1.5-pro", ContextTokens: 2000000, InputPerK: 0.00125, OutputPerK: 0.005},
		}
	case ProviderOllama:
		// local models cost nothing per token
		list = []ModelInfo{
			{Name: "llama3.1:8b-instruct", ContextTokens: 8192},
			{Name: "mistral:7b-instruct", ContextTokens: 8192},
			{Name: "sqlcoder:7b", ContextTokens: 8192},
			{Name: "qwen2.5-coder:7b", ContextTokens: 32768},
		}
	default:
		return nil, false
	}
	p := NormalizeProvider(provider)
	out := make(map[string]ModelInfo, len(list))
	for _, m := range list {
		m.Provider = p
		out[m.Name] = m
	}
	return out, true
}

// DefaultModel returns the model used when neither flag nor config picks one.
func DefaultModel(provider string) string {
	switch NormalizeProvider(provider) {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-3-5-sonnet-latest"
	case ProviderGemini:
		return "gemini-2.0-flash"
	case ProviderOllama:
		return "llama3.1:8b-instruct"
	}
	return "mistral-large-latest"
}

// DefaultEmbeddingModel returns the embedding model for providers with an embeddings API.
func DefaultEmbeddingModel(provider string) string {
	switch NormalizeProvider(provider) {
	case ProviderOpenAI:
		return "text-embedding-3-small"
	case ProviderOllama:
		return "nomic-embed-text"
	}
	return "mistral-embed"
}

// RecommendModel returns a recommended model name for a given tier and provider.
// Tiers: cheap|balanced|high-context.
func RecommendModel(provider, tier string) (string, bool) {
	p := NormalizeProvider(provider)
	table := map[string]map[string]string{
		"cheap": {
			ProviderMistral:   "mistral-small-latest",
			ProviderOpenAI:    "gpt-4o-mini",
			ProviderAnthropic: "claude-3-5-haiku-latest",
			ProviderGemini:    "gemini-2.0-flash",
			ProviderOllama:    "llama3.1:8b-instruct",
		},
		"balanced": {
			ProviderMistral:   "mistral-large-latest",
			ProviderOpenAI:    "gpt-4o",
			ProviderAnthropic: "claude-3-5-sonnet-latest",
			ProviderGemini:    "gemini-1.5-pro",
			ProviderOllama:    "qwen2.5-coder:7b",
		},
		"high-context": {
			ProviderMistral:   "codestral-latest",
			ProviderOpenAI:    "gpt-4.1-mini",
			ProviderAnthropic: "claude-3-5-sonnet-latest",
			ProviderGemini:    "gemini-1.5-pro",
			ProviderOllama:    "qwen2.5-coder:7b",
		},
	}
	byProvider, ok := table[tier]
	if !ok {
		return "", false
	}
	name, ok := byProvider[p]
	return name, ok
}
