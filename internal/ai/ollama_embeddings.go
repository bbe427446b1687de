package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Embed requests embeddings through Ollama's /api/embeddings endpoint, which
// accepts a single prompt per call.
func (c *OllamaClient) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if model == "" {
		return nil, errors.New("embedding model cannot be empty")
	}
	type reqBody struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	type respBody struct {
		Embedding []float64 `json:"embedding"`
	}
	out := make([][]float32, 0, len(inputs))
	for _, s := range inputs {
		b, err := json.Marshal(reqBody{Model: model, Prompt: s})
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		resp, err := c.post(ctx, "/api/embeddings", b)
		if err != nil {
			return nil, &UnreachableError{Host: c.host, Err: err}
		}
		vec, err := func() ([]float32, error) {
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, ollamaError(resp)
			}
			var rb respBody
			if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
				return nil, fmt.Errorf("decode: %w", err)
			}
			vec := make([]float32, len(rb.Embedding))
			for i := range rb.Embedding {
				vec[i] = float32(rb.Embedding[i])
			}
			return vec, nil
		}()
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}
