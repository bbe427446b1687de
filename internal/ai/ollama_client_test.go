package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

const (
	translateSystem = "You are an expert SQL analyst. Reply with a single SQLite SELECT statement."
	translateUser   = "Tables:\nsales(region text, total_amount real)\n\nQuestion: total revenue by region"
	revenueSQL      = "SELECT region, SUM(total_amount) AS revenue FROM sales GROUP BY region"
)

// ollamaChat serves /api/chat with reply and records the decoded request.
func ollamaChat(t *testing.T, reply string, got *ollamaChatRequest) *ipv4Server {
	t.Helper()
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"role": "assistant", "content": reply},
			"done":              true,
			"prompt_eval_count": 48,
			"eval_count":        14,
		})
	}))
}

func TestOllamaTranslatesQuestion(t *testing.T) {
	srv := ollamaChat(t, "```sql\n"+revenueSQL+"\n```", nil)
	defer srv.Close()

	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Generate(ctx, GenerateRequest{
		Model:     "sqlcoder:7b",
		Messages:  []Message{{Role: RoleSystem, Content: translateSystem}, {Role: RoleUser, Content: translateUser}},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if !strings.Contains(resp.Text(), revenueSQL) {
		t.Fatalf("unexpected completion: %q", resp.Text())
	}
	if resp.Usage.PromptTokens != 48 || resp.Usage.TotalTokens != 62 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
	if resp.RequestID == "" {
		t.Fatalf("expected simulated request id")
	}
}

func TestOllamaUnknownModel(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "model 'sqlcoder:70b' not found"})
	}))
	defer srv.Close()
	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "sqlcoder:70b", Messages: []Message{{Role: RoleUser, Content: translateUser}}})
	if err == nil {
		t.Fatalf("expected error for a missing model")
	}
}

func TestOllamaRejectsEmptyConversation(t *testing.T) {
	c := NewOllamaClient("http://localhost:11434", 2*time.Second, 1, 0, 0)

	_, err := c.Generate(context.Background(), GenerateRequest{Model: "sqlcoder:7b"})
	if err == nil || err.Error() != "messages cannot be empty" {
		t.Fatalf("Generate: expected 'messages cannot be empty', got: %v", err)
	}
	err = c.GenerateStream(context.Background(), GenerateRequest{Model: "sqlcoder:7b"}, func(string) {})
	if err == nil || err.Error() != "messages cannot be empty" {
		t.Fatalf("GenerateStream: expected 'messages cannot be empty', got: %v", err)
	}
	_, err = c.Generate(context.Background(), GenerateRequest{Messages: []Message{{Role: RoleUser, Content: translateUser}}})
	if err == nil || err.Error() != "model cannot be empty" {
		t.Fatalf("expected 'model cannot be empty', got: %v", err)
	}
}

func TestOllamaSendsRepairConversation(t *testing.T) {
	var got ollamaChatRequest
	srv := ollamaChat(t, revenueSQL, &got)
	defer srv.Close()

	// a failed attempt followed by the database error, as a repair prompt
	messages := []Message{
		{Role: RoleSystem, Content: translateSystem},
		{Role: RoleUser, Content: translateUser},
		{Role: RoleAssistant, Content: "SELECT region, SUM(amount) FROM sales GROUP BY region"},
		{Role: RoleUser, Content: "The query failed: no such column: amount. Fix it."},
	}
	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	if _, err := c.Generate(context.Background(), GenerateRequest{Model: "sqlcoder:7b", Messages: messages, MaxTokens: 128, Temperature: Temp(0)}); err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	if got.Model != "sqlcoder:7b" || got.Stream {
		t.Fatalf("unexpected request header fields: %+v", got)
	}
	if len(got.Messages) != len(messages) {
		t.Fatalf("expected %d messages, got %d", len(messages), len(got.Messages))
	}
	for i, want := range messages {
		if got.Messages[i].Role != want.Role || got.Messages[i].Content != want.Content {
			t.Fatalf("message %d: expected %+v, got %+v", i, want, got.Messages[i])
		}
	}
	if v, ok := got.Options["temperature"]; !ok || v.(float64) != 0 {
		t.Fatalf("zero temperature must be sent, options = %v", got.Options)
	}
	if v := got.Options["num_predict"]; v.(float64) != 128 {
		t.Fatalf("num_predict = %v", v)
	}
}

func TestOllamaOmitsUnsetTemperature(t *testing.T) {
	var got ollamaChatRequest
	srv := ollamaChat(t, revenueSQL, &got)
	defer srv.Close()

	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	if _, err := c.Generate(context.Background(), GenerateRequest{Model: "sqlcoder:7b", Messages: []Message{{Role: RoleUser, Content: translateUser}}}); err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if _, ok := got.Options["temperature"]; ok {
		t.Fatalf("temperature should be left to the server, options = %v", got.Options)
	}
}

func TestOllamaStreamsNarrative(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		for _, chunk := range []string{"North ", "leads ", "revenue."} {
			_ = enc.Encode(map[string]any{"message": map[string]any{"role": "assistant", "content": chunk}})
		}
		_ = enc.Encode(map[string]any{"done": true})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	var b strings.Builder
	err := c.GenerateStream(context.Background(), GenerateRequest{
		Model:    "llama3.1:8b-instruct",
		Messages: []Message{{Role: RoleUser, Content: "Summarize revenue by region."}},
	}, func(d string) { b.WriteString(d) })
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if b.String() != "North leads revenue." {
		t.Fatalf("unexpected stream accumulation: %q", b.String())
	}
}

func TestOllamaEmbedsTableDescriptions(t *testing.T) {
	var prompts []string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		prompts = append(prompts, body.Prompt)
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{float64(len(body.Prompt)), 1}})
	}))
	defer srv.Close()

	tables := []string{
		"employees(employee_id, name, department, salary, hire_date)",
		"sales(sale_id, region, total_amount)",
	}
	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	vecs, err := c.Embed(context.Background(), "nomic-embed-text", tables)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != float32(len(tables[0])) || vecs[1][0] != float32(len(tables[1])) {
		t.Fatalf("unexpected vectors: %v", vecs)
	}
	if len(prompts) != 2 || prompts[1] != tables[1] {
		t.Fatalf("expected one call per table, got %q", prompts)
	}
}

func TestOllamaUnreachable(t *testing.T) {
	c := NewOllamaClient("http://127.0.0.1:1", time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "sqlcoder:7b", Messages: []Message{{Role: RoleUser, Content: translateUser}}})
	var ue *UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnreachableError, got %T %v", err, err)
	}
}
