package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DefaultProvider != "mistral" || c.DefaultModel != "mistral-large-latest" {
		t.Fatalf("unexpected provider defaults: %s %s", c.DefaultProvider, c.DefaultModel)
	}
	if c.Temperature != 0.1 || c.MaxTokens != 2048 {
		t.Fatalf("unexpected sampling defaults: %v %d", c.Temperature, c.MaxTokens)
	}
	if c.DBDriver != "sqlite" || c.RowLimit != 1000 || c.Tone != "formal" {
		t.Fatalf("unexpected db defaults: %+v", c)
	}
	if c.HistoryDir != filepath.Join(home, ".sqlquest", "history") {
		t.Fatalf("history dir: %s", c.HistoryDir)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	path := filepath.Join(home, "custom.yaml")
	in := &Global{DefaultModel: "open-mixtral-8x22b", DBDriver: "postgres", DBDSN: "postgres://localhost/shop", RowLimit: 50, Tone: "casual"}
	if err := Save(in, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.DefaultModel != "open-mixtral-8x22b" || out.DBDriver != "postgres" || out.RowLimit != 50 || out.Tone != "casual" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	t.Setenv("SQLQUEST_ROW_LIMIT", "7")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.RowLimit != 7 {
		t.Fatalf("expected env override, got %d", c.RowLimit)
	}
}

func TestDotEnvProvidesMistralKey(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd := t.TempDir()
	t.Chdir(wd)
	t.Setenv("MISTRAL_API_KEY", "")
	os.Unsetenv("MISTRAL_API_KEY")
	if err := os.WriteFile(filepath.Join(wd, ".env"), []byte("MISTRAL_API_KEY=from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.ProviderAPIKey("mistral"); got != "from-dotenv" {
		t.Fatalf("expected key from .env, got %q", got)
	}
	os.Unsetenv("MISTRAL_API_KEY")
}

func TestProviderAPIKeyFallsBackToConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	c := &Global{OpenAIAPIKey: "cfg-openai"}
	if got := c.ProviderAPIKey("openai"); got != "cfg-openai" {
		t.Fatalf("got %q", got)
	}
	if got := c.ProviderAPIKey("ollama"); got != "" {
		t.Fatalf("ollama needs no key, got %q", got)
	}
}
