package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/sqlquest-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/sqlquest-cli/internal/config"
	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
)

func driverList() string { return strings.Join(datasource.Dialects(), "|") }

// openDataSource connects to the configured database. The bundled sample is
// created (and seeded) on first use when the DSN still points at it.
func openDataSource(ctx context.Context, c *cfgpkg.Global) (*datasource.DataSource, error) {
	driver, dsn, limit := "sqlite", datasource.DefaultSamplePath, datasource.DefaultRowLimit
	if c != nil {
		if c.DBDriver != "" {
			driver = c.DBDriver
		}
		if c.DBDSN != "" {
			dsn = c.DBDSN
		}
		limit = c.RowLimit
	}
	if d, ok := datasource.LookupDialect(driver); ok && d.Name() == "sqlite" && dsn == datasource.DefaultSamplePath {
		if _, err := os.Stat(dsn); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Creating sample database at %s\n", dsn)
			if err := datasource.CreateSample(ctx, dsn, true); err != nil {
				return nil, err
			}
		}
	}
	return datasource.Open(ctx, datasource.Config{Driver: driver, DSN: dsn, RowLimit: limit}, logger)
}

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

func runtimeConfig(c *cfgpkg.Global, providerName string, opts runtimeOptions) ai.RuntimeConfig {
	rc := ai.RuntimeConfig{
		HTTPTimeout: 60 * time.Second,
		RetryMax:    3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
		Logger:      logger,
	}
	if c != nil {
		if c.HTTPTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(c.HTTPTimeoutSec) * time.Second
		}
		if c.RetryMaxAttempts > 0 {
			rc.RetryMax = c.RetryMaxAttempts
		}
		if c.RetryBaseDelayMs > 0 {
			rc.BaseDelay = time.Duration(c.RetryBaseDelayMs) * time.Millisecond
		}
		if c.RetryMaxDelayMs > 0 {
			rc.MaxDelay = time.Duration(c.RetryMaxDelayMs) * time.Millisecond
		}
		rc.APIKey = c.ProviderAPIKey(providerName)
	}
	if providerName == ai.ProviderOllama {
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" {
			host = os.Getenv("SQLQUEST_OLLAMA_HOST")
		}
		if host == "" && c != nil && c.OllamaHost != "" {
			host = c.OllamaHost
		}
		if host == "" {
			host = "http://127.0.0.1:11434"
		}
		rc.Host = host
		if v := os.Getenv("SQLQUEST_OLLAMA_TIMEOUT_SEC"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				rc.HTTPTimeout = time.Duration(n) * time.Second
			}
		}
		if c != nil && c.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(c.OllamaTimeoutSec) * time.Second
		}
	}
	return rc
}

func resolveProvider(c *cfgpkg.Global, flag string) string {
	p := strings.ToLower(strings.TrimSpace(flag))
	if p == "" && c != nil {
		p = strings.ToLower(strings.TrimSpace(c.DefaultProvider))
	}
	return ai.NormalizeProvider(p)
}

func buildRuntime(c *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	providerName := resolveProvider(c, opts.ProviderFlag)
	rt, ok := ai.GetRuntime(providerName, runtimeConfig(c, providerName, opts))
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s (available: %s)", providerName, strings.Join(ai.RegisteredProviders(), ", "))
	}
	if providerName != ai.ProviderOllama && c != nil && c.ProviderAPIKey(providerName) == "" {
		logger.Warn("no API key configured", zap.String("provider", providerName), zap.String("env", apiKeyEnv(providerName)))
	}
	return rt, providerName, nil
}

// buildEmbedder returns the embedder used for schema narrowing.
func buildEmbedder(c *cfgpkg.Global, opts runtimeOptions) (ai.Embedder, string, string, error) {
	provider := ""
	if c != nil {
		provider = c.EmbeddingProvider
	}
	provider = ai.NormalizeProvider(strings.ToLower(strings.TrimSpace(provider)))
	model := ""
	if c != nil {
		model = c.EmbeddingModel
	}
	if model == "" {
		model = ai.DefaultEmbeddingModel(provider)
	}
	emb, ok := ai.GetEmbedder(provider, runtimeConfig(c, provider, opts))
	if !ok {
		return nil, provider, model, fmt.Errorf("embedding provider not supported: %s (use mistral, openai or ollama)", provider)
	}
	return emb, provider, model, nil
}

// selectModel applies flag > config > provider default. A configured default
// model only applies to the configured default provider.
func selectModel(c *cfgpkg.Global, provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c != nil && c.DefaultModel != "" && ai.NormalizeProvider(c.DefaultProvider) == provider {
		return c.DefaultModel
	}
	return ai.DefaultModel(provider)
}

func enforceBudget(estCost, limit float64) error {
	if limit > 0 && estCost > 0 && estCost > limit {
		return fmt.Errorf("estimated cost ~$%.4f exceeds budget limit ~$%.4f", estCost, limit)
	}
	return nil
}

func cacheDir() string {
	dir, err := cfgpkg.Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "cache")
}
