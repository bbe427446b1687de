package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/sqlquest-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/sqlquest-cli/internal/config"
	"github.com/KaramelBytes/sqlquest-cli/internal/logging"
)

var (
	cfgFile string
	debug   bool
	// Database flags (override config if set)
	flagDBDriver string
	flagDSN      string
	flagRowLimit int
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "sqlquest",
	Short: "Ask questions of a SQL database in plain English",
	Long: `sqlquest translates natural-language questions into read-only SQL, runs them
against SQLite, PostgreSQL, MySQL or SQL Server, and explains the results with
statistics, a written narrative and a suggested chart.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.sqlquest/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging on stderr")
	pf.StringVar(&flagDBDriver, "db-driver", "", "database driver: "+driverList()+" (overrides config)")
	pf.StringVar(&flagDSN, "dsn", "", "database DSN or SQLite file path (overrides config)")
	pf.IntVar(&flagRowLimit, "row-limit", 0, "maximum rows fetched per query (overrides config)")
	pf.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	pf.IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	pf.IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	pf.IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	if l, err := logging.New(debug); err == nil {
		logger = l
	} else {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
	}

	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c
	loadCatalogOverrides()

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("db-driver") && flagDBDriver != "" {
		cfg.DBDriver = flagDBDriver
	}
	if f.Changed("dsn") && flagDSN != "" {
		cfg.DBDSN = flagDSN
	}
	if f.Changed("row-limit") && flagRowLimit >= 0 {
		cfg.RowLimit = flagRowLimit
	}
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	logger.Debug("config loaded",
		zap.String("db_driver", cfg.DBDriver),
		zap.String("db_dsn", logging.SanitizeDSN(cfg.DBDSN)),
		zap.String("provider", cfg.DefaultProvider),
		zap.String("model", cfg.DefaultModel))
}

// currentConfig returns the loaded config, loading it on demand.
func currentConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// friendlyError maps provider failures onto actionable hints.
func friendlyError(err error, provider, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &unreach):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running (see https://ollama.com) and host is correct. You can set SQLQUEST_OLLAMA_HOST or config 'ollama_host'. Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed: set %s or add it with 'sqlquest config set' (~/.sqlquest/config.yaml): %w", apiKeyEnv(provider), err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case errors.As(err, &nfErr):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name with 'sqlquest models list': %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try a smaller schema (--schema-top-k) or fewer max tokens: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	}
	return err
}

func apiKeyEnv(provider string) string {
	switch ai.NormalizeProvider(provider) {
	case ai.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ai.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ai.ProviderGemini:
		return "GEMINI_API_KEY"
	}
	return "MISTRAL_API_KEY"
}
