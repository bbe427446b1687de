package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sqlquest-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/sqlquest-cli/internal/config"
	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
	"github.com/KaramelBytes/sqlquest-cli/internal/logging"
	"github.com/KaramelBytes/sqlquest-cli/internal/narrative"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set sqlquest configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		fmt.Printf("api_key: %s\n", mask(c.APIKey))
		fmt.Printf("openai_api_key: %s\n", mask(c.OpenAIAPIKey))
		fmt.Printf("anthropic_api_key: %s\n", mask(c.AnthropicAPIKey))
		fmt.Printf("gemini_api_key: %s\n", mask(c.GeminiAPIKey))
		fmt.Printf("default_provider: %s\n", c.DefaultProvider)
		fmt.Printf("default_model: %s\n", c.DefaultModel)
		fmt.Printf("max_tokens: %d\n", c.MaxTokens)
		fmt.Printf("temperature: %.3f\n", c.Temperature)
		fmt.Printf("tone: %s\n", c.Tone)
		fmt.Printf("db_driver: %s\n", c.DBDriver)
		fmt.Printf("db_dsn: %s\n", logging.SanitizeDSN(c.DBDSN))
		fmt.Printf("row_limit: %d\n", c.RowLimit)
		fmt.Printf("history_dir: %s\n", c.HistoryDir)
		if c.SchemaTopK > 0 {
			fmt.Printf("schema_top_k: %d\n", c.SchemaTopK)
			fmt.Printf("embedding_provider: %s\n", c.EmbeddingProvider)
			fmt.Printf("embedding_model: %s\n", c.EmbeddingModel)
		}
		fmt.Printf("http_timeout_sec: %d\n", c.HTTPTimeoutSec)
		fmt.Printf("retry_max_attempts: %d\n", c.RetryMaxAttempts)
		fmt.Printf("retry_base_delay_ms: %d\n", c.RetryBaseDelayMs)
		fmt.Printf("retry_max_delay_ms: %d\n", c.RetryMaxDelayMs)
		fmt.Printf("ollama_host: %s\n", c.OllamaHost)
		fmt.Printf("ollama_timeout_sec: %d\n", c.OllamaTimeoutSec)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Save the file-backed values, not the flag-overridden ones.
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := setConfigValue(c, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		cfg = c
		fmt.Println("Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	nonNegInt := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	provider := func() (string, error) {
		p := ai.NormalizeProvider(strings.ToLower(strings.TrimSpace(val)))
		if !slices.Contains(ai.RegisteredProviders(), p) {
			return "", fmt.Errorf("invalid %s: %s (use %s)", key, val, strings.Join(ai.RegisteredProviders(), ", "))
		}
		return p, nil
	}
	var err error
	switch key {
	case "api_key":
		c.APIKey = val
	case "openai_api_key":
		c.OpenAIAPIKey = val
	case "anthropic_api_key":
		c.AnthropicAPIKey = val
	case "gemini_api_key":
		c.GeminiAPIKey = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		c.DefaultProvider, err = provider()
	case "embedding_provider":
		c.EmbeddingProvider, err = provider()
	case "embedding_model":
		c.EmbeddingModel = val
	case "tone":
		var t narrative.Tone
		t, err = narrative.ParseTone(val)
		c.Tone = string(t)
	case "db_driver":
		d, ok := datasource.LookupDialect(val)
		if !ok {
			return fmt.Errorf("invalid db_driver: %s (use %s)", val, driverList())
		}
		c.DBDriver = d.Name()
	case "db_dsn":
		c.DBDSN = val
	case "history_dir":
		c.HistoryDir = val
	case "ollama_host":
		c.OllamaHost = val
	case "row_limit":
		c.RowLimit, err = nonNegInt()
	case "schema_top_k":
		c.SchemaTopK, err = nonNegInt()
	case "max_tokens":
		c.MaxTokens, err = nonNegInt()
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = nonNegInt()
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = nonNegInt()
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = nonNegInt()
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = nonNegInt()
	case "ollama_timeout_sec":
		c.OllamaTimeoutSec, err = nonNegInt()
	case "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f < 0 || f > 2 {
			return fmt.Errorf("invalid float for temperature: %v", val)
		}
		c.Temperature = f
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
