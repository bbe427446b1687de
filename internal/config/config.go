package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	OpenAIAPIKey    string  `mapstructure:"openai_api_key" yaml:"openai_api_key"`
	AnthropicAPIKey string  `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key"`
	GeminiAPIKey    string  `mapstructure:"gemini_api_key" yaml:"gemini_api_key"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	Tone            string  `mapstructure:"tone" yaml:"tone"`

	// Database
	DBDriver string `mapstructure:"db_driver" yaml:"db_driver"`
	DBDSN    string `mapstructure:"db_dsn" yaml:"db_dsn"`
	RowLimit int    `mapstructure:"row_limit" yaml:"row_limit"`

	// Run history
	HistoryDir string `mapstructure:"history_dir" yaml:"history_dir"`

	// Schema narrowing
	EmbeddingModel    string `mapstructure:"embedding_model" yaml:"embedding_model"`
	EmbeddingProvider string `mapstructure:"embedding_provider" yaml:"embedding_provider"`
	SchemaTopK        int    `mapstructure:"schema_top_k" yaml:"schema_top_k"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`
}

// Dir returns ~/.sqlquest.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".sqlquest"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.sqlquest/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from .env, environment, config file and defaults.
// Precedence: env > config file > defaults. CLI flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	// .env in the working directory is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SQLQUEST")
	v.AutomaticEnv()

	v.SetDefault("api_key", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("default_model", "mistral-large-latest")
	v.SetDefault("default_provider", "mistral")
	v.SetDefault("max_tokens", 2048)
	v.SetDefault("temperature", 0.1)
	v.SetDefault("tone", "formal")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", filepath.Join("data", "sample.db"))
	v.SetDefault("row_limit", 1000)
	v.SetDefault("history_dir", "")
	v.SetDefault("embedding_model", "mistral-embed")
	v.SetDefault("embedding_provider", "mistral")
	v.SetDefault("schema_top_k", 0)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 120)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read; a malformed file is still an error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.HistoryDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.HistoryDir = filepath.Join(dir, "history")
	}
	return &c, nil
}

// ProviderAPIKey resolves the API key for a provider. Provider-native environment
// variables (MISTRAL_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY)
// take precedence over the config file.
func (c *Global) ProviderAPIKey(provider string) string {
	pick := func(env, fallback string) string {
		if v := os.Getenv(env); v != "" {
			return v
		}
		return fallback
	}
	switch provider {
	case "", "mistral":
		return pick("MISTRAL_API_KEY", c.APIKey)
	case "openai":
		return pick("OPENAI_API_KEY", c.OpenAIAPIKey)
	case "anthropic":
		return pick("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	case "gemini", "google":
		return pick("GEMINI_API_KEY", c.GeminiAPIKey)
	}
	return ""
}
