package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/sqlquest-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/sqlquest-cli/internal/config"
	"github.com/KaramelBytes/sqlquest-cli/internal/render"
	"github.com/KaramelBytes/sqlquest-cli/internal/utils"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model catalog and pricing used for cost estimates",
	Example: `  sqlquest models list --provider openai
  sqlquest models show gpt-4o-mini
  sqlquest models recommend --provider anthropic --tier cheap
  sqlquest models sync --file ./models.json`,
}

// catalogPath is where `models sync` persists pricing overrides.
func catalogPath() (string, error) {
	dir, err := cfgpkg.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "models.json"), nil
}

func loadCatalogOverrides() {
	path, err := catalogPath()
	if err != nil {
		return
	}
	m, err := ai.LoadCatalogFromJSON(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "⚠ Warning: ignoring model catalog %s: %v\n", path, err)
		}
		return
	}
	ai.MergeCatalog(m)
	logger.Debug("model catalog overrides merged", zap.String("path", path), zap.Int("models", len(m)))
}

var modelsProvider string

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known models with context size and price per 1K tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		want := ""
		if modelsProvider != "" {
			want = ai.NormalizeProvider(strings.ToLower(modelsProvider))
		}
		rows := [][]string{}
		for _, m := range ai.Catalog() {
			if want != "" && m.Provider != want {
				continue
			}
			rows = append(rows, []string{
				m.Name, m.Provider, fmt.Sprintf("%d", m.ContextTokens),
				fmt.Sprintf("$%.5f", m.InputPerK), fmt.Sprintf("$%.5f", m.OutputPerK),
			})
		}
		if len(rows) == 0 {
			return fmt.Errorf("no models for provider %q", modelsProvider)
		}
		render.Table(os.Stdout, []string{"Model", "Provider", "Context", "In/1K", "Out/1K"}, rows)
		return nil
	},
}

var modelsShowCmd = &cobra.Command{
	Use:   "show <model>",
	Short: "Show catalog details for one model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, ok := ai.LookupModel(args[0])
		if !ok {
			return fmt.Errorf("unknown model %q (see `sqlquest models list`)", args[0])
		}
		b, err := utils.PrettyJSON(m)
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

var modelsTier string

var modelsRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest a model for a provider and tier (cheap|balanced|high-context)",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := modelsProvider
		if provider == "" {
			if c, err := currentConfig(); err == nil {
				provider = c.DefaultProvider
			}
		}
		name, ok := ai.RecommendModel(provider, modelsTier)
		if !ok {
			return fmt.Errorf("no recommendation for provider %q and tier %q", provider, modelsTier)
		}
		fmt.Println(name)
		return nil
	},
}

var syncPath string

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge model pricing from a JSON file and keep it for later runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFromJSON(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		dest, err := catalogPath()
		if err != nil {
			return err
		}
		// keep earlier overrides unless the new file replaces them
		merged := map[string]ai.ModelInfo{}
		if prev, err := ai.LoadCatalogFromJSON(dest); err == nil {
			for k, v := range prev {
				merged[k] = v
			}
		}
		for k, v := range m {
			if v.Name == "" {
				v.Name = k
			}
			merged[k] = v
		}
		b, err := utils.PrettyJSON(merged)
		if err != nil {
			return err
		}
		if err := utils.SafeWriteFile(dest, b); err != nil {
			return err
		}
		ai.MergeCatalog(m)
		fmt.Printf("✓ Merged %d models into %s\n", len(m), dest)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd, modelsShowCmd, modelsRecommendCmd, modelsSyncCmd)

	modelsListCmd.Flags().StringVar(&modelsProvider, "provider", "", "only list this provider")
	modelsRecommendCmd.Flags().StringVar(&modelsProvider, "provider", "", "provider (default: configured provider)")
	modelsRecommendCmd.Flags().StringVar(&modelsTier, "tier", "balanced", "cheap | balanced | high-context")
	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
}
