package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-scraper/internal/config"
)

var collectModels string

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Scrape listings for configured models and store them",
	Long:  "Runs every enabled marketplace search for each configured model, inserts new vehicles and listings, and prints per-model diagnostics as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		models, err := selectModels(cfg.Models, collectModels)
		if err != nil {
			return err
		}
		cfg.Models = models

		if err := cfg.Validate("collect"); err != nil {
			return err
		}

		st, pool, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		coord, err := newCoordinator(cfg, newFetcher(cfg), st)
		if err != nil {
			return err
		}

		diags, runErr := coord.RunCollection(ctx, cfg.Models, cfg.Location)
		if err := printJSON(os.Stdout, diags); err != nil {
			zap.L().Warn("failed to print diagnostics", zap.Error(err))
		}
		if runErr != nil {
			return eris.Wrap(runErr, "collect")
		}
		return nil
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectModels, "models", "", "comma-separated model keys to collect (default: all configured)")
	rootCmd.AddCommand(collectCmd)
}

// selectModels narrows the configured models to the comma-separated keys in
// filter. An empty filter keeps every model.
func selectModels(all map[string]config.ModelConfig, filter string) (map[string]config.ModelConfig, error) {
	if strings.TrimSpace(filter) == "" {
		return all, nil
	}
	out := make(map[string]config.ModelConfig)
	for _, key := range strings.Split(filter, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		mc, ok := all[key]
		if !ok {
			return nil, eris.Errorf("unknown model %q", key)
		}
		out[key] = mc
	}
	return out, nil
}
