package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/port-research/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "port-research",
	Short: "Facility research and field reconciliation pipeline",
	Long:  "Runs parallel knowledge-retrieval queries against port and terminal records, extracts structured fields via Claude, and proposes confidence-scored updates for review.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
