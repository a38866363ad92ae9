// Command geoticket runs the 811 ticket geocoding pipeline: it loads a
// ticket batch and its supporting fixtures, drives them through the
// configured stage pipeline, and reports results, the review queue, and a
// batch summary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geoticket/internal/config"
)

var (
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "geoticket",
	Short: "811 dig-ticket geocoding pipeline",
	Long:  "Resolves dig-ticket locations against a road network and city reference map, assesses quality, and maintains a versioned geocode cache.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
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

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: ./config.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
