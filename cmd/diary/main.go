// Command diary moves diary entries between the local text diary and the
// remote web archive.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mklimuk/diary-pilot/pkg/config"
	"github.com/mklimuk/diary-pilot/pkg/logging"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "diary",
	Short: "Sync a plain text diary with its web archive",
	Long: `diary keeps a plain text diary and a legacy web archive in step.

export pulls archive entries, resolves their fuzzy titles to dates and writes
one canonical file per day. ingest pushes the local diary to the archive and
rolls it forward to the coming week.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}
		logger, err = logging.New(logging.Options{
			Level:   cfg.Log.Level,
			File:    cfg.Log.File,
			Verbose: verbose,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	exportCmd.Flags().StringVar(&exportFlags.startURL, "start-url", "", "Listing page to start from")
	exportCmd.Flags().StringVar(&exportFlags.startDate, "start-date", "", "Anchor date (YYYY-MM-DD) for the first entry")
	exportCmd.Flags().StringVar(&exportFlags.earliest, "earliest", "", "Stop at entries before this date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportFlags.dump, "dump", "", "Dump directory (overrides config)")
	exportCmd.Flags().BoolVar(&exportFlags.dryRun, "dry-run", false, "Resolve and diff without writing")
	exportCmd.Flags().BoolVarP(&exportFlags.quiet, "quiet", "q", false, "Do not log every exported period")

	ingestCmd.Flags().BoolVar(&ingestFlags.noTrim, "no-trim", false, "Keep periods before the previous Sunday")
	ingestCmd.Flags().StringVar(&ingestFlags.target, "target", "", "Extend the diary up to this date (YYYY-MM-DD)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(ingestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
