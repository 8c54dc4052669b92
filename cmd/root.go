package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	cfgpkg "github.com/KaramelBytes/segloom-cli/internal/config"
)

var (
	cfgFile string
	debug   bool
	quiet   bool
	// Written after commands that run the pipeline (overrides config)
	flagMetricsTextfile string

	// Loaded configuration
	cfg *cfgpkg.Global
	// Structured stage logs; replaced in PersistentPreRunE
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "segloom",
	Short: "segloom: compare a customer base with the general population by segment",
	Long: `segloom recodes unknown-value sentinels, filters sparse columns and rows, fits
imputation, scaling, PCA and k-means on a reference population once, and applies
that fit unchanged to a target population to compare cluster proportions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger()
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.segloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging of every stage")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().StringVar(&flagMetricsTextfile, "metrics-textfile", "", "write run metrics in Prometheus textfile format to this path (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: config show/set and codex work without a valid config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = nil
		return
	}
	cfg = c
	if f := rootCmd.PersistentFlags(); f.Changed("metrics-textfile") {
		cfg.MetricsTextfile = flagMetricsTextfile
	}
}

func newLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	switch {
	case debug:
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case quiet:
		config.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}
	l, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

// progress prints a user-facing status line unless --quiet is set.
func progress(format string, a ...any) {
	if quiet {
		return
	}
	fmt.Printf(format, a...)
}

func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no valid configuration loaded (see warning above)")
	}
	return cfg, nil
}
