package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/segloom-cli/internal/codex"
	cfgpkg "github.com/KaramelBytes/segloom-cli/internal/config"
	"github.com/KaramelBytes/segloom-cli/internal/dataset"
	"github.com/KaramelBytes/segloom-cli/internal/pipeline"
	"github.com/KaramelBytes/segloom-cli/internal/utils"
)

// inputFlags are the dataset reading options shared by every command that loads tables.
type inputFlags struct {
	codexPath  string
	dictPath   string
	delimiter  string
	maxRows    int
	sheetName  string
	sheetIndex int
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.codexPath, "codex", "c", "", "feature summary file listing each attribute's type and missing codes")
	cmd.Flags().StringVar(&f.dictPath, "dictionary", "", "optional data dictionary (markdown) with code meanings")
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 0, "maximum rows to read per dataset (0 = unlimited)")
	cmd.Flags().StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to read")
	cmd.Flags().IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}

func (f *inputFlags) loader(c *cfgpkg.Global) (*dataset.Loader, error) {
	opt := dataset.DefaultReadOptions()
	opt.NullTokens = c.NullTokens
	opt.MaxRows = f.maxRows
	opt.SheetName = f.sheetName
	opt.SheetIndex = f.sheetIndex
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case ";":
		opt.Delimiter = ';'
	case "\t", "tab":
		opt.Delimiter = '\t'
	default:
		return nil, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
	}
	s3opt := dataset.S3Options{Region: c.S3Region, Endpoint: c.S3Endpoint, PathStyle: c.S3PathStyle}
	return dataset.NewLoader(opt, s3opt, nil), nil
}

// loadCodex reads the feature summary and, when given, attaches the data dictionary.
func (f *inputFlags) loadCodex() (*codex.Codex, error) {
	if f.codexPath == "" {
		return nil, fmt.Errorf("--codex is required")
	}
	fh, err := os.Open(f.codexPath)
	if err != nil {
		return nil, fmt.Errorf("open codex: %w", err)
	}
	defer fh.Close()
	cx, err := codex.ReadSummary(fh)
	if err != nil {
		return nil, fmt.Errorf("codex %s: %w", f.codexPath, err)
	}
	if f.dictPath != "" {
		dh, err := os.Open(f.dictPath)
		if err != nil {
			return nil, fmt.Errorf("open dictionary: %w", err)
		}
		defer dh.Close()
		docs, err := codex.ReadDictionary(dh)
		if err != nil {
			return nil, fmt.Errorf("dictionary %s: %w", f.dictPath, err)
		}
		cx.Attach(docs)
	}
	return cx, nil
}

// tuningFlags override config values for a single run.
type tuningFlags struct {
	rowThreshold    int
	columnThreshold float64
	clusters        int
	components      int
	varianceTarget  float64
	impute          string
	seed            int64
	includeSetAside bool
}

func (t *tuningFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&t.rowThreshold, "row-threshold", 0, "keep rows with at most this many missing values (overrides config)")
	cmd.Flags().Float64Var(&t.columnThreshold, "column-threshold", 0, "drop columns missing more than this share (overrides config)")
	cmd.Flags().IntVarP(&t.clusters, "clusters", "k", 0, "number of clusters; 0 takes the elbow suggestion (overrides config)")
	cmd.Flags().IntVar(&t.components, "components", 0, "number of principal components (overrides config)")
	cmd.Flags().Float64Var(&t.varianceTarget, "variance", 0, "keep components up to this explained variance share (overrides config)")
	cmd.Flags().StringVar(&t.impute, "impute", "", "imputation strategy: mean | median | most_frequent (overrides config)")
	cmd.Flags().Int64Var(&t.seed, "seed", 0, "random seed for k-means (overrides config)")
	cmd.Flags().BoolVar(&t.includeSetAside, "include-set-aside", true, "count rows set aside by the filter as cluster -1 (overrides config)")
}

// options merges config with the flags the user actually set.
func (t *tuningFlags) options(cmd *cobra.Command, c *cfgpkg.Global) (pipeline.Options, error) {
	merged := *c
	f := cmd.Flags()
	if f.Changed("row-threshold") {
		merged.RowMissingThreshold = t.rowThreshold
	}
	if f.Changed("column-threshold") {
		merged.ColumnMissingThreshold = t.columnThreshold
	}
	if f.Changed("clusters") {
		merged.Clusters = t.clusters
	}
	if f.Changed("components") {
		merged.PCAComponents = t.components
	}
	if f.Changed("variance") {
		merged.PCAVarianceTarget = t.varianceTarget
	}
	if f.Changed("impute") {
		merged.ImputeStrategy = strings.TrimSpace(t.impute)
	}
	if f.Changed("seed") {
		merged.Seed = t.seed
	}
	if f.Changed("include-set-aside") {
		merged.IncludeSetAside = t.includeSetAside
	}
	if err := merged.Validate(); err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.OptionsFromConfig(&merged)
}

// writeMetrics flushes the run's metrics when a textfile path is configured.
func writeMetrics(p *pipeline.Pipeline, c *cfgpkg.Global) {
	if c.MetricsTextfile == "" {
		return
	}
	if err := p.Metrics().WriteTextfile(c.MetricsTextfile); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: write metrics: %v\n", err)
		return
	}
	progress("✓ Wrote metrics to %s\n", c.MetricsTextfile)
}

// writeOutput writes body to path, or prints it when path is empty.
func writeOutput(path, body, what string) error {
	if path == "" {
		fmt.Println(body)
		return nil
	}
	if err := utils.SafeWriteFile(path, []byte(body)); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	progress("✓ Wrote %s to %s\n", what, path)
	return nil
}
