package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Filtering
	ColumnMissingThreshold float64 `mapstructure:"column_missing_threshold" yaml:"column_missing_threshold"`
	RowMissingThreshold    int     `mapstructure:"row_missing_threshold" yaml:"row_missing_threshold"`

	// Transform
	ImputeStrategy    string  `mapstructure:"impute_strategy" yaml:"impute_strategy"`
	PCAComponents     int     `mapstructure:"pca_components" yaml:"pca_components"`
	PCAVarianceTarget float64 `mapstructure:"pca_variance_target" yaml:"pca_variance_target"`
	MixedAsNumeric    bool    `mapstructure:"mixed_as_numeric" yaml:"mixed_as_numeric"`

	// Clustering; Clusters 0 means take the elbow suggestion.
	Clusters        int     `mapstructure:"clusters" yaml:"clusters"`
	ElbowMinK       int     `mapstructure:"elbow_min_k" yaml:"elbow_min_k"`
	ElbowMaxK       int     `mapstructure:"elbow_max_k" yaml:"elbow_max_k"`
	Seed            int64   `mapstructure:"seed" yaml:"seed"`
	KMeansMaxIter   int     `mapstructure:"kmeans_max_iter" yaml:"kmeans_max_iter"`
	KMeansRestarts  int     `mapstructure:"kmeans_restarts" yaml:"kmeans_restarts"`
	KMeansTolerance float64 `mapstructure:"kmeans_tolerance" yaml:"kmeans_tolerance"`

	// Comparison
	RepresentationMargin float64 `mapstructure:"representation_margin" yaml:"representation_margin"`
	IncludeSetAside      bool    `mapstructure:"include_set_aside" yaml:"include_set_aside"`
	ProfileTopFeatures   int     `mapstructure:"profile_top_features" yaml:"profile_top_features"`

	// Input
	TargetExtraColumns []string `mapstructure:"target_extra_columns" yaml:"target_extra_columns"`
	NullTokens         []string `mapstructure:"null_tokens" yaml:"null_tokens"`
	S3Region           string   `mapstructure:"s3_region" yaml:"s3_region"`
	S3Endpoint         string   `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`
	S3PathStyle        bool     `mapstructure:"s3_path_style" yaml:"s3_path_style"`

	// Output
	MetricsTextfile string `mapstructure:"metrics_textfile" yaml:"metrics_textfile"`
}

// Validate rejects values no stage could run with.
func (c *Global) Validate() error {
	switch {
	case c.ColumnMissingThreshold < 0 || c.ColumnMissingThreshold > 1:
		return fmt.Errorf("column_missing_threshold must be within [0,1], got %v", c.ColumnMissingThreshold)
	case c.RowMissingThreshold < 0:
		return fmt.Errorf("row_missing_threshold must be >= 0, got %d", c.RowMissingThreshold)
	case c.PCAComponents < 0:
		return fmt.Errorf("pca_components must be >= 0, got %d", c.PCAComponents)
	case c.PCAVarianceTarget < 0 || c.PCAVarianceTarget > 1:
		return fmt.Errorf("pca_variance_target must be within [0,1], got %v", c.PCAVarianceTarget)
	case c.Clusters < 0:
		return fmt.Errorf("clusters must be >= 0, got %d", c.Clusters)
	case c.ElbowMinK < 2 || c.ElbowMaxK < c.ElbowMinK:
		return fmt.Errorf("elbow range [%d, %d] is invalid: elbow_min_k must be >= 2", c.ElbowMinK, c.ElbowMaxK)
	case c.RepresentationMargin < 0 || c.RepresentationMargin >= 1:
		return fmt.Errorf("representation_margin must be within [0,1), got %v", c.RepresentationMargin)
	}
	return nil
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".segloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.segloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
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
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("column_missing_threshold", 0.2)
	v.SetDefault("row_missing_threshold", 8)
	v.SetDefault("impute_strategy", "mean")
	v.SetDefault("pca_components", 0)
	v.SetDefault("pca_variance_target", 0.9)
	v.SetDefault("mixed_as_numeric", false)
	v.SetDefault("clusters", 0)
	v.SetDefault("elbow_min_k", 2)
	v.SetDefault("elbow_max_k", 12)
	v.SetDefault("seed", 42)
	v.SetDefault("kmeans_max_iter", 300)
	v.SetDefault("kmeans_restarts", 5)
	v.SetDefault("kmeans_tolerance", 1e-4)
	v.SetDefault("representation_margin", 0.2)
	v.SetDefault("include_set_aside", true)
	v.SetDefault("profile_top_features", 8)
	// Customer-only columns of the original customer extract
	v.SetDefault("target_extra_columns", []string{"CUSTOMER_GROUP", "ONLINE_PURCHASE", "PRODUCT_GROUP"})
	v.SetDefault("null_tokens", []string{"NaN", "nan", "NA"})
	v.SetDefault("s3_region", "")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_path_style", false)
	v.SetDefault("metrics_textfile", "")
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults; command flags are applied on top by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SEGLOOM")
	v.AutomaticEnv()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}
