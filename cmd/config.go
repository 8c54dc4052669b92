package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfgpkg "github.com/KaramelBytes/segloom-cli/internal/config"
	"github.com/KaramelBytes/segloom-cli/internal/transform"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set segloom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		fmt.Print(string(b))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		next := *cfg
		if err := setKey(&next, key, val); err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(&next, cfgFile); err != nil {
			return err
		}
		cfg = &next
		fmt.Printf("✓ Saved %s = %s\n", key, val)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func setKey(c *cfgpkg.Global, key, val string) error {
	atoi := func(dst *int) error {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*dst = i
		return nil
	}
	atof := func(dst *float64) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for %s: %v", key, val)
		}
		*dst = f
		return nil
	}
	atob := func(dst *bool) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for %s: %v", key, val)
		}
		*dst = b
		return nil
	}
	list := func() []string {
		var out []string
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	switch key {
	case "column_missing_threshold":
		return atof(&c.ColumnMissingThreshold)
	case "row_missing_threshold":
		return atoi(&c.RowMissingThreshold)
	case "impute_strategy":
		st, err := transform.ParseStrategy(val)
		if err != nil {
			return err
		}
		c.ImputeStrategy = string(st)
	case "pca_components":
		return atoi(&c.PCAComponents)
	case "pca_variance_target":
		return atof(&c.PCAVarianceTarget)
	case "mixed_as_numeric":
		return atob(&c.MixedAsNumeric)
	case "clusters":
		return atoi(&c.Clusters)
	case "elbow_min_k":
		return atoi(&c.ElbowMinK)
	case "elbow_max_k":
		return atoi(&c.ElbowMaxK)
	case "seed":
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int for seed: %v", val)
		}
		c.Seed = i
	case "kmeans_max_iter":
		return atoi(&c.KMeansMaxIter)
	case "kmeans_restarts":
		return atoi(&c.KMeansRestarts)
	case "kmeans_tolerance":
		return atof(&c.KMeansTolerance)
	case "representation_margin":
		return atof(&c.RepresentationMargin)
	case "include_set_aside":
		return atob(&c.IncludeSetAside)
	case "profile_top_features":
		return atoi(&c.ProfileTopFeatures)
	case "target_extra_columns":
		c.TargetExtraColumns = list()
	case "null_tokens":
		c.NullTokens = list()
	case "s3_region":
		c.S3Region = val
	case "s3_endpoint":
		c.S3Endpoint = val
	case "s3_path_style":
		return atob(&c.S3PathStyle)
	case "metrics_textfile":
		c.MetricsTextfile = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}
