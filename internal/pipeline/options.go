package pipeline

import (
	"github.com/KaramelBytes/segloom-cli/internal/clean"
	"github.com/KaramelBytes/segloom-cli/internal/cluster"
	"github.com/KaramelBytes/segloom-cli/internal/config"
	"github.com/KaramelBytes/segloom-cli/internal/transform"
)

// Options are the explicit parameters of one pipeline run.
type Options struct {
	Thresholds clean.Thresholds

	Impute         transform.Strategy
	Components     int
	VarianceTarget float64
	MixedAsNumeric bool

	// Clusters fixes k; zero takes the elbow suggestion over [ElbowMinK, ElbowMaxK].
	Clusters  int
	ElbowMinK int
	ElbowMaxK int
	KMeans    cluster.KMeans

	Margin          float64
	IncludeSetAside bool
	ProfileTop      int

	// TargetExtraColumns are dropped from the target before any stage.
	TargetExtraColumns []string
}

// OptionsFromConfig maps the loaded configuration onto pipeline options.
func OptionsFromConfig(c *config.Global) (Options, error) {
	st, err := transform.ParseStrategy(c.ImputeStrategy)
	if err != nil {
		return Options{}, err
	}
	opt := Options{
		Thresholds: clean.Thresholds{
			MaxColumnMissing: c.ColumnMissingThreshold,
			MaxRowMissing:    c.RowMissingThreshold,
		},
		Impute:         st,
		Components:     c.PCAComponents,
		VarianceTarget: c.PCAVarianceTarget,
		MixedAsNumeric: c.MixedAsNumeric,
		Clusters:       c.Clusters,
		ElbowMinK:      c.ElbowMinK,
		ElbowMaxK:      c.ElbowMaxK,
		KMeans: cluster.KMeans{
			Seed:      uint64(c.Seed),
			MaxIter:   c.KMeansMaxIter,
			Restarts:  c.KMeansRestarts,
			Tolerance: c.KMeansTolerance,
		},
		Margin:             c.RepresentationMargin,
		IncludeSetAside:    c.IncludeSetAside,
		ProfileTop:         c.ProfileTopFeatures,
		TargetExtraColumns: append([]string(nil), c.TargetExtraColumns...),
	}
	return opt, opt.Thresholds.Validate()
}
