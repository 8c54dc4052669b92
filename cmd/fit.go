package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/segloom-cli/internal/pipeline"
)

var (
	fitReference string
	fitArtifact  string
	fitInputs    inputFlags
	fitTuning    tuningFlags
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit every stage on the reference population and save the artifact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if fitReference == "" || fitArtifact == "" {
			return fmt.Errorf("--reference and --artifact are required")
		}
		cx, err := fitInputs.loadCodex()
		if err != nil {
			return err
		}
		opt, err := fitTuning.options(cmd, c)
		if err != nil {
			return err
		}
		loader, err := fitInputs.loader(c)
		if err != nil {
			return err
		}
		ref, err := loader.Load(cmd.Context(), fitReference)
		if err != nil {
			return err
		}
		progress("✓ Loaded %s (%d rows × %d columns)\n", ref.Name(), ref.NumRows(), ref.NumCols())

		p := pipeline.New(cx, opt, logger, nil)
		defer writeMetrics(p, c)
		art, err := p.Fit(cmd.Context(), ref)
		if err != nil {
			return err
		}
		if len(art.Plan.Dropped) > 0 {
			progress("⚠ Dropped %d sparse columns\n", len(art.Plan.Dropped))
		}
		progress("✓ Kept %d rows, set aside %d\n", art.Reference.Kept, art.Reference.SetAside)
		if art.SuggestedK > 0 {
			progress("✓ Elbow suggests k=%d\n", art.SuggestedK)
		}
		progress("✓ Fitted %d components and %d clusters\n", art.Transform.Components(), art.Model.K())
		if err := pipeline.SaveArtifact(fitArtifact, art); err != nil {
			return err
		}
		progress("✓ Saved artifact %s to %s\n", art.ID, fitArtifact)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fitCmd)
	fitCmd.Flags().StringVarP(&fitReference, "reference", "r", "", "reference (general population) dataset: path or s3://bucket/key")
	fitCmd.Flags().StringVarP(&fitArtifact, "artifact", "a", "", "path to write the fitted artifact (JSON)")
	fitInputs.register(fitCmd)
	fitTuning.register(fitCmd)
}
