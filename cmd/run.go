package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/segloom-cli/internal/pipeline"
	"github.com/KaramelBytes/segloom-cli/internal/utils"
)

var (
	runReference string
	runTarget    string
	runOutput    string
	runJSON      string
	runArtifact  string
	runInputs    inputFlags
	runTuning    tuningFlags
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fit on the reference population and compare a target population",
	Long: `run executes every stage: sentinel recoding, column and row filtering,
encoding, imputation, scaling, PCA and k-means, all fitted on --reference only,
then applies the same fit to --target and compares cluster proportions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if runReference == "" || runTarget == "" {
			return fmt.Errorf("--reference and --target are required")
		}
		cx, err := runInputs.loadCodex()
		if err != nil {
			return err
		}
		opt, err := runTuning.options(cmd, c)
		if err != nil {
			return err
		}
		loader, err := runInputs.loader(c)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		ref, err := loader.Load(ctx, runReference)
		if err != nil {
			return err
		}
		progress("✓ Loaded %s (%d rows × %d columns)\n", ref.Name(), ref.NumRows(), ref.NumCols())
		target, err := loader.Load(ctx, runTarget)
		if err != nil {
			return err
		}
		progress("✓ Loaded %s (%d rows × %d columns)\n", target.Name(), target.NumRows(), target.NumCols())

		p := pipeline.New(cx, opt, logger, nil)
		defer writeMetrics(p, c)
		art, rep, err := p.Run(ctx, ref, target)
		if err != nil {
			return err
		}
		progress("✓ Fitted %d components and %d clusters (artifact %s)\n", art.Transform.Components(), art.Model.K(), art.ID)
		for _, w := range rep.Warnings {
			progress("⚠ %s\n", w)
		}
		if runArtifact != "" {
			if err := pipeline.SaveArtifact(runArtifact, art); err != nil {
				return err
			}
			progress("✓ Saved artifact to %s\n", runArtifact)
		}
		if runJSON != "" {
			if err := utils.WriteJSON(runJSON, rep); err != nil {
				return fmt.Errorf("write report json: %w", err)
			}
			progress("✓ Wrote report JSON to %s\n", runJSON)
		}
		return writeOutput(runOutput, rep.Markdown(), "report")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runReference, "reference", "r", "", "reference (general population) dataset: path or s3://bucket/key")
	runCmd.Flags().StringVarP(&runTarget, "target", "t", "", "target (customer) dataset: path or s3://bucket/key")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the Markdown report here instead of stdout")
	runCmd.Flags().StringVar(&runJSON, "json", "", "also write the report as JSON")
	runCmd.Flags().StringVar(&runArtifact, "artifact", "", "save the fitted state for later 'apply' runs")
	runInputs.register(runCmd)
	runTuning.register(runCmd)
}
