package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/segloom-cli/internal/pipeline"
	"github.com/KaramelBytes/segloom-cli/internal/utils"
)

var (
	applyArtifact string
	applyTarget   string
	applyOutput   string
	applyJSON     string
	applyMargin   float64
	applyInputs   inputFlags
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a saved artifact to a target population without refitting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if applyArtifact == "" || applyTarget == "" {
			return fmt.Errorf("--artifact and --target are required")
		}
		art, err := pipeline.LoadArtifact(applyArtifact)
		if err != nil {
			return err
		}
		progress("✓ Loaded artifact %s (fitted on %s)\n", art.ID, art.Reference.Name)
		cx, err := applyInputs.loadCodex()
		if err != nil {
			return err
		}
		opt, err := pipeline.OptionsFromConfig(c)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("margin") {
			opt.Margin = applyMargin
		}
		loader, err := applyInputs.loader(c)
		if err != nil {
			return err
		}
		target, err := loader.Load(cmd.Context(), applyTarget)
		if err != nil {
			return err
		}
		progress("✓ Loaded %s (%d rows × %d columns)\n", target.Name(), target.NumRows(), target.NumCols())

		p := pipeline.New(cx, opt, logger, nil)
		defer writeMetrics(p, c)
		rep, err := p.Apply(cmd.Context(), art, target)
		if err != nil {
			return err
		}
		for _, w := range rep.Warnings {
			progress("⚠ %s\n", w)
		}
		if applyJSON != "" {
			if err := utils.WriteJSON(applyJSON, rep); err != nil {
				return fmt.Errorf("write report json: %w", err)
			}
			progress("✓ Wrote report JSON to %s\n", applyJSON)
		}
		return writeOutput(applyOutput, rep.Markdown(), "report")
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringVarP(&applyArtifact, "artifact", "a", "", "artifact written by 'fit' or 'run --artifact'")
	applyCmd.Flags().StringVarP(&applyTarget, "target", "t", "", "target (customer) dataset: path or s3://bucket/key")
	applyCmd.Flags().StringVarP(&applyOutput, "output", "o", "", "write the Markdown report here instead of stdout")
	applyCmd.Flags().StringVar(&applyJSON, "json", "", "also write the report as JSON")
	applyCmd.Flags().Float64Var(&applyMargin, "margin", 0, "ratio margin for over/under representation (overrides config)")
	applyInputs.register(applyCmd)
}
