package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/segloom-cli/internal/cluster"
	"github.com/KaramelBytes/segloom-cli/internal/pipeline"
	"github.com/KaramelBytes/segloom-cli/internal/utils"
)

var (
	elbowReference string
	elbowMinK      int
	elbowMaxK      int
	elbowJSON      string
	elbowInputs    inputFlags
	elbowTuning    tuningFlags
)

var elbowCmd = &cobra.Command{
	Use:   "elbow",
	Short: "Sweep the cluster count on the reference population and plot inertia",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if elbowReference == "" {
			return fmt.Errorf("--reference is required")
		}
		cx, err := elbowInputs.loadCodex()
		if err != nil {
			return err
		}
		opt, err := elbowTuning.options(cmd, c)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("min-k") {
			opt.ElbowMinK = elbowMinK
		}
		if cmd.Flags().Changed("max-k") {
			opt.ElbowMaxK = elbowMaxK
		}
		loader, err := elbowInputs.loader(c)
		if err != nil {
			return err
		}
		ref, err := loader.Load(cmd.Context(), elbowReference)
		if err != nil {
			return err
		}
		p := pipeline.New(cx, opt, logger, nil)
		defer writeMetrics(p, c)
		points, k, err := p.Elbow(cmd.Context(), ref)
		if err != nil {
			return err
		}
		progress("✓ Swept k=%d..%d\n", points[0].K, points[len(points)-1].K)
		if elbowJSON != "" {
			out := struct {
				Points     []cluster.ElbowPoint `json:"points"`
				SuggestedK int                  `json:"suggested_k"`
			}{points, k}
			if err := utils.WriteJSON(elbowJSON, out); err != nil {
				return fmt.Errorf("write elbow json: %w", err)
			}
		}
		fmt.Print(cluster.ElbowText(points, k))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(elbowCmd)
	elbowCmd.Flags().StringVarP(&elbowReference, "reference", "r", "", "reference (general population) dataset: path or s3://bucket/key")
	elbowCmd.Flags().IntVar(&elbowMinK, "min-k", 2, "smallest cluster count to try (overrides config)")
	elbowCmd.Flags().IntVar(&elbowMaxK, "max-k", 12, "largest cluster count to try (overrides config)")
	elbowCmd.Flags().StringVar(&elbowJSON, "json", "", "also write the sweep as JSON")
	elbowInputs.register(elbowCmd)
	elbowTuning.register(elbowCmd)
}
