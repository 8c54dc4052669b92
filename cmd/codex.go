package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var codexInputs inputFlags

var codexCmd = &cobra.Command{
	Use:   "codex [feature]",
	Short: "Show what is known about a feature: type, missing codes and code meanings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cx, err := codexInputs.loadCodex()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			names := cx.Names()
			fmt.Printf("%d features in %s\n", len(names), codexInputs.codexPath)
			for _, n := range names {
				a, _ := cx.Lookup(n)
				fmt.Printf("  %-24s %-12s %s\n", n, a.Kind, strings.Join(a.Sentinels, ","))
			}
			if docs := cx.Documented(); len(docs) > 0 {
				fmt.Printf("%d features documented in %s\n", len(docs), codexInputs.dictPath)
			}
			return nil
		}
		e, err := cx.Entry(args[0])
		if err != nil {
			return err
		}
		fmt.Print(e.Markdown())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(codexCmd)
	codexInputs.register(codexCmd)
}
