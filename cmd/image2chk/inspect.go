package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"image2chk/pkg/checkpoint"
	"image2chk/pkg/ui"
)

var showParameters bool

// inspectCmd prints a summary of a checkpoint file
var inspectCmd = &cobra.Command{
	Use:   "inspect <checkpoint>",
	Short: "Summarise a checkpoint file",
	Long: `Load a checkpoint (plain or gzip compressed), validate it and print its
grid, list sizes and trap statistics.`,
	Example: `  image2chk inspect sim.inp
  image2chk inspect sim.inp.gz --params`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVarP(&showParameters, "params", "p", false, "also list every parameter")
}

func runInspect(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(changedFlags(cmd)); err != nil {
		return err
	}

	chk, err := checkpoint.Load(args[0])
	if err != nil {
		return err
	}

	summary := chk.Summary()
	rows := make([]ui.Row, len(summary))
	for i, f := range summary {
		rows[i] = ui.Row{Label: f.Name, Value: f.Value}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.RenderTable(args[0], rows))

	if showParameters {
		params := make([]ui.Row, 0, chk.Parameters.Len())
		for _, k := range chk.Parameters.Keys() {
			v, _ := chk.Parameters.Get(k)
			params = append(params, ui.Row{Label: k, Value: v})
		}
		fmt.Fprintln(out, ui.RenderTable("parameters", params))
	}
	return nil
}
