package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caosd-group/kubefm/internal/compare"
	"github.com/caosd-group/kubefm/internal/model"
)

var (
	compareMarkdown string
	compareCSV      string
)

var compareCmd = &cobra.Command{
	Use:   "compare <old-model> <new-model>",
	Short: "Diff two model files and write a changelog",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		oldModel, err := model.ParseFile(args[0])
		if err != nil {
			return err
		}
		newModel, err := model.ParseFile(args[1])
		if err != nil {
			return err
		}

		diff := compare.Models(oldModel, newModel)
		if compareMarkdown != "" {
			f, err := os.Create(compareMarkdown)
			if err != nil {
				return err
			}
			if err := diff.WriteMarkdown(f, args[0], args[1]); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			log.Infof("changelog written to %s", compareMarkdown)
		}
		if compareCSV != "" {
			f, err := os.Create(compareCSV)
			if err != nil {
				return err
			}
			if err := diff.WriteCSV(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
		if err := diff.Render(os.Stdout); err != nil {
			return err
		}
		if diff.Empty() {
			fmt.Println("models are equivalent")
		}
		return nil
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareMarkdown, "markdown", "", "write a markdown changelog to this file")
	compareCmd.Flags().StringVar(&compareCSV, "csv", "", "write the changed items as CSV to this file")
	rootCmd.AddCommand(compareCmd)
}
