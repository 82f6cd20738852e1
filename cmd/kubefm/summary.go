package main

import (
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/caosd-group/kubefm/internal/service"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <csv>...",
	Short: "Merge summary CSVs from multiple sources into one table",
	Long: `Summary merges the per-document rows written by the validate and
check commands, plus any external tool emitting the same columns, and
renders them as one table sorted by filename. This is how the model
pipeline is compared against other validators over the same corpus.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var rows []service.SummaryRow
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			parsed, err := service.ReadSummaryCSV(f)
			f.Close()
			if err != nil {
				return err
			}
			rows = append(rows, parsed...)
		}

		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Filename != rows[j].Filename {
				return rows[i].Filename < rows[j].Filename
			}
			return rows[i].Source < rows[j].Source
		})
		return service.RenderSummary(os.Stdout, rows)
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}
