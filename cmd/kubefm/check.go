package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/caosd-group/kubefm/internal/corpus"
	"github.com/caosd-group/kubefm/internal/extcheck"
	"github.com/caosd-group/kubefm/internal/service"
)

var checkSummary string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the corpus directly against the JSON schema definitions",
	Long: `Check bypasses the feature model and validates each document against
its schema definition. Comparing its summary with the validate command's
shows where the model and the schema disagree.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		scanner := corpus.New(os.DirFS(cfg.Corpus.Path)).
			WithInclude(cfg.Corpus.Include...).
			WithExclude(cfg.Corpus.Exclude...).
			WithLogger(log)
		if cfg.Corpus.CRDs {
			scanner = scanner.WithCRDs()
		}
		docs, _, err := scanner.Scan(ctx)
		if err != nil {
			return err
		}

		checker, err := extcheck.New(cfg.Schema.Path)
		if err != nil {
			return err
		}
		rows, err := checker.WithLogger(log).Run(ctx, docs)
		if err != nil {
			return err
		}

		if checkSummary != "" {
			f, err := os.Create(checkSummary)
			if err != nil {
				return err
			}
			if err := service.WriteSummaryCSV(f, rows); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
		return service.RenderSummary(os.Stdout, rows)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkSummary, "summary", "", "write summary rows as CSV to this file")
	rootCmd.AddCommand(checkCmd)
}
