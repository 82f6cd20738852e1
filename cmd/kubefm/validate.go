package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/caosd-group/kubefm/internal/config"
	"github.com/caosd-group/kubefm/internal/corpus"
	"github.com/caosd-group/kubefm/internal/database"
	"github.com/caosd-group/kubefm/internal/mapping"
	"github.com/caosd-group/kubefm/internal/model"
	"github.com/caosd-group/kubefm/internal/progress"
	"github.com/caosd-group/kubefm/internal/service"
	"github.com/caosd-group/kubefm/internal/translate"
	"github.com/caosd-group/kubefm/internal/validate"
)

var validateReset bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a corpus of configuration documents against the model",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fm, mp, err := loadModelAndMapping(cfg)
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
		docs, stats, err := scanner.Scan(ctx)
		if err != nil {
			return err
		}
		log.Infof("corpus: %d documents in %d files (%d templated, %d without kind, %d crds skipped)",
			stats.Documents, stats.Files, stats.Templated, stats.MissingKind, stats.CRDs)

		runner := service.NewRunner(translate.New(fm, mp).WithLogger(log), validate.New(fm).WithLogger(log)).
			WithDocuments(docs).
			WithBatchSize(cfg.Validate.BatchSize).
			WithWorkers(cfg.Validate.Workers).
			WithBudget(time.Duration(cfg.Validate.Budget)).
			WithLogger(log)

		if cfg.Validate.Checkpoint != "" {
			db := database.New().WithLogger(log)
			if err := db.Open(ctx, cfg.Validate.Checkpoint); err != nil {
				return err
			}
			defer db.Close()
			runID := cfg.Validate.RunID
			if runID == "" {
				runID = fmt.Sprintf("%s@%s", cfg.Model.Path, cfg.Corpus.Path)
			}
			if validateReset {
				if err := db.Reset(ctx, runID); err != nil {
					return err
				}
			}
			runner = runner.WithCheckpoints(db, runID)
		}

		bar := progress.New(len(docs), "validating", os.Stderr)
		report, err := runner.WithProgress(bar).Run(ctx)
		bar.Finish()
		if err != nil {
			return err
		}
		if report.Skipped > 0 {
			log.Infof("resumed: %d documents skipped via checkpoints", report.Skipped)
		}

		if cfg.Validate.Report != "" {
			f, err := os.Create(cfg.Validate.Report)
			if err != nil {
				return err
			}
			if err := service.WriteCSV(f, report.Results); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			log.Infof("report written to %s", cfg.Validate.Report)
		}

		rows := service.SummaryRows("model", report.Results)
		if cfg.Validate.Summary != "" {
			f, err := os.Create(cfg.Validate.Summary)
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

		fmt.Println(service.Totalize(report.Results))
		return nil
	},
}

func loadModelAndMapping(cfg *config.Root) (*model.FeatureModel, *mapping.Mapping, error) {
	fm, err := model.ParseFile(cfg.Model.Path)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Mapping.Path != "" {
		mp, err := mapping.ParseFile(cfg.Mapping.Path)
		if err != nil {
			return nil, nil, err
		}
		return fm, mp, nil
	}
	mp, err := mapping.NewDeriver(fm).
		WithInclude(cfg.Mapping.Include...).
		WithExclude(cfg.Mapping.Exclude...).
		WithLogger(log).
		Derive()
	if err != nil {
		return nil, nil, err
	}
	return fm, mp, nil
}

func init() {
	validateCmd.Flags().BoolVar(&validateReset, "reset", false, "drop checkpoints and revalidate from scratch")
	rootCmd.AddCommand(validateCmd)
}
