package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/caosd-group/kubefm/internal/config"
	"github.com/caosd-group/kubefm/internal/constraints"
	"github.com/caosd-group/kubefm/internal/mapping"
	"github.com/caosd-group/kubefm/internal/metrics"
	"github.com/caosd-group/kubefm/internal/model"
	"github.com/caosd-group/kubefm/internal/schema"
	"github.com/caosd-group/kubefm/internal/synth"
)

var generateWorkers int

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build the feature model and key mapping from schema definitions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fm, err := buildModel(cmd, cfg)
		if err != nil {
			return err
		}

		if cfg.Model.Path != "" {
			if err := model.SerializeToFile(fm, cfg.Model.Path); err != nil {
				return err
			}
			log.Infof("model written to %s (%d features, %d constraints)",
				cfg.Model.Path, fm.Len(), len(fm.Constraints))
		} else if err := model.Serialize(fm, os.Stdout); err != nil {
			return err
		}

		if cfg.Mapping.Path != "" {
			mp, err := mapping.NewDeriver(fm).
				WithInclude(cfg.Mapping.Include...).
				WithExclude(cfg.Mapping.Exclude...).
				WithLogger(log).
				Derive()
			if err != nil {
				return err
			}
			if err := mp.WriteFile(cfg.Mapping.Path); err != nil {
				return err
			}
			log.Infof("mapping written to %s (%d rows)", cfg.Mapping.Path, mp.Len())
		}
		return nil
	},
}

// buildModel runs the model pipeline: resolve, synthesize, derive,
// assemble.
func buildModel(cmd *cobra.Command, cfg *config.Root) (*model.FeatureModel, error) {
	start := time.Now()

	raw, err := schema.LoadFile(cfg.Schema.Path)
	if err != nil {
		return nil, err
	}
	graph := schema.NewGraph(raw, log)
	if err := graph.Resolve(cfg.Schema.Roots); err != nil {
		return nil, err
	}
	for _, w := range graph.Warnings() {
		metrics.SchemaWarnings.WithLabelValues(w.Kind.String()).Inc()
	}

	trees, metadata, err := synth.New(graph, log).
		WithWorkers(generateWorkers).
		SynthesizeAll(cmd.Context())
	if err != nil {
		return nil, err
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("no kinds expanded from %s", cfg.Schema.Path)
	}

	derived := constraints.New(log).Derive(trees)

	fm, err := model.Assemble("root", trees, derived, metadata)
	if err != nil {
		return nil, err
	}
	for _, inc := range fm.Inconsistencies {
		log.Warnf("model inconsistency: %s", inc)
	}

	metrics.ModelBuildDuration.Observe(time.Since(start).Seconds())
	return fm, nil
}

func init() {
	generateCmd.Flags().IntVar(&generateWorkers, "workers", 4, "kinds synthesized concurrently")
	rootCmd.AddCommand(generateCmd)
}
