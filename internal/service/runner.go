// Package service runs whole-corpus validation: documents are translated
// and validated in checkpointed batches so a run over hundreds of
// thousands of documents survives interruption and restarts where it
// stopped.
package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/caosd-group/kubefm/internal/corpus"
	"github.com/caosd-group/kubefm/internal/database"
	"github.com/caosd-group/kubefm/internal/logging"
	"github.com/caosd-group/kubefm/internal/metrics"
	"github.com/caosd-group/kubefm/internal/progress"
	"github.com/caosd-group/kubefm/internal/translate"
	"github.com/caosd-group/kubefm/internal/validate"
)

const (
	DefaultBatchSize = 300
	DefaultBudget    = 5 * time.Second
)

// Result is the per-document outcome. Failed is empty for documents that
// were translated and validated; otherwise it names the failure and
// Valid is meaningless.
type Result struct {
	DocumentID string
	Kind       string
	Bucket     string
	Valid      bool
	Violations []string
	Unmapped   []string
	Failed     string
	Elapsed    time.Duration
}

// RunReport is the outcome of one run over a corpus.
type RunReport struct {
	Results []Result
	Skipped int // documents in already-checkpointed batches
}

// Runner drives translation and validation over a document list. Workers
// share the translator and validator, which are read-only; results land
// in per-document slots so no ordering is lost to interleaving.
type Runner struct {
	docs       []corpus.Document
	translator *translate.Translator
	validator  *validate.Validator
	db         *database.Database
	runID      string
	batchSize  int
	workers    int
	budget     time.Duration
	log        *logging.Logger
	bar        *progress.Bar
}

func NewRunner(tr *translate.Translator, v *validate.Validator) *Runner {
	return &Runner{
		translator: tr,
		validator:  v,
		batchSize:  DefaultBatchSize,
		workers:    1,
		budget:     DefaultBudget,
		log:        logging.NewNopLogger(),
	}
}

func (r *Runner) WithDocuments(docs []corpus.Document) *Runner {
	r.docs = docs
	return r
}

// WithCheckpoints enables batch checkpointing under a run id. The run id
// should encode the model and corpus identity, so a resumed run never
// reuses checkpoints from different inputs.
func (r *Runner) WithCheckpoints(db *database.Database, runID string) *Runner {
	r.db = db
	r.runID = runID
	return r
}

func (r *Runner) WithBatchSize(n int) *Runner {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

func (r *Runner) WithWorkers(n int) *Runner {
	if n > 0 {
		r.workers = n
	}
	return r
}

// WithBudget bounds the time spent on a single document.
func (r *Runner) WithBudget(d time.Duration) *Runner {
	if d > 0 {
		r.budget = d
	}
	return r
}

func (r *Runner) WithLogger(log *logging.Logger) *Runner {
	if log != nil {
		r.log = log
	}
	return r
}

func (r *Runner) WithProgress(bar *progress.Bar) *Runner {
	r.bar = bar
	return r
}

// Run processes the documents batch by batch. Cancellation stops new
// batch submission; the report covers what completed. A checkpointed
// batch is skipped entirely, including its result rows.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{}

	for batchID, start := 0, 0; start < len(r.docs); batchID, start = batchID+1, start+r.batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		batch := r.docs[start:min(start+r.batchSize, len(r.docs))]

		if r.db != nil {
			done, err := r.db.Done(ctx, r.runID, batchID)
			if err != nil {
				return report, err
			}
			if done {
				report.Skipped += len(batch)
				r.bar.Add(len(batch))
				r.log.Debugf("batch %d already checkpointed, skipping %d documents", batchID, len(batch))
				continue
			}
		}

		results := make([]Result, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers)
		for i, doc := range batch {
			g.Go(func() error {
				results[i] = r.one(gctx, doc)
				r.bar.Add(1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}
		report.Results = append(report.Results, results...)

		if r.db != nil {
			if err := r.db.MarkDone(ctx, r.runID, batchID, len(batch)); err != nil {
				return report, err
			}
		}
		r.log.Debugf("batch %d done: %d documents", batchID, len(batch))
	}

	return report, nil
}

// one translates and validates a single document under the per-document
// budget.
func (r *Runner) one(ctx context.Context, doc corpus.Document) Result {
	start := time.Now()
	result := Result{
		DocumentID: doc.ID(),
		Kind:       doc.Kind,
		Bucket:     doc.SizeBucket(),
	}

	budgeted, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	sel, err := r.translator.Document(budgeted, doc.Bytes)
	if err != nil {
		result.Failed = failureReason(err)
		result.Elapsed = time.Since(start)
		metrics.DocumentFailed.WithLabelValues(result.Failed).Inc()
		r.log.Warnf("%s: %v", doc.ID(), err)
		return result
	}

	rep := r.validator.Validate(sel)
	result.Valid = rep.Valid
	result.Violations = rep.Violations
	result.Unmapped = sel.Unmapped
	result.Elapsed = time.Since(start)

	metrics.ObserveDocument(start, rep.Valid)
	if n := len(sel.Unmapped); n > 0 {
		metrics.UnmappedKeys.Add(float64(n))
	}
	return result
}

// failureReason maps a translation error to the stable identifier used in
// report rows.
func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "budget:exceeded"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, translate.ErrMissingKind):
		return "missing-kind"
	case errors.Is(err, translate.ErrUnknownKind):
		return "unknown-kind"
	case errors.Is(err, translate.ErrBadDocument):
		return "bad-document"
	}
	return "error"
}
