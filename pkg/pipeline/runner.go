// Package pipeline orchestrates one mining run: snapshot load, detection,
// scoring, severity, evidence assembly, identity assignment, and persistence.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/procurelens/core/pkg/config"
	"github.com/procurelens/core/pkg/contracts"
	"github.com/procurelens/core/pkg/detect"
	"github.com/procurelens/core/pkg/evidence"
	"github.com/procurelens/core/pkg/identity"
	"github.com/procurelens/core/pkg/ocel"
	"github.com/procurelens/core/pkg/scoring"
	"github.com/procurelens/core/pkg/store"
)

const instrumentationName = "procurelens.core"

// Summary reports what one run produced.
type Summary struct {
	RunID          string
	Candidates     int
	CountsByType   map[string]int
	MaverickReason map[string]int
}

// Runner executes the mining pipeline.
type Runner struct {
	cfg    *config.Config
	store  *store.Store
	log    *slog.Logger
	tracer trace.Tracer

	candidatesFound metric.Int64Counter
}

func NewRunner(cfg *config.Config, st *store.Store, log *slog.Logger) (*Runner, error) {
	if log == nil {
		log = slog.Default()
	}
	meter := otel.Meter(instrumentationName)
	found, err := meter.Int64Counter("pipeline.candidates.found",
		metric.WithDescription("candidates emitted per detector type"))
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:             cfg,
		store:           st,
		log:             log,
		tracer:          otel.Tracer(instrumentationName),
		candidatesFound: found,
	}, nil
}

// Run mines one snapshot of the source log and upserts the results. The run
// is all-or-nothing: a persistence failure commits nothing.
func (r *Runner) Run(ctx context.Context, source *sql.DB) (Summary, error) {
	runID := uuid.NewString()
	ctx, span := r.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	r.log.Info("pipeline run starting", "run_id", runID)

	snap, err := ocel.Load(ctx, source)
	if err != nil {
		return Summary{}, fmt.Errorf("pipeline: load snapshot: %w", err)
	}
	r.log.Info("snapshot loaded",
		"run_id", runID,
		"events", len(snap.Events()),
		"objects", len(snap.Objects()),
		"links", len(snap.Links()),
	)

	candidates, err := r.Detect(ctx, snap)
	if err != nil {
		return Summary{}, err
	}
	for i := range candidates {
		candidates[i].RunID = runID
	}

	scoring.Score(candidates, r.cfg.Weights)
	scoring.Estimate(candidates)
	if err := identity.Assign(candidates); err != nil {
		return Summary{}, fmt.Errorf("pipeline: assign identities: %w", err)
	}

	assembler := evidence.NewAssembler(snap)
	evidences := make([]contracts.Evidence, len(candidates))
	for i := range candidates {
		evidences[i] = assembler.Assemble(&candidates[i])
	}

	if err := r.store.UpsertRun(ctx, candidates, evidences); err != nil {
		return Summary{}, fmt.Errorf("pipeline: persist run: %w", err)
	}

	summary := summarize(runID, candidates)
	r.log.Info("pipeline run finished",
		"run_id", runID,
		"candidates", summary.Candidates,
		"by_type", summary.CountsByType,
	)
	if len(summary.MaverickReason) > 0 {
		r.log.Info("maverick reason counts", "run_id", runID, "reasons", summary.MaverickReason)
	}
	return summary, nil
}

// Detect runs the detector suite without scoring or persistence. The detect
// subcommand uses it for dry runs against a source log.
func (r *Runner) Detect(ctx context.Context, snap *ocel.Snapshot) ([]contracts.Candidate, error) {
	var candidates []contracts.Candidate
	for _, d := range detect.Suite(r.cfg.ApprovalPercentile) {
		ctx, span := r.tracer.Start(ctx, "pipeline.detect",
			trace.WithAttributes(attribute.String("detector", d.Name())))
		found, err := d.Detect(ctx, snap)
		span.End()
		if err != nil {
			return nil, fmt.Errorf("pipeline: detector %s: %w", d.Name(), err)
		}
		r.candidatesFound.Add(ctx, int64(len(found)),
			metric.WithAttributes(attribute.String("detector", d.Name())))
		r.log.Info("detector finished", "detector", d.Name(), "candidates", len(found))
		candidates = append(candidates, found...)
	}
	return candidates, nil
}

func summarize(runID string, candidates []contracts.Candidate) Summary {
	s := Summary{
		RunID:          runID,
		Candidates:     len(candidates),
		CountsByType:   map[string]int{},
		MaverickReason: map[string]int{},
	}
	for i := range candidates {
		c := &candidates[i]
		s.CountsByType[c.Type]++
		if c.Type == contracts.TypeMaverickBuying && c.Features.Maverick != nil {
			s.MaverickReason[c.Features.Maverick.MaverickReason]++
		}
	}
	return s
}
