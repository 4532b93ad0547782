package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/procurelens/core/pkg/contracts"
	"github.com/procurelens/core/pkg/scoring"
	"github.com/procurelens/core/pkg/store"
)

// BackfillResult counts what a severity backfill touched.
type BackfillResult struct {
	Examined int
	Updated  int
}

// Backfill computes severity and priority for stored candidates that predate
// the severity columns. Rows whose features yield neither value are left
// untouched. Pass an empty runID to cover every run.
func Backfill(ctx context.Context, st *store.Store, runID string, log *slog.Logger) (BackfillResult, error) {
	if log == nil {
		log = slog.Default()
	}
	pending, err := st.MissingSeverity(ctx, runID)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("pipeline: list candidates missing severity: %w", err)
	}

	res := BackfillResult{Examined: len(pending)}
	for _, sf := range pending {
		c := contracts.Candidate{
			CandidateID: sf.CandidateID,
			Type:        sf.Type,
			FinalConf:   sf.FinalConf,
			Features:    sf.Features,
		}
		severity := scoring.Severity(&c)
		priority := scoring.PriorityScore(sf.FinalConf, severity)
		if severity == nil && priority == nil {
			continue
		}
		if err := st.UpdateSeverity(ctx, sf.CandidateID, severity, priority); err != nil {
			return res, fmt.Errorf("pipeline: update severity for %s: %w", sf.CandidateID, err)
		}
		res.Updated++
	}
	log.Info("severity backfill finished",
		"run_id", runID, "examined", res.Examined, "updated", res.Updated)
	return res, nil
}
