package pipeline

import (
	"context"
	"database/sql"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/procurelens/core/pkg/config"
	"github.com/procurelens/core/pkg/contracts"
	"github.com/procurelens/core/pkg/store"
)

// openSourceLog builds an in-memory log with one duplicate payment and one
// maverick PO whose linked PR was never approval-completed.
func openSourceLog(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	stmts := []string{
		`CREATE TABLE object (ocel_id TEXT PRIMARY KEY, ocel_type TEXT)`,
		`CREATE TABLE object_object (ocel_source_id TEXT, ocel_target_id TEXT, ocel_qualifier TEXT)`,
		`CREATE TABLE event_object (ocel_event_id TEXT, ocel_object_id TEXT, ocel_qualifier TEXT)`,
		`CREATE TABLE v_events_unified (event_id TEXT, activity TEXT, ts TEXT, resource TEXT, lifecycle TEXT, raw TEXT)`,

		`INSERT INTO object VALUES
			('inv:1', 'invoice receipt'),
			('po:1', 'purchase_order'),
			('pr:1', 'purchase_requisition')`,
		`INSERT INTO object_object VALUES ('po:1', 'pr:1', NULL)`,
		`INSERT INTO v_events_unified VALUES
			('pay:1', 'ExecutePayment', '2022-01-10T00:00:00Z', 'bot', 'complete', NULL),
			('pay:2', 'ExecutePayment', '2022-01-12T00:00:00Z', 'bot', 'complete', NULL),
			('prc:1', 'CreatePurchaseRequisition', '2022-01-01T00:00:00Z', 'alice', 'complete', NULL),
			('poc:1', 'CreatePurchaseOrder', '2022-01-05T00:00:00Z', 'bob', 'complete', NULL)`,
		`INSERT INTO event_object VALUES
			('pay:1', 'inv:1', NULL),
			('pay:2', 'inv:1', NULL),
			('prc:1', 'pr:1', NULL),
			('poc:1', 'po:1', NULL)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

func openPipelineStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Init(context.Background()))
	return st
}

func newTestRunner(t *testing.T, st *store.Store) *Runner {
	t.Helper()
	r, err := NewRunner(config.Default(), st, nil)
	require.NoError(t, err)
	return r
}

func TestRunMinesAndPersists(t *testing.T) {
	source := openSourceLog(t)
	st := openPipelineStore(t)
	r := newTestRunner(t, st)
	ctx := context.Background()

	summary, err := r.Run(ctx, source)
	require.NoError(t, err)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.Candidates)
	assert.Equal(t, map[string]int{
		contracts.TypeDuplicatePayment: 1,
		contracts.TypeMaverickBuying:   1,
	}, summary.CountsByType)
	assert.Equal(t, map[string]int{contracts.ReasonMissingPRApproval: 1}, summary.MaverickReason)

	counts, err := st.CountByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, summary.CountsByType, counts)
}

func TestRunScoresAndStoresEvidence(t *testing.T) {
	source := openSourceLog(t)
	st := openPipelineStore(t)
	r := newTestRunner(t, st)
	ctx := context.Background()

	summary, err := r.Run(ctx, source)
	require.NoError(t, err)

	dupID := candidateIDByType(t, st, contracts.TypeDuplicatePayment)
	dup, err := st.GetCandidate(ctx, dupID)
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, dup.RunID)
	assert.Equal(t, "inv:1", dup.AnchorObjectID)
	assert.Greater(t, dup.BaseConf, 0.0)
	assert.Equal(t, dup.BaseConf, dup.FinalConf)
	require.NotNil(t, dup.Severity)
	assert.InDelta(t, 0.25, *dup.Severity, 1e-9, "two payments")
	require.NotNil(t, dup.PriorityScore)
	assert.InDelta(t, dup.FinalConf*0.25, *dup.PriorityScore, 1e-9)

	ev, err := st.GetEvidence(ctx, dupID)
	require.NoError(t, err)
	assert.Equal(t, []string{"pay:1", "pay:2"}, ev.EvidenceEventIDs)
	require.NotNil(t, ev.Features.DuplicatePayment)
	assert.Equal(t, 2, ev.Features.DuplicatePayment.PaymentCount)
	require.Len(t, ev.Timeline, 2)
	assert.Equal(t, "pay:1", ev.Timeline[0].EventID)

	mavID := candidateIDByType(t, st, contracts.TypeMaverickBuying)
	mav, err := st.GetEvidence(ctx, mavID)
	require.NoError(t, err)
	require.NotNil(t, mav.Features.Maverick)
	assert.Equal(t, contracts.ReasonMissingPRApproval, mav.Features.Maverick.MaverickReason)
	assert.Equal(t, []string{"po:1", "pr:1"}, mav.EvidenceObjectIDs)
}

func TestRerunConvergesOnSameCandidates(t *testing.T) {
	source := openSourceLog(t)
	st := openPipelineStore(t)
	r := newTestRunner(t, st)
	ctx := context.Background()

	first, err := r.Run(ctx, source)
	require.NoError(t, err)
	firstIDs := allCandidateIDs(t, st)
	firstCreated := createdAts(t, st)

	second, err := r.Run(ctx, source)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.CountsByType, second.CountsByType)

	assert.Equal(t, firstIDs, allCandidateIDs(t, st), "identical ids on an unchanged log")
	assert.Equal(t, firstCreated, createdAts(t, st), "rerun keeps created_at")

	var rows int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM candidate_evidence`).Scan(&rows))
	assert.Equal(t, 2, rows, "no duplicate evidence rows")
}

func TestBackfillFillsMissingSeverity(t *testing.T) {
	st := openPipelineStore(t)
	ctx := context.Background()

	c := contracts.Candidate{
		CandidateID:      "cand-old",
		RunID:            "run-old",
		Type:             contracts.TypeDuplicatePayment,
		AnchorObjectID:   "inv:9",
		AnchorObjectType: "invoice receipt",
		BaseConf:         0.8,
		FinalConf:        0.8,
		Status:           "open",
	}
	ev := contracts.Evidence{
		CandidateID: "cand-old",
		Features: contracts.FeatureSet{
			Type:             contracts.TypeDuplicatePayment,
			DuplicatePayment: &contracts.DuplicatePaymentFeatures{PaymentCount: 3},
		},
	}
	require.NoError(t, st.UpsertRun(ctx, []contracts.Candidate{c}, []contracts.Evidence{ev}))

	res, err := Backfill(ctx, st, "", nil)
	require.NoError(t, err)
	assert.Equal(t, BackfillResult{Examined: 1, Updated: 1}, res)

	got, err := st.GetCandidate(ctx, "cand-old")
	require.NoError(t, err)
	require.NotNil(t, got.Severity)
	assert.InDelta(t, 0.5, *got.Severity, 1e-9, "three payments")
	require.NotNil(t, got.PriorityScore)
	assert.InDelta(t, 0.4, *got.PriorityScore, 1e-9)

	res, err = Backfill(ctx, st, "", nil)
	require.NoError(t, err)
	assert.Equal(t, BackfillResult{}, res, "second pass finds nothing")
}

func TestBackfillScopedToRun(t *testing.T) {
	st := openPipelineStore(t)
	ctx := context.Background()

	mk := func(id, runID string) (contracts.Candidate, contracts.Evidence) {
		return contracts.Candidate{
				CandidateID: id, RunID: runID, Type: contracts.TypeDuplicatePayment,
				AnchorObjectID: "inv:" + id, AnchorObjectType: "invoice receipt",
				BaseConf: 0.5, FinalConf: 0.5, Status: "open",
			}, contracts.Evidence{
				CandidateID: id,
				Features: contracts.FeatureSet{
					Type:             contracts.TypeDuplicatePayment,
					DuplicatePayment: &contracts.DuplicatePaymentFeatures{PaymentCount: 2},
				},
			}
	}
	c1, e1 := mk("cand-a", "run-a")
	c2, e2 := mk("cand-b", "run-b")
	require.NoError(t, st.UpsertRun(ctx, []contracts.Candidate{c1, c2}, []contracts.Evidence{e1, e2}))

	res, err := Backfill(ctx, st, "run-a", nil)
	require.NoError(t, err)
	assert.Equal(t, BackfillResult{Examined: 1, Updated: 1}, res)

	other, err := st.GetCandidate(ctx, "cand-b")
	require.NoError(t, err)
	assert.Nil(t, other.Severity, "other run untouched")
}

func candidateIDByType(t *testing.T, st *store.Store, ctype string) string {
	t.Helper()
	var id string
	require.NoError(t, st.DB().QueryRow(
		`SELECT candidate_id FROM candidates WHERE type = $1`, ctype).Scan(&id))
	return id
}

func allCandidateIDs(t *testing.T, st *store.Store) []string {
	t.Helper()
	rows, err := st.DB().Query(`SELECT candidate_id FROM candidates`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		out = append(out, id)
	}
	require.NoError(t, rows.Err())
	sort.Strings(out)
	return out
}

func createdAts(t *testing.T, st *store.Store) map[string]string {
	t.Helper()
	rows, err := st.DB().Query(`SELECT candidate_id, created_at FROM candidates`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	out := map[string]string{}
	for rows.Next() {
		var id, created string
		require.NoError(t, rows.Scan(&id, &created))
		out[id] = created
	}
	require.NoError(t, rows.Err())
	return out
}
