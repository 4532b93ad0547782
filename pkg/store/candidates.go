package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/procurelens/core/pkg/contracts"
)

// UpsertRun persists one pipeline run: every candidate row plus its evidence
// row, in a single transaction. A conflict on candidate_id updates the scoring
// columns and run_id but keeps the original created_at, so reruns over an
// unchanged log converge instead of duplicating.
func (s *Store) UpsertRun(ctx context.Context, candidates []contracts.Candidate, evidences []contracts.Evidence) error {
	if len(candidates) != len(evidences) {
		return fmt.Errorf("store: %d candidates but %d evidence records", len(candidates), len(evidences))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for i := range candidates {
		c := &candidates[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO candidates (
				candidate_id, run_id, type, anchor_object_id, anchor_object_type,
				base_conf, final_conf, severity, priority_score, status,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (candidate_id) DO UPDATE SET
				run_id = $2,
				base_conf = $6,
				final_conf = $7,
				severity = $8,
				priority_score = $9,
				updated_at = $12`,
			c.CandidateID, c.RunID, c.Type, c.AnchorObjectID, c.AnchorObjectType,
			c.BaseConf, c.FinalConf, c.Severity, c.PriorityScore, orOpen(c.Status),
			now, now,
		); err != nil {
			return fmt.Errorf("store: upsert candidate %s: %w", c.CandidateID, err)
		}

		ev := &evidences[i]
		eventIDs, err := json.Marshal(emptySlice(ev.EvidenceEventIDs))
		if err != nil {
			return err
		}
		objectIDs, err := json.Marshal(emptySlice(ev.EvidenceObjectIDs))
		if err != nil {
			return err
		}
		timeline, err := json.Marshal(emptyTimeline(ev.Timeline))
		if err != nil {
			return err
		}
		features, err := json.Marshal(ev.Features)
		if err != nil {
			return err
		}
		subgraph, err := json.Marshal(ev.Subgraph)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO candidate_evidence (
				candidate_id, evidence_event_ids, evidence_object_ids,
				timeline, features, subgraph
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (candidate_id) DO UPDATE SET
				evidence_event_ids = $2,
				evidence_object_ids = $3,
				timeline = $4,
				features = $5,
				subgraph = $6`,
			ev.CandidateID, string(eventIDs), string(objectIDs),
			string(timeline), string(features), string(subgraph),
		); err != nil {
			return fmt.Errorf("store: upsert evidence %s: %w", ev.CandidateID, err)
		}
	}
	return tx.Commit()
}

// GetCandidate fetches one candidate row.
func (s *Store) GetCandidate(ctx context.Context, candidateID string) (contracts.Candidate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT candidate_id, run_id, type, anchor_object_id, anchor_object_type,
		       base_conf, final_conf, severity, priority_score, status,
		       created_at, updated_at
		FROM candidates WHERE candidate_id = $1`, candidateID)

	var c contracts.Candidate
	var runID sql.NullString
	err := row.Scan(
		&c.CandidateID, &runID, &c.Type, &c.AnchorObjectID, &c.AnchorObjectType,
		&c.BaseConf, &c.FinalConf, &c.Severity, &c.PriorityScore, &c.Status,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.Candidate{}, ErrNotFound
	}
	if err != nil {
		return contracts.Candidate{}, err
	}
	c.RunID = runID.String
	return c, nil
}

// GetEvidence fetches the evidence record of one candidate, decoding the
// feature map against the candidate's type.
func (s *Store) GetEvidence(ctx context.Context, candidateID string) (contracts.Evidence, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.type, ce.evidence_event_ids, ce.evidence_object_ids,
		       ce.timeline, ce.features, ce.subgraph
		FROM candidate_evidence ce
		JOIN candidates c ON c.candidate_id = ce.candidate_id
		WHERE ce.candidate_id = $1`, candidateID)

	var ctype string
	var eventIDs, objectIDs, timeline, features, subgraph sql.NullString
	err := row.Scan(&ctype, &eventIDs, &objectIDs, &timeline, &features, &subgraph)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.Evidence{}, ErrNotFound
	}
	if err != nil {
		return contracts.Evidence{}, err
	}

	ev := contracts.Evidence{CandidateID: candidateID}
	if err := unmarshalInto(eventIDs, &ev.EvidenceEventIDs); err != nil {
		return contracts.Evidence{}, err
	}
	if err := unmarshalInto(objectIDs, &ev.EvidenceObjectIDs); err != nil {
		return contracts.Evidence{}, err
	}
	if err := unmarshalInto(timeline, &ev.Timeline); err != nil {
		return contracts.Evidence{}, err
	}
	if err := unmarshalInto(subgraph, &ev.Subgraph); err != nil {
		return contracts.Evidence{}, err
	}
	if features.Valid {
		fs, err := contracts.DecodeFeatures(ctype, []byte(features.String))
		if err != nil {
			return contracts.Evidence{}, err
		}
		ev.Features = fs
	}
	return ev, nil
}

// CountByType reports stored candidate counts per type, for run summaries.
func (s *Store) CountByType(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM candidates GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := map[string]int{}
	for rows.Next() {
		var ctype string
		var n int
		if err := rows.Scan(&ctype, &n); err != nil {
			return nil, err
		}
		out[ctype] = n
	}
	return out, rows.Err()
}

// ScoredFeatures is one candidate missing a severity, joined with the stored
// feature map, as consumed by the backfill job.
type ScoredFeatures struct {
	CandidateID string
	Type        string
	FinalConf   float64
	Features    contracts.FeatureSet
}

// MissingSeverity lists candidates whose severity was never computed,
// optionally limited to one run.
func (s *Store) MissingSeverity(ctx context.Context, runID string) ([]ScoredFeatures, error) {
	query := `
		SELECT c.candidate_id, c.type, c.final_conf, ce.features
		FROM candidates c
		JOIN candidate_evidence ce ON ce.candidate_id = c.candidate_id
		WHERE c.severity IS NULL`
	args := []any{}
	if runID != "" {
		query += ` AND c.run_id = $1`
		args = append(args, runID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ScoredFeatures
	for rows.Next() {
		var sf ScoredFeatures
		var features sql.NullString
		if err := rows.Scan(&sf.CandidateID, &sf.Type, &sf.FinalConf, &features); err != nil {
			return nil, err
		}
		if features.Valid {
			fs, err := contracts.DecodeFeatures(sf.Type, []byte(features.String))
			if err != nil {
				return nil, err
			}
			sf.Features = fs
		}
		out = append(out, sf)
	}
	return out, rows.Err()
}

// UpdateSeverity writes a backfilled severity and priority score.
func (s *Store) UpdateSeverity(ctx context.Context, candidateID string, severity, priority *float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE candidates SET severity = $1, priority_score = $2, updated_at = $3
		WHERE candidate_id = $4`,
		severity, priority, time.Now().UTC(), candidateID)
	return err
}

func orOpen(status string) string {
	if status == "" {
		return "open"
	}
	return status
}

func emptySlice(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func emptyTimeline(v []contracts.TimelineEntry) []contracts.TimelineEntry {
	if v == nil {
		return []contracts.TimelineEntry{}
	}
	return v
}

func unmarshalInto(col sql.NullString, dst any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dst)
}
