package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/procurelens/core/pkg/contracts"
)

const llmResultColumns = `
	id, candidate_id, model, provider, schema_version, prompt_hash, input_hash,
	verdict, v_conf, explanation, possible_false_positive, next_questions,
	raw_json, prompt_tokens, completion_tokens, total_tokens, created_at`

// FindLLMResult looks up the cached result for one exact input combination.
// Returns nil when there is no cached row.
func (s *Store) FindLLMResult(ctx context.Context, candidateID, promptHash, inputHash, model string) (*contracts.LLMRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+llmResultColumns+`
		FROM llm_results
		WHERE candidate_id = $1 AND prompt_hash = $2 AND input_hash = $3 AND model = $4
		ORDER BY created_at DESC
		LIMIT 1`,
		candidateID, promptHash, inputHash, model)
	return scanLLMResult(row)
}

// LatestLLMResult returns the most recent result for a candidate under the
// given prompt hash; results produced by older prompt versions stay invisible.
func (s *Store) LatestLLMResult(ctx context.Context, candidateID, promptHash string) (*contracts.LLMRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+llmResultColumns+`
		FROM llm_results
		WHERE candidate_id = $1 AND prompt_hash = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		candidateID, promptHash)
	return scanLLMResult(row)
}

// InsertLLMResult appends one result row and fills in the generated id.
func (s *Store) InsertLLMResult(ctx context.Context, rec *contracts.LLMRecord) error {
	cautions, err := json.Marshal(rec.Cautions)
	if err != nil {
		return err
	}
	questions, err := json.Marshal(rec.NextQuestions)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(rec.Raw)
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return s.db.QueryRowContext(ctx, `
		INSERT INTO llm_results (
			candidate_id, model, provider, schema_version, prompt_hash, input_hash,
			verdict, v_conf, explanation, possible_false_positive, next_questions,
			raw_json, prompt_tokens, completion_tokens, total_tokens, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`,
		rec.CandidateID, rec.Model, rec.Provider, rec.SchemaVersion,
		rec.PromptHash, rec.InputHash, rec.Verdict, rec.VConf, rec.Explanation,
		string(cautions), string(questions), string(raw),
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.CreatedAt,
	).Scan(&rec.ID)
}

// CountLLMResultsSince counts provider calls recorded at or after the given
// instant, for the daily quota check.
func (s *Store) CountLLMResultsSince(ctx context.Context, provider string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM llm_results
		WHERE provider = $1 AND created_at >= $2`,
		provider, since).Scan(&n)
	return n, err
}

func scanLLMResult(row *sql.Row) (*contracts.LLMRecord, error) {
	var rec contracts.LLMRecord
	var model, provider, schemaVersion, promptHash, inputHash sql.NullString
	var cautions, questions, raw sql.NullString
	err := row.Scan(
		&rec.ID, &rec.CandidateID, &model, &provider, &schemaVersion,
		&promptHash, &inputHash, &rec.Verdict, &rec.VConf, &rec.Explanation,
		&cautions, &questions, &raw,
		&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Model = model.String
	rec.Provider = provider.String
	rec.SchemaVersion = schemaVersion.String
	rec.PromptHash = promptHash.String
	rec.InputHash = inputHash.String
	if err := unmarshalInto(cautions, &rec.Cautions); err != nil {
		return nil, err
	}
	if err := unmarshalInto(questions, &rec.NextQuestions); err != nil {
		return nil, err
	}
	if err := unmarshalInto(raw, &rec.Raw); err != nil {
		return nil, err
	}
	return &rec, nil
}
