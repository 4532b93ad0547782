// Package llm verifies and explains stored candidates through a grounded LLM
// call: prompt rendering, content-hash caching, schema validation with one
// corrective retry, and evidence-grounding enforcement on the output.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/procurelens/core/pkg/canonical"
	"github.com/procurelens/core/pkg/config"
	"github.com/procurelens/core/pkg/contracts"
	"github.com/procurelens/core/pkg/store"
)

// Verifier runs the verify/explain state machine against one store and one
// provider.
type Verifier struct {
	store    *store.Store
	provider Provider
	cfg      config.LLM
	log      *slog.Logger

	// now is swapped out in tests exercising the daily quota window.
	now func() time.Time
}

func NewVerifier(st *store.Store, provider Provider, cfg config.LLM, log *slog.Logger) *Verifier {
	if log == nil {
		log = slog.Default()
	}
	return &Verifier{store: st, provider: provider, cfg: cfg, log: log, now: time.Now}
}

// Run executes one verification or explanation. Identical inputs resolve to
// the cached row without touching the provider.
func (v *Verifier) Run(ctx context.Context, candidateID, task string) (*contracts.LLMRecord, error) {
	if task != contracts.TaskVerify && task != contracts.TaskExplain {
		return nil, fmt.Errorf("llm: task must be %q or %q", contracts.TaskVerify, contracts.TaskExplain)
	}
	candidate, err := v.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	evidence, err := v.store.GetEvidence(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	prompt, err := renderPrompt(task, &candidate, &evidence)
	if err != nil {
		return nil, err
	}
	promptHash := PromptHashFor(task)
	evidenceHash, err := evidenceHashFor(candidateID, &evidence)
	if err != nil {
		return nil, err
	}
	inputHash, err := v.inputHashFor(task, evidenceHash)
	if err != nil {
		return nil, err
	}

	v.log.Info("llm request",
		"candidate_id", candidateID,
		"run_id", candidate.RunID,
		"task", task,
		"provider", v.provider.Name(),
		"model", v.cfg.Model,
		"prompt_version", PromptVersion,
	)

	cached, err := v.store.FindLLMResult(ctx, candidateID, promptHash, inputHash, v.cfg.Model)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	if v.provider.Name() != "mock" {
		if err := v.checkDailyLimit(ctx); err != nil {
			return nil, err
		}
	}

	req := Request{Task: task, Prompt: prompt, Candidate: &candidate, Evidence: &evidence}
	output, usage, err := v.invokeAndNormalize(ctx, req)
	if err != nil {
		return nil, err
	}
	if validationErr := validateOutput(task, output); validationErr != nil {
		// one corrective retry with an explicit JSON-only instruction
		req.Prompt = prompt + "\n\nReturn JSON only."
		output, usage, err = v.invokeAndNormalize(ctx, req)
		if err != nil {
			return nil, err
		}
		if validationErr = validateOutput(task, output); validationErr != nil {
			v.log.Error("llm schema invalid",
				"candidate_id", candidateID,
				"task", task,
				"provider", v.provider.Name(),
				"model", v.cfg.Model,
			)
			return nil, errSchemaInvalid(validationErr)
		}
	}

	rec := v.buildRecord(&candidate, task, output, usage, promptHash, inputHash)
	if err := v.store.InsertLLMResult(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Latest returns the newest stored result for the candidate under the current
// prompt version of the task, or nil when none exists. Results written under
// older prompt versions are invisible here.
func (v *Verifier) Latest(ctx context.Context, candidateID, task string) (*contracts.LLMRecord, error) {
	if task != contracts.TaskVerify && task != contracts.TaskExplain {
		return nil, fmt.Errorf("llm: task must be %q or %q", contracts.TaskVerify, contracts.TaskExplain)
	}
	return v.store.LatestLLMResult(ctx, candidateID, PromptHashFor(task))
}

// invokeAndNormalize runs one provider call plus the local recovery steps:
// shape coercion, evidence grounding, and the default follow-up question.
func (v *Verifier) invokeAndNormalize(ctx context.Context, req Request) (map[string]any, *Usage, error) {
	output, usage, err := v.provider.Invoke(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	output = coerceOutput(req.Task, output)
	output = enforceEvidenceUsed(req.Task, output, allowedEvidence(req.Evidence))
	if req.Task == contracts.TaskVerify {
		if len(listOrEmpty(output["next_questions"])) == 0 {
			output["next_questions"] = []any{defaultNextQuestion(req.Candidate.Type)}
		}
	}
	return output, usage, nil
}

func (v *Verifier) checkDailyLimit(ctx context.Context) error {
	limit := v.cfg.DailyLimit
	if limit <= 0 {
		limit = 20
	}
	loc, err := time.LoadLocation(v.cfg.DailyWindowTZ)
	if err != nil {
		return fmt.Errorf("llm: bad daily window timezone %q: %w", v.cfg.DailyWindowTZ, err)
	}
	now := v.now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).UTC()
	count, err := v.store.CountLLMResultsSince(ctx, v.provider.Name(), start)
	if err != nil {
		return err
	}
	if count >= limit {
		return errDailyLimit(limit)
	}
	return nil
}

func (v *Verifier) buildRecord(c *contracts.Candidate, task string, output map[string]any, usage *Usage, promptHash, inputHash string) *contracts.LLMRecord {
	rec := &contracts.LLMRecord{
		CandidateID:   c.CandidateID,
		Model:         v.cfg.Model,
		Provider:      v.provider.Name(),
		SchemaVersion: stringOr(output["schema_version"], ""),
		PromptHash:    promptHash,
		InputHash:     inputHash,
		Raw:           output,
		CreatedAt:     v.now().UTC(),
	}
	if task == contracts.TaskVerify {
		if verdict, ok := output["verdict"].(string); ok {
			rec.Verdict = &verdict
		}
		if conf, ok := asFloat(output["confidence"]); ok {
			rec.VConf = &conf
		}
		reasons := stringList(output["reasons"])
		explanation := strings.Join(reasons, " | ")
		rec.Explanation = &explanation
		rec.Cautions = stringList(output["cautions"])
		rec.NextQuestions = stringList(output["next_questions"])
	} else {
		if summary, ok := output["summary"].(string); ok {
			rec.Explanation = &summary
		}
	}
	if usage != nil {
		rec.PromptTokens = &usage.PromptTokens
		rec.CompletionTokens = &usage.CompletionTokens
		rec.TotalTokens = &usage.TotalTokens
	}
	return rec
}

// evidenceHashFor reduces the evidence to its identity-bearing parts: sorted
// id sets, the feature map, and a (event_id, ts, activity) timeline skeleton.
func evidenceHashFor(candidateID string, ev *contracts.Evidence) (string, error) {
	eventIDs := append([]string(nil), ev.EvidenceEventIDs...)
	sort.Strings(eventIDs)
	objectIDs := append([]string(nil), ev.EvidenceObjectIDs...)
	sort.Strings(objectIDs)
	timeline := make([]map[string]any, 0, len(ev.Timeline))
	for _, entry := range ev.Timeline {
		timeline = append(timeline, map[string]any{
			"event_id": entry.EventID,
			"ts":       entry.TS,
			"activity": entry.Activity,
		})
	}
	return canonical.Hash(map[string]any{
		"candidate_id": candidateID,
		"event_ids":    eventIDs,
		"object_ids":   objectIDs,
		"features":     ev.Features,
		"timeline":     timeline,
	})
}

func (v *Verifier) inputHashFor(task, evidenceHash string) (string, error) {
	return canonical.Hash(map[string]any{
		"task":           task,
		"prompt_version": PromptVersion,
		"evidence_hash":  evidenceHash,
		"model":          v.cfg.Model,
		"temperature":    v.cfg.Temperature,
		"max_tokens":     v.cfg.MaxTokens,
		"provider":       v.provider.Name(),
	})
}

// validateOutput checks the output against the task's JSON Schema. The output
// is round-tripped through encoding/json first so typed Go slices validate the
// same as decoded provider JSON.
func validateOutput(task string, output map[string]any) error {
	raw, err := json.Marshal(output)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	return outputSchemas[task].Validate(generic)
}

func defaultNextQuestion(candidateType string) string {
	switch candidateType {
	case contracts.TypeLengthyApprovalPR, contracts.TypeLengthyApprovalPO:
		return "Are there intermediate rework/changes on the same PR/PO that explain the delay?"
	case contracts.TypeDuplicatePayment:
		return "Do payment events share the same invoice reference/amount in the evidence?"
	default:
		return "Is CreatePurchaseRequisition missing across all linked objects, or only on the PR object?"
	}
}

func stringList(v any) []string {
	items := listOrEmpty(v)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		} else {
			out = append(out, fmt.Sprintf("%v", item))
		}
	}
	return out
}
