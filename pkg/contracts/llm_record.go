package contracts

import "time"

// LLM tasks.
const (
	TaskVerify  = "verify"
	TaskExplain = "explain"
)

// LLMRecord is one persisted verification or explanation result. The cache key
// is (candidate_id, prompt_hash, input_hash, model); identical inputs resolve
// to the same row without re-invoking the provider.
type LLMRecord struct {
	ID            int64          `json:"id"`
	CandidateID   string         `json:"candidate_id"`
	Model         string         `json:"model"`
	Provider      string         `json:"provider"`
	SchemaVersion string         `json:"schema_version"`
	PromptHash    string         `json:"prompt_hash"`
	InputHash     string         `json:"input_hash"`
	Verdict       *string        `json:"verdict"`
	VConf         *float64       `json:"v_conf"`
	Explanation   *string        `json:"explanation"`
	Cautions      []string       `json:"possible_false_positive"`
	NextQuestions []string       `json:"next_questions"`
	Raw           map[string]any `json:"raw_json"`
	PromptTokens     *int        `json:"prompt_tokens,omitempty"`
	CompletionTokens *int        `json:"completion_tokens,omitempty"`
	TotalTokens      *int        `json:"total_tokens,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
