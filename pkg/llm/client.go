package llm

import (
	"context"

	"github.com/procurelens/core/pkg/contracts"
)

// Usage is the token accounting a provider reports, when it reports any.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request carries everything a provider may need for one invocation. HTTP
// providers consume Prompt; the deterministic mock derives its output from the
// candidate and evidence directly.
type Request struct {
	Task      string
	Prompt    string
	Candidate *contracts.Candidate
	Evidence  *contracts.Evidence
}

// Provider produces one raw output object per invocation. Implementations
// return *Error for classified failures.
type Provider interface {
	Name() string
	Invoke(ctx context.Context, req Request) (map[string]any, *Usage, error)
}
