package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/procurelens/core/pkg/config"
)

// maxRetries is the retry budget after the initial attempt, spent only on
// timeouts, transport failures, HTTP 429 and HTTP 5xx.
const maxRetries = 2

// OpenAI is the chat-completions provider.
type OpenAI struct {
	cfg     config.LLM
	client  *http.Client
	limiter *rate.Limiter

	// newBackOff is swapped out in tests to avoid real sleeps.
	newBackOff func() backoff.BackOff
}

func NewOpenAI(cfg config.LLM) *OpenAI {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &OpenAI{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.RandomizationFactor = 0
			b.Multiplier = 2
			return b
		},
	}
}

func (o *OpenAI) Name() string { return "openai" }

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

type invokeResult struct {
	output map[string]any
	usage  *Usage
}

// Invoke issues one chat-completion call, retrying transient failures. A 4xx
// other than 429 and an unparsable response body fail immediately.
func (o *OpenAI) Invoke(ctx context.Context, req Request) (map[string]any, *Usage, error) {
	if o.cfg.APIKey == "" {
		return nil, nil, errors.New("llm: OPENAI_API_KEY not set; set it or use provider \"mock\"")
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	body, err := json.Marshal(chatRequest{
		Model:       o.cfg.Model,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, nil, err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(o.newBackOff(), maxRetries), ctx)
	res, err := backoff.RetryWithData(func() (invokeResult, error) {
		return o.attempt(ctx, body)
	}, policy)
	if err != nil {
		return nil, nil, err
	}
	return res.output, res.usage, nil
}

func (o *OpenAI) attempt(ctx context.Context, body []byte) (invokeResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return invokeResult{}, backoff.Permanent(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return invokeResult{}, errTimeout(err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return invokeResult{}, errTimeout(err)
		}
		return invokeResult{}, errRequestFailed(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return invokeResult{}, errRateLimited()
	case resp.StatusCode >= 500:
		return invokeResult{}, errUpstream(resp.StatusCode)
	case resp.StatusCode >= 400:
		return invokeResult{}, backoff.Permanent(errBadRequest(resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return invokeResult{}, errRequestFailed(err)
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return invokeResult{}, backoff.Permanent(errBadResponse(err))
	}
	if len(parsed.Choices) == 0 {
		return invokeResult{}, backoff.Permanent(errBadResponse(fmt.Errorf("no choices in response")))
	}
	output, err := extractJSON(parsed.Choices[0].Message.Content)
	if err != nil {
		return invokeResult{}, backoff.Permanent(errBadResponse(err))
	}
	return invokeResult{output: output, usage: parsed.Usage}, nil
}

// extractJSON parses the model's reply, tolerating surrounding prose by
// falling back to the outermost {...} span.
func extractJSON(text string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in response content")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, err
	}
	return out, nil
}
