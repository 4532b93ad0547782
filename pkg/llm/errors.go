package llm

import "fmt"

// Error codes for the verification path. Status carries the HTTP-style hint
// the serving layer surfaces.
const (
	CodeTimeout           = "llm_timeout"
	CodeRequestFailed     = "llm_request_failed"
	CodeRateLimited       = "llm_rate_limited"
	CodeUpstreamError     = "llm_upstream_error"
	CodeBadRequest        = "llm_bad_request"
	CodeBadResponse       = "llm_bad_response"
	CodeSchemaInvalid     = "llm_schema_invalid"
	CodeDailyLimitReached = "llm_daily_limit_reached"
)

// Error is a classified LLM failure.
type Error struct {
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code string, status int, message string, cause error) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: cause}
}

func errTimeout(cause error) *Error {
	return newError(CodeTimeout, 504, "LLM request timed out", cause)
}

func errRequestFailed(cause error) *Error {
	return newError(CodeRequestFailed, 502, "LLM request failed", cause)
}

func errRateLimited() *Error {
	return newError(CodeRateLimited, 502, "LLM upstream rate limited", nil)
}

func errUpstream(status int) *Error {
	return newError(CodeUpstreamError, 502, fmt.Sprintf("LLM upstream error (HTTP %d)", status), nil)
}

func errBadRequest(status int) *Error {
	return newError(CodeBadRequest, 502, fmt.Sprintf("LLM request rejected (HTTP %d)", status), nil)
}

func errBadResponse(cause error) *Error {
	return newError(CodeBadResponse, 502, "LLM response parse failed", cause)
}

func errSchemaInvalid(cause error) *Error {
	return newError(CodeSchemaInvalid, 422, "LLM response schema invalid", cause)
}

func errDailyLimit(limit int) *Error {
	return newError(CodeDailyLimitReached, 429, fmt.Sprintf("LLM daily limit of %d reached", limit), nil)
}
