package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/procurelens/core/pkg/contracts"
)

// Mock is the deterministic offline provider: output is derived entirely from
// the candidate and its evidence, so repeated calls are byte-stable and tests
// never touch the network.
type Mock struct{}

func (Mock) Name() string { return "mock" }

func (Mock) Invoke(_ context.Context, req Request) (map[string]any, *Usage, error) {
	features, err := req.Evidence.Features.Flat()
	if err != nil {
		return nil, nil, err
	}
	if req.Task == contracts.TaskVerify {
		return mockVerify(req.Candidate, req.Evidence, features), nil, nil
	}
	return mockExplain(req.Candidate, req.Evidence, features), nil, nil
}

func mockVerify(c *contracts.Candidate, ev *contracts.Evidence, features map[string]any) map[string]any {
	used := mockEvidenceUsed(ev)
	verdict := "inconclusive"
	if len(used) > 0 {
		verdict = "confirm"
	}
	confidence := 0.4
	switch {
	case len(used) == 1:
		confidence = 0.7
	case len(used) >= 2:
		confidence = 0.8
	}
	reason := mockReason(features)

	reasons := []string{fmt.Sprintf("Detector type is %s.", c.Type)}
	if reason != "" {
		reasons = append(reasons, fmt.Sprintf("Reason provided: %s.", reason))
	}
	if len(used) > 0 {
		reasons = append(reasons, fmt.Sprintf("Evidence events used: %s.", strings.Join(used, ", ")))
	} else {
		reasons = append(reasons, "No evidence events available in evidence_event_ids or timeline.")
	}
	if len(reasons) > 3 {
		reasons = reasons[:3]
	}

	cautions := []string{}
	if len(used) == 0 {
		cautions = append(cautions, "evidence_used_missing_or_out_of_scope")
	}
	return map[string]any{
		"schema_version": VerifySchemaVersion,
		"verdict":        verdict,
		"confidence":     confidence,
		"reasons":        reasons,
		"evidence_used":  used,
		"cautions":       cautions,
		"priority_hint":  mockPriorityHint(c),
		"next_questions": []string{"Is there additional evidence in the event log that clarifies this case?"},
	}
}

func mockExplain(c *contracts.Candidate, ev *contracts.Evidence, features map[string]any) map[string]any {
	used := mockEvidenceUsed(ev)
	reason := mockReason(features)

	summary := fmt.Sprintf("%s case based on provided evidence.", c.Type)
	if reason != "" {
		summary += fmt.Sprintf(" Reason: %s.", reason)
	}
	shortSummary := summary
	if len(shortSummary) > 140 {
		shortSummary = shortSummary[:137] + "..."
	}

	lead, leadOK := asFloat(features["lead_time_hours"])
	threshold, thresholdOK := asFloat(features["threshold_hours"])
	switch {
	case (c.Type == contracts.TypeLengthyApprovalPR || c.Type == contracts.TypeLengthyApprovalPO) &&
		leadOK && thresholdOK && threshold != 0:
		summary = fmt.Sprintf("Approval lead time %.1fh exceeds threshold %.1fh by %+.1fh (%.2fx).",
			lead, threshold, lead-threshold, lead/threshold)
		shortSummary = summary
	case c.Type == contracts.TypeDuplicatePayment:
		if count, ok := asFloat(features["payment_count"]); ok {
			summary = fmt.Sprintf("Invoice paid %d times for a single invoice receipt.", int(count))
			shortSummary = summary
		}
	}
	if c.Type == contracts.TypeMaverickBuying && reason == contracts.ReasonMissingPRCreate {
		shortSummary = "RFQ observed but PR create not observed; PR→Quotation→PO path observed."
	}

	bullets := mockBullets(c, ev, used, features, lead, threshold, leadOK && thresholdOK && threshold != 0)
	caveats := []string{}
	if len(used) == 0 {
		caveats = append(caveats, "evidence_used_missing_or_out_of_scope")
	}
	return map[string]any{
		"schema_version": ExplainSchemaVersion,
		"summary":        summary,
		"short_summary":  shortSummary,
		"bullets":        bullets,
		"evidence_used":  used,
		"caveats":        caveats,
	}
}

// mockBullets emits up to five activity observations: the cited events first,
// then the remaining timeline, filtered to the activities plausible for the
// candidate type.
func mockBullets(c *contracts.Candidate, ev *contracts.Evidence, used []string, features map[string]any, lead, threshold float64, ratioKnown bool) []any {
	activityByEvent := map[string]string{}
	for _, entry := range ev.Timeline {
		if entry.EventID != "" && entry.Activity != "" {
			activityByEvent[entry.EventID] = entry.Activity
		}
	}
	allowed := mockAllowedActivities(c.Type, mockReason(features))

	var bullets []any
	seen := map[string]bool{}
	appendActivity := func(activity string) {
		if activity == "" || seen[activity] {
			return
		}
		if len(allowed) > 0 && !allowed[activity] {
			return
		}
		bullets = append(bullets, fmt.Sprintf("Observed event: %s.", activity))
		seen[activity] = true
	}
	for _, eventID := range used {
		appendActivity(activityByEvent[eventID])
		if len(bullets) >= 5 {
			break
		}
	}
	if len(bullets) < 5 {
		for _, entry := range ev.Timeline {
			appendActivity(entry.Activity)
			if len(bullets) >= 5 {
				break
			}
		}
	}
	if (c.Type == contracts.TypeLengthyApprovalPR || c.Type == contracts.TypeLengthyApprovalPO) &&
		len(bullets) < 5 && ratioKnown {
		bullets = append(bullets, fmt.Sprintf("Lead time %.1fh vs threshold %.1fh (%.2fx).",
			lead, threshold, lead/threshold))
	}
	if len(bullets) == 0 && len(used) > 0 {
		for _, eventID := range used {
			bullets = append(bullets, fmt.Sprintf("Evidence event referenced: %s.", eventID))
		}
	}
	if len(bullets) == 0 {
		bullets = append(bullets, "No timeline events available to summarize.")
	}
	return bullets
}

// mockEvidenceUsed cites at most three events: the detector's evidence when it
// has any, otherwise the timeline.
func mockEvidenceUsed(ev *contracts.Evidence) []string {
	ids := ev.EvidenceEventIDs
	if len(ids) == 0 {
		ids = timelineEventIDs(ev)
	}
	if len(ids) > 3 {
		ids = ids[:3]
	}
	return append([]string(nil), ids...)
}

func timelineEventIDs(ev *contracts.Evidence) []string {
	var out []string
	seen := map[string]bool{}
	for _, entry := range ev.Timeline {
		if entry.EventID != "" && !seen[entry.EventID] {
			seen[entry.EventID] = true
			out = append(out, entry.EventID)
		}
	}
	return out
}

func mockReason(features map[string]any) string {
	for _, key := range []string{"maverick_reason", "duplicate_reason", "lengthy_reason"} {
		if v, ok := features[key].(string); ok && v != "" {
			return v
		}
	}
	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasSuffix(k, "_reason") {
			if v, ok := features[k].(string); ok && v != "" {
				return v
			}
		}
	}
	return ""
}

func mockPriorityHint(c *contracts.Candidate) string {
	score := c.BaseConf
	if score == 0 {
		score = c.FinalConf
	}
	switch {
	case score >= 0.9:
		return "high"
	case score >= 0.7:
		return "medium"
	default:
		return "low"
	}
}

func mockAllowedActivities(candidateType, reason string) map[string]bool {
	switch {
	case candidateType == contracts.TypeMaverickBuying && reason == contracts.ReasonMissingPRCreate:
		return map[string]bool{
			"CreateRequestforQuotation": true,
			"CreatePurchaseOrder":       true,
		}
	case candidateType == contracts.TypeDuplicatePayment:
		return map[string]bool{
			"CreateInvoiceReceipt": true,
			"ExecutePayment":       true,
			"PerformTwoWayMatch":   true,
			"PerformThreeWayMatch": true,
		}
	case candidateType == contracts.TypeLengthyApprovalPR || candidateType == contracts.TypeLengthyApprovalPO:
		return map[string]bool{
			"CreatePurchaseRequisition":           true,
			"CreatePurchaseOrder":                 true,
			"ApprovePurchaseRequisition":          true,
			"DelegatePurchaseRequisitionApproval": true,
			"ApprovePurchaseOrder":                true,
		}
	default:
		return nil
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
