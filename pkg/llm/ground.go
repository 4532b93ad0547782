package llm

import "github.com/procurelens/core/pkg/contracts"

// groundingNote is appended to the task's caveat list whenever a result cites
// nothing or cites evidence outside the allowed set.
const groundingNote = "evidence_used_missing_or_out_of_scope"

// enforceEvidenceUsed downgrades an output in place when its evidence_used
// list is empty or reaches outside the allowed event ids. This is the defined
// contract for unverifiable claims, not a failure path: verify verdicts fall
// to inconclusive, the citation list is cleared, and the grounding note is
// appended.
func enforceEvidenceUsed(task string, output map[string]any, allowedEventIDs []string) map[string]any {
	allowed := make(map[string]bool, len(allowedEventIDs))
	for _, id := range allowedEventIDs {
		allowed[id] = true
	}
	used := listOrEmpty(output["evidence_used"])
	outOfScope := false
	for _, item := range used {
		id, ok := item.(string)
		if !ok || !allowed[id] {
			outOfScope = true
			break
		}
	}
	if len(used) > 0 && !outOfScope {
		return output
	}

	if task == contracts.TaskVerify {
		output["verdict"] = "inconclusive"
	}
	key := "caveats"
	if task == contracts.TaskVerify {
		key = "cautions"
	}
	notes := coerceStringList(output[key])
	notes = append(notes, groundingNote)
	output[key] = notes
	output["evidence_used"] = []any{}
	return output
}

// allowedEvidence resolves the grounding set: the detector's evidence event
// ids, falling back to the timeline when the detector recorded none.
func allowedEvidence(ev *contracts.Evidence) []string {
	if len(ev.EvidenceEventIDs) > 0 {
		return ev.EvidenceEventIDs
	}
	return timelineEventIDs(ev)
}
