package llm

import (
	"fmt"

	"github.com/procurelens/core/pkg/contracts"
)

// coerceOutput maps heterogeneous provider output shapes onto the current
// schema. Older providers emit the flat result-row fields (verdict/v_conf/
// explanation for verify, one_liner/why_anomalous for explain); those adapters
// run only when the current shape's marker field is absent.
func coerceOutput(task string, output map[string]any) map[string]any {
	if task == contracts.TaskVerify {
		return coerceVerify(output)
	}
	return coerceExplain(output)
}

func coerceVerify(output map[string]any) map[string]any {
	var payload map[string]any
	if _, ok := output["confidence"]; ok {
		payload = cloneMap(output)
	} else {
		payload = map[string]any{
			"schema_version": VerifySchemaVersion,
			"verdict":        stringOr(output["verdict"], "uncertain"),
			"confidence":     floatOr(output["v_conf"], 0.5),
			"reasons":        []any{stringOr(output["explanation"], "No explanation provided.")},
			"evidence_used":  listOrEmpty(output["evidence_used"]),
			"cautions":       listOrEmpty(output["possible_false_positive"]),
		}
	}
	if _, ok := payload["schema_version"]; !ok {
		payload["schema_version"] = VerifySchemaVersion
	}
	payload["reasons"] = coerceStringList(payload["reasons"])
	payload["evidence_used"] = listOrEmpty(payload["evidence_used"])
	payload["cautions"] = coerceStringList(payload["cautions"])
	payload["next_questions"] = coerceStringList(payload["next_questions"])
	if hint, ok := payload["priority_hint"]; ok && hint != nil {
		if s, ok := hint.(string); !ok || (s != "high" && s != "medium" && s != "low") {
			payload["priority_hint"] = nil
		}
	}
	return payload
}

func coerceExplain(output map[string]any) map[string]any {
	var payload map[string]any
	if _, ok := output["summary"]; ok {
		payload = cloneMap(output)
	} else {
		var bullets []any
		for _, key := range []string{"why_anomalous", "evidence_summary"} {
			if v, ok := output[key]; ok && v != nil && v != "" {
				bullets = append(bullets, v)
			}
		}
		summary := stringOr(output["one_liner"], "No summary provided.")
		payload = map[string]any{
			"schema_version": ExplainSchemaVersion,
			"summary":        summary,
			"bullets":        bullets,
			"evidence_used":  listOrEmpty(output["evidence_used"]),
			"short_summary":  summary,
			"caveats":        listOrEmpty(output["possible_normal_reasons"]),
		}
	}
	if _, ok := payload["schema_version"]; !ok {
		payload["schema_version"] = ExplainSchemaVersion
	}
	payload["bullets"] = coerceStringList(payload["bullets"])
	payload["evidence_used"] = listOrEmpty(payload["evidence_used"])
	if _, ok := payload["short_summary"].(string); !ok {
		payload["short_summary"] = stringOr(payload["summary"], "No summary provided.")
	}
	payload["caveats"] = coerceStringList(payload["caveats"])
	return payload
}

// coerceStringList forces a value into a list: scalars become a one-element
// list, nil and empty become an empty list.
func coerceStringList(v any) []any {
	switch val := v.(type) {
	case nil:
		return []any{}
	case []any:
		return val
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	default:
		if val == "" {
			return []any{}
		}
		return []any{fmt.Sprintf("%v", val)}
	}
}

// listOrEmpty keeps lists as-is and replaces anything else with an empty list.
func listOrEmpty(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	default:
		return []any{}
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func floatOr(v any, fallback float64) float64 {
	if f, ok := asFloat(v); ok {
		return f
	}
	return fallback
}
