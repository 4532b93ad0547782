package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/procurelens/core/pkg/contracts"
)

func TestEnforceEvidenceUsedOutOfScope(t *testing.T) {
	output := map[string]any{
		"verdict":       "confirm",
		"evidence_used": []any{"event:999"},
		"cautions":      []any{},
	}
	out := enforceEvidenceUsed(contracts.TaskVerify, output, []string{"event:1"})

	assert.Equal(t, "inconclusive", out["verdict"])
	assert.Equal(t, []any{}, out["evidence_used"])
	assert.Equal(t, []any{groundingNote}, out["cautions"])
}

func TestEnforceEvidenceUsedEmpty(t *testing.T) {
	output := map[string]any{
		"summary":       "s",
		"evidence_used": []any{},
	}
	out := enforceEvidenceUsed(contracts.TaskExplain, output, []string{"event:1"})

	assert.Equal(t, []any{}, out["evidence_used"])
	assert.Equal(t, []any{groundingNote}, out["caveats"])
	assert.NotContains(t, out, "verdict", "explain outputs have no verdict to downgrade")
}

func TestEnforceEvidenceUsedInScope(t *testing.T) {
	output := map[string]any{
		"verdict":       "confirm",
		"evidence_used": []any{"event:1", "event:2"},
		"cautions":      []any{},
	}
	out := enforceEvidenceUsed(contracts.TaskVerify, output, []string{"event:1", "event:2", "event:3"})

	assert.Equal(t, "confirm", out["verdict"])
	assert.Equal(t, []any{"event:1", "event:2"}, out["evidence_used"])
	assert.Equal(t, []any{}, out["cautions"])
}

func TestAllowedEvidenceTimelineFallback(t *testing.T) {
	ev := &contracts.Evidence{
		Timeline: []contracts.TimelineEntry{
			{EventID: "t:1"},
			{EventID: "t:2"},
			{EventID: "t:1"},
		},
	}
	assert.Equal(t, []string{"t:1", "t:2"}, allowedEvidence(ev))

	ev.EvidenceEventIDs = []string{"e:1"}
	assert.Equal(t, []string{"e:1"}, allowedEvidence(ev))
}
