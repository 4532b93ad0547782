package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurelens/core/pkg/contracts"
)

func TestPromptHashStablePerTask(t *testing.T) {
	v1 := PromptHashFor(contracts.TaskVerify)
	v2 := PromptHashFor(contracts.TaskVerify)
	e := PromptHashFor(contracts.TaskExplain)
	assert.Equal(t, v1, v2)
	assert.NotEqual(t, v1, e)
	assert.Len(t, v1, 64)
}

func TestRenderPromptDeterministic(t *testing.T) {
	c, ev := maverickFixture()
	first, err := renderPrompt(contracts.TaskVerify, c, ev)
	require.NoError(t, err)
	second, err := renderPrompt(contracts.TaskVerify, c, ev)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Contains(t, first, "PO created before PR approval-complete")
	assert.Contains(t, first, `"candidate_id":"cand-m"`)
	assert.Contains(t, first, `"maverick_reason":"missing_pr_create"`)
}

func TestRuleTextCoversAllTypes(t *testing.T) {
	for _, ctype := range []string{
		contracts.TypeDuplicatePayment,
		contracts.TypeLengthyApprovalPR,
		contracts.TypeLengthyApprovalPO,
		contracts.TypeMaverickBuying,
	} {
		assert.NotEqual(t, "Unknown rule.", ruleText(ctype), ctype)
	}
	assert.Equal(t, "Unknown rule.", ruleText("other"))
}
