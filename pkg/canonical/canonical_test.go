package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeys(t *testing.T) {
	b, err := Marshal(map[string]any{"zeta": 1, "alpha": "x", "mid": []string{"b", "a"}})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"x","mid":["b","a"],"zeta":1}`, string(b))
}

func TestMarshalRespectsStructTags(t *testing.T) {
	type payload struct {
		B string `json:"b"`
		A string `json:"a"`
	}
	b, err := Marshal(payload{B: "2", A: "1"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"1","b":"2"}`, string(b))
}

func TestMarshalNoHTMLEscaping(t *testing.T) {
	b, err := Marshal(map[string]string{"q": "a<b>&c"})
	require.NoError(t, err)
	assert.Equal(t, `{"q":"a<b>&c"}`, string(b))
}

func TestHashStable(t *testing.T) {
	h1, err := Hash(map[string]any{"k": "v", "n": 3})
	require.NoError(t, err)
	h2, err := Hash(map[string]any{"n": 3, "k": "v"})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHashTextKnownVector(t *testing.T) {
	// sha256("") is a fixed point worth pinning.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashText(""))
}
