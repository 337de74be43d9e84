package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationHelpers(t *testing.T) {
	var empty Conversation
	assert.False(t, empty.HasSystem())
	_, ok := empty.Last()
	assert.False(t, ok)
	assert.NotNil(t, empty.Clone())

	c := Conversation{UserMessage("hi"), SystemMessage("be nice"), AssistantMessage("hello")}
	assert.Equal(t, 1, c.SystemIndex())
	last, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, last.Role)

	clone := c.Clone()
	clone[0] = UserMessage("changed")
	assert.Equal(t, "hi", c[0].Content)
}

func TestDecode(t *testing.T) {
	t.Run("empty blob", func(t *testing.T) {
		conv, res, err := Decode(nil)
		require.NoError(t, err)
		assert.Empty(t, conv)
		assert.Zero(t, res.ErrorCount)
	})

	t.Run("not an array", func(t *testing.T) {
		_, _, err := Decode([]byte(`{"role":"user"}`))
		assert.Error(t, err)
	})

	t.Run("skips malformed entries", func(t *testing.T) {
		blob := []byte(`[{"role":"user","content":"q"},{"role":"robot","content":"x"},42,{"role":"assistant","content":"a"}]`)
		conv, res, err := Decode(blob)
		require.NoError(t, err)
		assert.Equal(t, Conversation{UserMessage("q"), AssistantMessage("a")}, conv)
		assert.Equal(t, 2, res.ErrorCount)
		assert.Equal(t, 1, res.Errors[0].Index)
		assert.Equal(t, 2, res.Errors[1].Index)
	})

	t.Run("round trip keeps content verbatim", func(t *testing.T) {
		in := Conversation{UserMessage("- [ ] open\n- [x] done"), AssistantMessage("1")}
		blob, err := Encode(in)
		require.NoError(t, err)
		out, _, err := Decode(blob)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})
}

func TestEncodeNil(t *testing.T) {
	blob, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(blob))
}
