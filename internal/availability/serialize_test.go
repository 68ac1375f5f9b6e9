package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	st := NewSubtree()
	st.NodeBuffer[0] = 0b101
	st.ChildBuffer[0] = 0b1

	blob, err := SerializeSubtree(st)
	require.NoError(t, err)

	got, err := DeserializeSubtree(blob)
	require.NoError(t, err)
	assert.Equal(t, st.NodeBuffer, got.NodeBuffer)
	assert.Equal(t, st.ChildBuffer, got.ChildBuffer)
}

func TestDeserializeRejectsBadMagic(t *testing.T) {
	_, err := DeserializeSubtree([]byte("not a subtree blob at all"))
	assert.Error(t, err)
}
