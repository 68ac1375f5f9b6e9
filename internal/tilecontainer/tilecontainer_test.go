package tilecontainer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteB3DMHeaderShape(t *testing.T) {
	ft := FeatureTable{"BATCH_LENGTH": 0}
	glb := []byte{1, 2, 3, 4}
	payload, err := WriteB3DM(ft, nil, glb)
	require.NoError(t, err)

	assert.Equal(t, "b3dm", string(payload[0:4]))
	version := binary.LittleEndian.Uint32(payload[4:8])
	assert.Equal(t, uint32(1), version)

	total := binary.LittleEndian.Uint32(payload[8:12])
	assert.Equal(t, uint32(len(payload)), total)
}

func TestWriteI3DMSetsEmbeddedGltfFormat(t *testing.T) {
	payload, err := WriteI3DM(nil, nil, []byte{9})
	require.NoError(t, err)
	assert.Equal(t, "i3dm", string(payload[0:4]))
	format := binary.LittleEndian.Uint32(payload[28:32])
	assert.Equal(t, uint32(1), format)
}

func TestWriteCMPTWrapsMultipleTiles(t *testing.T) {
	inner1, err := WriteB3DM(nil, nil, []byte{1})
	require.NoError(t, err)
	inner2, err := WriteI3DM(nil, nil, []byte{2})
	require.NoError(t, err)

	cmpt := WriteCMPT([][]byte{inner1, inner2})
	assert.Equal(t, "cmpt", string(cmpt[0:4]))
	count := binary.LittleEndian.Uint32(cmpt[12:16])
	assert.Equal(t, uint32(2), count)
}
