package elevation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiumgs/cdb2tiles/internal/geodetic"
	"github.com/cesiumgs/cdb2tiles/internal/mesh"
)

func flatGrid(w, h int) Grid {
	heights := make([]float64, w*h)
	return Grid{
		Width: w, Height: h, Heights: heights,
		Rect: geodetic.Rectangle{West: -0.1, South: -0.1, East: 0.1, North: 0.1},
	}
}

func TestBuildMeshProducesExpectedCounts(t *testing.T) {
	g := flatGrid(3, 3)
	m := BuildMesh(g)
	assert.Len(t, m.Positions, 9)
	assert.Len(t, m.Indices, (3-1)*(3-1)*6)
	assert.Len(t, m.PositionRTCs, 9)
}

func TestExtractSubRegionRejectsEvenDimensions(t *testing.T) {
	g := flatGrid(4, 4)
	_, err := ExtractSubRegion(g, SubRegionSW)
	assert.Error(t, err)
}

func TestExtractSubRegionHalvesOddGrid(t *testing.T) {
	g := flatGrid(5, 5)
	sub, err := ExtractSubRegion(g, SubRegionSW)
	require.NoError(t, err)
	assert.Equal(t, 3, sub.Width)
	assert.Equal(t, 3, sub.Height)
}

func TestIndexUVRelativeToParentRejectsBadLevels(t *testing.T) {
	_, err := IndexUVRelativeToParent(nil, 2, 3, 0, 0)
	assert.Error(t, err)
}

func TestIndexUVRelativeToParentMapsIntoUnitQuadrant(t *testing.T) {
	uvs := []mesh.Vec2f{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}
	out, err := IndexUVRelativeToParent(uvs, 1, 0, 1, 0)
	require.NoError(t, err)
	for _, uv := range out {
		assert.GreaterOrEqual(t, uv.X, float32(0))
		assert.LessOrEqual(t, uv.X, float32(1))
		assert.GreaterOrEqual(t, uv.Y, float32(0))
		assert.LessOrEqual(t, uv.Y, float32(1))
	}
}
