package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiumgs/cdb2tiles/internal/dataset"
	"github.com/cesiumgs/cdb2tiles/internal/geocell"
)

func mustGeoCell(t *testing.T) geocell.GeoCell {
	t.Helper()
	gc, err := geocell.New(32, -118)
	require.NoError(t, err)
	return gc
}

func TestNewRejectsLevelOutOfRange(t *testing.T) {
	gc := mustGeoCell(t)
	_, err := New(gc, dataset.Elevation, 1, 1, MinLevel-1, 0, 0)
	assert.Error(t, err)

	_, err = New(gc, dataset.Elevation, 1, 1, MaxLevel+1, 0, 0)
	assert.Error(t, err)
}

func TestNewRejectsUREFRREFOutOfRangeForLevel(t *testing.T) {
	gc := mustGeoCell(t)
	_, err := New(gc, dataset.Elevation, 1, 1, 2, 4, 0) // max width at L2 is 4
	assert.Error(t, err)
}

func TestNegativeChildChain(t *testing.T) {
	gc := mustGeoCell(t)
	root, err := New(gc, dataset.Elevation, 1, 1, MinLevel, 0, 0)
	require.NoError(t, err)

	cur := root
	for cur.Level < 0 {
		next, err := cur.NegativeChild()
		require.NoError(t, err)
		assert.Equal(t, cur.Level+1, next.Level)
		assert.Equal(t, 0, next.UREF)
		assert.Equal(t, 0, next.RREF)
		cur = next
	}
	assert.Equal(t, 0, cur.Level)

	_, err = cur.NegativeChild()
	assert.Error(t, err, "NegativeChild must fail at L>=0")
}

func TestQuadrantChildrenDeriveCorrectUREFRREF(t *testing.T) {
	gc := mustGeoCell(t)
	root, err := New(gc, dataset.Elevation, 1, 1, 0, 0, 0)
	require.NoError(t, err)

	nw, err := root.NorthWest()
	require.NoError(t, err)
	assert.Equal(t, 1, nw.UREF)
	assert.Equal(t, 0, nw.RREF)

	ne, err := root.NorthEast()
	require.NoError(t, err)
	assert.Equal(t, 1, ne.UREF)
	assert.Equal(t, 1, ne.RREF)

	sw, err := root.SouthWest()
	require.NoError(t, err)
	assert.Equal(t, 0, sw.UREF)
	assert.Equal(t, 0, sw.RREF)

	se, err := root.SouthEast()
	require.NoError(t, err)
	assert.Equal(t, 0, se.UREF)
	assert.Equal(t, 1, se.RREF)

	_, err = nw.SouthWest()
	// still valid: any L>=0 tile can have quadrant children.
	assert.NoError(t, err)
}

func TestQuadrantChildOnNegativeLevelFails(t *testing.T) {
	gc := mustGeoCell(t)
	neg, err := New(gc, dataset.Elevation, 1, 1, -5, 0, 0)
	require.NoError(t, err)
	_, err = neg.NorthWest()
	assert.Error(t, err)
}

func TestParentRoundTrip(t *testing.T) {
	gc := mustGeoCell(t)
	root, err := New(gc, dataset.Elevation, 1, 1, 0, 0, 0)
	require.NoError(t, err)
	ne, err := root.NorthEast()
	require.NoError(t, err)

	parent, ok, err := ne.Parent()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, parent.Equal(root))
}

func TestParentHasNoneAtMinLevel(t *testing.T) {
	gc := mustGeoCell(t)
	root, err := New(gc, dataset.Elevation, 1, 1, MinLevel, 0, 0)
	require.NoError(t, err)
	_, ok, err := root.Parent()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRelativePathShape(t *testing.T) {
	gc := mustGeoCell(t)
	tl, err := New(gc, dataset.Elevation, 1, 1, 0, 0, 0)
	require.NoError(t, err)
	p, err := tl.RelativePath()
	require.NoError(t, err)
	assert.Contains(t, p, "Tiles/N32/W118/001_Elevation/L00/U0")
}

func TestFromFilenameRoundTrip(t *testing.T) {
	gc := mustGeoCell(t)
	original, err := New(gc, dataset.Elevation, 1, 1, 3, 5, 2)
	require.NoError(t, err)

	relPath, err := original.RelativePath()
	require.NoError(t, err)

	stem := relPath[len(relPath)-len("N32W118_D001_S001_T001_L03_U5_R2"):]
	parsed, ok := FromFilename(stem)
	require.True(t, ok)
	assert.True(t, parsed.Equal(original))
}

func TestFromFilenameRejectsGarbage(t *testing.T) {
	_, ok := FromFilename("not_a_valid_tile_name")
	assert.False(t, ok)
}

func TestRegionBoundsAreWithinGeoCell(t *testing.T) {
	gc := mustGeoCell(t)
	tl, err := New(gc, dataset.Elevation, 1, 1, 2, 1, 2)
	require.NoError(t, err)
	r := tl.Region().Rectangle
	assert.Less(t, r.West, r.East)
	assert.Less(t, r.South, r.North)
}
