package builder

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiumgs/cdb2tiles/internal/dataset"
	"github.com/cesiumgs/cdb2tiles/internal/elevation"
	"github.com/cesiumgs/cdb2tiles/internal/geocell"
	"github.com/cesiumgs/cdb2tiles/internal/tile"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func mustGeoCell(t *testing.T) geocell.GeoCell {
	t.Helper()
	gc, err := geocell.New(32, -118)
	require.NoError(t, err)
	return gc
}

func mustTile(t *testing.T, ds dataset.Dataset, level, uref, rref int) tile.Tile {
	t.Helper()
	tl, err := tile.New(mustGeoCell(t), ds, 1, 1, level, uref, rref)
	require.NoError(t, err)
	return tl
}

// uniformGrid returns an odd-dimensioned grid of constant height,
// rooted under t's own rectangle, suitable for ExtractSubRegion.
func uniformGrid(t tile.Tile, dim int, height float64) elevation.Grid {
	rect := t.Region().Rectangle
	heights := make([]float64, dim*dim)
	for i := range heights {
		heights[i] = height
	}
	return elevation.Grid{Width: dim, Height: dim, Heights: heights, Rect: rect}
}

func newTestBuilder(t *testing.T) (*Builder, string) {
	t.Helper()
	dir := t.TempDir()
	return New(discardLogger(), dir, false, nil), dir
}

func TestAddElevationCoreWritesB3DMAndInsertsTile(t *testing.T) {
	b, dir := newTestBuilder(t)
	root := mustTile(t, dataset.Elevation, tile.MinLevel, 0, 0)
	grid := uniformGrid(root, 3, 100)

	require.NoError(t, b.addElevationCore(context.Background(), root, &grid))

	relPath, err := root.RelativePath()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, relPath+".b3dm"))
	assert.NoError(t, err)

	key := treeKey{gc: root.GeoCell, ds: root.Dataset, cs1: root.CS1, cs2: root.CS2}
	tree, ok := b.trees[key]
	require.True(t, ok)
	_, ok = tree.Get(root)
	assert.True(t, ok)

	assert.True(t, b.processedElevation[root])
}

func TestAddElevationCoreSkipsAlreadyProcessedTile(t *testing.T) {
	b, dir := newTestBuilder(t)
	root := mustTile(t, dataset.Elevation, tile.MinLevel, 0, 0)
	grid := uniformGrid(root, 3, 50)

	require.NoError(t, b.addElevationCore(context.Background(), root, &grid))
	relPath, err := root.RelativePath()
	require.NoError(t, err)
	outPath := filepath.Join(dir, relPath+".b3dm")
	info, err := os.Stat(outPath)
	require.NoError(t, err)
	firstModTime := info.ModTime()

	// A second call with a different grid must be a no-op: the file on
	// disk is untouched because processedElevation already guards it.
	otherGrid := uniformGrid(root, 3, 9999)
	require.NoError(t, b.addElevationCore(context.Background(), root, &otherGrid))
	info, err = os.Stat(outPath)
	require.NoError(t, err)
	assert.Equal(t, firstModTime, info.ModTime())
}

func TestFillMissingPositiveLODElevationSynthesizesHoles(t *testing.T) {
	b, dir := newTestBuilder(t)
	parent := mustTile(t, dataset.Elevation, 0, 0, 0)

	ne, err := parent.NorthEast()
	require.NoError(t, err)
	// Only the NE quadrant has a real file on disk; the other three are
	// holes that shouldFillHole must synthesize because NE exists.
	b.elevationFiles[ne] = "ne.tif"

	grid := uniformGrid(parent, 3, 42)
	require.NoError(t, b.addElevationCore(context.Background(), parent, &grid))

	nw, err := parent.NorthWest()
	require.NoError(t, err)
	sw, err := parent.SouthWest()
	require.NoError(t, err)
	se, err := parent.SouthEast()
	require.NoError(t, err)

	for _, child := range []tile.Tile{nw, sw, se} {
		relPath, err := child.RelativePath()
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(dir, relPath+".b3dm"))
		assert.NoError(t, err, "expected synthesized hole tile to be written")
		assert.True(t, b.processedElevation[child])
	}
}

func TestFillMissingPositiveLODElevationGateSkipsWhenNoSiblingExists(t *testing.T) {
	b, dir := newTestBuilder(t)
	parent := mustTile(t, dataset.Elevation, 0, 0, 0)
	grid := uniformGrid(parent, 3, 42)

	// No quadrant child is recorded in elevationFiles, so shouldFillHole
	// must stay false and no children should be synthesized.
	require.NoError(t, b.fillMissingPositiveLODElevation(context.Background(), parent, grid))

	nw, err := parent.NorthWest()
	require.NoError(t, err)
	relPath, err := nw.RelativePath()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, relPath+".b3dm"))
	assert.Error(t, err, "no hole should be synthesized without a sibling")
}

func TestFillMissingNegativeLODElevationDuplicatesGridWhenImageryWaits(t *testing.T) {
	b, dir := newTestBuilder(t)
	root := mustTile(t, dataset.Elevation, -2, 0, 0)
	child, err := root.NegativeChild()
	require.NoError(t, err)

	imageryTile := mustTile(t, dataset.Imagery, child.Level, 0, 0)
	b.imageryFiles[imageryKeyFor(imageryTile)] = "imagery.jp2"

	grid := uniformGrid(root, 3, 7)
	require.NoError(t, b.fillMissingNegativeLODElevation(context.Background(), root, grid))

	relPath, err := child.RelativePath()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, relPath+".b3dm"))
	assert.NoError(t, err)
	assert.True(t, b.processedElevation[child])
}

func TestFillMissingNegativeLODElevationSkipsWithoutImagery(t *testing.T) {
	b, dir := newTestBuilder(t)
	root := mustTile(t, dataset.Elevation, -2, 0, 0)
	child, err := root.NegativeChild()
	require.NoError(t, err)

	grid := uniformGrid(root, 3, 7)
	require.NoError(t, b.fillMissingNegativeLODElevation(context.Background(), root, grid))

	relPath, err := child.RelativePath()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, relPath+".b3dm"))
	assert.Error(t, err, "no imagery waiting means no duplication")
	assert.False(t, b.processedElevation[child])
}

func TestResolveImageryWalksAncestorsUntilFound(t *testing.T) {
	b, _ := newTestBuilder(t)
	root := mustTile(t, dataset.Elevation, 0, 0, 0)
	grandchild, err := root.NorthEast()
	require.NoError(t, err)
	grandchild, err = grandchild.SouthWest()
	require.NoError(t, err)

	rootImagery := mustTile(t, dataset.Imagery, root.Level, root.UREF, root.RREF)
	b.imageryFiles[imageryKeyFor(rootImagery)] = "root.jp2"

	level, path, ok := b.resolveImagery(grandchild)
	require.True(t, ok)
	assert.Equal(t, root.Level, level)
	assert.Equal(t, "root.jp2", path)
}

func TestResolveImageryNotFoundAtAnyAncestor(t *testing.T) {
	b, _ := newTestBuilder(t)
	root := mustTile(t, dataset.Elevation, tile.MinLevel, 0, 0)
	_, _, ok := b.resolveImagery(root)
	assert.False(t, ok)
}

func TestFlushWritesTilesetJSONAndSubtreeBlobs(t *testing.T) {
	b, dir := newTestBuilder(t)
	root := mustTile(t, dataset.Elevation, 0, 0, 0)
	_, err := b.insert(root)
	require.NoError(t, err)

	require.NoError(t, b.Flush())

	dirName, ok := dataset.DirectoryName(dataset.Elevation)
	require.True(t, ok)
	_ = dirName
	name := root.GeoCellDatasetID() + ".json"
	_, err = os.Stat(filepath.Join(dir, root.GeoCell.RelativePath(), name))
	assert.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, root.GeoCell.RelativePath(), "subtrees"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestFlushCombinesNamedDatasetsIntoRootTileset(t *testing.T) {
	b, dir := newTestBuilder(t)
	b.combine = []string{"Elevation"}
	root := mustTile(t, dataset.Elevation, 0, 0, 0)
	_, err := b.insert(root)
	require.NoError(t, err)

	require.NoError(t, b.Flush())

	_, err = os.Stat(filepath.Join(dir, "tileset.json"))
	assert.NoError(t, err)
}

func TestFlushSkipsCombineWhenNoDatasetMatches(t *testing.T) {
	b, dir := newTestBuilder(t)
	b.combine = []string{"Imagery"}
	root := mustTile(t, dataset.Elevation, 0, 0, 0)
	_, err := b.insert(root)
	require.NoError(t, err)

	require.NoError(t, b.Flush())

	_, err = os.Stat(filepath.Join(dir, "tileset.json"))
	assert.Error(t, err)
}

func TestAddVectorFeatureWritesB3DMForIntersectingPoints(t *testing.T) {
	b, dir := newTestBuilder(t)
	root := mustTile(t, dataset.GSFeature, 0, 0, 0)
	rect := root.Region().Rectangle
	centerLon := (rect.West + rect.East) / 2 * 180 / 3.14159265358979323846
	centerLat := (rect.South + rect.North) / 2 * 180 / 3.14159265358979323846

	gj := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[` +
		floatStr(centerLon) + `,` + floatStr(centerLat) + `]}}
	]}`
	path := filepath.Join(t.TempDir(), "features.geojson")
	require.NoError(t, os.WriteFile(path, []byte(gj), 0o644))

	require.NoError(t, b.AddVectorFeature(context.Background(), path, root))

	relPath, err := root.RelativePath()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, relPath+".b3dm"))
	assert.NoError(t, err)
}

func TestAddVectorFeatureSkipsWriteWhenNothingIntersects(t *testing.T) {
	b, dir := newTestBuilder(t)
	root := mustTile(t, dataset.GSFeature, 0, 0, 0)

	gj := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[0,0]}}
	]}`
	path := filepath.Join(t.TempDir(), "features.geojson")
	require.NoError(t, os.WriteFile(path, []byte(gj), 0o644))

	require.NoError(t, b.AddVectorFeature(context.Background(), path, root))

	relPath, err := root.RelativePath()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, relPath+".b3dm"))
	assert.Error(t, err, "no intersecting feature means no tile written")
}

func TestAddModelInstanceWritesCMPT(t *testing.T) {
	b, dir := newTestBuilder(t)
	root := mustTile(t, dataset.GSModelGeometry, 0, 0, 0)
	rect := root.Region().Rectangle
	centerLon := (rect.West + rect.East) / 2 * 180 / 3.14159265358979323846
	centerLat := (rect.South + rect.North) / 2 * 180 / 3.14159265358979323846

	gj := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"modelKey":"tree01","heading":0,"scaleX":2},
		 "geometry":{"type":"Point","coordinates":[` + floatStr(centerLon) + `,` + floatStr(centerLat) + `]}}
	]}`
	path := filepath.Join(t.TempDir(), "instances.geojson")
	require.NoError(t, os.WriteFile(path, []byte(gj), 0o644))

	require.NoError(t, b.AddModelInstance(context.Background(), path, root))

	relPath, err := root.RelativePath()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, relPath+".cmpt"))
	assert.NoError(t, err)
}

func floatStr(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
