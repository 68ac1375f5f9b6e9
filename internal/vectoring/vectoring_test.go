package vectoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiumgs/cdb2tiles/internal/geodetic"
)

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"FACC": "AP030", "heading": 12.5, "paved": true},
      "geometry": {"type": "Point", "coordinates": [-118.5, 32.5]}
    },
    {
      "type": "Feature",
      "properties": {"FACC": "BH140"},
      "geometry": {"type": "Point", "coordinates": [10.0, 10.0]}
    }
  ]
}`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "features.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleGeoJSON), 0o644))
	return path
}

func TestLoadGeoJSONDecodesFeaturesAndAttributes(t *testing.T) {
	src, err := LoadGeoJSON(writeSample(t))
	require.NoError(t, err)
	require.Len(t, src.Geometries, 2)

	features, err := src.Features()
	require.NoError(t, err)
	require.Len(t, features, 2)

	assert.Equal(t, orb.Point{-118.5, 32.5}, features[0].Geometry)
	assert.Equal(t, "AP030", features[0].Strings["FACC"])
	assert.Equal(t, 12.5, features[0].Numbers["heading"])
	assert.Equal(t, true, features[0].Bools["paved"])
}

func TestIntersectsFiltersByTileRectangle(t *testing.T) {
	src, err := LoadGeoJSON(writeSample(t))
	require.NoError(t, err)
	features, err := src.Features()
	require.NoError(t, err)

	rect := geodetic.Rectangle{West: radiansOf(-119), South: radiansOf(32), East: radiansOf(-118), North: radiansOf(33)}

	assert.True(t, Intersects(features[0], rect))
	assert.False(t, Intersects(features[1], rect))
}

func TestClampPolygonRejectsPointOutsideBound(t *testing.T) {
	poly := orb.Polygon{{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}, {-1, -1}}}
	inside := orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}}
	outside := orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{6, 6}}

	assert.True(t, ClampPolygon(poly, inside))
	assert.False(t, ClampPolygon(poly, outside))
}

func TestClampPolygonRejectsEmptyRing(t *testing.T) {
	assert.False(t, ClampPolygon(orb.Polygon{}, orb.Bound{}))
}

func radiansOf(deg float64) float64 {
	const deg2rad = 3.14159265358979323846 / 180.0
	return deg * deg2rad
}
