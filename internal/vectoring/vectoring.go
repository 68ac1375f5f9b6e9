// Package vectoring ingests CDB vector feature datasets (GSFeature,
// GTFeature, road/rail/powerline/hydrography networks) using
// paulmach/orb for geometry, grounded on the orb usage in
// joeblew999-plat-geo's internal/tiler/gotiler/gotiler.go (clip/clamp
// against a tile rectangle, per-feature attribute bags).
package vectoring

import (
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/cesiumgs/cdb2tiles/internal/cdberrors"
	"github.com/cesiumgs/cdb2tiles/internal/geodetic"
)

// AttributeReader abstracts the CNAM-joined attribute source (a DBF
// sidecar file in the real CDB layout); the converter only needs to
// look values up by feature index.
type AttributeReader interface {
	// Attributes returns the string, numeric, and boolean attribute
	// bags for the feature at index i (three parallel maps, mirroring
	// the FACC/CNAM attribute schema CDB vector features carry).
	Attributes(i int) (strings map[string]string, numbers map[string]float64, bools map[string]bool, err error)
	Close() error
}

// Feature is one vector feature: geometry plus its joined attributes.
type Feature struct {
	Geometry orb.Geometry
	Strings  map[string]string
	Numbers  map[string]float64
	Bools    map[string]bool
}

// Source holds decoded feature geometries paired with an attribute
// reader, ready for clamping against CDB tile rectangles.
type Source struct {
	Geometries []orb.Geometry
	Attributes AttributeReader
}

// Features joins Geometries with their attributes, closing the
// attribute reader once all rows have been read.
func (s Source) Features() ([]Feature, error) {
	defer s.Attributes.Close()
	out := make([]Feature, 0, len(s.Geometries))
	for i, g := range s.Geometries {
		strs, nums, bools, err := s.Attributes.Attributes(i)
		if err != nil {
			return nil, err
		}
		out = append(out, Feature{Geometry: g, Strings: strs, Numbers: nums, Bools: bools})
	}
	return out, nil
}

// Bound converts a geodetic.Rectangle (radians) into an orb.Bound
// (degrees), the unit the pack's geometry library operates in.
func Bound(r geodetic.Rectangle) orb.Bound {
	const rad2deg = 180.0 / 3.14159265358979323846
	return orb.Bound{
		Min: orb.Point{r.West * rad2deg, r.South * rad2deg},
		Max: orb.Point{r.East * rad2deg, r.North * rad2deg},
	}
}

// Intersects reports whether f's geometry bound intersects the tile
// rectangle — the cheap pre-filter before the precise PolygonContains
// check clamps polygon features to a tile.
func Intersects(f Feature, rect geodetic.Rectangle) bool {
	return Bound(rect).Intersects(f.Geometry.Bound())
}

// geojsonAttributes implements AttributeReader directly over an already
// decoded GeoJSON FeatureCollection's per-feature Properties bags,
// splitting the loosely-typed JSON property map into the three
// parallel maps CDB's FACC/CNAM attribute schema expects.
type geojsonAttributes struct {
	features []*geojson.Feature
}

func (a *geojsonAttributes) Attributes(i int) (map[string]string, map[string]float64, map[string]bool, error) {
	strs := make(map[string]string)
	nums := make(map[string]float64)
	bools := make(map[string]bool)
	for k, v := range a.features[i].Properties {
		switch val := v.(type) {
		case string:
			strs[k] = val
		case float64:
			nums[k] = val
		case bool:
			bools[k] = val
		}
	}
	return strs, nums, bools, nil
}

func (a *geojsonAttributes) Close() error { return nil }

// LoadGeoJSON reads a CDB vector dataset file encoded as a GeoJSON
// FeatureCollection, the format gotiler.go in joeblew999-plat-geo
// already uses paulmach/orb/geojson to decode, and returns a Source
// ready for tile-rectangle clamping.
func LoadGeoJSON(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, cdberrors.Wrap(cdberrors.IOError, "read vector dataset "+path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return Source{}, cdberrors.Wrap(cdberrors.ParseFailure, "parse vector dataset "+path, err)
	}
	geoms := make([]orb.Geometry, len(fc.Features))
	for i, f := range fc.Features {
		geoms[i] = f.Geometry
	}
	return Source{Geometries: geoms, Attributes: &geojsonAttributes{features: fc.Features}}, nil
}

// ClampPolygon reports whether poly's representative point (the first
// vertex of its outer ring) falls inside bound, for features whose CDB semantics assign
// them to the single tile containing their representative point
// (roads, hydrography) rather than clipping their geometry.
func ClampPolygon(poly orb.Polygon, bound orb.Bound) bool {
	if len(poly) == 0 || len(poly[0]) == 0 {
		return false
	}
	rep := poly[0][0]
	return bound.Contains(rep) && planar.PolygonContains(poly, rep)
}
