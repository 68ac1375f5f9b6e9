// Package geodetic provides the WGS84 geodetic primitives the tile
// identity, elevation, and manifest components share: a Cartographic
// (lon/lat/height in radians+metres) point, a geodetic bounding
// rectangle/region, and the ellipsoid surface-normal and
// geodetic-to-Cartesian maps the elevation grid builder needs.
//
// Grounded on Core/Cartographic.h, Core/BoundRegion.h and
// Core/Ellipsoid.{h,cpp} in the original CDBTo3DTiles source.
package geodetic

import (
	"math"

	"github.com/cesiumgs/cdb2tiles/internal/mesh"
)

// Cartographic is a geodetic point: longitude/latitude in radians,
// height in metres above the ellipsoid.
type Cartographic struct {
	Longitude, Latitude, Height float64
}

// Rectangle is a geodetic bounding rectangle in radians.
type Rectangle struct {
	West, South, East, North float64
}

// Contains reports whether p lies within the rectangle (inclusive).
func (r Rectangle) Contains(p Cartographic) bool {
	return p.Longitude >= r.West && p.Longitude <= r.East &&
		p.Latitude >= r.South && p.Latitude <= r.North
}

// Center returns the rectangle's midpoint.
func (r Rectangle) Center() Cartographic {
	return Cartographic{
		Longitude: (r.West + r.East) / 2,
		Latitude:  (r.South + r.North) / 2,
	}
}

// Union returns the smallest rectangle covering both r and o.
func (r Rectangle) Union(o Rectangle) Rectangle {
	return Rectangle{
		West:  math.Min(r.West, o.West),
		South: math.Min(r.South, o.South),
		East:  math.Max(r.East, o.East),
		North: math.Max(r.North, o.North),
	}
}

// Area returns the rectangle's area in radians^2.
func (r Rectangle) Area() float64 {
	return (r.East - r.West) * (r.North - r.South)
}

// Region is a geodetic bounding region: a Rectangle plus a height range.
type Region struct {
	Rectangle            Rectangle
	MinHeight, MaxHeight float64
}

// Union returns the smallest region covering both r and o.
func (r Region) Union(o Region) Region {
	return Region{
		Rectangle: r.Rectangle.Union(o.Rectangle),
		MinHeight: math.Min(r.MinHeight, o.MinHeight),
		MaxHeight: math.Max(r.MaxHeight, o.MaxHeight),
	}
}

// Ellipsoid is a triaxial ellipsoid used for the geodetic<->Cartesian
// maps. WGS84 is the only instance the converter uses.
type Ellipsoid struct {
	radii, radiiSquared, oneOverRadiiSquared mesh.Vec3
}

// WGS84 is the standard geodetic reference ellipsoid.
var WGS84 = newEllipsoid(6378137.0, 6378137.0, 6356752.314245179)

func newEllipsoid(x, y, z float64) Ellipsoid {
	return Ellipsoid{
		radii:              mesh.Vec3{X: x, Y: y, Z: z},
		radiiSquared:       mesh.Vec3{X: x * x, Y: y * y, Z: z * z},
		oneOverRadiiSquared: mesh.Vec3{X: 1 / (x * x), Y: 1 / (y * y), Z: 1 / (z * z)},
	}
}

// GeodeticSurfaceNormal returns the outward unit normal at a geodetic
// point (height is ignored, as in the original's cartographic-only
// overload).
func (e Ellipsoid) GeodeticSurfaceNormal(c Cartographic) mesh.Vec3 {
	cosLat := math.Cos(c.Latitude)
	n := mesh.Vec3{
		X: cosLat * math.Cos(c.Longitude),
		Y: cosLat * math.Sin(c.Longitude),
		Z: math.Sin(c.Latitude),
	}
	return n.Normalize()
}

// CartographicToCartesian converts a geodetic point to an ECEF
// Cartesian position on (height==0) or above the WGS84 ellipsoid.
func (e Ellipsoid) CartographicToCartesian(c Cartographic) mesh.Vec3 {
	n := e.GeodeticSurfaceNormal(c)
	k := mesh.Vec3{
		X: e.radiiSquared.X * n.X,
		Y: e.radiiSquared.Y * n.Y,
		Z: e.radiiSquared.Z * n.Z,
	}
	gamma := math.Sqrt(n.Dot(k))
	k = k.Scale(1 / gamma)
	nh := n.Scale(c.Height)
	return mesh.Vec3{X: k.X + nh.X, Y: k.Y + nh.Y, Z: k.Z + nh.Z}
}
