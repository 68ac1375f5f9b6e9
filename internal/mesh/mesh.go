// Package mesh holds the geometry value types shared by the elevation,
// vector, and model ingest paths, mirroring the AABB/Mesh/Material
// structs in the original Scene.h / Core/AABB.h.
package mesh

import "math"

// Vec3 is a double-precision 3D vector — the Go stand-in for glm::dvec3.
// World positions and normals use it; no geo/XY library in the example
// pack models 3D Cartesian space (orb is 2D-only), so this is a small
// local value type rather than an adopted dependency.
type Vec3 struct {
	X, Y, Z float64
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Cross returns the cross product v x o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Dot returns the dot product v . o.
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Length returns the Euclidean norm of v.
func (v Vec3) Length() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns v scaled to unit length, or the zero vector if v is
// the zero vector.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Vec3f is a single-precision 3D vector, used for RTC (relative-to-center)
// positions — the Go stand-in for glm::vec3.
type Vec3f struct {
	X, Y, Z float32
}

// Vec2f is a single-precision 2D vector used for UVs — glm::vec2.
type Vec2f struct {
	X, Y float32
}

// AABB is an axis-aligned bounding box in world (double) coordinates.
type AABB struct {
	Min, Max Vec3
	empty    bool
}

// NewAABB returns an AABB with no points merged yet.
func NewAABB() *AABB {
	return &AABB{
		Min:   Vec3{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64},
		Max:   Vec3{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64},
		empty: true,
	}
}

// Merge grows the box to include point.
func (b *AABB) Merge(point Vec3) {
	b.empty = false
	b.Min = Vec3{math.Min(b.Min.X, point.X), math.Min(b.Min.Y, point.Y), math.Min(b.Min.Z, point.Z)}
	b.Max = Vec3{math.Max(b.Max.X, point.X), math.Max(b.Max.Y, point.Y), math.Max(b.Max.Z, point.Z)}
}

// Empty reports whether no point has been merged yet.
func (b *AABB) Empty() bool { return b.empty }

// Center returns the midpoint of the box.
func (b *AABB) Center() Vec3 {
	return Vec3{
		(b.Min.X + b.Max.X) * 0.5,
		(b.Min.Y + b.Max.Y) * 0.5,
		(b.Min.Z + b.Max.Z) * 0.5,
	}
}

// PrimitiveKind mirrors PrimitiveType in Scene.h.
type PrimitiveKind int

const (
	Points PrimitiveKind = iota
	Lines
	LineLoop
	LineStrip
	Triangles
	TriangleStrip
	TriangleFan
)

// Material mirrors the Material struct in Scene.h; Texture is the index
// into the glTF writer's texture table, or -1 for none.
type Material struct {
	Texture    int
	Unlit      bool
	DoubleSided bool
	Alpha      float32
}

// Mesh is the shared in-memory geometry container used by elevation
// grids, vector feature batches, and model instance geometry.
type Mesh struct {
	Primitive    PrimitiveKind
	Material     int // index into the caller's material table, or -1
	AABB         *AABB
	Indices      []uint32
	Positions    []Vec3
	PositionRTCs []Vec3f
	UVs          []Vec2f
	Normals      []Vec3f
	BatchIDs     []float32
}

// New returns an empty triangle mesh with an initialized AABB.
func New() *Mesh {
	return &Mesh{Primitive: Triangles, Material: -1, AABB: NewAABB()}
}

// ComputeRTC fills PositionRTCs as Positions minus the AABB center,
// matching CDBElevation::createSimplifiedMesh's RTC derivation.
func (m *Mesh) ComputeRTC() {
	center := m.AABB.Center()
	m.PositionRTCs = make([]Vec3f, len(m.Positions))
	for i, p := range m.Positions {
		rtc := p.Sub(center)
		m.PositionRTCs[i] = Vec3f{float32(rtc.X), float32(rtc.Y), float32(rtc.Z)}
	}
}
