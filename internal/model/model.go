// Package model ingests CDB GT-Model and GS-Model instances: point
// placements (position, orientation, scale) referencing an external
// geometry source, converted into i3dm instance buffers (§4.E, §6).
// GS-Model geometry arrives packaged in a .zip, read with the standard
// archive/zip package (an explicitly named external collaborator per
// spec.md, whose contract stdlib already satisfies).
package model

import (
	"archive/zip"
	"io"
	"math"

	"github.com/cesiumgs/cdb2tiles/internal/cdberrors"
	"github.com/cesiumgs/cdb2tiles/internal/geodetic"
	"github.com/cesiumgs/cdb2tiles/internal/mesh"
)

// Instance is one placed model: a world position, a heading/pitch/roll
// orientation in radians, a non-uniform scale, and the model-name key
// used to resolve its geometry.
type Instance struct {
	Position    geodetic.Cartographic
	Orientation mesh.Vec3 // heading (yaw), pitch, roll, radians
	Scale       mesh.Vec3
	ModelKey    string
}

// Loader resolves a model-name key to its geometry mesh, abstracting
// whichever scene-graph/model format backs GT-Model vs GS-Model content
// (an external collaborator per spec.md §1/§6; this converter only
// needs the resolved mesh, not the on-disk model format itself).
type Loader interface {
	Load(modelKey string) (*mesh.Mesh, error)
}

// WorldMatrix computes the 4x4 column-major transform (position,
// heading/pitch/roll, scale) for inst, suitable for baking instance
// geometry directly into world space or for filling an i3dm
// NORMAL_UP/NORMAL_RIGHT pair from its rotation.
func WorldMatrix(inst Instance) [16]float64 {
	rot := rotationMatrix(inst.Orientation)
	s := inst.Scale
	world := rot
	// Apply scale to the rotation's basis columns.
	for col := 0; col < 3; col++ {
		var factor float64
		switch col {
		case 0:
			factor = s.X
		case 1:
			factor = s.Y
		default:
			factor = s.Z
		}
		world[col*4+0] *= factor
		world[col*4+1] *= factor
		world[col*4+2] *= factor
	}
	pos := geodetic.WGS84.CartographicToCartesian(inst.Position)
	world[12], world[13], world[14] = pos.X, pos.Y, pos.Z
	return world
}

// rotationMatrix builds a column-major heading/pitch/roll rotation,
// matching the instance-orientation convention CDB GT-Model records
// use (heading about Z/up, pitch about local X, roll about local Y).
func rotationMatrix(hpr mesh.Vec3) [16]float64 {
	ch, sh := cos(hpr.X), sin(hpr.X)
	cp, sp := cos(hpr.Y), sin(hpr.Y)
	cr, sr := cos(hpr.Z), sin(hpr.Z)

	// Rz(heading) * Rx(pitch) * Ry(roll), column-major.
	return [16]float64{
		ch*cr - sh*sp*sr, sh*cr + ch*sp*sr, -cp * sr, 0,
		-sh * cp, ch * cp, sp, 0,
		ch*sr + sh*sp*cr, sh*sr - ch*sp*cr, cp * cr, 0,
		0, 0, 0, 1,
	}
}

func cos(r float64) float64 { return math.Cos(r) }
func sin(r float64) float64 { return math.Sin(r) }

// NormalUpRight derives the i3dm NORMAL_UP/NORMAL_RIGHT vectors from an
// instance's world matrix columns, per the original writeToI3DM's
// calculateModelOrientation.
func NormalUpRight(m [16]float64) (up, right mesh.Vec3f) {
	up = mesh.Vec3f{X: float32(m[4]), Y: float32(m[5]), Z: float32(m[6])}
	right = mesh.Vec3f{X: float32(m[0]), Y: float32(m[1]), Z: float32(m[2])}
	return up, right
}

// OpenGSModelZip opens a GS-Model geometry archive and returns the
// bytes of name within it, closing the archive reader before
// returning.
func OpenGSModelZip(path, name string) ([]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, cdberrors.Wrap(cdberrors.IOError, "open GS-Model zip "+path, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, cdberrors.Wrap(cdberrors.IOError, "open zip entry "+name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, cdberrors.Wrap(cdberrors.IOError, "read zip entry "+name, err)
		}
		return data, nil
	}
	return nil, cdberrors.New(cdberrors.IOError, "entry not found in GS-Model zip: "+name)
}
