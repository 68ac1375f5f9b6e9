package gltfw

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiumgs/cdb2tiles/internal/mesh"
)

func triangleMesh() *mesh.Mesh {
	m := mesh.New()
	m.Positions = []mesh.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}}
	for _, p := range m.Positions {
		m.AABB.Merge(p)
	}
	m.Indices = []uint32{0, 1, 2}
	m.ComputeRTC()
	return m
}

func TestWriteGLBHeaderShape(t *testing.T) {
	glb, err := WriteGLB(triangleMesh(), nil, nil, "")
	require.NoError(t, err)

	assert.Equal(t, uint32(glbMagic), binary.LittleEndian.Uint32(glb[0:4]))
	assert.Equal(t, uint32(glbVersion), binary.LittleEndian.Uint32(glb[4:8]))
	total := binary.LittleEndian.Uint32(glb[8:12])
	assert.Equal(t, uint32(len(glb)), total)
}

func TestWriteGLBOmitsMaterialWithoutOne(t *testing.T) {
	glb, err := WriteGLB(triangleMesh(), nil, nil, "")
	require.NoError(t, err)
	assert.NotContains(t, string(glb), "\"materials\"")
}

func TestWriteGLBEmbedsTextureAndUnlitMaterial(t *testing.T) {
	m := triangleMesh()
	m.UVs = []mesh.Vec2f{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}

	mat := &mesh.Material{DoubleSided: true, Unlit: true, Alpha: 1}
	glb, err := WriteGLB(m, mat, []byte{0xFF, 0xD8, 0xFF}, "image/jpeg")
	require.NoError(t, err)

	s := string(glb)
	assert.Contains(t, s, "KHR_materials_unlit")
	assert.Contains(t, s, "baseColorTexture")
	assert.Contains(t, s, "image/jpeg")
}

func TestWriteGLBSkipsTextureWithoutUVs(t *testing.T) {
	m := triangleMesh()
	mat := &mesh.Material{DoubleSided: true}
	glb, err := WriteGLB(m, mat, []byte{0xFF, 0xD8, 0xFF}, "image/jpeg")
	require.NoError(t, err)
	assert.NotContains(t, string(glb), "baseColorTexture")
}
