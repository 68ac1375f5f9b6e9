// Package gltfw is a minimal glTF 2.0 binary (.glb) writer: enough of
// the format to embed a single mesh primitive plus an optional texture,
// which is all a b3dm/i3dm payload needs. It is the Go stand-in for the
// original's thin wrapper around a third-party glTF library (Gltf.cpp);
// the example pack carries no glTF encoder, so this is a small
// project-local implementation rather than an adopted dependency (see
// DESIGN.md).
package gltfw

import (
	"bytes"
	"encoding/binary"

	"github.com/goccy/go-json"

	"github.com/cesiumgs/cdb2tiles/internal/cdberrors"
	"github.com/cesiumgs/cdb2tiles/internal/mesh"
)

const (
	glbMagic        = 0x46546C67 // "glTF"
	glbVersion      = 2
	chunkTypeJSON   = 0x4E4F534A // "JSON"
	chunkTypeBinary = 0x004E4942 // "BIN\0"
)

// document mirrors the small subset of the glTF JSON schema this
// writer emits.
type document struct {
	Asset               asset        `json:"asset"`
	Scene               int          `json:"scene"`
	Scenes              []scene      `json:"scenes"`
	Nodes               []node       `json:"nodes"`
	Meshes              []gltfMesh   `json:"meshes"`
	Materials           []material   `json:"materials,omitempty"`
	Images              []image      `json:"images,omitempty"`
	Textures            []textureObj `json:"textures,omitempty"`
	Accessors           []accessor   `json:"accessors"`
	BufferViews         []bufferView `json:"bufferViews"`
	Buffers             []buffer     `json:"buffers"`
	ExtensionsUsed      []string     `json:"extensionsUsed,omitempty"`
	ExtensionsRequired  []string     `json:"extensionsRequired,omitempty"`
}

type asset struct {
	Version string `json:"version"`
}

type scene struct {
	Nodes []int `json:"nodes"`
}

type node struct {
	Mesh int `json:"mesh"`
}

type gltfMesh struct {
	Primitives []primitive `json:"primitives"`
}

type primitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    int            `json:"indices"`
	Material   *int           `json:"material,omitempty"`
	Mode       int            `json:"mode"`
}

type material struct {
	PbrMetallicRoughness pbr            `json:"pbrMetallicRoughness"`
	DoubleSided          bool           `json:"doubleSided,omitempty"`
	Extensions           map[string]any `json:"extensions,omitempty"`
}

type pbr struct {
	BaseColorFactor [4]float64   `json:"baseColorFactor"`
	BaseColorTexture *textureRef `json:"baseColorTexture,omitempty"`
}

type textureRef struct {
	Index int `json:"index"`
}

type image struct {
	MimeType   string `json:"mimeType"`
	BufferView int    `json:"bufferView"`
}

type textureObj struct {
	Source int `json:"source"`
}

type accessor struct {
	BufferView    int    `json:"bufferView"`
	ComponentType int    `json:"componentType"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
	Min           []float64 `json:"min,omitempty"`
	Max           []float64 `json:"max,omitempty"`
}

type bufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	Target     int `json:"target,omitempty"`
}

type buffer struct {
	ByteLength int `json:"byteLength"`
}

const (
	componentTypeUnsignedInt = 5125
	componentTypeFloat       = 5126
	targetArrayBuffer        = 34962
	targetElementArrayBuffer = 34963
)

// WriteGLB encodes m (RTC-relative single-precision positions, UVs, and
// an index list) into a .glb byte stream. mat and texture are optional:
// when texture is non-empty and m has one UV per position, its bytes
// are embedded as a glTF image and referenced by mat's
// baseColorTexture, mirroring createGltf's material/imagery branch in
// the original (doubleSided and KHR_materials_unlit follow mat's
// DoubleSided and Unlit fields).
func WriteGLB(m *mesh.Mesh, mat *mesh.Material, texture []byte, textureMimeType string) ([]byte, error) {
	var bin bytes.Buffer

	indexOffset := bin.Len()
	if err := binary.Write(&bin, binary.LittleEndian, m.Indices); err != nil {
		return nil, cdberrors.Wrap(cdberrors.IOError, "write indices", err)
	}
	indexLen := bin.Len() - indexOffset
	pad(&bin)

	posOffset := bin.Len()
	minPos, maxPos := boundsOf(m.PositionRTCs)
	for _, p := range m.PositionRTCs {
		binary.Write(&bin, binary.LittleEndian, p.X)
		binary.Write(&bin, binary.LittleEndian, p.Y)
		binary.Write(&bin, binary.LittleEndian, p.Z)
	}
	posLen := bin.Len() - posOffset
	pad(&bin)

	doc := document{
		Asset: asset{Version: "2.0"},
		Scene: 0,
		Scenes: []scene{{Nodes: []int{0}}},
		Nodes:  []node{{Mesh: 0}},
		Buffers: []buffer{{ByteLength: 0}}, // patched below
	}

	attrs := map[string]int{"POSITION": 1}
	doc.BufferViews = []bufferView{
		{Buffer: 0, ByteOffset: indexOffset, ByteLength: indexLen, Target: targetElementArrayBuffer},
		{Buffer: 0, ByteOffset: posOffset, ByteLength: posLen, Target: targetArrayBuffer},
	}
	doc.Accessors = []accessor{
		{BufferView: 0, ComponentType: componentTypeUnsignedInt, Count: len(m.Indices), Type: "SCALAR"},
		{BufferView: 1, ComponentType: componentTypeFloat, Count: len(m.PositionRTCs), Type: "VEC3",
			Min: []float64{float64(minPos.X), float64(minPos.Y), float64(minPos.Z)},
			Max: []float64{float64(maxPos.X), float64(maxPos.Y), float64(maxPos.Z)}},
	}

	if len(m.UVs) == len(m.PositionRTCs) && len(m.UVs) > 0 {
		uvOffset := bin.Len()
		for _, uv := range m.UVs {
			binary.Write(&bin, binary.LittleEndian, uv.X)
			binary.Write(&bin, binary.LittleEndian, uv.Y)
		}
		uvLen := bin.Len() - uvOffset
		pad(&bin)
		doc.BufferViews = append(doc.BufferViews, bufferView{Buffer: 0, ByteOffset: uvOffset, ByteLength: uvLen, Target: targetArrayBuffer})
		doc.Accessors = append(doc.Accessors, accessor{BufferView: 2, ComponentType: componentTypeFloat, Count: len(m.UVs), Type: "VEC2"})
		attrs["TEXCOORD_0"] = 2
	}

	prim := primitive{Attributes: attrs, Indices: 0, Mode: int(m.Primitive)}

	hasTexture := len(texture) > 0 && len(m.UVs) == len(m.PositionRTCs) && len(m.UVs) > 0
	if hasTexture {
		texOffset := bin.Len()
		bin.Write(texture)
		texLen := bin.Len() - texOffset
		pad(&bin)
		doc.BufferViews = append(doc.BufferViews, bufferView{Buffer: 0, ByteOffset: texOffset, ByteLength: texLen})
		doc.Images = append(doc.Images, image{MimeType: textureMimeType, BufferView: len(doc.BufferViews) - 1})
		doc.Textures = append(doc.Textures, textureObj{Source: len(doc.Images) - 1})
	}

	if mat != nil {
		gltfMat := material{
			PbrMetallicRoughness: pbr{BaseColorFactor: [4]float64{1, 1, 1, alphaOrOne(mat.Alpha)}},
			DoubleSided:          mat.DoubleSided,
		}
		if hasTexture {
			gltfMat.PbrMetallicRoughness.BaseColorTexture = &textureRef{Index: len(doc.Textures) - 1}
		}
		if mat.Unlit {
			gltfMat.Extensions = map[string]any{"KHR_materials_unlit": map[string]any{}}
			doc.ExtensionsUsed = append(doc.ExtensionsUsed, "KHR_materials_unlit")
		}
		doc.Materials = append(doc.Materials, gltfMat)
		matIndex := len(doc.Materials) - 1
		prim.Material = &matIndex
	}

	doc.Meshes = []gltfMesh{{Primitives: []primitive{prim}}}
	doc.Buffers[0].ByteLength = bin.Len()

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, cdberrors.Wrap(cdberrors.IOError, "marshal glTF JSON", err)
	}
	jsonBytes = padJSON(jsonBytes)

	var out bytes.Buffer
	totalLen := 12 + 8 + len(jsonBytes) + 8 + bin.Len()
	binary.Write(&out, binary.LittleEndian, uint32(glbMagic))
	binary.Write(&out, binary.LittleEndian, uint32(glbVersion))
	binary.Write(&out, binary.LittleEndian, uint32(totalLen))

	binary.Write(&out, binary.LittleEndian, uint32(len(jsonBytes)))
	binary.Write(&out, binary.LittleEndian, uint32(chunkTypeJSON))
	out.Write(jsonBytes)

	binary.Write(&out, binary.LittleEndian, uint32(bin.Len()))
	binary.Write(&out, binary.LittleEndian, uint32(chunkTypeBinary))
	out.Write(bin.Bytes())

	return out.Bytes(), nil
}

func pad(buf *bytes.Buffer) {
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
}

func padJSON(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, ' ')
	}
	return b
}

func alphaOrOne(a float32) float64 {
	if a <= 0 {
		return 1
	}
	return float64(a)
}

func boundsOf(pts []mesh.Vec3f) (mesh.Vec3f, mesh.Vec3f) {
	if len(pts) == 0 {
		return mesh.Vec3f{}, mesh.Vec3f{}
	}
	min, max := pts[0], pts[0]
	for _, p := range pts[1:] {
		if p.X < min.X {
			min.X = p.X
		}
		if p.Y < min.Y {
			min.Y = p.Y
		}
		if p.Z < min.Z {
			min.Z = p.Z
		}
		if p.X > max.X {
			max.X = p.X
		}
		if p.Y > max.Y {
			max.Y = p.Y
		}
		if p.Z > max.Z {
			max.Z = p.Z
		}
	}
	return min, max
}
