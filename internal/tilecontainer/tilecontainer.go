// Package tilecontainer writes b3dm, i3dm, and cmpt tile payloads:
// fixed-size headers (28 bytes for b3dm: magic, version, byteLength,
// table lengths; 32 bytes for i3dm, which adds gltfFormat; 16 bytes for
// cmpt: magic, version, byteLength, tile count), with b3dm/i3dm
// followed by a JSON feature table, an optional JSON batch table, and a
// glTF body — byte-exact per the 3D Tiles 1.0 container formats
// (§6). Modeled on the fixed-offset binary.LittleEndian.PutUint*
// header assembly in joeblew999-plat-geo/internal/pmtiles/pmtiles.go's
// SerializeHeader.
package tilecontainer

import (
	"bytes"
	"encoding/binary"

	"github.com/goccy/go-json"

	"github.com/cesiumgs/cdb2tiles/internal/cdberrors"
)

// FeatureTable is the JSON feature-table payload for a b3dm/i3dm tile.
// Values are passed through as-is (already shaped per the format the
// caller is writing); goccy/go-json does the encoding.
type FeatureTable map[string]any

// BatchTable is the optional per-feature property table.
type BatchTable map[string]any

// WriteB3DM assembles a b3dm payload: header, feature table JSON, batch
// table JSON (may be empty), glb body.
func WriteB3DM(featureTable FeatureTable, batchTable BatchTable, glb []byte) ([]byte, error) {
	ftJSON, err := marshalPadded(featureTable)
	if err != nil {
		return nil, err
	}
	btJSON, err := marshalPadded(batchTable)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 28)
	copy(header[0:4], "b3dm")
	binary.LittleEndian.PutUint32(header[4:8], 1) // version
	total := uint32(len(header) + len(ftJSON) + len(btJSON) + len(glb))
	binary.LittleEndian.PutUint32(header[8:12], total)
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(ftJSON)))
	binary.LittleEndian.PutUint32(header[16:20], 0) // feature table binary length
	binary.LittleEndian.PutUint32(header[20:24], uint32(len(btJSON)))
	binary.LittleEndian.PutUint32(header[24:28], 0) // batch table binary length

	return concat(header, ftJSON, btJSON, glb), nil
}

// WriteI3DM assembles an i3dm payload. gltfFormat selects embedded glTF
// (1, the only form this converter produces) vs an external URI.
func WriteI3DM(featureTable FeatureTable, batchTable BatchTable, glb []byte) ([]byte, error) {
	ftJSON, err := marshalPadded(featureTable)
	if err != nil {
		return nil, err
	}
	btJSON, err := marshalPadded(batchTable)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 32)
	copy(header[0:4], "i3dm")
	binary.LittleEndian.PutUint32(header[4:8], 1)
	total := uint32(len(header) + len(ftJSON) + len(btJSON) + len(glb))
	binary.LittleEndian.PutUint32(header[8:12], total)
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(ftJSON)))
	binary.LittleEndian.PutUint32(header[16:20], 0)
	binary.LittleEndian.PutUint32(header[20:24], uint32(len(btJSON)))
	binary.LittleEndian.PutUint32(header[24:28], 0)
	binary.LittleEndian.PutUint32(header[28:32], 1) // gltfFormat=1 (embedded)

	return concat(header, ftJSON, btJSON, glb), nil
}

// WriteCMPT wraps multiple already-serialized inner tiles (b3dm/i3dm)
// into a cmpt container.
func WriteCMPT(inner [][]byte) []byte {
	header := make([]byte, 16)
	copy(header[0:4], "cmpt")
	binary.LittleEndian.PutUint32(header[4:8], 1)
	total := len(header)
	for _, t := range inner {
		total += len(t)
	}
	binary.LittleEndian.PutUint32(header[8:12], uint32(total))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(inner)))

	var buf bytes.Buffer
	buf.Write(header)
	for _, t := range inner {
		buf.Write(t)
	}
	return buf.Bytes()
}

func marshalPadded(v map[string]any) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, cdberrors.Wrap(cdberrors.IOError, "marshal table JSON", err)
	}
	for len(b)%8 != 0 {
		b = append(b, ' ')
	}
	return b, nil
}

func concat(parts ...[]byte) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		buf.Write(p)
	}
	return buf.Bytes()
}
