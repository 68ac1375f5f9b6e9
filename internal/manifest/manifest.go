// Package manifest serializes a Tileset tree into a 3D Tiles
// tileset.json (§4.I): asset/geometricError/root/children, with
// implicit-tiling extension metadata when a tileset uses the subtree
// availability format. Grounded on combineTilesetJson/writeToTilesetJson
// in the original TileFormatIO.cpp; marshaled with goccy/go-json as
// the hot-path JSON library the rest of the converter uses.
package manifest

import (
	"github.com/goccy/go-json"

	"github.com/cesiumgs/cdb2tiles/internal/cdberrors"
	"github.com/cesiumgs/cdb2tiles/internal/geodetic"
)

// Asset is the tileset.json "asset" block.
type Asset struct {
	Version string `json:"version"`
}

// BoundingVolume holds a geodetic "region" bounding volume: west,
// south, east, north (radians), minimum height, maximum height.
type BoundingVolume struct {
	Region [6]float64 `json:"region"`
}

func regionOf(r geodetic.Region) BoundingVolume {
	return BoundingVolume{Region: [6]float64{
		r.Rectangle.West, r.Rectangle.South, r.Rectangle.East, r.Rectangle.North,
		r.MinHeight, r.MaxHeight,
	}}
}

// Content points at a tile's binary payload.
type Content struct {
	URI string `json:"uri"`
}

// Tile is one tileset.json tile node.
type Tile struct {
	BoundingVolume BoundingVolume `json:"boundingVolume"`
	GeometricError float64        `json:"geometricError"`
	Refine         string         `json:"refine,omitempty"`
	Content        *Content       `json:"content,omitempty"`
	Children       []*Tile        `json:"children,omitempty"`

	Implicit *ImplicitTiling `json:"implicitTiling,omitempty"`
}

// ImplicitTiling is the 3D Tiles Next subtree metadata block.
type ImplicitTiling struct {
	SubdivisionScheme string         `json:"subdivisionScheme"`
	SubtreeLevels     int            `json:"subtreeLevels"`
	AvailableLevels   int            `json:"availableLevels"`
	Subtrees          SubtreesObject `json:"subtrees"`
}

// SubtreesObject names the URI template for subtree blobs.
type SubtreesObject struct {
	URI string `json:"uri"`
}

// Document is a full tileset.json.
type Document struct {
	Asset             Asset    `json:"asset"`
	GeometricError    float64  `json:"geometricError"`
	Root              *Tile    `json:"root"`
	ExtensionsUsed    []string `json:"extensionsUsed,omitempty"`
	ExtensionsRequired []string `json:"extensionsRequired,omitempty"`
}

// RootGeometricError is the default root geometricError, matching the
// original's combineTilesetJson constant.
const RootGeometricError = 300000.0

// markImplicit marks d as using the 3DTILES_implicit_tiling
// extension, the way writeToTilesetJson does when use3dTilesNext is set.
func (d *Document) markImplicit() {
	d.ExtensionsUsed = append(d.ExtensionsUsed, "3DTILES_implicit_tiling")
	d.ExtensionsRequired = append(d.ExtensionsRequired, "3DTILES_implicit_tiling")
}

// Combine builds a root tileset.json from a set of per-tile (region,
// content URI, geometricError) leaves, unioning their regions for the
// root bounding volume and refine=ADD, matching combineTilesetJson.
func Combine(leaves []Leaf) *Document {
	root := &Tile{GeometricError: RootGeometricError, Refine: "ADD"}
	if len(leaves) == 0 {
		root.BoundingVolume = regionOf(geodetic.Region{})
		return &Document{Asset: Asset{Version: "1.0"}, GeometricError: RootGeometricError, Root: root}
	}

	union := leaves[0].Region
	children := make([]*Tile, 0, len(leaves))
	for _, l := range leaves {
		union = union.Union(l.Region)
		children = append(children, &Tile{
			BoundingVolume: regionOf(l.Region),
			GeometricError: l.GeometricError,
			Content:        &Content{URI: l.ContentURI},
		})
	}
	root.BoundingVolume = regionOf(union)
	root.Children = children

	return &Document{Asset: Asset{Version: "1.0"}, GeometricError: RootGeometricError, Root: root}
}

// Leaf is one child entry fed to Combine.
type Leaf struct {
	Region         geodetic.Region
	ContentURI     string
	GeometricError float64
}

// Write builds a single tileset.json for one dataset's tree, rooted at
// root with the given content URI, refine mode, and optional implicit
// tiling metadata. replace selects REFINE=REPLACE vs REFINE=ADD.
func Write(root geodetic.Region, rootContentURI string, geometricError float64, replace bool, implicit *ImplicitTiling) *Document {
	refine := "ADD"
	if replace {
		refine = "REPLACE"
	}
	rootTile := &Tile{
		BoundingVolume: regionOf(root),
		GeometricError: geometricError,
		Refine:         refine,
		Content:        &Content{URI: rootContentURI},
		Implicit:       implicit,
	}
	doc := &Document{Asset: Asset{Version: "1.0"}, GeometricError: geometricError, Root: rootTile}
	if implicit != nil {
		doc.markImplicit()
	}
	return doc
}

// Marshal serializes doc to indented JSON.
func Marshal(doc *Document) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, cdberrors.Wrap(cdberrors.IOError, "marshal tileset.json", err)
	}
	return b, nil
}
