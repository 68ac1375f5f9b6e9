package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiumgs/cdb2tiles/internal/geodetic"
)

func TestCombineUnionsChildRegions(t *testing.T) {
	leaves := []Leaf{
		{Region: geodetic.Region{Rectangle: geodetic.Rectangle{West: 0, South: 0, East: 1, North: 1}}, ContentURI: "a.b3dm", GeometricError: 10},
		{Region: geodetic.Region{Rectangle: geodetic.Rectangle{West: 1, South: 1, East: 2, North: 2}}, ContentURI: "b.b3dm", GeometricError: 10},
	}
	doc := Combine(leaves)
	assert.Equal(t, "ADD", doc.Root.Refine)
	assert.Len(t, doc.Root.Children, 2)
	assert.Equal(t, [6]float64{0, 0, 2, 2, 0, 0}, doc.Root.BoundingVolume.Region)
}

func TestWriteMarksImplicitExtensionWhenProvided(t *testing.T) {
	region := geodetic.Region{Rectangle: geodetic.Rectangle{West: 0, South: 0, East: 1, North: 1}}
	implicit := &ImplicitTiling{SubdivisionScheme: "QUADTREE", SubtreeLevels: 3, AvailableLevels: 24, Subtrees: SubtreesObject{URI: "subtrees/{level}_{x}_{y}.subtree"}}

	doc := Write(region, "root.b3dm", RootGeometricError, true, implicit)
	assert.Contains(t, doc.ExtensionsUsed, "3DTILES_implicit_tiling")
	assert.Contains(t, doc.ExtensionsRequired, "3DTILES_implicit_tiling")
	assert.Equal(t, "REPLACE", doc.Root.Refine)

	b, err := Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(b), "3DTILES_implicit_tiling")
}
