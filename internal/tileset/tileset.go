// Package tileset implements the per-(GeoCell, Dataset, CS1, CS2) tile
// tree (§4.C): a hybrid structure whose negative levels form a single
// linear chain down to L=0, below which each node quadtree-branches
// into four children. Grounded on CDBTileset.{h,cpp} in the original
// CDBTo3DTiles source, adapted from pointer-owned nodes to an
// arena-of-records so the tree can be walked and serialized without
// recursion-by-pointer.
package tileset

import (
	"github.com/cesiumgs/cdb2tiles/internal/cdberrors"
	"github.com/cesiumgs/cdb2tiles/internal/geodetic"
	"github.com/cesiumgs/cdb2tiles/internal/tile"
)

// nodeIndex indexes into Tileset.nodes; noNode (-1) means "no node".
type nodeIndex int

const noNode nodeIndex = -1

// node is one arena slot: the tile plus either its single negative-
// level child or its four quadrant children.
type node struct {
	tile tile.Tile

	negativeChild nodeIndex // L < 0 chain

	nw, ne, sw, se nodeIndex // L >= 0 quadtree
}

// Tileset owns every tile sharing one (GeoCell, Dataset, CS1, CS2), laid
// out as an arena of nodes rooted at rootIndex. The root's level,
// UREF and RREF are fixed at construction and every inserted tile must
// descend from it (same invariant as CDBTileset's constructor check).
type Tileset struct {
	nodes     []node
	rootIndex nodeIndex

	rootLevel int
	rootUREF  int
	rootRREF  int
}

// New creates a Tileset whose root is the given tile.
func New(root tile.Tile) *Tileset {
	ts := &Tileset{
		rootLevel: root.Level,
		rootUREF:  root.UREF,
		rootRREF:  root.RREF,
	}
	ts.rootIndex = ts.alloc(root)
	return ts
}

func (ts *Tileset) alloc(t tile.Tile) nodeIndex {
	ts.nodes = append(ts.nodes, node{tile: t, negativeChild: noNode, nw: noNode, ne: noNode, sw: noNode, se: noNode})
	return nodeIndex(len(ts.nodes) - 1)
}

// Root returns the tileset's root tile.
func (ts *Tileset) Root() tile.Tile { return ts.nodes[ts.rootIndex].tile }

// Insert adds t to the tree, lazily allocating every ancestor between
// the root and t that does not yet exist. It is idempotent: inserting
// the same tile twice is a no-op on the second call. It returns a
// PreconditionViolation if t does not descend from the tileset's root.
func (ts *Tileset) Insert(t tile.Tile) error {
	if !ts.descendsFromRoot(t) {
		return cdberrors.New(cdberrors.PreconditionViolation, "tile does not descend from tileset root")
	}
	_, err := ts.insertRecursive(ts.rootIndex, t)
	return err
}

// descendsFromRoot checks t's ancestry reaches exactly the tileset's
// root coordinates at the root's level, mirroring CDBTileset's
// constructor-time bit-shift validation.
func (ts *Tileset) descendsFromRoot(t tile.Tile) bool {
	root := ts.nodes[ts.rootIndex].tile
	if t.GeoCell != root.GeoCell || t.Dataset != root.Dataset || t.CS1 != root.CS1 || t.CS2 != root.CS2 {
		return false
	}
	if t.Level < ts.rootLevel {
		return false
	}
	if ts.rootLevel < 0 {
		// Every negative-level-rooted tileset accepts any tile at or
		// below the chain, since negative levels carry UREF=RREF=0.
		return true
	}
	shift := uint(t.Level - ts.rootLevel)
	return (t.UREF >> shift) == ts.rootUREF && (t.RREF >> shift) == ts.rootRREF
}

// insertRecursive walks from cur toward t, allocating lazily, and
// returns the index of the (possibly newly-allocated) node for t.
func (ts *Tileset) insertRecursive(cur nodeIndex, t tile.Tile) (nodeIndex, error) {
	curTile := ts.nodes[cur].tile
	if curTile.Equal(t) {
		return cur, nil
	}

	if curTile.Level < 0 {
		child, err := curTile.NegativeChild()
		if err != nil {
			return noNode, err
		}
		childIdx := ts.nodes[cur].negativeChild
		if childIdx == noNode {
			childIdx = ts.alloc(child)
			ts.nodes[cur].negativeChild = childIdx
		}
		if child.Equal(t) {
			return childIdx, nil
		}
		return ts.insertRecursive(childIdx, t)
	}

	quadrant, err := ts.quadrantRelativeChild(curTile, t)
	if err != nil {
		return noNode, err
	}
	childIdx, child, err := ts.childSlot(cur, curTile, quadrant)
	if err != nil {
		return noNode, err
	}
	if child.Equal(t) {
		return childIdx, nil
	}
	return ts.insertRecursive(childIdx, t)
}

// quadrant identifies which of the four quadtree children of a
// positive-level tile a target tile descends through.
type quadrant int

const (
	quadNW quadrant = iota
	quadNE
	quadSW
	quadSE
)

// quadrantRelativeChild determines, from cur's level and t's UREF/RREF
// at the same relative depth, which quadrant t falls under — the Go
// equivalent of CDBTileset::getQuadtreeRelativeChild's powerOf2 math.
func (ts *Tileset) quadrantRelativeChild(cur, t tile.Tile) (quadrant, error) {
	if t.Level <= cur.Level {
		return 0, cdberrors.New(cdberrors.PreconditionViolation, "target tile is not a descendant")
	}
	shift := uint(t.Level - cur.Level - 1)
	relU := (t.UREF >> shift) & 1
	relR := (t.RREF >> shift) & 1
	switch {
	case relU == 1 && relR == 0:
		return quadNW, nil
	case relU == 1 && relR == 1:
		return quadNE, nil
	case relU == 0 && relR == 0:
		return quadSW, nil
	default:
		return quadSE, nil
	}
}

func (ts *Tileset) childSlot(cur nodeIndex, curTile tile.Tile, q quadrant) (nodeIndex, tile.Tile, error) {
	var slot *nodeIndex
	var makeChild func() (tile.Tile, error)
	switch q {
	case quadNW:
		slot = &ts.nodes[cur].nw
		makeChild = curTile.NorthWest
	case quadNE:
		slot = &ts.nodes[cur].ne
		makeChild = curTile.NorthEast
	case quadSW:
		slot = &ts.nodes[cur].sw
		makeChild = curTile.SouthWest
	default:
		slot = &ts.nodes[cur].se
		makeChild = curTile.SouthEast
	}
	if *slot != noNode {
		return *slot, ts.nodes[*slot].tile, nil
	}
	child, err := makeChild()
	if err != nil {
		return noNode, tile.Tile{}, err
	}
	idx := ts.alloc(child)
	*slot = idx
	return idx, child, nil
}

// FitTile returns the deepest existing tile whose region contains p,
// descending from the root as far as allocated nodes permit — the Go
// equivalent of CDBTileset::getFitTile.
func (ts *Tileset) FitTile(p geodetic.Cartographic) (tile.Tile, bool) {
	cur := ts.rootIndex
	if !ts.nodes[cur].tile.Region().Rectangle.Contains(p) {
		return tile.Tile{}, false
	}
	for {
		next := ts.deepestContainingChild(cur, p)
		if next == noNode {
			return ts.nodes[cur].tile, true
		}
		cur = next
	}
}

func (ts *Tileset) deepestContainingChild(cur nodeIndex, p geodetic.Cartographic) nodeIndex {
	n := ts.nodes[cur]
	candidates := []nodeIndex{n.negativeChild, n.nw, n.ne, n.sw, n.se}
	for _, c := range candidates {
		if c == noNode {
			continue
		}
		if ts.nodes[c].tile.Region().Rectangle.Contains(p) {
			return c
		}
	}
	return noNode
}

// Walk invokes fn for every allocated node in the tileset, in arena
// (insertion) order — a flat in-order substitute for the original's
// recursive tree walk, convenient for availability encoding and
// manifest serialization.
func (ts *Tileset) Walk(fn func(t tile.Tile)) {
	for _, n := range ts.nodes {
		fn(n.tile)
	}
}

// Len returns the number of tiles currently in the tileset.
func (ts *Tileset) Len() int { return len(ts.nodes) }

// Get looks up an existing tile by identity, without allocating.
func (ts *Tileset) Get(t tile.Tile) (tile.Tile, bool) {
	for _, n := range ts.nodes {
		if n.tile.Equal(t) {
			return n.tile, true
		}
	}
	return tile.Tile{}, false
}
