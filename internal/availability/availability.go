// Package availability encodes 3D Tiles Next implicit-tiling subtree
// availability bitstreams (§4.G): Morton-indexed node and child-subtree
// bitmaps, grouped into fixed-depth subtrees, with parent-bit
// propagation up the tree. Grounded on the
// addAvailability/addDatasetAvailability/setBitAtXYLevelMorton/
// setParentBitsRecursively functions in CDBTilesetBuilder.cpp.
package availability

import (
	"encoding/binary"

	"github.com/goccy/go-json"

	"github.com/cesiumgs/cdb2tiles/internal/cdberrors"
)

// SubtreeLevels is the quadtree depth each subtree blob covers (§4.G);
// a fixed choice matching the original's default.
const SubtreeLevels = 3

// Key identifies one subtree by its root tile's quadtree coordinates.
type Key struct {
	RootLevel, RootX, RootY int
}

// Subtree holds one implicit-tiling subtree's availability bitmaps:
// nodeBuffer covers every node in the subtree (bit count = (4^N-1)/3),
// childBuffer covers the 4^N child-subtree roots one level below.
type Subtree struct {
	NodeBuffer  []byte
	ChildBuffer []byte
}

// NewSubtree allocates zeroed bitmaps sized for SubtreeLevels.
func NewSubtree() *Subtree {
	nodeBits := nodeCountUpToLevel(SubtreeLevels)
	childBits := 1 << uint(2*SubtreeLevels)
	return &Subtree{
		NodeBuffer:  make([]byte, (nodeBits+7)/8),
		ChildBuffer: make([]byte, (childBits+7)/8),
	}
}

func nodeCountUpToLevel(n int) int {
	// (4^n - 1) / 3, the number of quadtree nodes in a full tree of
	// depth n (levels 0..n-1), per CDBTilesetBuilder's nodeCountUpToThisLevel.
	return (pow4(n) - 1) / 3
}

func pow4(n int) int {
	r := 1
	for i := 0; i < n; i++ {
		r *= 4
	}
	return r
}

// Store owns every subtree touched by a tileset's tiles, keyed by
// subtree root.
type Store struct {
	subtrees map[Key]*Subtree
}

// NewStore returns an empty availability store.
func NewStore() *Store {
	return &Store{subtrees: make(map[Key]*Subtree)}
}

// subtreeRootFor returns the key of the subtree containing (level, x, y)
// and (localLevel, localX, localY) relative to that subtree's root,
// per addAvailability's subtreeRootLevel=(level/subtreeLevels)*subtreeLevels.
func subtreeRootFor(level, x, y int) (Key, int, int, int) {
	rootLevel := (level / SubtreeLevels) * SubtreeLevels
	shift := uint(level - rootLevel)
	rootX := x >> shift
	rootY := y >> shift
	return Key{RootLevel: rootLevel, RootX: rootX, RootY: rootY}, level - rootLevel, x - (rootX << shift), y - (rootY << shift)
}

func (s *Store) subtree(k Key) *Subtree {
	st, ok := s.subtrees[k]
	if !ok {
		st = NewSubtree()
		s.subtrees[k] = st
	}
	return st
}

// SetAvailable marks the quadtree node at (level, x, y) available,
// setting the corresponding bit in its subtree's node buffer and
// propagating ancestor bits up through parent subtrees, mirroring
// addDatasetAvailability + setParentBitsRecursively.
func (s *Store) SetAvailable(level, x, y int) {
	key, localLevel, localX, localY := subtreeRootFor(level, x, y)
	st := s.subtree(key)
	index := nodeCountUpToLevel(localLevel) + mortonEncode(localX, localY)
	alreadySet := setBit(st.NodeBuffer, index)
	if alreadySet {
		return
	}
	s.setParentBitsRecursively(key, localLevel, localX, localY)
}

// setParentBitsRecursively walks from (localLevel, localX, localY)
// within subtree key upward: within the same subtree it halves
// level/x/y and sets the ancestor's node bit (stopping early if already
// set); at the subtree root it crosses into the parent subtree's child
// buffer at the Morton index of this subtree's position among its
// parent's 2^SubtreeLevels x 2^SubtreeLevels children and then goes on
// setting the ancestor node bits inside the parent subtree, mirroring
// CDBTilesetBuilder::setParentBitsRecursively.
func (s *Store) setParentBitsRecursively(key Key, localLevel, localX, localY int) {
	if localLevel == 0 {
		if key.RootLevel == 0 {
			return
		}
		parentShift := uint(SubtreeLevels)
		parentKey := Key{
			RootLevel: key.RootLevel - SubtreeLevels,
			RootX:     key.RootX >> parentShift,
			RootY:     key.RootY >> parentShift,
		}
		width := 1 << parentShift
		childLocalX := key.RootX & (width - 1)
		childLocalY := key.RootY & (width - 1)

		parent := s.subtree(parentKey)
		childIndex := mortonEncode(childLocalX, childLocalY)
		if setBit(parent.ChildBuffer, childIndex) {
			return
		}
		// Continue inside the parent subtree: this subtree's root sits
		// one level below the parent subtree's deepest node level, so
		// the next step sets its ancestor's node bit there.
		s.setParentBitsRecursively(parentKey, SubtreeLevels, childLocalX, childLocalY)
		return
	}

	st := s.subtree(key)
	ancestorLevel := localLevel - 1
	ancestorX := localX / 2
	ancestorY := localY / 2
	index := nodeCountUpToLevel(ancestorLevel) + mortonEncode(ancestorX, ancestorY)
	if setBit(st.NodeBuffer, index) {
		return
	}
	s.setParentBitsRecursively(key, ancestorLevel, ancestorX, ancestorY)
}

// Subtrees returns every subtree blob currently in the store, keyed by
// root.
func (s *Store) Subtrees() map[Key]*Subtree {
	return s.subtrees
}

// setBit sets bit index in buf and reports whether it was already set.
// An index past the end of buf leaves buf unchanged and reports false;
// no error is returned.
func setBit(buf []byte, index int) bool {
	byteIdx := index / 8
	bitIdx := uint(index % 8)
	if byteIdx >= len(buf) {
		return false
	}
	mask := byte(1) << bitIdx
	if buf[byteIdx]&mask != 0 {
		return true
	}
	buf[byteIdx] |= mask
	return false
}

// subtreeMagic/subtreeVersion identify the binary subtree file format
// (3D Tiles Next's ".subtree" container): a fixed 24-byte header (magic,
// version, JSON chunk length, binary chunk length) followed by the JSON
// chunk and the binary chunk holding the availability bitstreams.
const (
	subtreeMagic   = "subt"
	subtreeVersion = uint32(1)
	subtreeHeaderSize = 24
)

// subtreeDocument mirrors the subtree JSON schema's availability block.
// Its single buffer is "internal" (no uri): it refers to this file's own
// binary chunk, per the format's convention for the common case of one
// embedded buffer.
type subtreeDocument struct {
	Buffers                  []subtreeBuffer     `json:"buffers"`
	BufferViews              []subtreeBufferView `json:"bufferViews"`
	TileAvailability         availabilityRef     `json:"tileAvailability"`
	ContentAvailability      []availabilityRef   `json:"contentAvailability"`
	ChildSubtreeAvailability availabilityRef     `json:"childSubtreeAvailability"`
}

type subtreeBuffer struct {
	ByteLength int `json:"byteLength"`
}

type subtreeBufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
}

// availabilityRef is either a bitstream reference (into BufferViews) or
// a constant 0/1 — the two forms the subtree schema's availability
// objects take.
type availabilityRef struct {
	Bitstream *int `json:"bitstream,omitempty"`
	Constant  *int `json:"constant,omitempty"`
}

func bitstreamRef(bufferView int) availabilityRef { return availabilityRef{Bitstream: intPtr(bufferView)} }

func intPtr(v int) *int { return &v }

// SerializeSubtree encodes st into a binary subtree blob: node and
// child-subtree bitmaps concatenated into the binary chunk, described by
// a JSON chunk whose tileAvailability/childSubtreeAvailability point at
// the corresponding bufferViews. contentAvailability is hard-set to
// "available", since every node this converter writes carries content.
func SerializeSubtree(st *Subtree) ([]byte, error) {
	doc := subtreeDocument{
		Buffers: []subtreeBuffer{{ByteLength: len(st.NodeBuffer) + len(st.ChildBuffer)}},
		BufferViews: []subtreeBufferView{
			{Buffer: 0, ByteOffset: 0, ByteLength: len(st.NodeBuffer)},
			{Buffer: 0, ByteOffset: len(st.NodeBuffer), ByteLength: len(st.ChildBuffer)},
		},
		TileAvailability:         bitstreamRef(0),
		ContentAvailability:      []availabilityRef{{Constant: intPtr(1)}},
		ChildSubtreeAvailability: bitstreamRef(1),
	}

	jsonChunk, err := json.Marshal(doc)
	if err != nil {
		return nil, cdberrors.Wrap(cdberrors.IOError, "marshal subtree JSON", err)
	}
	jsonChunk = padSpaces(jsonChunk)

	binChunk := make([]byte, 0, len(st.NodeBuffer)+len(st.ChildBuffer))
	binChunk = append(binChunk, st.NodeBuffer...)
	binChunk = append(binChunk, st.ChildBuffer...)
	binChunk = padZeros(binChunk)

	header := make([]byte, subtreeHeaderSize)
	copy(header[0:4], subtreeMagic)
	binary.LittleEndian.PutUint32(header[4:8], subtreeVersion)
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(jsonChunk)))
	binary.LittleEndian.PutUint64(header[16:24], uint64(len(binChunk)))

	out := make([]byte, 0, len(header)+len(jsonChunk)+len(binChunk))
	out = append(out, header...)
	out = append(out, jsonChunk...)
	out = append(out, binChunk...)
	return out, nil
}

// DeserializeSubtree parses a binary subtree blob back into its node and
// child-subtree bitmaps, rejecting anything whose header doesn't carry
// the "subt" magic or whose declared chunk lengths don't fit the blob.
func DeserializeSubtree(blob []byte) (*Subtree, error) {
	if len(blob) < subtreeHeaderSize || string(blob[0:4]) != subtreeMagic {
		return nil, cdberrors.New(cdberrors.ParseFailure, "subtree blob has invalid magic")
	}
	jsonLen := binary.LittleEndian.Uint64(blob[8:16])
	binLen := binary.LittleEndian.Uint64(blob[16:24])
	if uint64(len(blob)-subtreeHeaderSize) < jsonLen+binLen {
		return nil, cdberrors.New(cdberrors.ParseFailure, "subtree blob truncated")
	}

	jsonChunk := blob[subtreeHeaderSize : subtreeHeaderSize+int(jsonLen)]
	binChunk := blob[subtreeHeaderSize+int(jsonLen) : subtreeHeaderSize+int(jsonLen)+int(binLen)]

	var doc subtreeDocument
	if err := json.Unmarshal(jsonChunk, &doc); err != nil {
		return nil, cdberrors.Wrap(cdberrors.ParseFailure, "parse subtree JSON", err)
	}
	if len(doc.BufferViews) < 2 {
		return nil, cdberrors.New(cdberrors.ParseFailure, "subtree JSON missing bufferViews")
	}

	nodeView, childView := doc.BufferViews[0], doc.BufferViews[1]
	if nodeView.ByteOffset+nodeView.ByteLength > len(binChunk) || childView.ByteOffset+childView.ByteLength > len(binChunk) {
		return nil, cdberrors.New(cdberrors.ParseFailure, "subtree bufferView out of range")
	}

	return &Subtree{
		NodeBuffer:  append([]byte(nil), binChunk[nodeView.ByteOffset:nodeView.ByteOffset+nodeView.ByteLength]...),
		ChildBuffer: append([]byte(nil), binChunk[childView.ByteOffset:childView.ByteOffset+childView.ByteLength]...),
	}, nil
}

func padSpaces(b []byte) []byte {
	for len(b)%8 != 0 {
		b = append(b, ' ')
	}
	return b
}

func padZeros(b []byte) []byte {
	for len(b)%8 != 0 {
		b = append(b, 0)
	}
	return b
}

// mortonEncode interleaves x and y's bits (Z-order curve), the Go
// equivalent of libmorton's morton2D_64_encode.
func mortonEncode(x, y int) int {
	return int(spreadBits(uint32(x)) | (spreadBits(uint32(y)) << 1))
}

func spreadBits(v uint32) uint64 {
	x := uint64(v) & 0xFFFFFFFF
	x = (x | (x << 16)) & 0x0000FFFF0000FFFF
	x = (x | (x << 8)) & 0x00FF00FF00FF00FF
	x = (x | (x << 4)) & 0x0F0F0F0F0F0F0F0F
	x = (x | (x << 2)) & 0x3333333333333333
	x = (x | (x << 1)) & 0x5555555555555555
	return x
}
