package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAvailableMarksItsOwnBit(t *testing.T) {
	store := NewStore()
	store.SetAvailable(0, 0, 0)

	key := Key{RootLevel: 0, RootX: 0, RootY: 0}
	subtrees := store.Subtrees()
	st, ok := subtrees[key]
	if !ok {
		t.Fatalf("expected a subtree to exist at %+v", key)
	}
	assert.True(t, bitSet(st.NodeBuffer, 0))
}

func TestSetAvailableIsIdempotent(t *testing.T) {
	store := NewStore()
	store.SetAvailable(2, 3, 1)
	before := snapshot(store)
	store.SetAvailable(2, 3, 1)
	after := snapshot(store)
	assert.Equal(t, before, after)
}

func TestSetAvailablePropagatesAcrossSubtreeBoundary(t *testing.T) {
	store := NewStore()
	// SubtreeLevels == 3, so level 3 belongs to a child subtree rooted
	// at level 3; setting it available must mark a bit in the parent
	// subtree's (rooted at level 0) child buffer.
	store.SetAvailable(3, 0, 0)

	parentKey := Key{RootLevel: 0, RootX: 0, RootY: 0}
	parent, ok := store.Subtrees()[parentKey]
	if !ok {
		t.Fatalf("expected parent subtree to exist at %+v", parentKey)
	}
	assert.True(t, bitSet(parent.ChildBuffer, 0))
}

func TestMortonEncodeIsBijectiveForSmallValues(t *testing.T) {
	seen := make(map[int]bool)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			idx := mortonEncode(x, y)
			assert.False(t, seen[idx], "collision at (%d,%d) -> %d", x, y, idx)
			seen[idx] = true
		}
	}
}

func bitSet(buf []byte, index int) bool {
	return buf[index/8]&(1<<uint(index%8)) != 0
}

func snapshot(s *Store) map[Key][2]string {
	out := make(map[Key][2]string)
	for k, st := range s.Subtrees() {
		out[k] = [2]string{string(st.NodeBuffer), string(st.ChildBuffer)}
	}
	return out
}
