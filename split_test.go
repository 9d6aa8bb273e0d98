package bwtree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLeafProducesTwoReachableLeaves(t *testing.T) {
	idx, err := New(WithMappingTableCapacity(1<<12), WithLeafSlotMax(8))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		require.NoError(t, idx.Insert(key, []byte("v")))
	}

	rootPID := PID(idx.root.Load())
	head := idx.mapping.get(rootPID)
	require.NotNil(t, head)
	// the root must have grown into an inner page once the original leaf
	// root overflowed and split.
	assert.False(t, head.isLeaf())

	entries, err := idx.Scan()
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestSplitLeafPreservesLeafChainLinks(t *testing.T) {
	idx, err := New(WithMappingTableCapacity(1<<12), WithLeafSlotMax(8))
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		key := []byte(fmt.Sprintf("k%03d", i))
		require.NoError(t, idx.Insert(key, []byte("v")))
	}

	var seen int
	pid := idx.leftmostLeaf()
	for pid != nullPID {
		head := idx.mapping.get(pid)
		require.NotNil(t, head)
		entries, _, _ := foldLeaf(idx.cmp, idx.veq, head)
		seen += len(entries)
		if _, sib, has := scanSplit(head); has {
			pid = sib
			continue
		}
		_, next := baseLeafLinks(head)
		pid = next
	}
	assert.Equal(t, 30, seen)
}

func TestFindUpperKeyReportsRightmost(t *testing.T) {
	idx := newTestIndex(t)
	parent := baseInner([]string{"m"}, []PID{1, 2})
	upper, rightmost := idx.findUpperKey(parent, []byte("z"))
	assert.True(t, rightmost)
	assert.Equal(t, []byte("z"), upper)

	upper, rightmost = idx.findUpperKey(parent, []byte("a"))
	assert.False(t, rightmost)
	assert.Equal(t, []byte("m"), upper)
}

func TestRootGrowsExactlyOnceOnRepeatedOverflow(t *testing.T) {
	idx, err := New(WithMappingTableCapacity(1<<12), WithLeafSlotMax(1000))
	require.NoError(t, err)
	require.NoError(t, idx.ensureInitialized())

	leafPID := PID(idx.root.Load())
	head := idx.mapping.get(leafPID)

	p1 := idx.parentFor(leafPID, head)
	p2 := idx.parentFor(leafPID, head)
	// both callers observe the same (sole) newly grown root, never two
	// different ones.
	assert.Equal(t, p1, p2)
	assert.NotEqual(t, leafPID, p1)
}
