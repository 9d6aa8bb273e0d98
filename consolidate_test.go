package bwtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// consolidate must not erase a live split-δ: the parent may not yet carry
// a separator for the sibling, so this page's own split-δ can still be
// the only route to it.
func TestConsolidateLeafPreservesLiveSplitDelta(t *testing.T) {
	idx := newTestIndex(t)

	pid, err := idx.mapping.allocate()
	require.NoError(t, err)
	sibPID, err := idx.mapping.allocate()
	require.NoError(t, err)

	base := baseLeaf([]string{"a", "m", "z"}, [][]string{{"1"}, {"2"}, {"3"}})
	splitDelta := &record{k: kindSplit, splitKey: []byte("m"), sibling: sibPID, next: base, chain: 1, size: 1}
	del := &record{k: kindDeleteValue, key: []byte("a"), value: []byte("nope"), next: splitDelta, chain: 2, size: 1}
	idx.mapping.bind(pid, del)

	idx.consolidate(pid)

	head := idx.mapping.get(pid)
	require.NotNil(t, head)

	splitKey, sib, hasSplit := scanSplit(head)
	require.True(t, hasSplit, "consolidation must not drop the live split-δ")
	assert.Equal(t, []byte("m"), splitKey)
	assert.Equal(t, sibPID, sib)

	entries, sk, hs := foldLeaf(idx.cmp, idx.veq, head)
	assert.True(t, hs)
	assert.Equal(t, []byte("m"), sk)
	assert.True(t, hasKey(entries, "a"))
	assert.False(t, hasKey(entries, "m"))
	assert.False(t, hasKey(entries, "z"))
}

// a key that has moved past a consolidated page's split-δ must still
// route to the sibling, since the parent has not installed a separator
// yet in this scenario.
func TestConsolidateLeafKeepsRoutingPastSplitKey(t *testing.T) {
	idx := newTestIndex(t)

	pid, err := idx.mapping.allocate()
	require.NoError(t, err)
	sibPID, err := idx.mapping.allocate()
	require.NoError(t, err)

	base := baseLeaf([]string{"a", "m", "z"}, [][]string{{"1"}, {"2"}, {"3"}})
	splitDelta := &record{k: kindSplit, splitKey: []byte("m"), sibling: sibPID, next: base, chain: 1, size: 1}
	idx.mapping.bind(pid, splitDelta)

	idx.consolidate(pid)

	head := idx.mapping.get(pid)
	require.NotNil(t, head)
	_, sib, has := scanSplit(head)
	require.True(t, has)
	assert.Equal(t, sibPID, sib)
}
