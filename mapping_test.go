package bwtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappingTableAllocateBind(t *testing.T) {
	mt := newMappingTable(16)

	pid, err := mt.allocate()
	require.NoError(t, err)
	assert.Nil(t, mt.get(pid))

	head := &record{k: kindBaseLeaf}
	mt.bind(pid, head)
	assert.Same(t, head, mt.get(pid))
}

func TestMappingTableInstallCAS(t *testing.T) {
	mt := newMappingTable(16)
	pid, err := mt.allocate()
	require.NoError(t, err)

	base := &record{k: kindBaseLeaf}
	mt.bind(pid, base)

	delta := &record{k: kindInsert, next: base}
	assert.True(t, mt.install(pid, base, delta))
	assert.Same(t, delta, mt.get(pid))

	// a CAS against a stale expected value must fail and leave the cell
	// untouched.
	stale := &record{k: kindInsert, next: base}
	assert.False(t, mt.install(pid, base, stale))
	assert.Same(t, delta, mt.get(pid))
}

// every publish through bind or install must stamp a fresh, strictly
// increasing seq, even across different PIDs, so that a recycled record
// address can never collide with a fold cache key built from an earlier
// head at the same PID.
func TestMappingTableStampsIncreasingSeq(t *testing.T) {
	mt := newMappingTable(16)
	pidA, err := mt.allocate()
	require.NoError(t, err)
	pidB, err := mt.allocate()
	require.NoError(t, err)

	baseA := &record{k: kindBaseLeaf}
	mt.bind(pidA, baseA)
	baseB := &record{k: kindBaseLeaf}
	mt.bind(pidB, baseB)
	assert.NotEqual(t, baseA.seq, baseB.seq)

	deltaA := &record{k: kindInsert, next: baseA}
	require.True(t, mt.install(pidA, baseA, deltaA))
	assert.Greater(t, deltaA.seq, baseB.seq)

	// even a record that was just retired and recycled back through the
	// pool at the same address gets a fresh seq on its next publish.
	recycled := baseA
	*recycled = record{k: kindBaseLeaf}
	mt.bind(pidA, recycled)
	assert.Greater(t, recycled.seq, deltaA.seq)
}

func TestMappingTableGetOutOfRange(t *testing.T) {
	mt := newMappingTable(4)
	assert.Nil(t, mt.get(nullPID))
	assert.Nil(t, mt.get(PID(1000)))
}

func TestPIDAllocatorNeverReusesAndExhausts(t *testing.T) {
	alloc := newPIDAllocator(4)
	seen := map[PID]bool{}
	for i := 0; i < 2; i++ {
		pid, err := alloc.allocate()
		require.NoError(t, err)
		assert.False(t, seen[pid])
		seen[pid] = true
	}
	// capacity is 4; the first PID issued is 1 and the allocator rejects
	// once next >= max.
	_, err := alloc.allocate()
	require.NoError(t, err)
	_, err = alloc.allocate()
	assert.ErrorIs(t, err, ErrCapacityExhausted)
}
