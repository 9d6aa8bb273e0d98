package bwtree

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// two concurrent inserters covering disjoint key ranges must together
// leave the index with every key present, strictly ascending on scan.
func TestConcurrentInsertersDisjointRanges(t *testing.T) {
	idx, err := New(WithMappingTableCapacity(1<<16), WithLeafSlotMax(32), WithInnerSlotMax(32))
	require.NoError(t, err)

	const perWriter = 1000
	var wg sync.WaitGroup
	errs := make(chan error, 2*perWriter)

	insertRange := func(lo, hi int) {
		defer wg.Done()
		for i := lo; i < hi; i++ {
			key := []byte(fmt.Sprintf("k%06d", i))
			if err := idx.Insert(key, []byte("v")); err != nil {
				errs <- err
			}
		}
	}

	wg.Add(2)
	go insertRange(0, perWriter)
	go insertRange(perWriter, 2*perWriter)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	entries, err := idx.Scan()
	require.NoError(t, err)
	require.Len(t, entries, 2*perWriter)
	for i := 1; i < len(entries); i++ {
		assert.True(t, string(entries[i-1].Key) < string(entries[i].Key))
	}
}

// concurrent readers must never observe a torn or partial view while a
// writer is actively mutating the same keys.
func TestConcurrentReadersDuringWrites(t *testing.T) {
	idx, err := New(WithMappingTableCapacity(1<<14), WithLeafSlotMax(16))
	require.NoError(t, err)
	require.NoError(t, idx.Insert([]byte("seed"), []byte("v0")))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	readerErrs := make(chan error, 8)

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				vals, err := idx.Lookup([]byte("seed"))
				if err != nil {
					readerErrs <- err
					return
				}
				if len(vals) == 0 {
					readerErrs <- fmt.Errorf("seed key vanished")
					return
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		key := []byte(fmt.Sprintf("w%05d", i))
		require.NoError(t, idx.Insert(key, []byte("v")))
	}

	close(stop)
	wg.Wait()
	close(readerErrs)
	for err := range readerErrs {
		assert.NoError(t, err)
	}
}

// concurrent mutators touching the same key must never lose an update:
// every value either of them wrote must still be reachable afterward.
func TestConcurrentInsertersSameKeyAccumulateValues(t *testing.T) {
	idx := newTestIndex(t)

	var wg sync.WaitGroup
	const n = 100
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_ = idx.Insert([]byte("shared"), []byte(fmt.Sprintf("a%d", i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_ = idx.Insert([]byte("shared"), []byte(fmt.Sprintf("b%d", i)))
		}
	}()
	wg.Wait()

	vals, err := idx.Lookup([]byte("shared"))
	require.NoError(t, err)
	assert.Len(t, vals, 2*n)
}
