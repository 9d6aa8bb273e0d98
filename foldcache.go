package bwtree

import (
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"
)

// foldCacheKey identifies one fold result: a page PID plus the monotonic
// sequence number mappingTable stamped into the chain head it was folded
// from. Records are pooled (pool.go) and reclaimed back into sync.Pool by
// the epoch reclaimer, so the same address can become a later, different
// head for the same PID; keying on the stamped seq instead of pointer
// identity (or the page's own address) avoids mistaking a recycled record
// for the one a stale cache entry was built from (SPEC_FULL.md §4.6).
type foldCacheKey struct {
	pid PID
	seq uint64
}

func hashFoldCacheKey(k foldCacheKey) uint32 {
	var buf [16]byte
	putUint64(buf[0:8], uint64(k.pid))
	putUint64(buf[8:16], k.seq)
	return uint32(xxhash.Sum64(buf[:]))
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}

// foldCache memoizes foldLeaf results behind an LRU, mirroring the
// teacher's versioned PageCache (pagecache.go) but keyed by the chain
// head's publish sequence instead of a transaction-visible version number,
// since there is no MVCC snapshot concept here (only "this exact published
// chain").
type foldCache struct {
	lru *freelru.LRU[foldCacheKey, []Entry]

	hits   atomic.Uint64
	misses atomic.Uint64
}

func newFoldCache(capacity int) *foldCache {
	if capacity <= 0 {
		return nil
	}
	lru, err := freelru.New[foldCacheKey, []Entry](uint32(capacity), hashFoldCacheKey)
	if err != nil {
		// Capacity is always > 0 and the hash function is well-formed;
		// freelru.New only fails on malformed arguments.
		panic(err)
	}
	return &foldCache{lru: lru}
}

// foldLeafCached returns the folded view of head, consulting the cache
// first when one is configured.
func (idx *Index) foldLeafCached(pid PID, head *record) []Entry {
	if idx.foldCache == nil {
		entries, _, _ := foldLeaf(idx.cmp, idx.veq, head)
		return entries
	}
	key := foldCacheKey{pid: pid, seq: head.seq}
	if entries, ok := idx.foldCache.lru.Get(key); ok {
		idx.foldCache.hits.Add(1)
		return entries
	}
	idx.foldCache.misses.Add(1)
	entries, _, _ := foldLeaf(idx.cmp, idx.veq, head)
	idx.foldCache.lru.Add(key, entries)
	return entries
}
