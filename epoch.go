package bwtree

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// epochRegistry tracks active readers/mutators by a fixed slot array, the
// same O(1) register/unregister shape as readslots.go's ReaderSlots, but
// keyed by a monotonic epoch counter instead of a transaction ID: every
// retired record is stamped with the epoch at the moment it was unlinked,
// and is safe to free once no registered slot holds an epoch at or below
// that stamp (spec.md §5, "Epoch-based reclamation").
type epochRegistry struct {
	slots  []atomic.Uint64 // 0 means the slot is empty
	global atomic.Uint64   // monotonic epoch counter, bumped by advance

	retire    []retirementList // sharded by xxhash of the retired PID
	shardsMu  sync.Mutex
	onReclaim func(*record) // returns a reclaimed record to its pool; may be nil
}

// retirementList holds records unlinked from the mapping table but not
// yet provably unreachable by any active reader.
type retirementList struct {
	mu    sync.Mutex
	items []retiredRecord
}

type retiredRecord struct {
	rec   *record
	epoch uint64
}

// newEpochRegistry builds a registry sized for maxReaders concurrent
// slots and shardCount retirement shards. Sharding the retirement lists
// by PID hash (rather than one global mutex-guarded slice) follows
// SPEC_FULL.md's domain-stack wiring for xxhash, reused here from its
// role as a page checksum in pagemanager.go's on-disk format.
func newEpochRegistry(maxReaders, shardCount int) *epochRegistry {
	if shardCount < 1 {
		shardCount = 1
	}
	er := &epochRegistry{
		slots:  make([]atomic.Uint64, maxReaders),
		retire: make([]retirementList, shardCount),
	}
	er.global.Store(1)
	return er
}

// enter registers the calling goroutine as active in the current epoch
// and returns an exit function that must be called exactly once to
// unregister. Mirrors readslots.go's closure-free Register/Unregister
// pair, but returns the unregister call bound to its own slot to avoid
// the caller needing to track a slot index.
func (er *epochRegistry) enter() (exit func(), err error) {
	e := er.global.Load()
	for i := range er.slots {
		if er.slots[i].CompareAndSwap(0, e) {
			idx := i
			return func() { er.slots[idx].Store(0) }, nil
		}
	}
	return nil, ErrTooManyReaders
}

// advance bumps the global epoch. Called opportunistically after a
// structural modification so that records retired in the modification
// that just completed become reclaimable once every slot has moved past
// the epoch they were retired in.
func (er *epochRegistry) advance() uint64 {
	return er.global.Add(1)
}

// retireRecord stamps rec with the current epoch and files it under the shard
// for pid, deferring its reclamation until minActiveEpoch() clears it.
func (er *epochRegistry) retireRecord(pid PID, rec *record) {
	if rec == nil {
		return
	}
	shard := &er.retire[shardIndex(pid, len(er.retire))]
	shard.mu.Lock()
	shard.items = append(shard.items, retiredRecord{rec: rec, epoch: er.global.Load()})
	shard.mu.Unlock()
}

// minActiveEpoch scans the slot array for the oldest epoch any
// registered reader is still pinned to, or math.MaxUint64 if none are
// active (readslots.go's rescanMin, generalized from txID to epoch).
func (er *epochRegistry) minActiveEpoch() uint64 {
	min := uint64(math.MaxUint64)
	for i := range er.slots {
		if e := er.slots[i].Load(); e != 0 && e < min {
			min = e
		}
	}
	return min
}

// reclaim drops every retired record across all shards whose stamped
// epoch is strictly older than the oldest active reader, returning the
// count freed. Intended to be called periodically rather than on every
// retirement, since the dominant cost is the full slot scan.
func (er *epochRegistry) reclaim() int {
	floor := er.minActiveEpoch()
	freed := 0
	for i := range er.retire {
		shard := &er.retire[i]
		shard.mu.Lock()
		kept := shard.items[:0]
		for _, item := range shard.items {
			if item.epoch < floor {
				freed++
				if er.onReclaim != nil {
					er.onReclaim(item.rec)
				}
				continue
			}
			kept = append(kept, item)
		}
		shard.items = kept
		shard.mu.Unlock()
	}
	return freed
}

func shardIndex(pid PID, shards int) int {
	if shards <= 1 {
		return 0
	}
	var buf [8]byte
	v := uint64(pid)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v)
		v >>= 8
	}
	return int(xxhash.Sum64(buf[:]) % uint64(shards))
}
