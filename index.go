package bwtree

import (
	"sync/atomic"
)

// Index is a latch-free, ordered key/value index shaped as a Bw-Tree. It
// owns its mapping table, root PID cell, PID counter, and epoch
// registry (no package-level singletons, spec.md §9, "Global mutable
// state", mirroring the teacher's DB struct owning its BTree/WAL/page
// manager outright rather than reaching for globals).
type Index struct {
	mapping *mappingTable
	root    atomic.Uint64 // current root PID; 0 (nullPID) until first write

	cmp KeyComparator
	veq ValueEqualor

	pool      *recordPool
	epoch     *epochRegistry
	foldCache *foldCache

	opts   Options
	logger Logger
}

// New builds an empty Index using the given options and the default
// []byte comparator/equality collaborators. For non-byte-lexical
// orderings, apply WithComparator / WithValueEqualor through Configure
// on the returned Index; this rewrite keeps the default-only
// constructor the teacher's Open favors, with the tuning knobs threaded
// through functional options exactly as option.go does for DBOption.
func New(opts ...Option) (*Index, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	idx := &Index{
		mapping:   newMappingTable(o.mappingTableCapacity),
		cmp:       bytesComparator{},
		veq:       bytesEqualor{},
		pool:      newRecordPool(),
		epoch:     newEpochRegistry(o.maxReaders, o.epochShards),
		foldCache: newFoldCache(o.foldCacheSize),
		opts:      o,
		logger:    o.logger,
	}
	idx.epoch.onReclaim = idx.pool.put
	return idx, nil
}

// WithComparator overrides the default bytes.Compare-based KeyComparator.
// Must be supplied before the index receives its first write; changing it
// on a populated index produces undefined ordering.
//
//goland:noinspection GoUnusedExportedFunction
func WithComparator(cmp KeyComparator) func(*Index) {
	return func(idx *Index) {
		if cmp != nil {
			idx.cmp = cmp
		}
	}
}

// WithValueEqualor overrides the default bytes.Equal-based ValueEqualor
// used by DeleteValue to match the value being removed.
//
//goland:noinspection GoUnusedExportedFunction
func WithValueEqualor(veq ValueEqualor) func(*Index) {
	return func(idx *Index) {
		if veq != nil {
			idx.veq = veq
		}
	}
}

// Configure applies post-construction collaborator overrides (comparator,
// value equalor) that don't fit the Options functional-options shape
// because they're interfaces rather than scalars.
func (idx *Index) Configure(opts ...func(*Index)) {
	for _, opt := range opts {
		opt(idx)
	}
}

// enterEpoch registers the calling goroutine as active and returns an
// exit function that unregisters it and then opportunistically drains
// the epoch reclaimer, so chains retired by a consolidation actually
// get freed back to the pool instead of accumulating forever (spec.md
// §4.5, "Epoch-based reclamation").
func (idx *Index) enterEpoch() (exit func(), err error) {
	rawExit, err := idx.epoch.enter()
	if err != nil {
		return nil, err
	}
	return func() {
		rawExit()
		idx.epoch.reclaim()
	}, nil
}

// ensureInitialized lazily materializes the root leaf on first use,
// per spec.md §4.4's mutation prologue.
func (idx *Index) ensureInitialized() error {
	if PID(idx.root.Load()) != nullPID {
		return nil
	}
	pid, err := idx.mapping.allocate()
	if err != nil {
		return err
	}
	base := idx.pool.get(kindBaseLeaf)
	base.level = 0
	base.size = 0
	base.chain = 0
	base.keys = nil
	base.values = nil
	base.prevLeaf = nullPID
	base.nextLeaf = nullPID
	base.parent = nullPID
	idx.mapping.bind(pid, base)

	if idx.root.CompareAndSwap(uint64(nullPID), uint64(pid)) {
		return nil
	}
	// Lost the race: someone else initialized the root first. pid and
	// base were never reachable from anywhere else, so they can be
	// dropped without going through the epoch reclaimer.
	idx.pool.put(base)
	return nil
}
