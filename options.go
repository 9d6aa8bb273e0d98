package bwtree

// Options configures index behavior and tuning parameters.
type Options struct {
	leafSlotMax          int // LEAF_SLOT_MAX: max (key, value-list) slots per base leaf.
	innerSlotMax         int // INNER_SLOT_MAX: max separator/child slots per base inner.
	mappingTableCapacity int // Number of cells in the mapping table.
	consolidateThreshold int // Chain length above which a page becomes a consolidation candidate.
	foldCacheSize        int // Max entries in the fold-result cache; 0 disables it.
	epochShards          int // Number of shards in the epoch reclaimer's retirement lists.
	maxReaders           int // Number of concurrent epoch-registry slots.
	logger               Logger
}

// DefaultOptions returns safe default configuration.
//
// goland:noinspection GoUnusedExportedFunction
func DefaultOptions() Options {
	return Options{
		leafSlotMax:          64,
		innerSlotMax:         64,
		mappingTableCapacity: 4 * 1024 * 1024, // 4,194,304 cells, per spec §6.
		consolidateThreshold: 8,
		foldCacheSize:        4096,
		epochShards:          16,
		maxReaders:           4096,
		logger:               DiscardLogger{},
	}
}

// Option configures the index using the functional options pattern.
type Option func(*Options)

// WithLeafSlotMax sets LEAF_SLOT_MAX, the slot count at which a leaf splits.
// Must be at least 8; values below that are clamped up.
//
//goland:noinspection GoUnusedExportedFunction
func WithLeafSlotMax(n int) Option {
	return func(o *Options) {
		if n < 8 {
			n = 8
		}
		o.leafSlotMax = n
	}
}

// WithInnerSlotMax sets INNER_SLOT_MAX, the slot count at which an inner
// node splits. Must be at least 8; values below that are clamped up.
//
//goland:noinspection GoUnusedExportedFunction
func WithInnerSlotMax(n int) Option {
	return func(o *Options) {
		if n < 8 {
			n = 8
		}
		o.innerSlotMax = n
	}
}

// WithMappingTableCapacity sets the number of PID slots the mapping table
// can hold. Exceeding it is a fatal configuration error (ErrCapacityExhausted).
//
//goland:noinspection GoUnusedExportedFunction
func WithMappingTableCapacity(n int) Option {
	return func(o *Options) {
		o.mappingTableCapacity = n
	}
}

// WithConsolidateThreshold sets the delta chain length above which an
// operation opportunistically triggers consolidation of the page it just
// touched.
//
//goland:noinspection GoUnusedExportedFunction
func WithConsolidateThreshold(n int) Option {
	return func(o *Options) {
		if n < 1 {
			n = 1
		}
		o.consolidateThreshold = n
	}
}

// WithFoldCacheSize sets the capacity of the fold-result cache. Zero
// disables the cache entirely; every Lookup/Exists/Scan then re-walks its
// page's delta chain on every call.
//
//goland:noinspection GoUnusedExportedFunction
func WithFoldCacheSize(n int) Option {
	return func(o *Options) {
		if n < 0 {
			n = 0
		}
		o.foldCacheSize = n
	}
}

// WithEpochShards sets the number of shards used by the epoch reclaimer's
// retirement lists, trading memory for reduced contention under many
// concurrent retiring workers.
//
//goland:noinspection GoUnusedExportedFunction
func WithEpochShards(n int) Option {
	return func(o *Options) {
		if n < 1 {
			n = 1
		}
		o.epochShards = n
	}
}

// WithMaxReaders sets the number of concurrent slots in the epoch
// registry. Exceeding it returns ErrTooManyReaders until a slot frees up.
//
//goland:noinspection GoUnusedExportedFunction
func WithMaxReaders(n int) Option {
	return func(o *Options) {
		if n < 1 {
			n = 1
		}
		o.maxReaders = n
	}
}

// WithLogger injects a Logger the core calls into on splits, root growth,
// consolidation, and split-path failures. Lost CAS races and their
// retries are not logged. Defaults to DiscardLogger.
//
//goland:noinspection GoUnusedExportedFunction
func WithLogger(l Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}
