package bwtree

import "errors"

//goland:noinspection GoUnusedGlobalVariable
var (
	// ErrKeyNotFound names a missing key. No operation in this package
	// returns it: Lookup returns (nil, nil) and Exists returns false.
	ErrKeyNotFound = errors.New("key not found")

	// ErrIndexClosed names an index that has been shut down. Index has no
	// Close method, and no operation in this package returns it.
	ErrIndexClosed = errors.New("index is closed")

	// ErrCapacityExhausted is a fatal configuration error: the PID counter
	// has exceeded the mapping table's capacity.
	ErrCapacityExhausted = errors.New("mapping table capacity exhausted")

	// ErrComparatorViolation names a KeyComparator that is not a strict
	// weak order. The index never checks the comparator, so no operation
	// in this package returns it.
	ErrComparatorViolation = errors.New("key comparator is not a strict weak order")

	// ErrInvalidPID is returned when an operation is asked to resolve the
	// null PID sentinel as if it were a live page.
	ErrInvalidPID = errors.New("invalid page id")

	// ErrTooManyReaders is returned by the epoch registry when every slot
	// is occupied; raise Options' reader capacity to resolve it.
	ErrTooManyReaders = errors.New("too many concurrent readers")
)
