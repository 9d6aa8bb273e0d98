package bwtree

import "bytes"

// KeyComparator is the external collaborator that orders keys. It must be
// a strict weak order: less(a, b) and less(b, a) can never both hold, and
// equivalence (neither holds) must be transitive. Folding (§4.2) assumes
// this; a violating comparator can produce a non-sorted fold result, and
// the index does not check for it.
type KeyComparator interface {
	Less(a, b []byte) bool
}

// ValueEqualor is the external collaborator used by delete-value to decide
// whether a candidate value matches the one being removed (e.g. tuple
// pointer (block, offset) equality).
type ValueEqualor interface {
	Equal(a, b []byte) bool
}

// bytesComparator orders keys with bytes.Compare, the default when no
// KeyComparator is supplied.
type bytesComparator struct{}

func (bytesComparator) Less(a, b []byte) bool { return bytes.Compare(a, b) < 0 }

// bytesEqualor compares values with bytes.Equal, the default when no
// ValueEqualor is supplied.
type bytesEqualor struct{}

func (bytesEqualor) Equal(a, b []byte) bool { return bytes.Equal(a, b) }

// keyEqual derives equality from a KeyComparator, per spec.md §3:
// "equality is derived as !(a<b) && !(b<a)".
func keyEqual(cmp KeyComparator, a, b []byte) bool {
	return !cmp.Less(a, b) && !cmp.Less(b, a)
}
