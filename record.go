package bwtree

import "sort"

// kind tags the variant a record carries. A single flat struct plays the
// role of spec.md §9's "single tagged variant" in place of a node-type
// hierarchy, mirroring the teacher's preference for one flat node struct
// with a discriminating flag (node.go's `isLeaf bool`) over an interface
// per node kind.
type kind uint8

const (
	kindBaseLeaf kind = iota
	kindBaseInner
	kindInsert
	kindDeleteKey
	kindDeleteValue
	kindUpdate
	kindSplit
	kindSeparator
	numKinds
)

// record is one link in a page's delta chain. Every record published to
// the mapping table is immutable after publication except for the
// write-once next/prev/parent fields a split's winning worker sets while
// completing the protocol (spec.md §5).
type record struct {
	k     kind
	level uint32 // 0 for leaf, matches the page it terminates or deltas
	size  int    // logical entry count after applying this record
	chain int    // chain length: number of deltas in front of the base
	seq   uint64 // stamped by mappingTable on publish; identifies this exact head

	next *record // older record in the chain; nil at the base

	// Base leaf / base inner payload. A base record owns its slot arrays
	// directly; any sort order is maintained by the writer.
	keys     [][]byte   // base leaf: entry keys. base inner: separator keys.
	values   [][][]byte // base leaf only: per-key value lists, parallel to keys.
	children []PID      // base inner only: len(keys)+1 child PIDs.

	prevLeaf PID // base leaf only
	nextLeaf PID // base leaf only
	parent   PID // base leaf/inner: parent PID for reverse traversal during splits

	// insert / update: adds or replaces k's value list with {value}.
	// deleteKey: removes key's whole value list.
	// deleteValue: removes one value from key's list.
	key   []byte
	value []byte

	// split: keys >= splitKey now live in sibling.
	splitKey []byte
	sibling  PID

	// separator: parent range [sepLeft, sepRight) (or [sepLeft, inf) when
	// rightmost) routes to child.
	sepLeft   []byte
	sepRight  []byte
	child     PID
	rightmost bool
}

func (r *record) isLeaf() bool { return r.level == 0 }

// Entry is one (key, value-list) pair in a folded logical view.
type Entry struct {
	Key    []byte
	Values [][]byte
}

// foldLeaf computes the logical view of a leaf page's delta chain,
// following spec.md §4.2's five-step algorithm: honor the nearest
// split-δ's key cutoff, collect delete masks, apply inserts/updates over
// the base, then return the sorted result.
//
// veq is the collaborator that decides whether two values are the same
// one for insert-dedup and delete-value matching (spec.md §6); the
// default bytesEqualor matches byte identity, but a caller-supplied
// equalor (e.g. tuple-pointer (block, offset) equality) is honored the
// same way.
//
// splitKey, hasSplit identify an in-progress split on this page: the
// caller is responsible for re-routing to the sibling when the search or
// mutation key falls at or past splitKey (spec.md §4.3, §4.4 step 2).
func foldLeaf(cmp KeyComparator, veq ValueEqualor, head *record) (entries []Entry, splitKey []byte, hasSplit bool) {
	// valueVerdict is one value's fate, decided by the newest record that
	// touched it.
	type valueVerdict struct {
		value   []byte
		present bool
	}

	// keyState tracks, per key, the per-value verdicts decided so far and
	// whether an update/delete-key horizon has been crossed. Records are
	// walked newest-to-oldest; the first record to touch a given (key,
	// value) pair decides that pair's fate, and everything older than a
	// horizon record for a key is shadowed outright (spec.md §4.2, §9).
	type keyState struct {
		key     []byte
		values  []*valueVerdict
		stopped bool // an update or delete-key horizon has been crossed for this key
	}

	states := make(map[string]*keyState)
	keyOrder := make([]string, 0, 16)

	stateFor := func(k []byte) *keyState {
		ks := string(k)
		st, ok := states[ks]
		if !ok {
			st = &keyState{key: k}
			states[ks] = st
			keyOrder = append(keyOrder, ks)
		}
		return st
	}

	decide := func(st *keyState, v []byte, present bool) {
		for _, vv := range st.values {
			if veq.Equal(vv.value, v) {
				return // a newer record already decided this value
			}
		}
		st.values = append(st.values, &valueVerdict{value: v, present: present})
	}

	for rec := head; rec != nil; rec = rec.next {
		switch rec.k {
		case kindSplit:
			if !hasSplit {
				hasSplit = true
				splitKey = rec.splitKey
			}
		case kindDeleteKey:
			if hasSplit && !cmp.Less(rec.key, splitKey) {
				continue
			}
			st := stateFor(rec.key)
			if st.stopped {
				continue
			}
			st.stopped = true // horizon: values already decided stand, base never contributes
		case kindDeleteValue:
			if hasSplit && !cmp.Less(rec.key, splitKey) {
				continue
			}
			st := stateFor(rec.key)
			if st.stopped {
				continue
			}
			decide(st, rec.value, false)
		case kindInsert:
			if hasSplit && !cmp.Less(rec.key, splitKey) {
				continue
			}
			st := stateFor(rec.key)
			if st.stopped {
				continue
			}
			decide(st, rec.value, true)
		case kindUpdate:
			if hasSplit && !cmp.Less(rec.key, splitKey) {
				continue
			}
			st := stateFor(rec.key)
			if st.stopped {
				continue
			}
			decide(st, rec.value, true)
			st.stopped = true // horizon: update replaces the list wholesale
		case kindBaseLeaf:
			for i, bk := range rec.keys {
				if hasSplit && !cmp.Less(bk, splitKey) {
					continue
				}
				st := stateFor(bk)
				if st.stopped {
					continue // a newer update/delete-key already decided this key fully
				}
				for _, v := range rec.values[i] {
					decide(st, v, true)
				}
			}
		}
	}

	result := make([]Entry, 0, len(states))
	for _, ks := range keyOrder {
		st := states[ks]
		vals := make([][]byte, 0, len(st.values))
		for _, vv := range st.values {
			if vv.present {
				vals = append(vals, vv.value)
			}
		}
		if len(vals) == 0 {
			continue
		}
		result = append(result, Entry{Key: st.key, Values: vals})
	}
	sort.Slice(result, func(i, j int) bool { return cmp.Less(result[i].Key, result[j].Key) })
	return result, splitKey, hasSplit
}

// scanSplit walks a chain looking for its split-δ, if any, returning the
// cutoff key and the sibling PID that now owns keys at or past it. A page
// that splits again stacks a newer split-δ over the older one; the
// newest (nearest the head, with the lowest cutoff) is the one returned.
// It need not be the chain head: mutations on keys still owned by this
// page may be appended on top of it (spec.md §4.3, §4.4 step 2).
func scanSplit(head *record) (splitKey []byte, sibling PID, hasSplit bool) {
	for rec := head; rec != nil; rec = rec.next {
		if rec.k == kindSplit {
			return rec.splitKey, rec.sibling, true
		}
	}
	return nil, nullPID, false
}

// childEntry is one child's range in a folded inner view, expressed as
// the lower bound of the range it owns: Lower == nil means the range
// starts at -infinity (the page's leftmost child). Expressing ranges this
// way, rather than as (separator key, child) pairs, lets a base inner's
// implicit rightmost child (the one with no separator of its own) appear
// in the fold on equal footing with every other child.
type childEntry struct {
	Lower []byte
	Child PID
}

type foldInnerKey struct {
	negInf bool
	s      string
}

func innerKeyFor(lower []byte) foldInnerKey {
	if lower == nil {
		return foldInnerKey{negInf: true}
	}
	return foldInnerKey{s: string(lower)}
}

// foldInner computes the logical (range-lower-bound, child-PID) view of
// an inner page's delta chain: the same newest-to-oldest shadowing rule
// as foldLeaf, specialized to carry a child PID instead of a value list
// (spec.md §4.2). There is no delete/update for inner pages, so every
// entry is either a separator-δ or a slot inherited from the base.
func foldInner(cmp KeyComparator, head *record) (entries []childEntry, splitKey []byte, hasSplit bool) {
	overrides := make(map[foldInnerKey]childEntry)
	order := make([]foldInnerKey, 0, 16)

	for rec := head; rec != nil; rec = rec.next {
		switch rec.k {
		case kindSplit:
			if !hasSplit {
				hasSplit = true
				splitKey = rec.splitKey
			}
		case kindSeparator:
			if hasSplit && rec.sepLeft != nil && !cmp.Less(rec.sepLeft, splitKey) {
				continue
			}
			fk := innerKeyFor(rec.sepLeft)
			if _, already := overrides[fk]; already {
				continue
			}
			overrides[fk] = childEntry{Lower: rec.sepLeft, Child: rec.child}
			order = append(order, fk)
		case kindBaseInner:
			for i := 0; i <= len(rec.keys); i++ {
				var lower []byte
				if i > 0 {
					lower = rec.keys[i-1]
				}
				if hasSplit && lower != nil && !cmp.Less(lower, splitKey) {
					continue
				}
				fk := innerKeyFor(lower)
				if _, already := overrides[fk]; already {
					continue
				}
				overrides[fk] = childEntry{Lower: lower, Child: rec.children[i]}
				order = append(order, fk)
			}
		}
	}

	result := make([]childEntry, 0, len(order))
	for _, fk := range order {
		result = append(result, overrides[fk])
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Lower, result[j].Lower
		if a == nil {
			return b != nil
		}
		if b == nil {
			return false
		}
		return cmp.Less(a, b)
	})
	return result, splitKey, hasSplit
}

// leafContainsKey reports whether the folded view of head already has an
// entry for key, used by the mutation engine to compute insert's +1/0 size
// delta (spec.md §4.4 step 3). It folds the whole chain to answer.
func leafContainsKey(cmp KeyComparator, veq ValueEqualor, head *record, key []byte) bool {
	entries, splitKey, hasSplit := foldLeaf(cmp, veq, head)
	if hasSplit && !cmp.Less(key, splitKey) {
		// Key belongs to the sibling; from this page's perspective it is
		// absent.
		return false
	}
	for _, e := range entries {
		if keyEqual(cmp, e.Key, key) {
			return true
		}
	}
	return false
}
