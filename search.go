package bwtree

// findLeaf resolves key to the PID and currently observed chain head of
// the leaf that owns it, per spec.md §4.3. It is wait-free: every
// intermediate state the mapping table can publish routes correctly, so
// no retry loop is needed here, only at the leaf-level split-δ hop.
func (idx *Index) findLeaf(key []byte) (PID, *record, error) {
	pid := PID(idx.root.Load())
	for {
		head := idx.mapping.get(pid)
		if head == nil {
			return nullPID, nil, ErrInvalidPID
		}
		if head.isLeaf() {
			if sk, sib, has := scanSplit(head); has && !idx.cmp.Less(key, sk) {
				pid = sib
				continue
			}
			return pid, head, nil
		}
		next, ok := idx.routeInner(head, key)
		if !ok {
			return nullPID, nil, ErrInvalidPID
		}
		pid = next
	}
}

// routeInner applies the per-record routing rule of spec.md §4.3 to an
// inner page's chain: a split-δ redirects to the sibling when the key has
// moved past the cutoff, a separator-δ redirects when the key falls in
// its announced range, and the base inner's sorted separator array is the
// fallback once no delta claims the key.
func (idx *Index) routeInner(head *record, key []byte) (PID, bool) {
	for rec := head; rec != nil; rec = rec.next {
		switch rec.k {
		case kindSplit:
			if !idx.cmp.Less(key, rec.splitKey) {
				return rec.sibling, true
			}
		case kindSeparator:
			if !idx.cmp.Less(key, rec.sepLeft) {
				if rec.rightmost || idx.cmp.Less(key, rec.sepRight) {
					return rec.child, true
				}
			}
		case kindBaseInner:
			return idx.routeBaseInner(rec, key), true
		}
	}
	return nullPID, false
}

// routeBaseInner finds the least i with key < sep[i] and returns
// child[i]; if no separator exceeds key, the last child covers it.
func (idx *Index) routeBaseInner(rec *record, key []byte) PID {
	for i, sk := range rec.keys {
		if idx.cmp.Less(key, sk) {
			return rec.children[i]
		}
	}
	return rec.children[len(rec.children)-1]
}
