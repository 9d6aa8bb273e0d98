package bwtree

// Insert logically adds value to key's value list (spec.md §4.4).
// Duplicate (key, value) pairs collapse under fold (E3); distinct values
// for the same key accumulate.
func (idx *Index) Insert(key, value []byte) error {
	if err := idx.ensureInitialized(); err != nil {
		return err
	}
	exit, err := idx.enterEpoch()
	if err != nil {
		return err
	}
	defer exit()

	for {
		pid, head, err := idx.findLeaf(key)
		if err != nil {
			return err
		}

		present := leafContainsKey(idx.cmp, idx.veq, head, key)
		delta := idx.pool.get(kindInsert)
		delta.level = 0
		delta.key = key
		delta.value = value
		delta.next = head
		delta.chain = head.chain + 1
		if present {
			delta.size = head.size
		} else {
			delta.size = head.size + 1
		}

		if idx.mapping.install(pid, head, delta) {
			idx.afterMutate(pid, delta)
			return nil
		}
		idx.pool.put(delta)
	}
}

// DeleteKey logically removes all values for key. A missing key is a
// silent no-op, no delta is installed (spec.md §4.4 step 3, §7).
func (idx *Index) DeleteKey(key []byte) error {
	if err := idx.ensureInitialized(); err != nil {
		return err
	}
	exit, err := idx.enterEpoch()
	if err != nil {
		return err
	}
	defer exit()

	for {
		pid, head, err := idx.findLeaf(key)
		if err != nil {
			return err
		}
		if !leafContainsKey(idx.cmp, idx.veq, head, key) {
			return nil
		}

		delta := idx.pool.get(kindDeleteKey)
		delta.level = 0
		delta.key = key
		delta.next = head
		delta.chain = head.chain + 1
		delta.size = head.size - 1

		if idx.mapping.install(pid, head, delta) {
			idx.afterMutate(pid, delta)
			return nil
		}
		idx.pool.put(delta)
	}
}

// DeleteValue logically removes value from key's value list, leaving any
// other values for key intact. Always installs, regardless of whether
// key or value is currently present (the fold shadow is a no-op if
// there was nothing to shadow), per spec.md §4.4 step 3.
func (idx *Index) DeleteValue(key, value []byte) error {
	if err := idx.ensureInitialized(); err != nil {
		return err
	}
	exit, err := idx.enterEpoch()
	if err != nil {
		return err
	}
	defer exit()

	for {
		pid, head, err := idx.findLeaf(key)
		if err != nil {
			return err
		}

		delta := idx.pool.get(kindDeleteValue)
		delta.level = 0
		delta.key = key
		delta.value = value
		delta.next = head
		delta.chain = head.chain + 1
		delta.size = head.size

		if idx.mapping.install(pid, head, delta) {
			idx.afterMutate(pid, delta)
			return nil
		}
		idx.pool.put(delta)
	}
}

// Update replaces key's entire value list with {value} (spec.md §3, §9
// open question #1, resolved in favor of replace over append).
func (idx *Index) Update(key, value []byte) error {
	if err := idx.ensureInitialized(); err != nil {
		return err
	}
	exit, err := idx.enterEpoch()
	if err != nil {
		return err
	}
	defer exit()

	for {
		pid, head, err := idx.findLeaf(key)
		if err != nil {
			return err
		}

		delta := idx.pool.get(kindUpdate)
		delta.level = 0
		delta.key = key
		delta.value = value
		delta.next = head
		delta.chain = head.chain + 1
		delta.size = head.size

		if idx.mapping.install(pid, head, delta) {
			idx.afterMutate(pid, delta)
			return nil
		}
		idx.pool.put(delta)
	}
}

// Lookup returns key's folded value list, or (nil, nil) if key is absent
// (an empty result is not an error, per spec.md §7).
func (idx *Index) Lookup(key []byte) ([][]byte, error) {
	exit, err := idx.enterEpoch()
	if err != nil {
		return nil, err
	}
	defer exit()

	if PID(idx.root.Load()) == nullPID {
		return nil, nil
	}
	pid, head, err := idx.findLeaf(key)
	if err != nil {
		return nil, err
	}
	for _, e := range idx.foldLeafCached(pid, head) {
		if keyEqual(idx.cmp, e.Key, key) {
			return e.Values, nil
		}
	}
	return nil, nil
}

// Exists reports whether key has any values.
func (idx *Index) Exists(key []byte) (bool, error) {
	vals, err := idx.Lookup(key)
	if err != nil {
		return false, err
	}
	return vals != nil, nil
}

// Scan returns every (key, value-list) entry across the whole index, in
// ascending key order, by walking the leaf chain left to right
// (spec.md §4.4, "FullScan").
func (idx *Index) Scan() ([]Entry, error) {
	exit, err := idx.enterEpoch()
	if err != nil {
		return nil, err
	}
	defer exit()

	if PID(idx.root.Load()) == nullPID {
		return nil, nil
	}

	var out []Entry
	pid := idx.leftmostLeaf()
	for pid != nullPID {
		head := idx.mapping.get(pid)
		if head == nil {
			break
		}
		out = append(out, idx.foldLeafCached(pid, head)...)

		if _, sib, has := scanSplit(head); has {
			pid = sib
			continue
		}
		_, next := baseLeafLinks(head)
		pid = next
	}
	return out, nil
}

// leftmostLeaf descends the inner chain always taking the minimum-
// covering child; splits only ever add a right sibling, so the original
// leftmost child PID at every level never changes out from under this
// descent (spec.md §4.5).
func (idx *Index) leftmostLeaf() PID {
	pid := PID(idx.root.Load())
	for {
		head := idx.mapping.get(pid)
		if head == nil {
			return nullPID
		}
		if head.isLeaf() {
			return pid
		}
		child := nullPID
		for rec := head; rec != nil; rec = rec.next {
			if rec.k == kindBaseInner && len(rec.children) > 0 {
				child = rec.children[0]
				break
			}
		}
		if child == nullPID {
			return nullPID
		}
		pid = child
	}
}

// baseLeafLinks scans to a leaf chain's base record for its doubly-
// linked prev/next leaf PIDs.
func baseLeafLinks(head *record) (prev, next PID) {
	for rec := head; rec != nil; rec = rec.next {
		if rec.k == kindBaseLeaf {
			return rec.prevLeaf, rec.nextLeaf
		}
	}
	return nullPID, nullPID
}

// afterMutate runs the reactive structural-modification checks every
// mutation triggers: opportunistic consolidation on a long chain, then a
// split if the page has grown past its slot budget (spec.md §4.4 step 4,
// §4.5).
func (idx *Index) afterMutate(pid PID, head *record) {
	if head.chain > idx.opts.consolidateThreshold {
		idx.consolidate(pid)
		// Re-load: consolidation may have replaced head, and the split
		// check below must see the page's true current size.
		if cur := idx.mapping.get(pid); cur != nil {
			head = cur
		}
	}
	if head.isLeaf() {
		if head.size > idx.opts.leafSlotMax {
			idx.splitLeaf(pid)
		}
		return
	}
	if head.size > idx.opts.innerSlotMax {
		idx.splitInner(pid)
	}
}
