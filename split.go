package bwtree

// maxSplitRetries bounds the split protocol's CAS retry loop. A loss
// means another worker already handled the same overflow; spinning
// forever is never required because every retry re-observes the current
// head and exits early once the page is no longer over budget.
const maxSplitRetries = 32

// splitLeaf runs the two-phase leaf split protocol of spec.md §4.5. It is
// always safe to call speculatively: the first thing it does is re-check
// whether the page is still over LEAF_SLOT_MAX, since by the time a
// mutator's afterMutate hook runs, another worker may have already split
// the page out from under it.
func (idx *Index) splitLeaf(pid PID) {
	for attempt := 0; attempt < maxSplitRetries; attempt++ {
		head := idx.mapping.get(pid)
		if head == nil {
			return
		}
		if head.size <= idx.opts.leafSlotMax {
			return
		}

		parentPID := idx.parentFor(pid, head)

		entries, _, _ := foldLeaf(idx.cmp, idx.veq, head)
		if len(entries) < 2 {
			return
		}
		pos := len(entries) / 2
		splitKey := entries[pos].Key

		_, oldNext := baseLeafLinks(head)

		sibPID, err := idx.mapping.allocate()
		if err != nil {
			idx.logger.Error("leaf split: allocate sibling failed", "err", err)
			return
		}
		n := len(entries) - pos
		sib := idx.pool.get(kindBaseLeaf)
		sib.level = 0
		sib.parent = parentPID
		sib.prevLeaf = pid
		sib.nextLeaf = oldNext
		sib.keys = make([][]byte, n)
		sib.values = make([][][]byte, n)
		for i := 0; i < n; i++ {
			sib.keys[i] = entries[pos+i].Key
			sib.values[i] = entries[pos+i].Values
		}
		sib.size = n
		idx.mapping.bind(sibPID, sib)

		splitDelta := idx.pool.get(kindSplit)
		splitDelta.level = 0
		splitDelta.splitKey = splitKey
		splitDelta.sibling = sibPID
		splitDelta.next = head
		splitDelta.chain = head.chain + 1
		splitDelta.size = pos

		if !idx.mapping.install(pid, head, splitDelta) {
			idx.pool.put(splitDelta)
			idx.pool.put(sib)
			continue
		}

		if b := findBase(head); b != nil {
			b.nextLeaf = sibPID
		}
		if oldNext != nullPID {
			if nextHead := idx.mapping.get(oldNext); nextHead != nil {
				if nb := findBase(nextHead); nb != nil {
					nb.prevLeaf = sibPID
				}
			}
		}

		idx.logger.Info("leaf split", "pid", pid, "sibling", sibPID, "splitKey", splitKey)
		idx.installSeparator(parentPID, splitKey, sibPID)
		return
	}
}

// splitInner runs the two-phase inner split protocol. It is identical in
// shape to splitLeaf but folds (lower-bound, child) ranges and, once its
// split-δ wins, rewrites the moved children's parent pointers to the new
// sibling so a later split of one of them walks to the right parent.
func (idx *Index) splitInner(pid PID) {
	for attempt := 0; attempt < maxSplitRetries; attempt++ {
		head := idx.mapping.get(pid)
		if head == nil {
			return
		}
		if head.size <= idx.opts.innerSlotMax {
			return
		}

		parentPID := idx.parentFor(pid, head)

		entries, _, _ := foldInner(idx.cmp, head)
		if len(entries) < 2 {
			return
		}
		pos := len(entries) / 2
		splitKey := entries[pos].Lower
		if splitKey == nil {
			// The midpoint can never be the -infinity entry in a
			// well-formed page (it would mean every child moved).
			return
		}

		sibPID, err := idx.mapping.allocate()
		if err != nil {
			idx.logger.Error("inner split: allocate sibling failed", "err", err)
			return
		}
		n := len(entries) - pos
		sib := idx.pool.get(kindBaseInner)
		sib.level = head.level
		sib.parent = parentPID
		sib.children = make([]PID, n)
		sib.keys = make([][]byte, n-1)
		for i := 0; i < n; i++ {
			sib.children[i] = entries[pos+i].Child
			if i > 0 {
				sib.keys[i-1] = entries[pos+i].Lower
			}
		}
		sib.size = n - 1
		idx.mapping.bind(sibPID, sib)

		splitDelta := idx.pool.get(kindSplit)
		splitDelta.level = head.level
		splitDelta.splitKey = splitKey
		splitDelta.sibling = sibPID
		splitDelta.next = head
		splitDelta.chain = head.chain + 1
		splitDelta.size = pos - 1

		if !idx.mapping.install(pid, head, splitDelta) {
			idx.pool.put(splitDelta)
			idx.pool.put(sib)
			continue
		}

		for _, moved := range sib.children {
			idx.setParent(moved, sibPID)
		}

		idx.logger.Info("inner split", "pid", pid, "sibling", sibPID, "splitKey", splitKey)
		idx.installSeparator(parentPID, splitKey, sibPID)
		return
	}
}

// installSeparator runs split phase 2: publish an index term on the
// parent for the newly visible sibling, recursively splitting the parent
// if that install pushes it past INNER_SLOT_MAX.
func (idx *Index) installSeparator(parentPID PID, splitKey []byte, sibling PID) {
	if parentPID == nullPID {
		idx.logger.Error("separator install: no parent", "sibling", sibling)
		return
	}
	for attempt := 0; attempt < maxSplitRetries; attempt++ {
		hp := idx.mapping.get(parentPID)
		if hp == nil {
			return
		}

		upper, rightmost := idx.findUpperKey(hp, splitKey)

		sep := idx.pool.get(kindSeparator)
		sep.level = hp.level
		sep.sepLeft = splitKey
		sep.sepRight = upper
		sep.child = sibling
		sep.rightmost = rightmost
		sep.next = hp
		sep.chain = hp.chain + 1
		sep.size = hp.size + 1

		if idx.mapping.install(parentPID, hp, sep) {
			idx.afterMutate(parentPID, sep)
			return
		}
		idx.pool.put(sep)
	}
}

// findUpperKey finds the smallest separator strictly greater than
// splitKey in the parent's folded view, or reports splitKey itself back
// to signal "rightmost" when none exists (spec.md §4.5).
func (idx *Index) findUpperKey(parentHead *record, splitKey []byte) (upper []byte, rightmost bool) {
	entries, _, _ := foldInner(idx.cmp, parentHead)
	for _, e := range entries {
		if e.Lower != nil && idx.cmp.Less(splitKey, e.Lower) {
			return e.Lower, false
		}
	}
	return splitKey, true
}

// parentFor returns pid's parent, growing a new root above pid first if
// pid is currently the root (spec.md §4.5, "Root growth").
func (idx *Index) parentFor(pid PID, head *record) PID {
	base := findBase(head)
	if base == nil {
		return nullPID
	}
	if PID(idx.root.Load()) != pid {
		return base.parent
	}

	innerPID, err := idx.mapping.allocate()
	if err != nil {
		idx.logger.Error("root growth: allocate failed", "err", err)
		return base.parent
	}
	inner := idx.pool.get(kindBaseInner)
	inner.level = head.level + 1
	inner.parent = nullPID
	inner.children = []PID{pid}
	inner.keys = nil
	inner.size = 0
	idx.mapping.bind(innerPID, inner)

	if idx.root.CompareAndSwap(uint64(pid), uint64(innerPID)) {
		base.parent = innerPID
		idx.logger.Info("root grown", "oldRoot", pid, "newRoot", innerPID)
		return innerPID
	}
	idx.pool.put(inner)
	return base.parent
}

// setParent walks to childPID's base record and writes its parent field.
// Write-once by construction: only the split worker that just moved this
// child into a new sibling ever calls it for that child again.
func (idx *Index) setParent(childPID, newParent PID) {
	head := idx.mapping.get(childPID)
	if head == nil {
		return
	}
	if b := findBase(head); b != nil {
		b.parent = newParent
	}
}

// findBase scans a chain for its terminating base record.
func findBase(head *record) *record {
	for rec := head; rec != nil; rec = rec.next {
		if rec.k == kindBaseLeaf || rec.k == kindBaseInner {
			return rec
		}
	}
	return nil
}

// retireChain hands every record in a superseded chain to the epoch
// reclaimer. Called only with a chain that a winning CAS has just made
// entirely unreachable from the mapping table, never with a chain still
// referenced as another record's next (e.g. the tail a split-δ points
// through remains live and must not be retired at split time; only
// consolidation fully supersedes a chain).
func (idx *Index) retireChain(pid PID, head *record) {
	for rec := head; rec != nil; {
		next := rec.next
		idx.epoch.retireRecord(pid, rec)
		rec = next
	}
}
