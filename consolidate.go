package bwtree

// consolidate rebuilds pid's chain as a fresh base of the same kind,
// preserving prev/next/parent/level, and CASes it in (spec.md §4.5,
// "Consolidation"). If the chain still carries a live split-δ, that
// marker is re-prepended on top of the fresh base rather than dropped:
// the parent may not yet carry a separator for the sibling at the time
// this runs, so this page's own split-δ can still be the only route to
// it. It is always safe to skip: on a lost CAS the freshly built chain is
// simply dropped and the caller's own mutation proceeds against whatever
// the winner installed.
func (idx *Index) consolidate(pid PID) {
	head := idx.mapping.get(pid)
	if head == nil {
		return
	}

	var fresh *record
	if head.isLeaf() {
		fresh = idx.consolidateLeaf(pid, head)
	} else {
		fresh = idx.consolidateInner(pid, head)
	}
	if fresh == nil {
		return
	}

	if idx.mapping.install(pid, head, fresh) {
		idx.retireChain(pid, head)
		idx.epoch.advance()
		idx.logger.Info("consolidated", "pid", pid, "chain", head.chain)
		return
	}
	idx.pool.put(fresh)
}

func (idx *Index) consolidateLeaf(pid PID, head *record) *record {
	entries, splitKey, hasSplit := foldLeaf(idx.cmp, idx.veq, head)
	prev, next := baseLeafLinks(head)

	fresh := idx.pool.get(kindBaseLeaf)
	fresh.level = 0
	if b := findBase(head); b != nil {
		fresh.parent = b.parent
	}
	fresh.prevLeaf = prev
	fresh.nextLeaf = next
	fresh.keys = make([][]byte, len(entries))
	fresh.values = make([][][]byte, len(entries))
	for i, e := range entries {
		fresh.keys[i] = e.Key
		fresh.values[i] = e.Values
	}
	fresh.size = len(entries)
	fresh.chain = 0
	if !hasSplit {
		return fresh
	}

	_, sib, _ := scanSplit(head)
	splitDelta := idx.pool.get(kindSplit)
	splitDelta.level = 0
	splitDelta.splitKey = splitKey
	splitDelta.sibling = sib
	splitDelta.next = fresh
	splitDelta.chain = 1
	splitDelta.size = fresh.size
	return splitDelta
}

func (idx *Index) consolidateInner(pid PID, head *record) *record {
	entries, splitKey, hasSplit := foldInner(idx.cmp, head)
	if len(entries) == 0 {
		return nil
	}

	fresh := idx.pool.get(kindBaseInner)
	fresh.level = head.level
	if b := findBase(head); b != nil {
		fresh.parent = b.parent
	}
	fresh.children = make([]PID, len(entries))
	fresh.keys = make([][]byte, len(entries)-1)
	for i, e := range entries {
		fresh.children[i] = e.Child
		if i > 0 {
			fresh.keys[i-1] = e.Lower
		}
	}
	fresh.size = len(entries) - 1
	fresh.chain = 0
	if !hasSplit {
		return fresh
	}

	_, sib, _ := scanSplit(head)
	splitDelta := idx.pool.get(kindSplit)
	splitDelta.level = head.level
	splitDelta.splitKey = splitKey
	splitDelta.sibling = sib
	splitDelta.next = fresh
	splitDelta.chain = 1
	splitDelta.size = fresh.size
	return splitDelta
}
