// Package twotrie implements the TWO (double-trie) compaction scheme: a
// front double array that branches over key prefixes and a rear double
// array that stores (and de-duplicates) the reversed remainder of each
// key, linked together through index/accept side tables.
//
// Unlike the TAIL scheme, a front-trie leaf never stores its tail
// directly: it stores a slot in the accept table, which in turn names a
// state in the rear trie. Walking that rear state back to its root, one
// edge label at a time, reconstructs the tail.
package twotrie

import (
	"github.com/jianingy/libtrie/internal/dat"
	"github.com/jianingy/libtrie/internal/symbol"
)

const growQuantum = 4096

// IndexEntry is one slot of the front-trie side table: the value stored
// at a separated leaf, plus the accept-table slot (if any) naming the
// rear state linked to it.
type IndexEntry struct {
	Data  int32
	Index int32
}

// AcceptEntry is one slot of the accept table: the rear-trie state a
// link ultimately resolves to.
type AcceptEntry struct {
	Accept int32
}

// referInfo tracks, for a rear state t, which accept slot currently
// names it and which front states (by front-trie state id) link to it. It is
// only needed while building a trie; archives loaded read-only never
// mutate and so never populate it.
type referInfo struct {
	AcceptIndex int32
	Referer     map[int32]struct{}
}

// Trie is the TWO (double-trie) variant.
type Trie struct {
	lhs, rhs              *dat.Trie
	index                 []IndexEntry
	accept                []AcceptEntry
	refer                 map[int32]*referInfo
	nextIndex, nextAccept int32
	freeIndex, freeAccept []int32
	stand                 int32
}

// New creates an empty TWO trie with at least size states pre-allocated
// in each of the front and rear double arrays.
func New(size int32) *Trie {
	t := &Trie{
		lhs:        dat.New(size),
		rhs:        dat.New(size),
		refer:      make(map[int32]*referInfo),
		nextIndex:  1,
		nextAccept: 1,
	}
	t.lhs.SetRelocator(frontRelocator{t})
	t.rhs.SetRelocator(rearRelocator{t})
	t.growIndex(growQuantum)
	t.growAccept(growQuantum)
	return t
}

// FromParts reconstructs a TWO trie from decoded archive contents. The
// returned Trie is read-only in practice: nothing calls Insert on a
// loaded archive, so its refer bookkeeping is left empty.
func FromParts(lhs, rhs *dat.Trie, index []IndexEntry, accept []AcceptEntry) *Trie {
	return &Trie{lhs: lhs, rhs: rhs, index: index, accept: accept, refer: make(map[int32]*referInfo)}
}

// Front exposes the front double array, e.g. for the archive codec.
func (t *Trie) Front() *dat.Trie { return t.lhs }

// Rear exposes the rear double array, e.g. for the archive codec.
func (t *Trie) Rear() *dat.Trie { return t.rhs }

// Index exposes the front-trie side table, e.g. for the archive codec.
func (t *Trie) Index() []IndexEntry { return t.index }

// Accept exposes the accept table, e.g. for the archive codec.
func (t *Trie) Accept() []AcceptEntry { return t.accept }

type frontRelocator struct{ t *Trie }

func (r frontRelocator) Relocate(oldState, newState int32) { r.t.relocateFront(oldState, newState) }

type rearRelocator struct{ t *Trie }

func (r rearRelocator) Relocate(oldState, newState int32) { r.t.relocateRear(oldState, newState) }

func (t *Trie) growIndex(minAdditional int32) {
	old := int32(len(t.index))
	nsize := (((old*2 + minAdditional) / growQuantum) + 1) * growQuantum
	next := make([]IndexEntry, nsize)
	copy(next, t.index)
	t.index = next
}

func (t *Trie) ensureIndex(upto int32) {
	if upto >= int32(len(t.index)) {
		t.growIndex(upto - int32(len(t.index)) + 1)
	}
}

func (t *Trie) growAccept(minAdditional int32) {
	old := int32(len(t.accept))
	nsize := (((old*2 + minAdditional) / growQuantum) + 1) * growQuantum
	next := make([]AcceptEntry, nsize)
	copy(next, t.accept)
	t.accept = next
}

func (t *Trie) ensureAccept(upto int32) {
	if upto >= int32(len(t.accept)) {
		t.growAccept(upto - int32(len(t.accept)) + 1)
	}
}

// checkSeparator reports whether s is a front-trie leaf: its BASE no
// longer offsets real transitions but instead names (negated) an index
// slot.
func (t *Trie) checkSeparator(s int32) bool {
	return t.lhs.Base(s) < 0
}

// linkState resolves a separated front state to the rear-trie state its
// tail starts from, or 0 if its index slot names no accept slot.
func (t *Trie) linkState(s int32) int32 {
	j := t.index[-t.lhs.Base(s)].Index
	if j == 0 {
		return 0
	}
	return t.accept[j].Accept
}

func (t *Trie) countReferer(s int32) int {
	info, ok := t.refer[s]
	if !ok {
		return 0
	}
	return len(info.Referer)
}

func (t *Trie) getOrCreateRefer(s int32) *referInfo {
	info, ok := t.refer[s]
	if !ok {
		info = &referInfo{Referer: make(map[int32]struct{})}
		t.refer[s] = info
	}
	return info
}

// allocIndexSlot hands out a fresh (or recycled) index-table slot.
func (t *Trie) allocIndexSlot() int32 {
	var next int32
	if len(t.freeIndex) > 0 {
		next = t.freeIndex[0]
		t.freeIndex = t.freeIndex[1:]
	} else {
		next = t.nextIndex
		t.nextIndex++
	}
	t.ensureIndex(next)
	return next
}

// allocAcceptSlot hands out a fresh (or recycled) accept-table slot.
func (t *Trie) allocAcceptSlot() int32 {
	var next int32
	if len(t.freeAccept) > 0 {
		next = t.freeAccept[0]
		t.freeAccept = t.freeAccept[1:]
	} else {
		next = t.nextAccept
		t.nextAccept++
	}
	t.ensureAccept(next)
	return next
}

// findIndexEntry returns s's index-table slot, allocating one the first
// time s becomes a separated leaf.
func (t *Trie) findIndexEntry(s int32) int32 {
	if t.lhs.Base(s) >= 0 {
		next := t.allocIndexSlot()
		t.lhs.SetBase(s, -next)
	}
	return -t.lhs.Base(s)
}

// findAcceptEntry returns the accept slot named by index entry i,
// allocating one if it doesn't have one yet.
func (t *Trie) findAcceptEntry(i int32) int32 {
	if t.index[i].Index == 0 {
		next := t.allocAcceptSlot()
		t.index[i].Index = next
	}
	return t.index[i].Index
}

// setLink records that separated front state s's tail is (or, if target
// already has other referrers, shares) the rear state target.
func (t *Trie) setLink(s, target int32) int32 {
	var i int32
	if info, ok := t.refer[target]; ok && len(info.Referer) > 0 {
		i = t.findIndexEntry(s)
		t.index[i].Index = info.AcceptIndex
	} else {
		i = t.findIndexEntry(s)
		acc := t.findAcceptEntry(i)
		t.accept[acc].Accept = target
		t.getOrCreateRefer(target).AcceptIndex = acc
	}
	t.getOrCreateRefer(target).Referer[s] = struct{}{}
	return i
}

func (t *Trie) removeAcceptState(s int32) {
	t.rhs.SetBase(s, 0)
	t.rhs.SetCheck(s, 0)
	t.freeAcceptEntry(s)
}

func (t *Trie) freeAcceptEntry(s int32) {
	info, ok := t.refer[s]
	if !ok {
		return
	}
	if s > 0 && len(info.Referer) == 0 {
		if info.AcceptIndex > 0 && info.AcceptIndex < int32(len(t.accept)) {
			t.accept[info.AcceptIndex].Accept = 0
			t.freeAccept = append(t.freeAccept, info.AcceptIndex)
		}
	}
	delete(t.refer, s)
}

func (t *Trie) relocateFront(s, target int32) {
	if t.lhs.Base(s) < 0 && t.index[-t.lhs.Base(s)].Index > 0 {
		r := t.linkState(s)
		if info, ok := t.refer[r]; ok {
			delete(info.Referer, s)
			info.Referer[target] = struct{}{}
		}
	}
}

func (t *Trie) relocateRear(s, target int32) {
	if info, ok := t.refer[s]; ok {
		t.accept[info.AcceptIndex].Accept = target
		t.refer[target] = info
		t.freeAcceptEntry(s)
	}
	if t.stand == s {
		t.stand = target
	}
}

// rhsAppend finds (or creates) the rear-trie state whose path back to
// the root, edge by edge, spells out inputs in forward order.
func (t *Trie) rhsAppend(inputs []symbol.Symbol) int32 {
	s := int32(dat.Root)
	s, p := t.rhs.GoForwardReverse(s, inputs)
	if p == nil {
		if len(t.rhs.Children(s)) == 0 {
			return s
		}
		next := t.rhs.Next(s, symbol.Terminator)
		if !t.rhs.CheckTransition(s, next) {
			return t.rhs.CreateTransition(s, symbol.Terminator)
		}
		return next
	}
	if len(t.rhs.Children(s)) == 0 {
		target := t.rhs.CreateTransition(s, symbol.Terminator)
		if info, ok := t.refer[s]; ok {
			for ref := range info.Referer {
				t.setLink(ref, target)
			}
		}
		t.freeAcceptEntry(s)
	}
	for i := len(p) - 1; i >= 0; i-- {
		s = t.rhs.CreateTransition(s, p[i])
	}
	return s
}

func (t *Trie) lhsInsert(s int32, inputs []symbol.Symbol, value int32) {
	s = t.lhs.CreateTransition(s, inputs[0])
	i := t.setLink(s, t.rhsAppend(inputs[1:]))
	t.index[i].Data = value
}

func (t *Trie) rhsCleanOne(target int32) bool {
	s := t.rhs.Prev(target)
	if s > 0 && target == t.rhs.Next(s, symbol.Terminator) && t.countReferer(target) == 0 {
		t.removeAcceptState(target)
		return true
	}
	return false
}

func (t *Trie) rhsCleanMore(target int32) {
	if len(t.rhs.Children(target)) == 0 && t.countReferer(target) == 0 {
		s := t.rhs.Prev(target)
		t.removeAcceptState(target)
		if s > 0 {
			t.rhsCleanMore(s)
		}
		return
	}
	if len(t.rhs.Children(target)) == 1 {
		r := t.rhs.Next(target, symbol.Terminator)
		if t.rhs.CheckTransition(target, r) {
			if info, ok := t.refer[r]; ok {
				for ref := range info.Referer {
					t.setLink(ref, target)
				}
				if info.AcceptIndex != t.getOrCreateRefer(target).AcceptIndex {
					// r's accept slot is no longer used; let removeAcceptState free it.
					info.Referer = nil
				}
			}
			t.accept[t.getOrCreateRefer(target).AcceptIndex].Accept = target
			t.removeAcceptState(r)
		}
	}
}

// rhsInsert splits the rear trie's shared tail at r so that s's old
// link and the new key's remainder each get their own continuation.
func (t *Trie) rhsInsert(s, r int32, match []symbol.Symbol, remain []symbol.Symbol, ch symbol.Symbol, value int32) {
	// R-1: detach s from its current link.
	u := t.linkState(s)
	oldValue := t.index[-t.lhs.Base(s)].Data
	t.index[-t.lhs.Base(s)].Index = 0
	t.index[-t.lhs.Base(s)].Data = 0
	t.freeIndex = append(t.freeIndex, -t.lhs.Base(s))
	t.lhs.SetBase(s, 0)
	t.stand = r
	if u > 0 {
		if info, ok := t.refer[u]; ok {
			delete(info.Referer, s)
			if len(info.Referer) == 0 {
				t.freeAcceptEntry(u)
			}
		}
	}

	// R-2: branch the front trie along the common prefix just found.
	for _, c := range match {
		s = t.lhs.CreateTransition(s, c)
	}

	target := t.lhs.CreateTransition(s, remain[0])
	var i int32
	if remain[0] == symbol.Terminator {
		i = t.allocIndexSlot()
		t.index[i].Data = value
		t.lhs.SetBase(target, -i)
	} else {
		i = t.setLink(target, t.rhsAppend(remain[1:]))
		t.index[i].Data = value
	}

	// R-3: re-attach the old tail past the branch, under label ch.
	target = t.lhs.CreateTransition(s, ch)
	v := t.rhs.Prev(t.stand)
	var newR int32
	if !t.rhs.CheckTransition(v, t.rhs.Next(v, symbol.Terminator)) {
		newR = t.rhs.CreateTransition(v, symbol.Terminator)
	} else {
		newR = t.rhs.Next(v, symbol.Terminator)
	}
	i = t.setLink(target, newR)
	t.index[i].Data = oldValue

	// R-4: u may now be dead; collapse it if so.
	if u > 0 {
		if !t.rhsCleanOne(u) {
			t.rhsCleanMore(u)
		}
	}
}

// Insert stores value at key, overwriting any previous value for the
// same key (last-write-wins).
func (t *Trie) Insert(key []byte, value int32) {
	encoded := symbol.Encode(key)
	s, p := t.lhs.GoForward(dat.Root, encoded)
	if !t.checkSeparator(s) {
		t.lhsInsert(s, p, value)
		return
	}
	if p == nil {
		t.index[-t.lhs.Base(s)].Data = value
		return
	}

	r := t.linkState(s)
	if t.rhs.CheckReverseTransition(r, symbol.Terminator) && t.rhs.Prev(r) > 1 {
		r = t.rhs.Prev(r)
	}

	var exists []symbol.Symbol
	i := 0
	for i < len(p) {
		c := p[i]
		if t.rhs.CheckReverseTransition(r, c) {
			r = t.rhs.Prev(r)
			exists = append(exists, c)
		} else {
			break
		}
		i++
		if c == symbol.Terminator {
			break
		}
	}
	if r == 1 {
		t.index[-t.lhs.Base(s)].Data = value
		return
	}
	mismatch := r - t.rhs.Base(t.rhs.Prev(r))
	t.rhsInsert(s, r, exists, p[i:], mismatch, value)
}

// Search returns the value stored for key, or (0, false) if absent.
func (t *Trie) Search(key []byte) (int32, bool) {
	encoded := symbol.Encode(key)
	s, p := t.lhs.GoForward(dat.Root, encoded)
	if !t.checkSeparator(s) {
		return 0, false
	}
	if p == nil {
		return t.index[-t.lhs.Base(s)].Data, true
	}
	r := t.linkState(s)
	if t.rhs.CheckReverseTransition(r, symbol.Terminator) && t.rhs.Prev(r) > 1 {
		r = t.rhs.Prev(r)
	}
	r, _ = t.rhs.GoBackward(r, p)
	if r == 1 {
		return t.index[-t.lhs.Base(s)].Data, true
	}
	return 0, false
}

// Pair is one (key, value) result of a prefix search.
type Pair = dat.Pair

// decodeTail walks a rear-trie state back to its root, collecting edge
// labels. Because the rear trie stores suffixes back to front, this
// up-walk naturally yields them in forward (left-to-right) order. A
// dummy terminator state (reached by the terminator from a non-root
// parent) is skipped, the closing terminator is not included, and a
// state id of 0 (no linked rear state) yields an empty tail.
func (t *Trie) decodeTail(r int32) []symbol.Symbol {
	if r > dat.Root && t.rhs.Prev(r) > dat.Root && t.rhs.CheckReverseTransition(r, symbol.Terminator) {
		r = t.rhs.Prev(r)
	}
	var out []symbol.Symbol
	for r > dat.Root {
		p := t.rhs.Prev(r)
		c := r - t.rhs.Base(p)
		if c == symbol.Terminator {
			break
		}
		out = append(out, c)
		r = p
	}
	return out
}

// PrefixSearch returns every inserted key that has prefix as a byte
// prefix, together with its value. Keys whose front walk ends mid-tail
// are recovered by decoding the rear suffix and matching the remainder.
func (t *Trie) PrefixSearch(prefix []byte) []Pair {
	encoded := symbol.Encode(prefix)
	encoded = encoded[:len(encoded)-1] // a prefix is not itself a complete key

	s := int32(dat.Root)
	i := 0
	for i < len(encoded) {
		if t.checkSeparator(s) {
			return t.tailMatch(s, encoded[i:], append([]symbol.Symbol(nil), encoded[:i]...))
		}
		next := t.lhs.Next(s, encoded[i])
		if !t.lhs.CheckTransition(s, next) {
			return nil
		}
		s = next
		i++
	}
	if t.checkSeparator(s) {
		return t.tailMatch(s, nil, append([]symbol.Symbol(nil), encoded...))
	}
	var out []Pair
	t.dfsFront(s, append([]symbol.Symbol(nil), encoded...), &out)
	return out
}

// tailMatch handles a prefix walk that runs into a separated front
// state: the remainder of the prefix, if any, must match the start of
// the decoded rear tail for there to be a (single) result.
func (t *Trie) tailMatch(s int32, remaining []symbol.Symbol, path []symbol.Symbol) []Pair {
	tail := t.decodeTail(t.linkState(s))
	if len(remaining) > len(tail) {
		return nil
	}
	for i, c := range remaining {
		if tail[i] != c {
			return nil
		}
	}
	full := append(path, tail...)
	value := t.index[-t.lhs.Base(s)].Data
	return []Pair{{Key: symbol.Decode(full), Value: value}}
}

func (t *Trie) dfsFront(s int32, path []symbol.Symbol, out *[]Pair) {
	for _, c := range t.lhs.Children(s) {
		target := t.lhs.Next(s, c)
		next := append(append([]symbol.Symbol(nil), path...), c)
		if t.checkSeparator(target) {
			tail := t.decodeTail(t.linkState(target))
			full := append(next, tail...)
			value := t.index[-t.lhs.Base(target)].Data
			*out = append(*out, Pair{Key: symbol.Decode(full), Value: value})
			continue
		}
		t.dfsFront(target, next, out)
	}
}
