// Package dat implements the double-array trie of Aoe (1989): a dense
// base/check state table with the relocation algorithm that keeps
// transitions intact while packing states tightly.
//
// This is the core machinery shared by the TAIL and TWO compaction
// schemes built on top of it; by itself it only knows how to store a
// positive 32-bit value at the state reached by an encoded key.
package dat

import "github.com/jianingy/libtrie/internal/symbol"

// Root is the fixed id of the root state.
const Root int32 = 1

// growQuantum is the alignment used when enlarging the state table, so
// that archive files built from different runs stay comparable and
// memory-map friendly.
const growQuantum = 4096

// kDefaultStateSize is the smallest table a Trie is ever allocated with.
const kDefaultStateSize = growQuantum

// State is one cell of the double array: BASE and CHECK in Aoe's paper.
type State struct {
	Base  int32
	Check int32
}

// Relocator is notified every time create_transition moves a state's
// children to a new BASE. Implementations use this to keep side tables
// (tails, index/accept slots) pointed at the right cell.
type Relocator interface {
	Relocate(oldState, newState int32)
}

// Trie is the base/check state table plus the bookkeeping needed to grow
// and relocate it. The zero value is not usable; construct with New.
type Trie struct {
	states    []State
	lastBase  int32
	maxState  int32
	relocator Relocator
}

// New allocates an empty Trie with at least size cells (rounded up to
// growQuantum) and the fixed root state initialised.
func New(size int32) *Trie {
	if size < symbol.CharsetSize {
		size = kDefaultStateSize
	}
	t := &Trie{}
	t.grow(size)
	return t
}

// NewFromStates wraps an already-built state table, as produced by the
// archive codec when it decodes a file. The returned Trie is a live view
// over the given slice: callers must treat it as read-only.
func NewFromStates(states []State, maxState int32) *Trie {
	return &Trie{states: states, maxState: maxState, lastBase: 0}
}

// SetRelocator installs (or clears, with nil) the listener invoked after
// every cell move.
func (t *Trie) SetRelocator(r Relocator) { t.relocator = r }

// States exposes the raw state table, e.g. for the archive codec to
// serialise it. Callers must not retain it across further mutation.
func (t *Trie) States() []State { return t.states }

// Size returns the capacity of the state table.
func (t *Trie) Size() int32 { return int32(len(t.states)) }

// MaxState returns the highest state id ever written.
func (t *Trie) MaxState() int32 { return t.maxState }

// Base returns BASE(s).
func (t *Trie) Base(s int32) int32 { return t.states[s].Base }

// Check returns CHECK(s).
func (t *Trie) Check(s int32) int32 { return t.states[s].Check }

// SetBase sets BASE(s) and tracks the high-water mark.
func (t *Trie) SetBase(s, v int32) {
	t.states[s].Base = v
	if s > t.maxState {
		t.maxState = s
	}
}

// SetCheck sets CHECK(s).
func (t *Trie) SetCheck(s, v int32) {
	t.states[s].Check = v
	if s > t.maxState {
		t.maxState = s
	}
}

// Next computes base(s)+c, the candidate cell for a transition on c.
func (t *Trie) Next(s int32, c symbol.Symbol) int32 { return t.Base(s) + c }

// Prev is the reverse transition: the parent of t, or 0 at the root.
func (t *Trie) Prev(s int32) int32 { return t.Check(s) }

// CheckTransition reports whether there is a live transition from s to t.
func (t *Trie) CheckTransition(s, target int32) bool {
	return s > 0 && target > 0 && target < int32(len(t.states)) && t.Check(target) == s
}

// CheckReverseTransition reports whether s can be reached from its
// parent by label c.
func (t *Trie) CheckReverseTransition(s int32, c symbol.Symbol) bool {
	p := t.Prev(s)
	return t.Next(p, c) == s && t.CheckTransition(p, t.Next(p, c))
}

// GoForward walks from s following input one symbol at a time,
// including the terminator. It returns the last state reached and the
// unconsumed remainder of input: nil if every symbol (through the
// terminator) was matched by an existing transition.
func (t *Trie) GoForward(s int32, input []symbol.Symbol) (int32, []symbol.Symbol) {
	for i, c := range input {
		next := t.Next(s, c)
		if !t.CheckTransition(s, next) {
			return s, input[i:]
		}
		s = next
		if c == symbol.Terminator {
			return s, nil
		}
	}
	return s, nil
}

// GoBackward walks from s backward through rear transitions, consuming
// input forward (each step requires s itself to be its parent's child on
// the current input symbol, not merely that the parent has such a
// child). It returns the final state and the unconsumed remainder,
// mirroring GoForward.
func (t *Trie) GoBackward(s int32, input []symbol.Symbol) (int32, []symbol.Symbol) {
	for i, c := range input {
		if !t.CheckReverseTransition(s, c) {
			return s, input[i:]
		}
		s = t.Prev(s)
		if c == symbol.Terminator {
			return s, nil
		}
	}
	return s, nil
}

// GoForwardReverse walks input from its last symbol toward its first,
// creating no transitions, used to find how much of a reversed suffix
// already exists in a rear trie. It returns the state reached and the
// still-unconsumed leading slice of input: nil if every symbol matched.
func (t *Trie) GoForwardReverse(s int32, input []symbol.Symbol) (int32, []symbol.Symbol) {
	for i := len(input) - 1; i >= 0; i-- {
		c := input[i]
		next := t.Next(s, c)
		if !t.CheckTransition(s, next) {
			return s, input[:i+1]
		}
		s = next
	}
	return s, nil
}

// Children enumerates the labels of s's existing children in ascending
// order, for callers outside this package that need to drive their own
// traversal (e.g. the TAIL and TWO variants' prefix search).
func (t *Trie) Children(s int32) []symbol.Symbol {
	targets, _, _ := t.findExistTarget(s)
	return targets
}

// FindBase locates a free BASE able to host every label in inputs,
// computing the label extremum itself. Exposed for variants that need
// to pre-seed a state's BASE outside of CreateTransition (e.g. TAIL's
// branch-creation, which rewrites a leaf's BASE directly).
func (t *Trie) FindBase(inputs []symbol.Symbol) int32 {
	var min, max symbol.Symbol
	for _, c := range inputs {
		if max == 0 || c > max {
			max = c
		}
		if min == 0 || c < min {
			min = c
		}
	}
	return t.findBase(inputs, min, max)
}

// findExistTarget enumerates the existing children of s in ascending
// label order, returning the labels and the (min, max) label seen.
func (t *Trie) findExistTarget(s int32) (targets []symbol.Symbol, min, max symbol.Symbol) {
	for c := symbol.Symbol(1); c <= symbol.Terminator; c++ {
		target := t.Next(s, c)
		if target >= int32(len(t.states)) {
			break
		}
		if t.CheckTransition(s, target) {
			targets = append(targets, c)
			if max == 0 || c > max {
				max = c
			}
			if min == 0 || c < min {
				min = c
			}
		}
	}
	return targets, min, max
}

// grow enlarges the state table to the next growQuantum-aligned size
// that accommodates at least minAdditional more cells; new cells are
// zeroed.
func (t *Trie) grow(minAdditional int32) {
	old := int32(len(t.states))
	nsize := (((old*2 + minAdditional) / growQuantum) + 1) * growQuantum
	next := make([]State, nsize)
	copy(next, t.states)
	t.states = next
}

func (t *Trie) ensure(upto int32) {
	if upto >= int32(len(t.states)) {
		t.grow(upto - int32(len(t.states)) + 1)
	}
}

// findBase locates a free BASE value able to host every label in
// inputs without colliding with an existing child of another state.
func (t *Trie) findBase(inputs []symbol.Symbol, min, max symbol.Symbol) int32 {
	i := t.lastBase
	for {
		i++
		if i+max >= int32(len(t.states)) {
			t.grow(max)
		}
		if t.Check(i+min) <= 0 && t.Check(i+max) <= 0 {
			found := true
			for _, c := range inputs {
				if t.Check(i+c) > 0 {
					found = false
					break
				}
			}
			if found {
				break
			}
		}
	}
	t.lastBase = i
	return i
}

// relocate moves every child of s to a freshly found BASE able to host
// inputs (s's desired child-set), reparenting grandchildren and
// notifying the relocator. stand is a state the caller is "standing on"
// (about to operate on); if relocation moves it, the updated id is
// returned so the caller can keep using it.
func (t *Trie) relocate(stand, s int32, inputs []symbol.Symbol, min, max symbol.Symbol) int32 {
	obase := t.Base(s)
	nbase := t.findBase(inputs, min, max)

	for _, c := range inputs {
		old := obase + c
		if t.Check(old) != s {
			continue
		}
		nw := nbase + c
		t.ensure(nw)
		t.SetBase(nw, t.Base(old))
		t.SetCheck(nw, t.Check(old))
		grandChildren, _, _ := t.findExistTarget(old)
		for _, gc := range grandChildren {
			t.SetCheck(t.Base(old)+gc, nw)
		}
		if stand == old {
			stand = nw
		}
		if t.relocator != nil {
			t.relocator.Relocate(old, nw)
		}
		t.SetBase(old, 0)
		t.SetCheck(old, 0)
	}
	t.SetBase(s, nbase)
	return stand
}

// CreateTransition installs (creating room for it if necessary) a
// transition from s on c, returning the resulting state.
func (t *Trie) CreateTransition(s int32, c symbol.Symbol) int32 {
	target := t.Next(s, c)
	t.ensure(target)

	if !(t.Base(s) > 0 && t.Check(target) <= 0) {
		targets, min, max := t.findExistTarget(s)
		var parentTargets []symbol.Symbol
		var pmin, pmax symbol.Symbol
		if t.Check(target) > 0 {
			parentTargets, pmin, pmax = t.findExistTarget(t.Check(target))
		}
		if len(parentTargets) > 0 && len(targets)+1 > len(parentTargets) {
			s = t.relocate(s, t.Check(target), parentTargets, pmin, pmax)
		} else {
			targets = append(targets, c)
			if max == 0 || c > max {
				max = c
			}
			if min == 0 || c < min {
				min = c
			}
			s = t.relocate(s, s, targets, min, max)
		}
		target = t.Next(s, c)
		t.ensure(target)
	}
	t.SetCheck(target, s)
	return target
}

// Insert stores value at the state reached by key. value must be >= 1:
// BasicTrie encodes "terminal" by a positive BASE, so zero or negative
// values are a programming error.
func (t *Trie) Insert(key []symbol.Symbol, value int32) {
	if value < 1 {
		panic("dat: insert value must be >= 1")
	}
	s, rest := t.GoForward(Root, key)
	if rest == nil {
		// key already present through its terminator: overwrite in place.
		t.SetBase(s, value)
		return
	}
	for _, c := range rest {
		s = t.CreateTransition(s, c)
		if c == symbol.Terminator {
			break
		}
	}
	t.SetBase(s, value)
}

// Search returns the stored value for key, or (0, false) if absent.
func (t *Trie) Search(key []symbol.Symbol) (int32, bool) {
	s, rest := t.GoForward(Root, key)
	if rest != nil {
		return 0, false
	}
	return t.Base(s), true
}

// Pair is one (key, value) result of a prefix search.
type Pair struct {
	Key   []byte
	Value int32
}

// PrefixSearch walks prefix from the root and enumerates every key in
// the trie that extends it, decoding the traversed labels back to bytes.
func (t *Trie) PrefixSearch(prefix []symbol.Symbol) []Pair {
	s, rest := t.GoForward(Root, prefix)
	if rest != nil {
		return nil
	}
	trimmed := prefix
	if n := len(trimmed); n > 0 && trimmed[n-1] == symbol.Terminator {
		trimmed = trimmed[:n-1]
	}
	var out []Pair
	t.dfs(s, append([]symbol.Symbol(nil), trimmed...), &out)
	return out
}

func (t *Trie) dfs(s int32, path []symbol.Symbol, out *[]Pair) {
	children, _, _ := t.findExistTarget(s)
	for _, c := range children {
		target := t.Next(s, c)
		if c == symbol.Terminator {
			*out = append(*out, Pair{Key: symbol.Decode(path), Value: t.Base(target)})
			continue
		}
		t.dfs(target, append(path, c), out)
	}
}
