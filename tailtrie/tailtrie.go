// Package tailtrie implements the TAIL compaction scheme: a double-array
// prefix tree (package dat) that stops branching once a key becomes
// unique and stores the remaining suffix verbatim in a flat buffer
// shared by every such "tail".
//
// A state s is separated (base(s) < 0) once its remaining key material
// lives at suffix[-base(s):] instead of as real transitions.
package tailtrie

import (
	"github.com/jianingy/libtrie/internal/dat"
	"github.com/jianingy/libtrie/internal/symbol"
)

const growQuantum = 4096

// Trie is the TAIL (single-trie-with-tail) variant.
type Trie struct {
	trie       *dat.Trie
	suffix     []symbol.Symbol
	nextSuffix int32
}

// New creates an empty TAIL trie with at least size states pre-allocated.
func New(size int32) *Trie {
	t := &Trie{
		trie:       dat.New(size),
		nextSuffix: 1,
	}
	t.growSuffix(growQuantum)
	return t
}

// FromParts reconstructs a TAIL trie from decoded archive contents. The
// returned Trie is read-only in practice: nothing calls Insert on a
// loaded archive.
func FromParts(tr *dat.Trie, suffix []symbol.Symbol) *Trie {
	return &Trie{trie: tr, suffix: suffix, nextSuffix: int32(len(suffix))}
}

// Trie exposes the embedded double array, e.g. for the archive codec.
func (t *Trie) Trie() *dat.Trie { return t.trie }

// Suffix exposes the flat tail buffer, e.g. for the archive codec.
func (t *Trie) Suffix() []symbol.Symbol { return t.suffix }

func (t *Trie) growSuffix(minAdditional int32) {
	old := int32(len(t.suffix))
	nsize := (((old*2 + minAdditional) / growQuantum) + 1) * growQuantum
	next := make([]symbol.Symbol, nsize)
	copy(next, t.suffix)
	t.suffix = next
}

func (t *Trie) ensureSuffix(upto int32) {
	if upto >= int32(len(t.suffix)) {
		t.growSuffix(upto - int32(len(t.suffix)) + 1)
	}
}

// appendSuffix writes inputs (either empty or ending in
// symbol.Terminator) followed by value, starting at nextSuffix, and advances the cursor.
func (t *Trie) appendSuffix(inputs []symbol.Symbol, value int32) {
	for _, c := range inputs {
		t.ensureSuffix(t.nextSuffix + 1)
		t.suffix[t.nextSuffix] = c
		t.nextSuffix++
	}
	t.ensureSuffix(t.nextSuffix + 1)
	t.suffix[t.nextSuffix] = value
	t.nextSuffix++
}

// insertSuffix marks s as separated at the current cursor and appends
// inputs (ending in the terminator) plus value.
func (t *Trie) insertSuffix(s int32, inputs []symbol.Symbol, value int32) {
	t.trie.SetBase(s, -t.nextSuffix)
	t.appendSuffix(inputs, value)
}

// Insert stores value at key, overwriting any previous value for the
// same key (last-write-wins, per the branch-to-duplicate rule below).
func (t *Trie) Insert(key []byte, value int32) {
	encoded := symbol.Encode(key)
	s, p := t.trie.GoForward(dat.Root, encoded)
	if t.trie.Base(s) < 0 {
		if p != nil {
			t.createBranch(s, p, value)
		} else {
			// Every symbol, including the terminator, matched real
			// transitions and landed on a tail pointer with nothing
			// left to compare: this key was already inserted.
			t.suffix[-t.trie.Base(s)] = value
		}
		return
	}
	s = t.trie.CreateTransition(s, p[0])
	if p[0] == symbol.Terminator {
		t.trie.SetBase(s, -t.nextSuffix)
		t.appendSuffix(nil, value)
	} else {
		t.insertSuffix(s, p[1:], value)
	}
}

// createBranch splits an existing tail at s (base(s) = -start) so both
// the old tail and the new key's remainder get their own twig.
func (t *Trie) createBranch(s int32, p []symbol.Symbol, value int32) {
	start := -t.trie.Base(s)
	var common []symbol.Symbol
	i := 0
	for i < len(p) {
		if t.suffix[start] != p[i] {
			break
		}
		common = append(common, p[i])
		start++
		last := p[i]
		i++
		if last == symbol.Terminator {
			break
		}
	}

	if len(common) > 0 && common[len(common)-1] == symbol.Terminator {
		// The entire remaining key matched the stored tail through its
		// terminator: this is a duplicate insert of the same key.
		t.suffix[start] = value
		return
	}

	if len(common) > 0 {
		t.trie.SetBase(s, t.trie.FindBase(common))
		for _, c := range common {
			s = t.trie.CreateTransition(s, c)
		}
	} else {
		t.trie.SetBase(s, 0)
	}

	// Twig for the remainder of the old tail.
	oldLabel := t.suffix[start]
	oldChild := t.trie.CreateTransition(s, oldLabel)
	t.trie.SetBase(oldChild, -(start + 1))

	// Twig for the remainder of the new key.
	rest := p[i:]
	newChild := t.trie.CreateTransition(s, rest[0])
	if rest[0] == symbol.Terminator {
		t.trie.SetBase(newChild, -t.nextSuffix)
		t.appendSuffix(nil, value)
	} else {
		t.insertSuffix(newChild, rest[1:], value)
	}
}

// Search returns the value stored for key, or (0, false) if absent.
func (t *Trie) Search(key []byte) (int32, bool) {
	encoded := symbol.Encode(key)
	s, p := t.trie.GoForward(dat.Root, encoded)
	if t.trie.Base(s) >= 0 {
		return 0, false
	}
	start := -t.trie.Base(s)
	if p != nil {
		for _, c := range p {
			if c != t.suffix[start] {
				return 0, false
			}
			start++
			if c == symbol.Terminator {
				break
			}
		}
	}
	return t.suffix[start], true
}

// Pair is one (key, value) result of a prefix search.
type Pair = dat.Pair

// PrefixSearch returns every inserted key that has prefix as a byte
// prefix, together with its value.
func (t *Trie) PrefixSearch(prefix []byte) []Pair {
	encoded := symbol.Encode(prefix)
	encoded = encoded[:len(encoded)-1] // a prefix is not itself a complete key

	s := int32(dat.Root)
	i := 0
	for i < len(encoded) {
		if t.trie.Base(s) < 0 {
			return t.tailMatch(s, encoded[i:], prefix)
		}
		next := t.trie.Next(s, encoded[i])
		if !t.trie.CheckTransition(s, next) {
			return nil
		}
		s = next
		i++
	}
	if t.trie.Base(s) < 0 {
		return t.tailMatch(s, nil, prefix)
	}
	var out []Pair
	t.dfs(s, append([]symbol.Symbol(nil), encoded...), &out)
	return out
}

// tailMatch handles a prefix walk that runs into a separated state: the
// remainder of the prefix, if any, must match the start of the stored
// tail for there to be a (single) result.
func (t *Trie) tailMatch(s int32, remaining []symbol.Symbol, prefix []byte) []Pair {
	start := -t.trie.Base(s)
	for _, c := range remaining {
		if t.suffix[start] != c {
			return nil
		}
		start++
	}
	tailEnd := start
	for t.suffix[tailEnd] != symbol.Terminator {
		tailEnd++
	}
	full := append([]symbol.Symbol(nil), t.suffix[start:tailEnd+1]...)
	key := append(append([]byte(nil), prefix...), symbol.Decode(full)...)
	return []Pair{{Key: key, Value: t.suffix[tailEnd+1]}}
}

func (t *Trie) dfs(s int32, path []symbol.Symbol, out *[]Pair) {
	for _, c := range t.trie.Children(s) {
		target := t.trie.Next(s, c)
		if c == symbol.Terminator {
			*out = append(*out, Pair{Key: symbol.Decode(path), Value: t.suffix[-t.trie.Base(target)]})
			continue
		}
		if t.trie.Base(target) < 0 {
			start := -t.trie.Base(target)
			tailEnd := start
			for t.suffix[tailEnd] != symbol.Terminator {
				tailEnd++
			}
			full := append(append([]symbol.Symbol(nil), path...), c)
			full = append(full, t.suffix[start:tailEnd+1]...)
			*out = append(*out, Pair{Key: symbol.Decode(full), Value: t.suffix[tailEnd+1]})
			continue
		}
		t.dfs(target, append(path, c), out)
	}
}
