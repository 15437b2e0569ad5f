package libtrie

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var defaultGopterParameters = gopter.DefaultTestParameters()

// keySetGen produces a set of distinct alphabetic keys paired with
// int32 values in [0, 1<<20], small enough that property runs stay fast.
func keySetGen() gopter.Gen {
	return gen.MapOf(
		gen.AlphaString(),
		gen.Int32Range(0, 1<<20),
	).SuchThat(func(m map[string]int32) bool {
		return len(m) > 0
	})
}

// Every inserted key is found afterward with the value it was last
// inserted with, regardless of trie variant.
func TestPropertyEveryInsertIsFound(t *testing.T) {
	for _, kind := range []Kind{KindTail, KindTwo} {
		kind := kind
		properties := gopter.NewProperties(defaultGopterParameters)
		properties.Property("every inserted key is found", prop.ForAll(
			func(kv map[string]int32) bool {
				tr := New(kind, 0)
				for k, v := range kv {
					tr.Insert([]byte(k), v)
				}
				for k, v := range kv {
					got, ok := tr.Search([]byte(k))
					if !ok || got != v {
						return false
					}
				}
				return true
			},
			keySetGen(),
		))
		properties.TestingRun(t)
	}
}

// A key never inserted is never found, unless it collides with one
// that was (map generation already guarantees distinct keys).
func TestPropertyAbsentKeyNotFound(t *testing.T) {
	properties := gopter.NewProperties(defaultGopterParameters)
	properties.Property("an absent key is never found", prop.ForAll(
		func(present map[string]int32, absent string) bool {
			if _, clash := present[absent]; clash {
				return true
			}
			tr := New(KindTail, 0)
			for k, v := range present {
				tr.Insert([]byte(k), v)
			}
			_, ok := tr.Search([]byte(absent))
			return !ok
		},
		keySetGen(),
		gen.AlphaString(),
	))
	properties.TestingRun(t)
}

// Insertion order does not affect the final lookup results, for
// both the TAIL and TWO compaction schemes.
func TestPropertyInsertionOrderIndependent(t *testing.T) {
	for _, kind := range []Kind{KindTail, KindTwo} {
		kind := kind
		properties := gopter.NewProperties(defaultGopterParameters)
		properties.Property("search results agree regardless of insertion order", prop.ForAll(
			func(kv map[string]int32) bool {
				forward := New(kind, 0)
				for k, v := range kv {
					forward.Insert([]byte(k), v)
				}

				keys := make([]string, 0, len(kv))
				for k := range kv {
					keys = append(keys, k)
				}
				reversed := New(kind, 0)
				for i := len(keys) - 1; i >= 0; i-- {
					reversed.Insert([]byte(keys[i]), kv[keys[i]])
				}

				for k, v := range kv {
					gotF, okF := forward.Search([]byte(k))
					gotR, okR := reversed.Search([]byte(k))
					if okF != okR || gotF != gotR || gotF != v {
						return false
					}
				}
				return true
			},
			keySetGen(),
		))
		properties.TestingRun(t)
	}
}

// Prefix search over a built trie returns exactly the set of
// inserted keys that start with the given prefix.
func TestPropertyPrefixSearchExact(t *testing.T) {
	properties := gopter.NewProperties(defaultGopterParameters)
	properties.Property("prefix search returns exactly the matching keys", prop.ForAll(
		func(kv map[string]int32, prefix string) bool {
			tr := New(KindTail, 0)
			for k, v := range kv {
				tr.Insert([]byte(k), v)
			}
			want := map[string]int32{}
			for k, v := range kv {
				if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
					want[k] = v
				}
			}
			got := tr.PrefixSearch([]byte(prefix))
			if len(got) != len(want) {
				return false
			}
			for _, p := range got {
				if want[string(p.Key)] != p.Value {
					return false
				}
			}
			return true
		},
		keySetGen(),
		gen.AlphaString(),
	))
	properties.TestingRun(t)
}

// An archive round-trip preserves every key/value pair, for both
// compaction schemes.
func TestPropertyArchiveRoundTripPreservesAll(t *testing.T) {
	for _, kind := range []Kind{KindTail, KindTwo} {
		kind := kind
		properties := gopter.NewProperties(defaultGopterParameters)
		properties.Property("archive round trip preserves all keys", prop.ForAll(
			func(kv map[string]int32) bool {
				tr := New(kind, 0)
				for k, v := range kv {
					tr.Insert([]byte(k), v)
				}
				path := t.TempDir() + "/p.trie"
				if err := tr.Build(path); err != nil {
					return false
				}
				reopened, err := Open(path)
				if err != nil {
					return false
				}
				for k, v := range kv {
					got, ok := reopened.Search([]byte(k))
					if !ok || got != v {
						return false
					}
				}
				return true
			},
			keySetGen(),
		))
		properties.TestingRun(t)
	}
}
