package dat

import (
	"testing"

	"github.com/jianingy/libtrie/internal/symbol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertSearchRoundTrip(t *testing.T) {
	tr := New(0)
	keys := map[string]int32{
		"baby":     1,
		"bachelor": 2,
		"back":     3,
		"badge":    4,
		"badger":   5,
		"badness":  6,
		"bcs":      7,
	}
	for k, v := range keys {
		tr.Insert(symbol.Encode([]byte(k)), v)
	}
	for k, v := range keys {
		got, ok := tr.Search(symbol.Encode([]byte(k)))
		require.True(t, ok, "key %q", k)
		assert.Equal(t, v, got)
	}
	_, ok := tr.Search(symbol.Encode([]byte("ba")))
	assert.False(t, ok)
	_, ok = tr.Search(symbol.Encode([]byte("badgerr")))
	assert.False(t, ok)
}

func TestInsertOverwriteLastWriteWins(t *testing.T) {
	tr := New(0)
	tr.Insert(symbol.Encode([]byte("dup")), 1)
	tr.Insert(symbol.Encode([]byte("dup")), 42)
	got, ok := tr.Search(symbol.Encode([]byte("dup")))
	require.True(t, ok)
	assert.EqualValues(t, 42, got)
}

func TestEmptyKey(t *testing.T) {
	tr := New(0)
	tr.Insert(symbol.Encode([]byte("")), 9)
	got, ok := tr.Search(symbol.Encode([]byte("")))
	require.True(t, ok)
	assert.EqualValues(t, 9, got)
}

func TestBinaryKeys(t *testing.T) {
	tr := New(0)
	tr.Insert(symbol.Encode([]byte{0x00, 0x01, 0x02}), 1)
	tr.Insert(symbol.Encode([]byte{0x00, 0x01}), 2)
	tr.Insert(symbol.Encode([]byte{0x00, 0xff}), 3)
	for k, v := range map[string]int32{
		"\x00\x01\x02": 1,
		"\x00\x01":     2,
		"\x00\xff":     3,
	} {
		got, ok := tr.Search(symbol.Encode([]byte(k)))
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestPrefixSearch(t *testing.T) {
	tr := New(0)
	for k, v := range map[string]int32{
		"badge":   4,
		"badger":  5,
		"badness": 6,
		"baby":    1,
	} {
		tr.Insert(symbol.Encode([]byte(k)), v)
	}
	prefix := symbol.Encode([]byte("bad"))
	prefix = prefix[:len(prefix)-1] // drop the terminator; a prefix is not a full key
	got := tr.PrefixSearch(prefix)
	want := map[string]int32{"badge": 4, "badger": 5, "badness": 6}
	assert.Len(t, got, 3)
	for _, p := range got {
		assert.Equal(t, want[string(p.Key)], p.Value)
	}
}

func TestStructuralInvariantCheckDecodesUniquely(t *testing.T) {
	tr := New(0)
	for _, k := range []string{"baby", "bachelor", "back", "badge", "badger", "badness", "bcs"} {
		tr.Insert(symbol.Encode([]byte(k)), 1)
	}
	for s := int32(1); s <= tr.MaxState(); s++ {
		if tr.Check(s) <= 0 {
			continue
		}
		parent := tr.Check(s)
		matches := 0
		for c := symbol.Symbol(1); c <= symbol.Terminator; c++ {
			if tr.Base(parent)+c == s {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "state %d", s)
	}
}
