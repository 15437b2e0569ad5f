package twotrie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jianingy/libtrie/internal/dat"
)

func TestWordList(t *testing.T) {
	tr := New(0)
	kv := map[string]int32{
		"baby": 1, "bachelor": 2, "back": 3,
		"badge": 4, "badger": 5, "badness": 6, "bcs": 7,
	}
	for k, v := range kv {
		tr.Insert([]byte(k), v)
	}
	for k, v := range kv {
		got, ok := tr.Search([]byte(k))
		require.True(t, ok, k)
		assert.Equal(t, v, got, k)
	}
	_, ok := tr.Search([]byte("ba"))
	assert.False(t, ok)
	_, ok = tr.Search([]byte("badgerr"))
	assert.False(t, ok)
}

func TestSharedSuffixNoFalseHit(t *testing.T) {
	// "OK" and "Jan" share no suffix; "On" must stay absent after both
	// are inserted, regression-testing that rear-trie sharing doesn't
	// leak a match across unrelated keys.
	tr := New(0)
	tr.Insert([]byte("OK"), 1)
	tr.Insert([]byte("Jan"), 2)

	got, ok := tr.Search([]byte("OK"))
	require.True(t, ok)
	assert.EqualValues(t, 1, got)

	got, ok = tr.Search([]byte("Jan"))
	require.True(t, ok)
	assert.EqualValues(t, 2, got)

	_, ok = tr.Search([]byte("On"))
	assert.False(t, ok)
}

func TestRhsSuffixSharing(t *testing.T) {
	tr := New(0)
	tr.Insert([]byte("hello"), 1)
	tr.Insert([]byte("fellow"), 2)
	tr.Insert([]byte("yellow"), 3)

	for k, v := range map[string]int32{"hello": 1, "fellow": 2, "yellow": 3} {
		got, ok := tr.Search([]byte(k))
		require.True(t, ok, k)
		assert.Equal(t, v, got, k)
	}
}

func TestDuplicateInsertLastWriteWins(t *testing.T) {
	tr := New(0)
	tr.Insert([]byte("same"), 1)
	tr.Insert([]byte("same"), 2)
	got, ok := tr.Search([]byte("same"))
	require.True(t, ok)
	assert.EqualValues(t, 2, got)
}

func TestEmptyKey(t *testing.T) {
	tr := New(0)
	tr.Insert([]byte(""), 5)
	got, ok := tr.Search([]byte(""))
	require.True(t, ok)
	assert.EqualValues(t, 5, got)
}

func TestBinaryKeys(t *testing.T) {
	// Values here deliberately include zero and a negative: unlike the
	// embedded double array, the index side table accepts any int32.
	tr := New(0)
	tr.Insert([]byte{0x00, 0x01, 0x02}, 1)
	tr.Insert([]byte{0x00, 0x01}, 0)
	tr.Insert([]byte{0x00}, -1)
	tr.Insert([]byte{0x00, 0xff}, 3)
	for k, v := range map[string]int32{
		"\x00\x01\x02": 1,
		"\x00\x01":     0,
		"\x00":         -1,
		"\x00\xff":     3,
	} {
		got, ok := tr.Search([]byte(k))
		require.True(t, ok, k)
		assert.Equal(t, v, got, k)
	}
}

func TestPrefixSearch(t *testing.T) {
	tr := New(0)
	kv := map[string]int32{
		"badge": 4, "badger": 5, "badness": 6, "baby": 1,
	}
	for k, v := range kv {
		tr.Insert([]byte(k), v)
	}
	got := tr.PrefixSearch([]byte("bad"))
	want := map[string]int32{"badge": 4, "badger": 5, "badness": 6}
	require.Len(t, got, 3)
	for _, p := range got {
		assert.Equal(t, want[string(p.Key)], p.Value)
	}
}

func TestInsertManyThenSearchAll(t *testing.T) {
	tr := New(0)
	words := []string{
		"apple", "app", "apply", "application", "banana", "band",
		"bandana", "can", "candy", "candle", "dog", "do", "done",
	}
	for i, w := range words {
		tr.Insert([]byte(w), int32(i+1))
	}
	for i, w := range words {
		got, ok := tr.Search([]byte(w))
		require.True(t, ok, w)
		assert.EqualValues(t, i+1, got, w)
	}
}

// TestAcceptRefererConsistency cross-checks the side tables after a
// split-and-cleanup-heavy insert sequence: every live accept slot must
// be named by exactly the set of front leaves its referer set records,
// and vice versa.
func TestAcceptRefererConsistency(t *testing.T) {
	tr := New(0)
	words := []string{
		"badge", "badger", "badness", "baby", "hello",
		"fellow", "yellow", "bad", "badge",
	}
	for i, w := range words {
		tr.Insert([]byte(w), int32(i+1))
	}

	// Which front states point at each accept slot, per the front trie.
	want := make(map[int32]map[int32]struct{})
	for s := int32(1); s <= tr.lhs.MaxState(); s++ {
		if s != dat.Root && tr.lhs.Check(s) <= 0 {
			continue
		}
		if tr.lhs.Base(s) >= 0 {
			continue
		}
		i := -tr.lhs.Base(s)
		if j := tr.index[i].Index; j > 0 {
			if want[j] == nil {
				want[j] = make(map[int32]struct{})
			}
			want[j][s] = struct{}{}
		}
	}

	for j := int32(1); j < tr.nextAccept; j++ {
		r := tr.accept[j].Accept
		if r == 0 {
			assert.NotContains(t, want, j, "freed accept slot still referenced")
			continue
		}
		info, ok := tr.refer[r]
		require.True(t, ok, "accept slot %d names rear state %d with no refer entry", j, r)
		assert.Equal(t, j, info.AcceptIndex, "rear state %d", r)
		assert.Equal(t, want[j], info.Referer, "accept slot %d", j)
	}
}
