package datrie

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkAutomaton verifies the double-array invariant: every used state is a
// child of its recorded parent on an in-range symbol.
func checkAutomaton(t *testing.T, tr *BasicTrie) {
	t.Helper()
	for s := kRootState + 1; s < tr.header.Size; s++ {
		p := tr.check(s)
		if p <= 0 {
			continue
		}
		c := s - tr.base(p)
		require.GreaterOrEqual(t, c, int32(0), "state %d has out-of-range incoming symbol", s)
		require.Less(t, c, kCharsetSize, "state %d has out-of-range incoming symbol", s)
		require.Equal(t, p, tr.check(tr.base(tr.check(s))+c))
	}
}

func TestBasicTrieRoundTrip(t *testing.T) {
	tr := NewBasicTrie()
	keys := map[string]int32{"he": 1, "she": 2, "his": 3, "hers": 4}
	for k, v := range keys {
		require.NoError(t, tr.Insert([]byte(k), v))
	}
	for k, v := range keys {
		got, ok, err := tr.Search([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "key %q", k)
		assert.Equal(t, v, got, "key %q", k)
	}
	_, ok, err := tr.Search([]byte("her"))
	require.NoError(t, err)
	assert.False(t, ok)
	checkAutomaton(t, tr)
}

func TestBasicTrieOverwrite(t *testing.T) {
	tr := NewBasicTrie()
	keys := []string{"bachelor", "jar", "badge", "baby"}
	for i, k := range keys {
		require.NoError(t, tr.Insert([]byte(k), int32(i+1)))
	}
	require.NoError(t, tr.Insert([]byte("jar"), 9))
	want := map[string]int32{"bachelor": 1, "jar": 9, "badge": 3, "baby": 4}
	for k, v := range want {
		got, ok, err := tr.Search([]byte(k))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestBasicTriePrefixChain(t *testing.T) {
	tr := NewBasicTrie()
	require.NoError(t, tr.Insert([]byte("a"), 1))
	require.NoError(t, tr.Insert([]byte("ab"), 2))
	require.NoError(t, tr.Insert([]byte("abc"), 3))
	for k, v := range map[string]int32{"a": 1, "ab": 2, "abc": 3} {
		got, ok, err := tr.Search([]byte(k))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
	_, ok, err := tr.Search([]byte("abcd"))
	require.NoError(t, err)
	assert.False(t, ok)
	checkAutomaton(t, tr)
}

func TestBasicTrieErrors(t *testing.T) {
	tr := NewBasicTrie()
	assert.ErrorIs(t, tr.Insert(nil, 1), ErrInvalidKey)
	assert.ErrorIs(t, tr.Insert([]byte{}, 1), ErrInvalidKey)
	assert.ErrorIs(t, tr.Insert([]byte("x"), 0), ErrInvalidValue)
	assert.ErrorIs(t, tr.Insert([]byte("x"), -5), ErrInvalidValue)
	_, _, err := tr.Search(nil)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, ok, err := tr.Search([]byte("x"))
	require.NoError(t, err)
	assert.False(t, ok, "failed insert must not leave the key behind")
}

func TestBasicTrieHighBytes(t *testing.T) {
	tr := NewBasicTrie()
	keys := [][]byte{{0xFF}, {0xFF, 0xFF}, {0x00}, {0x00, 0xFF, 0x7F}}
	for i, k := range keys {
		require.NoError(t, tr.Insert(k, int32(i+1)))
	}
	for i, k := range keys {
		got, ok, err := tr.Search(k)
		require.NoError(t, err)
		require.True(t, ok, "key %x", k)
		assert.Equal(t, int32(i+1), got)
	}
	checkAutomaton(t, tr)
}

func TestBasicTrieOrderIndependence(t *testing.T) {
	keys := []string{"car", "card", "care", "cat", "carton", "ca", "c"}
	forward := NewBasicTrie()
	backward := NewBasicTrie()
	for i, k := range keys {
		require.NoError(t, forward.Insert([]byte(k), int32(i+1)))
	}
	for i := len(keys) - 1; i >= 0; i-- {
		require.NoError(t, backward.Insert([]byte(keys[i]), int32(i+1)))
	}
	for i, k := range keys {
		fv, ok, err := forward.Search([]byte(k))
		require.NoError(t, err)
		require.True(t, ok)
		bv, ok, err := backward.Search([]byte(k))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int32(i+1), fv)
		assert.Equal(t, fv, bv)
	}
}

func TestBasicTrieRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tr := NewBasicTrie()
	want := make(map[string]int32)
	for i := 0; i < 500; i++ {
		n := rng.Intn(8) + 1
		key := make([]byte, n)
		for j := range key {
			key[j] = byte('a' + rng.Intn(4))
		}
		v := int32(rng.Intn(1000) + 1)
		want[string(key)] = v
		require.NoError(t, tr.Insert(key, v))
	}
	for k, v := range want {
		got, ok, err := tr.Search([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "key %q", k)
		require.Equal(t, v, got, "key %q", k)
	}
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("zz%d", i)
		_, ok, err := tr.Search([]byte(key))
		require.NoError(t, err)
		require.False(t, ok)
	}
	checkAutomaton(t, tr)
}

func TestBasicTrieStats(t *testing.T) {
	tr := NewBasicTrie()
	require.NoError(t, tr.Insert([]byte("car"), 1))
	require.NoError(t, tr.Insert([]byte("cat"), 2))
	stats := tr.Stats()
	assert.Contains(t, stats, "states")
	assert.Contains(t, stats, "free")
	assert.Contains(t, stats, "last_base")
	// c, a, r, t plus two terminators
	assert.Equal(t, int32(6), stats["used"])
}

func TestBasicTrieRelocatorObservesMoves(t *testing.T) {
	tr := NewBasicTrie()
	var moves int
	tr.SetRelocator(RelocatorFunc(func(old, moved int32) {
		moves++
		assert.NotEqual(t, old, moved)
	}))
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}
	for i, w := range words {
		require.NoError(t, tr.Insert([]byte(w), int32(i+1)))
	}
	// re-inserting an existing key recreates its terminator transition,
	// which always goes through the relocation path
	require.NoError(t, tr.Insert([]byte("alpha"), 11))
	assert.Greater(t, moves, 0)
	for i, w := range words {
		got, ok, err := tr.Search([]byte(w))
		require.NoError(t, err)
		require.True(t, ok)
		want := int32(i + 1)
		if w == "alpha" {
			want = 11
		}
		assert.Equal(t, want, got)
	}
	checkAutomaton(t, tr)
}
