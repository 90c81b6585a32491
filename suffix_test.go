package datrie

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func suffixRoundTrip(t *testing.T, keys map[string]int32) *SuffixTrie {
	t.Helper()
	st := NewSuffixTrie()
	for k, v := range keys {
		require.NoError(t, st.Insert([]byte(k), v), "insert %q", k)
	}
	for k, v := range keys {
		got, ok, err := st.Search([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "key %q", k)
		require.Equal(t, v, got, "key %q", k)
	}
	checkAutomaton(t, st.trie)
	return st
}

func TestSuffixTrieRoundTrip(t *testing.T) {
	st := suffixRoundTrip(t, map[string]int32{"he": 1, "she": 2, "his": 3, "hers": 4})
	_, ok, err := st.Search([]byte("her"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSuffixTrieTailBranch(t *testing.T) {
	st := NewSuffixTrie()
	require.NoError(t, st.Insert([]byte("alpha"), 1))
	require.NoError(t, st.Insert([]byte("alphabet"), 2))
	for k, v := range map[string]int32{"alpha": 1, "alphabet": 2} {
		got, ok, err := st.Search([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "key %q", k)
		assert.Equal(t, v, got)
	}
	for _, miss := range []string{"alp", "alphab", "alphabets", "beta"} {
		_, ok, err := st.Search([]byte(miss))
		require.NoError(t, err)
		assert.False(t, ok, "key %q", miss)
	}
}

func TestSuffixTrieTailBranchReversed(t *testing.T) {
	st := NewSuffixTrie()
	require.NoError(t, st.Insert([]byte("alphabet"), 2))
	require.NoError(t, st.Insert([]byte("alpha"), 1))
	for k, v := range map[string]int32{"alpha": 1, "alphabet": 2} {
		got, ok, err := st.Search([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "key %q", k)
		assert.Equal(t, v, got)
	}
}

func TestSuffixTriePrefixChain(t *testing.T) {
	st := NewSuffixTrie()
	require.NoError(t, st.Insert([]byte("a"), 1))
	require.NoError(t, st.Insert([]byte("ab"), 2))
	require.NoError(t, st.Insert([]byte("abc"), 3))
	for k, v := range map[string]int32{"a": 1, "ab": 2, "abc": 3} {
		got, ok, err := st.Search([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "key %q", k)
		assert.Equal(t, v, got)
	}
	_, ok, err := st.Search([]byte("abcd"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSuffixTrieOverwrite(t *testing.T) {
	st := NewSuffixTrie()
	keys := []string{"bachelor", "jar", "badge", "baby"}
	for i, k := range keys {
		require.NoError(t, st.Insert([]byte(k), int32(i+1)))
	}
	require.NoError(t, st.Insert([]byte("jar"), 9))
	want := map[string]int32{"bachelor": 1, "jar": 9, "badge": 3, "baby": 4}
	for k, v := range want {
		got, ok, err := st.Search([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "key %q", k)
		assert.Equal(t, v, got, "key %q", k)
	}
}

func TestSuffixTrieErrors(t *testing.T) {
	st := NewSuffixTrie()
	assert.ErrorIs(t, st.Insert(nil, 1), ErrInvalidKey)
	assert.ErrorIs(t, st.Insert([]byte{}, 1), ErrInvalidKey)
	assert.ErrorIs(t, st.Insert([]byte("x"), 0), ErrInvalidValue)
	_, _, err := st.Search(nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, ok, err := st.Search([]byte("x"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSuffixTrieHighBytes(t *testing.T) {
	suffixRoundTrip(t, map[string]int32{
		string([]byte{0xFF}):             1,
		string([]byte{0xFF, 0xFE, 0xFF}): 2,
		string([]byte{0x00}):             3,
	})
}

func TestSuffixTrieRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	st := NewSuffixTrie()
	want := make(map[string]int32)
	for i := 0; i < 600; i++ {
		n := rng.Intn(9) + 1
		key := make([]byte, n)
		for j := range key {
			key[j] = byte('a' + rng.Intn(3))
		}
		v := int32(rng.Intn(1000) + 1)
		want[string(key)] = v
		require.NoError(t, st.Insert(key, v), "insert %q", key)
	}
	for k, v := range want {
		got, ok, err := st.Search([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "key %q", k)
		require.Equal(t, v, got, "key %q", k)
	}
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("zq%d", i)
		_, ok, err := st.Search([]byte(key))
		require.NoError(t, err)
		require.False(t, ok)
	}
	checkAutomaton(t, st.trie)
}
