package datrie

// SuffixTrie is a single trie whose single-continuation paths collapse into
// a flat tail array. A front state with base -k owns the tail starting at
// cell k: the remaining key symbols, the terminator, then the value cell.
type SuffixTrie struct {
	header   *suffixHeader
	trie     *BasicTrie
	tail     []int32
	nextTail int32
	mapping  []byte
}

// NewSuffixTrie returns an empty, owned suffix trie.
func NewSuffixTrie(opts ...Options) *SuffixTrie {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	st := &SuffixTrie{
		header:   newSuffixHeader(),
		trie:     NewBasicTrie(opts...),
		tail:     make([]int32, cfg.tailSize),
		nextTail: 1,
	}
	st.header.TailSize = cfg.tailSize
	return st
}

// insertSuffix parks the unrepresented remainder of a key in the tail array
// and points s at it.
func (st *SuffixTrie) insertSuffix(s int32, rest []byte, value int32) error {
	if err := st.growTail(st.nextTail + int32(len(rest)) + 2); err != nil {
		return err
	}
	st.trie.setBase(s, -st.nextTail)
	for _, b := range rest {
		st.tail[st.nextTail] = charIn(b)
		st.nextTail++
	}
	st.tail[st.nextTail] = kTerminator
	st.nextTail++
	st.tail[st.nextTail] = value
	st.nextTail++
	return nil
}

// branch splits a stored tail at the point where rest diverges from it: the
// shared prefix moves into the trie, and both continuations become fresh
// twigs. An exact match only rewrites the value cell.
func (st *SuffixTrie) branch(s int32, rest []byte, value int32) error {
	start := -st.trie.base(s)

	var common []int32
	var cmin, cmax int32
	p := 0
	for ; p < len(rest) && st.tail[start+int32(p)] == charIn(rest[p]); p++ {
		c := charIn(rest[p])
		if len(common) == 0 {
			cmin, cmax = c, c
		} else if c > cmax {
			cmax = c
		} else if c < cmin {
			cmin = c
		}
		common = append(common, c)
	}
	if p >= len(rest) && st.tail[start+int32(p)] == kTerminator {
		st.tail[start+int32(p)+1] = value
		return nil
	}

	b, err := st.trie.findBase(common, cmin, cmax)
	if err != nil {
		return err
	}
	st.trie.setBase(s, b)
	t := s
	for _, c := range common {
		t, err = st.trie.createTransition(t, c)
		if err != nil {
			return err
		}
	}

	// twig for the old tail; a terminator twig keeps its tail anchored on
	// the terminator cell so the value stays reachable
	oldSym := st.tail[start+int32(p)]
	old, err := st.trie.createTransition(t, oldSym)
	if err != nil {
		return err
	}
	if oldSym == kTerminator {
		st.trie.setBase(old, -(start + int32(p)))
	} else {
		st.trie.setBase(old, -(start + int32(p) + 1))
	}
	t = st.trie.prev(old)

	// twig for the new tail
	if p < len(rest) {
		nt, err := st.trie.createTransition(t, charIn(rest[p]))
		if err != nil {
			return err
		}
		return st.insertSuffix(nt, rest[p+1:], value)
	}
	nt, err := st.trie.createTransition(t, kTerminator)
	if err != nil {
		return err
	}
	return st.insertSuffix(nt, nil, value)
}

// Insert stores value under key.
func (st *SuffixTrie) Insert(key []byte, value int32) error {
	if st.mapping != nil {
		return ErrReadOnly
	}
	if len(key) == 0 {
		return ErrInvalidKey
	}
	if value <= 0 {
		return ErrInvalidValue
	}

	s, n := st.trie.goForward(kRootState, key)
	if st.trie.base(s) < 0 {
		return st.branch(s, key[n:], value)
	}
	if n < len(key) {
		t, err := st.trie.createTransition(s, charIn(key[n]))
		if err != nil {
			return err
		}
		return st.insertSuffix(t, key[n+1:], value)
	}
	t, err := st.trie.createTransition(s, kTerminator)
	if err != nil {
		return err
	}
	return st.insertSuffix(t, nil, value)
}

// Search returns the value stored under key, if any.
func (st *SuffixTrie) Search(key []byte) (int32, bool, error) {
	if len(key) == 0 {
		return 0, false, ErrInvalidKey
	}
	s, n := st.trie.goForward(kRootState, key)
	if st.trie.base(s) > 0 {
		if n < len(key) {
			return 0, false, nil
		}
		tt := st.trie.next(s, kTerminator)
		if !st.trie.checkTransition(s, tt) {
			return 0, false, nil
		}
		s = tt
	}
	if st.trie.base(s) >= 0 {
		return 0, false, nil
	}
	pos := -st.trie.base(s)
	for i := n; i < len(key); i++ {
		if pos >= int32(len(st.tail)) || st.tail[pos] != charIn(key[i]) {
			return 0, false, nil
		}
		pos++
	}
	if pos+1 >= int32(len(st.tail)) || st.tail[pos] != kTerminator {
		return 0, false, nil
	}
	return st.tail[pos+1], true, nil
}

// Stats reports table occupancy, in the shape of a status snapshot.
func (st *SuffixTrie) Stats() map[string]any {
	return map[string]any{
		"states":    st.trie.Size(),
		"tail_used": st.nextTail,
		"tail_cap":  len(st.tail),
	}
}

// Close releases the backing mapping of a loaded instance; owned instances
// have nothing to release.
func (st *SuffixTrie) Close() error {
	return unmapTrie(&st.mapping)
}

func (st *SuffixTrie) growTail(need int32) error {
	if need <= int32(len(st.tail)) {
		return nil
	}
	if need > maxStateSize {
		return ErrCapacity
	}
	size := int32(len(st.tail))
	if size == 0 {
		size = 256
	}
	for size < need {
		size *= 2
	}
	next := make([]int32, size)
	copy(next, st.tail)
	st.tail = next
	st.header.TailSize = size
	return nil
}
