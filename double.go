package datrie

// indexEntry joins a front-trie separator to the accept table. Index points
// at an accept entry, Data holds the user value.
type indexEntry struct {
	Index int32
	Data  int32
}

// acceptEntry references a rear-trie state shared by one or more separators.
type acceptEntry struct {
	Accept int32
}

// refInfo is the write-side view of one accept entry: its slot in the accept
// table and the set of front separators currently pointing at it.
type refInfo struct {
	acceptIndex int32
	referer     map[int32]struct{}
}

// DoubleTrie is a front trie joined to a reversed rear trie through the
// index and accept tables, so that keys sharing a suffix share rear states.
// A front state with negative base is a separator: -base indexes the index
// table, whose entry carries the value and the accept reference.
type DoubleTrie struct {
	header     *doubleHeader
	lhs        *BasicTrie
	rhs        *BasicTrie
	index      []indexEntry
	accept     []acceptEntry
	refer      map[int32]*refInfo
	freeIndex  []int32
	freeAccept []int32
	nextIndex  int32
	nextAccept int32
	stand      int32
	uhold      int32
	mapping    []byte
}

// NewDoubleTrie returns an empty, owned double trie.
func NewDoubleTrie(opts ...Options) *DoubleTrie {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	dt := &DoubleTrie{
		header:     newDoubleHeader(),
		lhs:        NewBasicTrie(opts...),
		rhs:        NewBasicTrie(opts...),
		index:      make([]indexEntry, cfg.indexSize),
		accept:     make([]acceptEntry, cfg.acceptSize),
		refer:      make(map[int32]*refInfo),
		nextIndex:  1,
		nextAccept: 1,
	}
	dt.header.IndexSize = cfg.indexSize
	dt.header.AcceptSize = cfg.acceptSize
	dt.lhs.SetRelocator(RelocatorFunc(dt.relocateFront))
	dt.rhs.SetRelocator(RelocatorFunc(dt.relocateRear))
	return dt
}

// relocateFront keeps referrer sets pointing at live front state ids when
// the front trie migrates a separator.
func (dt *DoubleTrie) relocateFront(old, moved int32) {
	if !dt.checkSeparator(moved) {
		return
	}
	u := dt.linkState(moved)
	if ri, ok := dt.refer[u]; ok {
		delete(ri.referer, old)
		ri.referer[moved] = struct{}{}
	}
}

// relocateRear keeps the accept table and the in-flight stand cursor in
// sync when the rear trie migrates an accept state.
func (dt *DoubleTrie) relocateRear(old, moved int32) {
	if ri, ok := dt.refer[old]; ok {
		delete(dt.refer, old)
		dt.refer[moved] = ri
		dt.accept[ri.acceptIndex].Accept = moved
	}
	if dt.stand == old {
		dt.stand = moved
	}
	if dt.uhold == old {
		dt.uhold = moved
	}
}

func (dt *DoubleTrie) checkSeparator(s int32) bool {
	return dt.lhs.base(s) < 0
}

func (dt *DoubleTrie) linkState(s int32) int32 {
	return dt.accept[dt.index[-dt.lhs.base(s)].Index].Accept
}

func (dt *DoubleTrie) countReferer(t int32) int {
	ri, ok := dt.refer[t]
	if !ok {
		return 0
	}
	return len(ri.referer)
}

// setLink ties front separator s to rear state t and returns the index
// table slot. A separator keeps its slot (and stored value) across relinks.
func (dt *DoubleTrie) setLink(s, t int32) (int32, error) {
	ri, ok := dt.refer[t]
	if !ok {
		var ai int32
		if n := len(dt.freeAccept); n > 0 {
			ai = dt.freeAccept[n-1]
			dt.freeAccept = dt.freeAccept[:n-1]
		} else {
			ai = dt.nextAccept
			dt.nextAccept++
			if err := dt.growAccept(dt.nextAccept); err != nil {
				return 0, err
			}
		}
		ri = &refInfo{acceptIndex: ai, referer: make(map[int32]struct{})}
		dt.refer[t] = ri
	}
	dt.accept[ri.acceptIndex].Accept = t

	var i int32
	if dt.lhs.base(s) < 0 {
		i = -dt.lhs.base(s)
	} else if n := len(dt.freeIndex); n > 0 {
		i = dt.freeIndex[n-1]
		dt.freeIndex = dt.freeIndex[:n-1]
		dt.index[i].Data = 0
	} else {
		i = dt.nextIndex
		dt.nextIndex++
		if err := dt.growIndex(dt.nextIndex); err != nil {
			return 0, err
		}
		dt.index[i].Data = 0
	}
	dt.index[i].Index = ri.acceptIndex
	ri.referer[s] = struct{}{}
	dt.lhs.setBase(s, -i)
	return i, nil
}

// freeAcceptEntry releases t's accept slot and forgets its referrer set.
func (dt *DoubleTrie) freeAcceptEntry(t int32) {
	if ri, ok := dt.refer[t]; ok {
		dt.accept[ri.acceptIndex].Accept = 0
		dt.freeAccept = append(dt.freeAccept, ri.acceptIndex)
		delete(dt.refer, t)
	}
}

// removeAcceptState frees t's accept slot and erases t from the rear trie.
func (dt *DoubleTrie) removeAcceptState(t int32) {
	dt.freeAcceptEntry(t)
	dt.rhs.setBase(t, 0)
	dt.rhs.setCheck(t, 0)
}

// rhsAppend stores a reversed key segment in the rear trie, sharing an
// existing suffix path where possible, and returns the rear state standing
// for the segment's first byte.
func (dt *DoubleTrie) rhsAppend(segment []byte) (int32, error) {
	s := kRootState
	j := len(segment) - 1
	tt := dt.rhs.next(s, kTerminator)
	if dt.rhs.checkTransition(s, tt) {
		s, j = dt.rhs.goForwardReverse(tt, segment)
		if j < 0 {
			tt = dt.rhs.next(s, kTerminator)
			if dt.rhs.outdegree(s) == 0 {
				return s, nil
			}
			if dt.rhs.checkTransition(s, tt) {
				return tt, nil
			}
			return dt.rhs.createTransition(s, kTerminator)
		}
	}
	if s != kRootState && dt.rhs.outdegree(s) == 0 {
		// keys ending at s need an explicit terminator child before the
		// shared path grows below s
		term, err := dt.rhs.createTransition(s, kTerminator)
		if err != nil {
			return 0, err
		}
		s = dt.rhs.prev(term)
		if ri, ok := dt.refer[s]; ok {
			for front := range ri.referer {
				if _, err := dt.setLink(front, term); err != nil {
					return 0, err
				}
			}
		}
		dt.freeAcceptEntry(s)
	}
	if s == kRootState {
		j = len(segment) - 1
		var err error
		s, err = dt.rhs.createTransition(s, kTerminator)
		if err != nil {
			return 0, err
		}
	}
	for ; j >= 0; j-- {
		var err error
		s, err = dt.rhs.createTransition(s, charIn(segment[j]))
		if err != nil {
			return 0, err
		}
	}
	return s, nil
}

// lhsInsert hangs a fresh separator off front state s for the residual key
// bytes and returns its index table slot.
func (dt *DoubleTrie) lhsInsert(s int32, residual []byte) (int32, error) {
	t, err := dt.lhs.createTransition(s, charIn(residual[0]))
	if err != nil {
		return 0, err
	}
	r, err := dt.rhsAppend(residual[1:])
	if err != nil {
		return 0, err
	}
	return dt.setLink(t, r)
}

// rhsCleanOne absorbs t's sole terminator child, making t the accept state
// for the keys that ended there. Reports whether it applied.
func (dt *DoubleTrie) rhsCleanOne(t int32) (bool, error) {
	if dt.rhs.outdegree(t) != 1 {
		return false, nil
	}
	r := dt.rhs.next(t, kTerminator)
	if !dt.rhs.checkTransition(t, r) {
		return false, nil
	}
	if ri, ok := dt.refer[r]; ok {
		for front := range ri.referer {
			if _, err := dt.setLink(front, t); err != nil {
				return false, err
			}
		}
	}
	dt.removeAcceptState(r)
	return true, nil
}

// rhsCleanMore walks rear parents from t, dropping states that are
// unreferenced leaves and absorbing sole terminator children, stopping at
// the first ancestor that is neither.
func (dt *DoubleTrie) rhsCleanMore(t int32) error {
	if t <= kRootState {
		return nil
	}
	if dt.rhs.outdegree(t) == 0 && dt.countReferer(t) == 0 {
		s := dt.rhs.prev(t)
		dt.removeAcceptState(t)
		if s > kRootState {
			return dt.rhsCleanMore(s)
		}
		return nil
	}
	if _, err := dt.rhsCleanOne(t); err != nil {
		return err
	}
	return nil
}

// rhsInsert splits a shared rear suffix: separator s stops covering the old
// key outright, and the already-matched bytes move into the front trie. The
// old key gets a fresh separator below the fork; the new key gets one too
// when bytes remain after the fork, and otherwise a terminator child whose
// base holds its value.
func (dt *DoubleTrie) rhsInsert(s, r int32, match, remain []byte, last byte, terminator bool, value int32) error {
	// R-1: unlink s from its accept state
	u := dt.linkState(s)
	idx := -dt.lhs.base(s)
	oval := dt.index[idx].Data
	dt.index[idx].Index = 0
	dt.index[idx].Data = 0
	dt.freeIndex = append(dt.freeIndex, idx)
	dt.lhs.setBase(s, 0)
	dt.stand = r
	dt.uhold = u
	if u > 0 {
		if ri, ok := dt.refer[u]; ok {
			delete(ri.referer, s)
			if len(ri.referer) == 0 {
				dt.freeAcceptEntry(u)
			}
		}
	}

	// R-2: push the matched bytes into the front and place the new key
	for _, b := range match {
		t, err := dt.lhs.createTransition(s, charIn(b))
		if err != nil {
			return err
		}
		s = t
	}
	if len(remain) > 0 {
		t, err := dt.lhs.createTransition(s, charIn(remain[0]))
		if err != nil {
			return err
		}
		rear, err := dt.rhsAppend(remain[1:])
		if err != nil {
			return err
		}
		i, err := dt.setLink(t, rear)
		if err != nil {
			return err
		}
		dt.index[i].Data = value
		s = dt.lhs.prev(t)
	} else {
		t, err := dt.lhs.createTransition(s, kTerminator)
		if err != nil {
			return err
		}
		dt.lhs.setBase(t, value)
		s = dt.lhs.prev(t)
	}

	// R-3: re-attach the old key below the fork
	ch := kTerminator
	if !terminator {
		ch = charIn(last)
	}
	t, err := dt.lhs.createTransition(s, ch)
	if err != nil {
		return err
	}
	v := dt.rhs.prev(dt.stand)
	anchor := dt.rhs.next(v, kTerminator)
	if !dt.rhs.checkTransition(v, anchor) {
		anchor, err = dt.rhs.createTransition(v, kTerminator)
		if err != nil {
			return err
		}
	}
	i, err := dt.setLink(t, anchor)
	if err != nil {
		return err
	}
	dt.index[i].Data = oval

	// R-4: collapse whatever the old accept chain no longer needs
	u = dt.uhold
	if u > 0 {
		done, err := dt.rhsCleanOne(u)
		if err != nil {
			return err
		}
		if !done {
			return dt.rhsCleanMore(u)
		}
	}
	return nil
}

// Insert stores value under key.
func (dt *DoubleTrie) Insert(key []byte, value int32) error {
	if dt.mapping != nil {
		return ErrReadOnly
	}
	if len(key) == 0 {
		return ErrInvalidKey
	}
	if value <= 0 {
		return ErrInvalidValue
	}

	s, n := dt.lhs.goForward(kRootState, key)
	if n < len(key) && !dt.checkSeparator(s) {
		i, err := dt.lhsInsert(s, key[n:])
		if err != nil {
			return err
		}
		dt.index[i].Data = value
		return nil
	}
	if !dt.checkSeparator(s) {
		// key fully held by the front trie
		tt := dt.lhs.next(s, kTerminator)
		if dt.lhs.checkTransition(s, tt) {
			if dt.checkSeparator(tt) {
				dt.index[-dt.lhs.base(tt)].Data = value
			} else {
				dt.lhs.setBase(tt, value)
			}
			return nil
		}
		tt, err := dt.lhs.createTransition(s, kTerminator)
		if err != nil {
			return err
		}
		dt.lhs.setBase(tt, value)
		return nil
	}

	// the front bottomed out at a separator: compare against the shared
	// rear suffix
	r := dt.linkState(s)
	if dt.rhs.checkReverseTransition(r, kTerminator) && dt.rhs.prev(r) > kRootState {
		r = dt.rhs.prev(r)
	}
	var match []byte
	i := n
	for ; i < len(key); i++ {
		if dt.rhs.checkReverseTransition(r, charIn(key[i])) {
			r = dt.rhs.prev(r)
			match = append(match, key[i])
		} else {
			break
		}
	}
	var last byte
	terminator := false
	if i >= len(key) && dt.rhs.checkReverseTransition(r, kTerminator) {
		r = dt.rhs.prev(r)
	} else {
		in := r - dt.rhs.base(dt.rhs.prev(r))
		terminator = in == kTerminator
		if !terminator {
			last = charOut(in)
		}
	}

	if r > kRootState {
		return dt.rhsInsert(s, r, match, key[i:], last, terminator, value)
	}
	dt.index[-dt.lhs.base(s)].Data = value
	return nil
}

// Search returns the value stored under key, if any.
func (dt *DoubleTrie) Search(key []byte) (int32, bool, error) {
	if len(key) == 0 {
		return 0, false, ErrInvalidKey
	}
	s, n := dt.lhs.goForward(kRootState, key)
	if n < len(key) && !dt.checkSeparator(s) {
		return 0, false, nil
	}
	if n >= len(key) {
		tt := dt.lhs.next(s, kTerminator)
		if dt.lhs.checkTransition(s, tt) {
			if dt.checkSeparator(tt) {
				return dt.index[-dt.lhs.base(tt)].Data, true, nil
			}
			return dt.lhs.base(tt), true, nil
		}
		if !dt.checkSeparator(s) {
			return 0, false, nil
		}
	}

	r := dt.linkState(s)
	if dt.rhs.checkReverseTransition(r, kTerminator) && dt.rhs.prev(r) > kRootState {
		r = dt.rhs.prev(r)
	}
	residual := key[n:]
	r, consumed := dt.rhs.goBackward(r, residual)
	if consumed < len(residual) {
		return 0, false, nil
	}
	if !dt.rhs.checkReverseTransition(r, kTerminator) {
		return 0, false, nil
	}
	if dt.rhs.prev(r) != kRootState {
		return 0, false, nil
	}
	return dt.index[-dt.lhs.base(s)].Data, true, nil
}

// Stats reports table occupancy, in the shape of a status snapshot.
func (dt *DoubleTrie) Stats() map[string]any {
	return map[string]any{
		"front_states": dt.lhs.Size(),
		"rear_states":  dt.rhs.Size(),
		"index_used":   dt.nextIndex,
		"accept_used":  dt.nextAccept,
		"free_index":   len(dt.freeIndex),
		"free_accept":  len(dt.freeAccept),
	}
}

// Close releases the backing mapping of a loaded instance; owned instances
// have nothing to release.
func (dt *DoubleTrie) Close() error {
	return unmapTrie(&dt.mapping)
}

func (dt *DoubleTrie) growIndex(need int32) error {
	if need <= int32(len(dt.index)) {
		return nil
	}
	if need > maxStateSize {
		return ErrCapacity
	}
	size := int32(len(dt.index))
	if size == 0 {
		size = 1024
	}
	for size < need {
		size *= 2
	}
	next := make([]indexEntry, size)
	copy(next, dt.index)
	dt.index = next
	dt.header.IndexSize = size
	return nil
}

func (dt *DoubleTrie) growAccept(need int32) error {
	if need <= int32(len(dt.accept)) {
		return nil
	}
	if need > maxStateSize {
		return ErrCapacity
	}
	size := int32(len(dt.accept))
	if size == 0 {
		size = 1024
	}
	for size < need {
		size *= 2
	}
	next := make([]acceptEntry, size)
	copy(next, dt.accept)
	dt.accept = next
	dt.header.AcceptSize = size
	return nil
}
