package datrie

// Relocator observes state migrations performed by a BasicTrie. A containing
// trie installs one to fix external references whenever a conflict forces a
// state to move. Implementations must not mutate the trie during a call.
type Relocator interface {
	Relocate(old, moved int32)
}

// RelocatorFunc adapts a function into a Relocator.
type RelocatorFunc func(old, moved int32)

// Relocate implements Relocator.
func (f RelocatorFunc) Relocate(old, moved int32) {
	f(old, moved)
}

// maxStateSize bounds the state id space well inside int32 so that
// base+symbol arithmetic can never wrap.
const maxStateSize int32 = 1 << 30

type basicHeader struct {
	Size     int32
	LastBase int32
}

type state struct {
	Base  int32
	Check int32
}

// BasicTrie is a double-array deterministic automaton. For a used state s,
// a child on symbol c lives at base(s)+c iff check(base(s)+c) == s. A
// negative base marks a terminal whose payload meaning belongs to the
// containing variant; base zero marks an unused state or one without
// children yet. A terminator child written by Insert holds the stored value
// in its base.
type BasicTrie struct {
	header    *basicHeader
	states    []state
	owner     bool
	relocator Relocator
	mapping   []byte
}

// NewBasicTrie returns an empty, owned trie.
func NewBasicTrie(opts ...Options) *BasicTrie {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	t := &BasicTrie{header: &basicHeader{}, owner: true}
	t.grow(cfg.stateSize)
	return t
}

// newBasicTrieView wraps header and states interpreted from a read-only
// mapping. Views reject mutation.
func newBasicTrieView(header *basicHeader, states []state) *BasicTrie {
	return &BasicTrie{header: header, states: states, owner: false}
}

// SetRelocator installs the migration hook. Pass nil to remove it.
func (t *BasicTrie) SetRelocator(r Relocator) {
	t.relocator = r
}

func (t *BasicTrie) base(s int32) int32  { return t.states[s].Base }
func (t *BasicTrie) check(s int32) int32 { return t.states[s].Check }

func (t *BasicTrie) setBase(s, v int32)  { t.states[s].Base = v }
func (t *BasicTrie) setCheck(s, v int32) { t.states[s].Check = v }

// next computes the would-be child of s on symbol ch without validation.
func (t *BasicTrie) next(s, ch int32) int32 {
	return t.base(s) + ch
}

// prev returns the parent of a used state.
func (t *BasicTrie) prev(s int32) int32 {
	return t.check(s)
}

// checkTransition reports whether tt is a live child of s.
func (t *BasicTrie) checkTransition(s, tt int32) bool {
	return tt > kRootState && tt < t.header.Size && t.check(tt) == s
}

// checkReverseTransition reports whether s was reached from its parent on ch.
func (t *BasicTrie) checkReverseTransition(s, ch int32) bool {
	p := t.prev(s)
	return p > 0 && t.next(p, ch) == s
}

// goForward walks symbols from s while transitions exist and returns the
// reached state along with the count of consumed bytes.
func (t *BasicTrie) goForward(s int32, key []byte) (int32, int) {
	for i := 0; i < len(key); i++ {
		tt := t.next(s, charIn(key[i]))
		if !t.checkTransition(s, tt) {
			return s, i
		}
		s = tt
	}
	return s, len(key)
}

// goForwardReverse walks down from s consuming key back-to-front, the order
// the rear trie stores suffixes in. It returns the reached state and the
// index of the first unmatched byte, -1 when every byte matched.
func (t *BasicTrie) goForwardReverse(s int32, key []byte) (int32, int) {
	for j := len(key) - 1; j >= 0; j-- {
		tt := t.next(s, charIn(key[j]))
		if !t.checkTransition(s, tt) {
			return s, j
		}
		s = tt
	}
	return s, -1
}

// goBackward climbs from s toward the root, requiring each incoming edge to
// match the next key byte. It returns the reached state and the count of
// consumed bytes.
func (t *BasicTrie) goBackward(s int32, key []byte) (int32, int) {
	for i := 0; i < len(key); i++ {
		if !t.checkReverseTransition(s, charIn(key[i])) {
			return s, i
		}
		s = t.prev(s)
	}
	return s, len(key)
}

// findExistTarget enumerates the symbols on which s has children, with their
// extremes. The terminator symbol participates like any other, so relocation
// carries terminator children along.
func (t *BasicTrie) findExistTarget(s int32) (targets []int32, min, max int32) {
	b := t.base(s)
	if b <= 0 {
		return nil, 0, 0
	}
	for ch := int32(0); ch < kCharsetSize; ch++ {
		tt := b + ch
		if tt >= t.header.Size {
			break
		}
		if t.check(tt) == s {
			if len(targets) == 0 {
				min, max = ch, ch
			} else if ch > max {
				max = ch
			}
			targets = append(targets, ch)
		}
	}
	return targets, min, max
}

// outdegree counts the children of s.
func (t *BasicTrie) outdegree(s int32) int {
	targets, _, _ := t.findExistTarget(s)
	return len(targets)
}

// findBase hunts for the smallest base beyond the lastBase cursor at which
// every required symbol's cell is free. Cells 0 and 1 stay reserved.
func (t *BasicTrie) findBase(targets []int32, min, max int32) (int32, error) {
	i := t.header.LastBase
	for {
		i++
		if i >= maxStateSize-kCharsetSize {
			return 0, ErrCapacity
		}
		if i+max >= t.header.Size {
			if err := t.grow(i + max + 1); err != nil {
				return 0, err
			}
		}
		if i+min <= kRootState {
			continue
		}
		if t.check(i+min) > 0 || t.check(i+max) > 0 {
			continue
		}
		free := true
		for _, ch := range targets {
			if t.check(i+ch) > 0 {
				free = false
				break
			}
		}
		if free {
			break
		}
	}
	t.header.LastBase = i
	return i, nil
}

// relocate moves the listed children of s to a fresh base, rewriting each
// grandchild's check, notifying the relocator, and zeroing the vacated
// cells. stand tracks a caller-held state id across the move.
func (t *BasicTrie) relocate(stand, s int32, targets []int32, min, max int32) (int32, error) {
	obase := t.base(s)
	nbase, err := t.findBase(targets, min, max)
	if err != nil {
		return stand, err
	}
	for _, ch := range targets {
		old := obase + ch
		if old <= 0 || old >= t.header.Size || t.check(old) != s {
			continue
		}
		moved := nbase + ch
		t.setBase(moved, t.base(old))
		t.setCheck(moved, s)
		grand, _, _ := t.findExistTarget(old)
		for _, d := range grand {
			t.setCheck(t.base(old)+d, moved)
		}
		if stand == old {
			stand = moved
		}
		if t.relocator != nil {
			t.relocator.Relocate(old, moved)
		}
		t.setBase(old, 0)
		t.setCheck(old, 0)
	}
	t.setBase(s, nbase)
	return stand, nil
}

// createTransition ensures a child of s on ch exists and returns its id.
// On conflict the smaller of the two involved child sets migrates.
func (t *BasicTrie) createTransition(s, ch int32) (int32, error) {
	tt := t.next(s, ch)
	if tt >= t.header.Size {
		if err := t.grow(tt + 1); err != nil {
			return 0, err
		}
	}
	if !(t.base(s) > 0 && tt > kRootState && t.check(tt) <= 0) {
		targets, min, max := t.findExistTarget(s)
		var occupant int32
		if tt > 0 && tt < t.header.Size {
			occupant = t.check(tt)
		}
		var occTargets []int32
		var omin, omax int32
		if occupant > 0 {
			occTargets, omin, omax = t.findExistTarget(occupant)
		}
		var err error
		if len(occTargets) > 0 && len(targets)+1 > len(occTargets) {
			s, err = t.relocate(s, occupant, occTargets, omin, omax)
		} else {
			if len(targets) == 0 {
				min, max = ch, ch
			} else {
				if ch < min {
					min = ch
				}
				if ch > max {
					max = ch
				}
			}
			targets = append(targets, ch)
			s, err = t.relocate(s, s, targets, min, max)
		}
		if err != nil {
			return 0, err
		}
		tt = t.next(s, ch)
		if tt >= t.header.Size {
			if err := t.grow(tt + 1); err != nil {
				return 0, err
			}
		}
	}
	t.setCheck(tt, s)
	return tt, nil
}

// Insert stores value under key directly in the automaton, the terminal
// state's base holding the value.
func (t *BasicTrie) Insert(key []byte, value int32) error {
	if !t.owner {
		return ErrReadOnly
	}
	if len(key) == 0 {
		return ErrInvalidKey
	}
	if value <= 0 {
		return ErrInvalidValue
	}
	s, n := t.goForward(kRootState, key)
	for _, b := range key[n:] {
		var err error
		s, err = t.createTransition(s, charIn(b))
		if err != nil {
			return err
		}
	}
	term, err := t.createTransition(s, kTerminator)
	if err != nil {
		return err
	}
	t.setBase(term, value)
	return nil
}

// Search returns the value stored under key, if any.
func (t *BasicTrie) Search(key []byte) (int32, bool, error) {
	if len(key) == 0 {
		return 0, false, ErrInvalidKey
	}
	s, n := t.goForward(kRootState, key)
	if n < len(key) {
		return 0, false, nil
	}
	tt := t.next(s, kTerminator)
	if !t.checkTransition(s, tt) {
		return 0, false, nil
	}
	return t.base(tt), true, nil
}

// Size returns the current state table length.
func (t *BasicTrie) Size() int32 {
	return t.header.Size
}

// Stats reports table occupancy, in the shape of a status snapshot.
func (t *BasicTrie) Stats() map[string]any {
	used := int32(0)
	for s := kRootState + 1; s < t.header.Size; s++ {
		if t.check(s) > 0 {
			used++
		}
	}
	return map[string]any{
		"states":    t.header.Size,
		"used":      used,
		"free":      t.header.Size - used,
		"last_base": t.header.LastBase,
	}
}

// Close releases the backing mapping of a loaded instance; owned instances
// have nothing to release.
func (t *BasicTrie) Close() error {
	return unmapTrie(&t.mapping)
}

func (t *BasicTrie) grow(need int32) error {
	if need <= t.header.Size {
		return nil
	}
	if need > maxStateSize {
		return ErrCapacity
	}
	size := t.header.Size
	if size < kCharsetSize {
		size = kCharsetSize
	}
	for size < need {
		if size > maxStateSize/2 {
			size = maxStateSize
			break
		}
		size *= 2
	}
	next := make([]state, size)
	copy(next, t.states)
	t.states = next
	t.header.Size = size
	return nil
}
