package datrie

import (
	"fmt"
	"log"
	"os"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

const magicSize = 16

var (
	doubleMagic = [magicSize]byte{'T', 'W', 'O', '_', 'T', 'R', 'I', 'E'}
	suffixMagic = [magicSize]byte{'T', 'A', 'I', 'L', '_', 'T', 'R', 'I', 'E'}
	basicMagic  = [magicSize]byte{'B', 'A', 'S', 'I', 'C', '_', 'T', 'R', 'I', 'E'}
)

// doubleHeader leads a double trie file; the index table, accept table,
// front trie and rear trie follow contiguously.
type doubleHeader struct {
	Magic      [magicSize]byte
	IndexSize  int32
	AcceptSize int32
	Checksum   uint64
}

// suffixHeader leads a suffix trie file; the tail array and the trie follow.
type suffixHeader struct {
	Magic    [magicSize]byte
	TailSize int32
	_        int32
	Checksum uint64
}

// basicFileHeader leads a standalone basic trie file; the trie header and
// state table follow.
type basicFileHeader struct {
	Magic    [magicSize]byte
	Checksum uint64
}

func newDoubleHeader() *doubleHeader {
	return &doubleHeader{Magic: doubleMagic}
}

func newSuffixHeader() *suffixHeader {
	return &suffixHeader{Magic: suffixMagic}
}

// rawBytes exposes a struct as its in-memory bytes. The file format is
// host-endian and host-width on purpose: the mmap'd form and the live form
// are the same bytes.
func rawBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(unsafe.Sizeof(*v)))
}

func rawSlice[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var t T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(t)))
}

func mapFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("datrie: open %s: %w", path, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("datrie: stat %s: %w", path, err)
	}
	if fi.Size() == 0 {
		return nil, ErrCorruptFile
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("datrie: mmap %s: %w", path, err)
	}
	return data, nil
}

func unmapTrie(mapping *[]byte) error {
	if *mapping == nil {
		return nil
	}
	data := *mapping
	*mapping = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("datrie: munmap: %w", err)
	}
	return nil
}

// viewBasic interprets a basic trie header plus state table at data[off:].
func viewBasic(data []byte, off int) (*BasicTrie, int, error) {
	hsz := int(unsafe.Sizeof(basicHeader{}))
	if off+hsz > len(data) {
		return nil, 0, ErrCorruptFile
	}
	h := (*basicHeader)(unsafe.Pointer(&data[off]))
	off += hsz
	ssz := int(unsafe.Sizeof(state{}))
	n := int(h.Size)
	if n < int(kCharsetSize) || off+n*ssz > len(data) {
		return nil, 0, ErrCorruptFile
	}
	states := unsafe.Slice((*state)(unsafe.Pointer(&data[off])), n)
	off += n * ssz
	return newBasicTrieView(h, states), off, nil
}

func writeSections(f *os.File, header []byte, sections [][]byte) error {
	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("datrie: write header: %w", err)
	}
	for _, sec := range sections {
		if _, err := f.Write(sec); err != nil {
			return fmt.Errorf("datrie: write section: %w", err)
		}
	}
	return nil
}

func checksum(sections [][]byte) uint64 {
	digest := xxhash.New()
	for _, sec := range sections {
		digest.Write(sec)
	}
	return digest.Sum64()
}

// Build serializes the basic trie into a single contiguous file.
func (t *BasicTrie) Build(path string, verbose bool) error {
	if !t.owner {
		return ErrReadOnly
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("datrie: create %s: %w", path, err)
	}
	defer f.Close()

	header := &basicFileHeader{Magic: basicMagic}
	sections := [][]byte{
		rawBytes(t.header),
		rawSlice(t.states),
	}
	header.Checksum = checksum(sections)
	if err := writeSections(f, rawBytes(header), sections); err != nil {
		return err
	}
	if verbose {
		states := len(sections[1])
		total := len(sections[0]) + states
		log.Printf("states = %s, total = %s",
			humanize.Bytes(uint64(states)), humanize.Bytes(uint64(total)))
	}
	return nil
}

// LoadBasicTrie maps a file built by BasicTrie.Build read-only. The returned
// instance answers searches out of the mapping and rejects inserts.
func LoadBasicTrie(path string) (*BasicTrie, error) {
	data, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	hsz := int(unsafe.Sizeof(basicFileHeader{}))
	if len(data) < hsz {
		unmapTrie(&data)
		return nil, ErrCorruptFile
	}
	h := (*basicFileHeader)(unsafe.Pointer(&data[0]))
	if h.Magic != basicMagic {
		unmapTrie(&data)
		return nil, ErrCorruptFile
	}
	if xxhash.Sum64(data[hsz:]) != h.Checksum {
		unmapTrie(&data)
		return nil, ErrCorruptFile
	}
	tr, _, err := viewBasic(data, hsz)
	if err != nil {
		unmapTrie(&data)
		return nil, err
	}
	tr.mapping = data
	return tr, nil
}

// Build serializes the double trie into a single contiguous file.
func (dt *DoubleTrie) Build(path string, verbose bool) error {
	if dt.mapping != nil {
		return ErrReadOnly
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("datrie: create %s: %w", path, err)
	}
	defer f.Close()

	dt.header.IndexSize = dt.nextIndex
	dt.header.AcceptSize = dt.nextAccept
	sections := [][]byte{
		rawSlice(dt.index[:dt.nextIndex]),
		rawSlice(dt.accept[:dt.nextAccept]),
		rawBytes(dt.lhs.header),
		rawSlice(dt.lhs.states),
		rawBytes(dt.rhs.header),
		rawSlice(dt.rhs.states),
	}
	dt.header.Checksum = checksum(sections)
	if err := writeSections(f, rawBytes(dt.header), sections); err != nil {
		return err
	}
	if verbose {
		index, accept := len(sections[0]), len(sections[1])
		front := len(sections[2]) + len(sections[3])
		rear := len(sections[4]) + len(sections[5])
		log.Printf("index = %s, accept = %s, front = %s, rear = %s, total = %s",
			humanize.Bytes(uint64(index)), humanize.Bytes(uint64(accept)),
			humanize.Bytes(uint64(front)), humanize.Bytes(uint64(rear)),
			humanize.Bytes(uint64(index+accept+front+rear)))
	}
	return nil
}

// LoadDoubleTrie maps a file built by DoubleTrie.Build read-only. The
// returned instance answers searches out of the mapping and rejects inserts.
func LoadDoubleTrie(path string) (*DoubleTrie, error) {
	data, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	dt, err := loadDoubleTrie(data)
	if err != nil {
		unmapTrie(&data)
		return nil, err
	}
	return dt, nil
}

func loadDoubleTrie(data []byte) (*DoubleTrie, error) {
	hsz := int(unsafe.Sizeof(doubleHeader{}))
	if len(data) < hsz {
		return nil, ErrCorruptFile
	}
	h := (*doubleHeader)(unsafe.Pointer(&data[0]))
	if h.Magic != doubleMagic {
		return nil, ErrCorruptFile
	}
	if xxhash.Sum64(data[hsz:]) != h.Checksum {
		return nil, ErrCorruptFile
	}
	off := hsz
	esz := int(unsafe.Sizeof(indexEntry{}))
	n := int(h.IndexSize)
	if n < 1 || off+n*esz > len(data) {
		return nil, ErrCorruptFile
	}
	index := unsafe.Slice((*indexEntry)(unsafe.Pointer(&data[off])), n)
	off += n * esz
	asz := int(unsafe.Sizeof(acceptEntry{}))
	n = int(h.AcceptSize)
	if n < 1 || off+n*asz > len(data) {
		return nil, ErrCorruptFile
	}
	accept := unsafe.Slice((*acceptEntry)(unsafe.Pointer(&data[off])), n)
	off += n * asz
	lhs, off, err := viewBasic(data, off)
	if err != nil {
		return nil, err
	}
	rhs, _, err := viewBasic(data, off)
	if err != nil {
		return nil, err
	}
	return &DoubleTrie{
		header:     h,
		lhs:        lhs,
		rhs:        rhs,
		index:      index,
		accept:     accept,
		refer:      make(map[int32]*refInfo),
		nextIndex:  h.IndexSize,
		nextAccept: h.AcceptSize,
		mapping:    data,
	}, nil
}

// Build serializes the suffix trie into a single contiguous file.
func (st *SuffixTrie) Build(path string, verbose bool) error {
	if st.mapping != nil {
		return ErrReadOnly
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("datrie: create %s: %w", path, err)
	}
	defer f.Close()

	st.header.TailSize = st.nextTail
	sections := [][]byte{
		rawSlice(st.tail[:st.nextTail]),
		rawBytes(st.trie.header),
		rawSlice(st.trie.states),
	}
	st.header.Checksum = checksum(sections)
	if err := writeSections(f, rawBytes(st.header), sections); err != nil {
		return err
	}
	if verbose {
		tail := len(sections[0])
		trie := len(sections[1]) + len(sections[2])
		log.Printf("tail = %s, trie = %s, total = %s",
			humanize.Bytes(uint64(tail)), humanize.Bytes(uint64(trie)),
			humanize.Bytes(uint64(tail+trie)))
	}
	return nil
}

// LoadSuffixTrie maps a file built by SuffixTrie.Build read-only.
func LoadSuffixTrie(path string) (*SuffixTrie, error) {
	data, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	st, err := loadSuffixTrie(data)
	if err != nil {
		unmapTrie(&data)
		return nil, err
	}
	return st, nil
}

func loadSuffixTrie(data []byte) (*SuffixTrie, error) {
	hsz := int(unsafe.Sizeof(suffixHeader{}))
	if len(data) < hsz {
		return nil, ErrCorruptFile
	}
	h := (*suffixHeader)(unsafe.Pointer(&data[0]))
	if h.Magic != suffixMagic {
		return nil, ErrCorruptFile
	}
	if xxhash.Sum64(data[hsz:]) != h.Checksum {
		return nil, ErrCorruptFile
	}
	off := hsz
	csz := int(unsafe.Sizeof(int32(0)))
	n := int(h.TailSize)
	if n < 1 || off+n*csz > len(data) {
		return nil, ErrCorruptFile
	}
	tail := unsafe.Slice((*int32)(unsafe.Pointer(&data[off])), n)
	off += n * csz
	trie, _, err := viewBasic(data, off)
	if err != nil {
		return nil, err
	}
	return &SuffixTrie{
		header:   h,
		trie:     trie,
		tail:     tail,
		nextTail: h.TailSize,
		mapping:  data,
	}, nil
}
