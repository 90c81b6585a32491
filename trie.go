// Package datrie implements an associative map from byte strings to positive
// integer values laid out as a double-array trie. Two tail-compressing
// variants are provided on top of the basic double-array state machine: a
// double trie that factors shared suffixes into a reversed rear trie, and a
// suffix trie that collapses single-continuation paths into a flat tail
// array. Either variant serializes to a single memory-mappable file.
package datrie

// Trie is the common contract implemented by all trie variants.
type Trie interface {
	// Insert stores value under key, replacing any previous value.
	// The value must be positive and the key non-empty.
	Insert(key []byte, value int32) error

	// Search returns the value stored under key, if any.
	Search(key []byte) (int32, bool, error)

	// Build serializes the trie into a single file at path. With verbose
	// set, a human-readable section size report is logged.
	Build(path string, verbose bool) error
}

// Options mutates construction-time tuning knobs.
type Options func(*config)

type config struct {
	stateSize  int32
	indexSize  int32
	acceptSize int32
	tailSize   int32
}

func defaultConfig() config {
	return config{
		stateSize:  kCharsetSize,
		indexSize:  1024,
		acceptSize: 1024,
		tailSize:   256,
	}
}

// WithStateSize presizes the double-array state table.
func WithStateSize(n int32) Options {
	return func(cfg *config) {
		if n > 0 {
			cfg.stateSize = n
		}
	}
}

// WithIndexSize presizes the double trie's index table.
func WithIndexSize(n int32) Options {
	return func(cfg *config) {
		if n > 0 {
			cfg.indexSize = n
		}
	}
}

// WithAcceptSize presizes the double trie's accept table.
func WithAcceptSize(n int32) Options {
	return func(cfg *config) {
		if n > 0 {
			cfg.acceptSize = n
		}
	}
}

// WithTailSize presizes the suffix trie's tail array.
func WithTailSize(n int32) Options {
	return func(cfg *config) {
		if n > 0 {
			cfg.tailSize = n
		}
	}
}
