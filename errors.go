package datrie

import "errors"

var (
	// ErrInvalidKey is returned when a key is nil or empty.
	ErrInvalidKey = errors.New("datrie: key must not be nil or empty")

	// ErrInvalidValue is returned when an insert carries a non-positive value.
	ErrInvalidValue = errors.New("datrie: value must be positive")

	// ErrCapacity is returned when the state id space cannot grow any further.
	ErrCapacity = errors.New("datrie: state space exhausted")

	// ErrCorruptFile is returned when a file's magic or checksum does not match.
	ErrCorruptFile = errors.New("datrie: corrupt or foreign file")

	// ErrReadOnly is returned when mutating a trie loaded from a mapping.
	ErrReadOnly = errors.New("datrie: trie is a read-only mapping")
)
