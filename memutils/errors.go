package memutils

import "github.com/cockroachdb/errors"

var (
	// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
	PowerOfTwoError error = errors.New("number must be a power of two")

	// ErrInvalidConfiguration is returned when a pool is created with a capacity or element type that
	// cannot host even a single block
	ErrInvalidConfiguration = errors.New("invalid pool configuration")
	// ErrOutOfMemory is returned when no free block in the pool can satisfy an allocation request. The
	// pool is unchanged when this error is returned.
	ErrOutOfMemory = errors.New("out of pool memory")
	// ErrInvalidArgument is returned when an offset or count passed to the pool does not refer to a
	// live allocation. The pool is unchanged when this error is returned.
	ErrInvalidArgument = errors.New("invalid argument")
)
