package process

import (
	"fmt"
)

// ReadPointer reads a 64-bit pointer at addr
func ReadPointer(r Reader, addr ProcessMemoryAddress) (ProcessMemoryAddress, error) {
	ptr, err := Read[uint64](r, addr)
	if err != nil {
		return 0, err
	}
	return ProcessMemoryAddress(ptr), nil
}

// ReadPath reads a value of type T at the end of a pointer path.
// It starts at base, adds the first offset, reads a pointer, adds the next offset, reads a pointer, etc.
// The last offset is added to the final pointer, and then T is read from that address.
// If offsets is empty, it reads T from base.
func ReadPath[T Fixed](r Reader, base ProcessMemoryAddress, offsets ...ProcessMemorySize) (T, error) {
	var zero T

	addr, err := ResolvePath(r, base, offsets...)
	if err != nil {
		return zero, err
	}

	val, err := Read[T](r, addr)
	if err != nil {
		return zero, fmt.Errorf("failed to read final value at %s: %w", addr.ToString(), err)
	}

	return val, nil
}

// ResolvePath walks the pointer path like ReadPath and returns the final address
func ResolvePath(r Reader, base ProcessMemoryAddress, offsets ...ProcessMemorySize) (ProcessMemoryAddress, error) {
	current := base

	// Deref each offset except the last
	for i := 0; i < len(offsets)-1; i++ {
		ptrAddr := current + ProcessMemoryAddress(offsets[i])

		ptr, err := ReadPointer(r, ptrAddr)
		if err != nil {
			return 0, fmt.Errorf("failed to read pointer at offset %d (addr %s): %w", i, ptrAddr.ToString(), err)
		}
		if ptr == 0 {
			return 0, fmt.Errorf("%w: null pointer at offset %d (addr %s)", ErrInvalidPointer, i, ptrAddr.ToString())
		}

		current = ptr
	}

	// Last offset is a raw byte offset into the final struct
	if len(offsets) > 0 {
		current += ProcessMemoryAddress(offsets[len(offsets)-1])
	}

	return current, nil
}
