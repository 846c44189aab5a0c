// Package process provides the platform-neutral types, interfaces and algorithms
// for inspecting the memory of another process.
package process

import (
	"errors"
	"fmt"
)

var (
	// ErrProcessNotFound is returned when no running process matches a name.
	ErrProcessNotFound = errors.New("process not found")

	// ErrSignatureNotFound is returned when a scan exhausts every region without a match.
	ErrSignatureNotFound = errors.New("signature not found")

	// ErrEmptySignature is returned when a signature has no pattern bytes.
	ErrEmptySignature = errors.New("empty signature")

	// ErrBadAddress is matched by every *BadAddressError.
	ErrBadAddress = errors.New("bad address")

	// ErrAccessDenied is returned when the OS refuses access to the target's memory.
	// A scan stops on it.
	ErrAccessDenied = errors.New("access denied")

	// ErrProcessGone is returned when the target process no longer exists.
	// A scan stops on it.
	ErrProcessGone = errors.New("process no longer exists")

	// ErrVarintOverflow is returned when a ULEB128 value does not fit in 64 bits.
	ErrVarintOverflow = errors.New("uleb128 overflows 64 bits")

	// ErrStringTooLong is returned when a string header declares more than MaxStringLength code units.
	ErrStringTooLong = errors.New("string length exceeds limit")

	ErrInvalidPointer = errors.New("invalid pointer read")
)

// BadAddressError reports a targeted read whose range is not mapped or not
// accessible in a target that is otherwise alive.
type BadAddressError struct {
	Addr ProcessMemoryAddress
	Size ProcessMemorySize
}

func (e *BadAddressError) Error() string {
	return fmt.Sprintf("bad address %s (%s)", e.Addr.ToString(), e.Size.ToString())
}

func (e *BadAddressError) Is(target error) bool {
	return target == ErrBadAddress
}

// IsFatalScanError reports whether a region read error must abort a scan.
// Everything else only makes that one region unreadable.
func IsFatalScanError(err error) bool {
	return errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrProcessGone)
}
