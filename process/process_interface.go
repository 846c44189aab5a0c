package process

import (
	"procsig/process/memory_map"
)

// Reader performs bounded reads of a target address space.
//
// ReadMemory returns exactly size bytes or an error classified as one of
// *BadAddressError, ErrAccessDenied, ErrProcessGone, or any other failure.
type Reader interface {
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)
}

// Process is a read-only snapshot of a running process: its ID and the
// regions mapped when the snapshot was taken. A snapshot never changes;
// call Refresh to take a new one.
type Process interface {
	Reader

	// GetPID returns the process ID
	GetPID() ProcessID

	// Regions returns the regions of the snapshot, sorted by address
	Regions() []memory_map.MemoryRegion

	// IsValidAddress reports whether addr falls inside a readable region of the snapshot
	IsValidAddress(addr ProcessMemoryAddress) bool

	// ScanSignature returns the lowest address where sig matches
	ScanSignature(sig Signature, opts ...ScanOption) (ProcessMemoryAddress, error)

	// ScanSignatureAll returns every address where sig matches
	ScanSignatureAll(sig Signature, opts ...ScanOption) ([]ProcessMemoryAddress, error)

	// Refresh re-reads the region list into a new snapshot
	Refresh() (Process, error)

	// Close releases OS resources held by the snapshot
	Close() error
}

// ProcessFinder locates running processes
type ProcessFinder interface {
	// FindProcessByName returns the process whose first command line token
	// contains name. When several match, the lowest PID wins.
	FindProcessByName(name string) (*ProcessInfo, error)
}
