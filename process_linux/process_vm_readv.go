//go:build linux

package process_linux

import (
	"errors"
	"fmt"

	"procsig/process"

	"golang.org/x/sys/unix"
)

// process_vm_readv reads size bytes at remoteAddr of pid in one call
func process_vm_readv(
	pid process.ProcessID,
	remoteAddr process.ProcessMemoryAddress,
	size process.ProcessMemorySize,
) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	localBuf := make([]byte, size)

	localIov := []unix.Iovec{{Base: &localBuf[0]}}
	localIov[0].SetLen(int(size))

	remoteIov := []unix.RemoteIovec{{
		Base: uintptr(remoteAddr),
		Len:  int(size),
	}}

	n, err := unix.ProcessVMReadv(int(pid), localIov, remoteIov, 0)
	if err != nil {
		return nil, classifyReadError(err, remoteAddr, size)
	}

	// A short read means the range runs into unmapped memory
	if n != int(size) {
		return nil, &process.BadAddressError{Addr: remoteAddr, Size: size}
	}

	return localBuf, nil
}

// classifyReadError maps errno values onto the process error taxonomy
func classifyReadError(err error, addr process.ProcessMemoryAddress, size process.ProcessMemorySize) error {
	switch {
	case errors.Is(err, unix.EFAULT):
		return &process.BadAddressError{Addr: addr, Size: size}
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return fmt.Errorf("process_vm_readv: %w (%w)", process.ErrAccessDenied, err)
	case errors.Is(err, unix.ESRCH):
		return fmt.Errorf("process_vm_readv: %w (%w)", process.ErrProcessGone, err)
	default:
		return fmt.Errorf("process_vm_readv failed at %s: %w", addr.ToString(), err)
	}
}

// ReadMemory reads exactly size bytes at addr of the target process
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	return process_vm_readv(p.pid, addr, size)
}
