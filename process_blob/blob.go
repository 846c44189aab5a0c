// Package process_blob provides process.Reader implementations backed by
// bytes already in memory: a single blob and a multi-region process dump.
package process_blob

import (
	"procsig/process"
	"procsig/process/memory_map"
)

// ProcessBlob is a single contiguous range of bytes mapped at a base address
type ProcessBlob struct {
	baseaddress process.ProcessMemoryAddress
	data        []byte
}

var _ process.Reader = (*ProcessBlob)(nil)

func NewProcessBlob(baseAddress process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	return &ProcessBlob{
		baseaddress: baseAddress,
		data:        data,
	}
}

func (p *ProcessBlob) Data() []byte {
	return p.data
}

// Region describes the blob as a memory region
func (p *ProcessBlob) Region() memory_map.MemoryRegion {
	return memory_map.MemoryRegion{
		Address: uint64(p.baseaddress),
		Size:    uint(len(p.data)),
		Perms:   "r--p",
	}
}

// ReadMemory returns a copy of size bytes at addr, or a *process.BadAddressError
// when any part of the range lies outside the blob.
func (p *ProcessBlob) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	data, ok := slice(p.baseaddress, p.data, addr, size)
	if !ok {
		return nil, &process.BadAddressError{Addr: addr, Size: size}
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Offset reads a T at offset bytes from the start of the blob
func Offset[T process.Fixed](p *ProcessBlob, offset process.ProcessMemorySize) (T, error) {
	return process.Read[T](p, p.baseaddress+process.ProcessMemoryAddress(offset))
}

// slice returns the bytes of [addr, addr+size) within data mapped at base
func slice(base process.ProcessMemoryAddress, data []byte, addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, bool) {
	if addr < base {
		return nil, false
	}

	offset := uint64(addr - base)
	end := offset + uint64(size)
	if end < offset || end > uint64(len(data)) {
		return nil, false
	}

	return data[offset:end], true
}
