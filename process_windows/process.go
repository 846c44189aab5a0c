//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"unsafe"

	"procsig/process"
	"procsig/process/memory_map"

	"golang.org/x/sys/windows"
)

const stillActive = 259

// WindowsProcess implements process.Process for Windows systems
type WindowsProcess struct {
	pid     process.ProcessID
	handle  windows.Handle
	regions []memory_map.MemoryRegion
	opts    process.Options
	optList []process.Option
}

var _ process.Process = (*WindowsProcess)(nil)

// NewWithPID opens the process with the given PID and snapshots its committed regions
func NewWithPID(pid process.ProcessID, opts ...process.Option) (*WindowsProcess, error) {
	o := process.NewOptions(opts...)

	handle, err := windows.OpenProcess(windows.PROCESS_VM_READ|windows.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		switch {
		case errors.Is(err, windows.ERROR_ACCESS_DENIED):
			return nil, fmt.Errorf("OpenProcess: %w (%w)", process.ErrAccessDenied, err)
		case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
			return nil, fmt.Errorf("%w: pid %d", process.ErrProcessNotFound, pid)
		default:
			return nil, fmt.Errorf("OpenProcess failed: %w", err)
		}
	}

	regions, err := queryRegions(handle)
	if err != nil {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("failed to read memory map: %w", err)
	}

	p := &WindowsProcess{
		pid:     pid,
		handle:  handle,
		regions: regions,
		opts:    o,
		optList: opts,
	}

	o.Infoln("Process opened, pid", pid, "regions", len(regions))
	return p, nil
}

// queryRegions walks the address space with VirtualQueryEx and keeps committed regions
func queryRegions(handle windows.Handle) ([]memory_map.MemoryRegion, error) {
	var (
		regions []memory_map.MemoryRegion
		addr    uintptr
		mbi     windows.MemoryBasicInformation
	)

	for {
		if err := windows.VirtualQueryEx(handle, addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
			// past the highest user-mode address
			if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
				break
			}
			return nil, fmt.Errorf("VirtualQueryEx at %#x: %w", addr, err)
		}

		base := uintptr(mbi.BaseAddress)
		size := uintptr(mbi.RegionSize)
		if size == 0 {
			break
		}

		if mbi.State == windows.MEM_COMMIT {
			regions = append(regions, memory_map.MemoryRegion{
				Address: uint64(base),
				Size:    uint(size),
				Perms:   protectPerms(mbi.Protect),
			})
		}

		next := base + size
		if next <= base {
			break
		}
		addr = next
	}

	memory_map.SortRegions(regions)
	return regions, nil
}

// protectPerms renders page protection in the /proc/<pid>/maps style
func protectPerms(protect uint32) string {
	perms := []byte("---p")
	if protect&windows.PAGE_GUARD != 0 {
		return string(perms)
	}

	switch protect & 0xFF { // mask out modifier flags
	case windows.PAGE_READONLY:
		perms[0] = 'r'
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY:
		perms[0], perms[1] = 'r', 'w'
	case windows.PAGE_EXECUTE:
		perms[2] = 'x'
	case windows.PAGE_EXECUTE_READ:
		perms[0], perms[2] = 'r', 'x'
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		perms[0], perms[1], perms[2] = 'r', 'w', 'x'
	}
	return string(perms)
}

func (p *WindowsProcess) GetPID() process.ProcessID {
	return p.pid
}

func (p *WindowsProcess) Regions() []memory_map.MemoryRegion {
	result := make([]memory_map.MemoryRegion, len(p.regions))
	copy(result, p.regions)
	return result
}

func (p *WindowsProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	region, ok := memory_map.FindRegion(uint64(addr), p.regions)
	return ok && region.IsReadable()
}

// ReadMemory reads exactly size bytes at addr with ReadProcessMemory
func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, size)
	var bytesRead uintptr
	err := windows.ReadProcessMemory(p.handle, uintptr(addr), &buf[0], uintptr(size), &bytesRead)
	if err != nil {
		return nil, p.classifyReadError(err, addr, size)
	}

	if bytesRead != uintptr(size) {
		return nil, &process.BadAddressError{Addr: addr, Size: size}
	}

	return buf, nil
}

func (p *WindowsProcess) classifyReadError(err error, addr process.ProcessMemoryAddress, size process.ProcessMemorySize) error {
	if !p.alive() {
		return fmt.Errorf("ReadProcessMemory: %w (%w)", process.ErrProcessGone, err)
	}

	switch {
	case errors.Is(err, windows.ERROR_PARTIAL_COPY), errors.Is(err, windows.ERROR_NOACCESS):
		return &process.BadAddressError{Addr: addr, Size: size}
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("ReadProcessMemory: %w (%w)", process.ErrAccessDenied, err)
	case errors.Is(err, windows.ERROR_INVALID_HANDLE):
		return fmt.Errorf("ReadProcessMemory: %w (%w)", process.ErrProcessGone, err)
	default:
		return fmt.Errorf("ReadProcessMemory failed at %s: %w", addr.ToString(), err)
	}
}

func (p *WindowsProcess) alive() bool {
	var code uint32
	if err := windows.GetExitCodeProcess(p.handle, &code); err != nil {
		return false
	}
	return code == stillActive
}

func (p *WindowsProcess) ScanSignature(sig process.Signature, opts ...process.ScanOption) (process.ProcessMemoryAddress, error) {
	return process.ScanRegions(p, p.regions, sig, p.scanOptions(opts)...)
}

func (p *WindowsProcess) ScanSignatureAll(sig process.Signature, opts ...process.ScanOption) ([]process.ProcessMemoryAddress, error) {
	return process.ScanRegionsAll(p, p.regions, sig, p.scanOptions(opts)...)
}

func (p *WindowsProcess) scanOptions(opts []process.ScanOption) []process.ScanOption {
	defaults := []process.ScanOption{
		process.WithReadableOnly(),
		process.WithSkipHook(func(region memory_map.MemoryRegion, err error) {
			p.opts.Debugln("Failed to read memory region at", fmt.Sprintf("%x", region.Address), err)
		}),
	}
	return append(defaults, opts...)
}

// Refresh opens a new handle and takes a new snapshot. The old snapshot
// keeps its own handle until closed.
func (p *WindowsProcess) Refresh() (process.Process, error) {
	return NewWithPID(p.pid, p.optList...)
}

func (p *WindowsProcess) Close() error {
	if p.handle == 0 {
		return nil
	}
	if err := windows.CloseHandle(p.handle); err != nil {
		return fmt.Errorf("CloseHandle failed: %w", err)
	}
	p.handle = 0
	p.opts.Infoln("Process closed")
	return nil
}
