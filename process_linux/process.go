//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"procsig/process"
	"procsig/process/memory_map"
)

// LinuxProcess implements process.Process for Linux systems.
// It is an immutable snapshot and safe for concurrent use.
type LinuxProcess struct {
	pid     process.ProcessID
	regions []memory_map.MemoryRegion
	opts    process.Options
	optList []process.Option
}

var _ process.Process = (*LinuxProcess)(nil)

// NewWithPID snapshots the process with the given PID: it checks the process
// exists and reads its memory map.
func NewWithPID(pid process.ProcessID, opts ...process.Option) (*LinuxProcess, error) {
	o := process.NewOptions(opts...)

	// Check if process exists
	procPath := filepath.Join(o.ProcRoot, strconv.Itoa(int(pid)))
	if _, err := os.Stat(procPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: pid %d", process.ErrProcessNotFound, pid)
		}
		return nil, fmt.Errorf("stat %s: %w", procPath, err)
	}

	regions, err := memory_map.ReadMemoryMap(o.ProcRoot, int(pid))
	if err != nil {
		return nil, fmt.Errorf("failed to read memory map: %w", err)
	}

	p := &LinuxProcess{
		pid:     pid,
		regions: regions,
		opts:    o,
		optList: opts,
	}

	o.Infoln("Process opened, pid", pid, "regions", len(regions))

	return p, nil
}

// GetPID returns the process ID
func (p *LinuxProcess) GetPID() process.ProcessID {
	return p.pid
}

// Regions returns a copy of the snapshot's memory map
func (p *LinuxProcess) Regions() []memory_map.MemoryRegion {
	result := make([]memory_map.MemoryRegion, len(p.regions))
	copy(result, p.regions)
	return result
}

func (p *LinuxProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	region, ok := memory_map.FindRegion(uint64(addr), p.regions)
	return ok && region.IsReadable()
}

// Refresh takes a new snapshot of the same PID with the same options
func (p *LinuxProcess) Refresh() (process.Process, error) {
	return NewWithPID(p.pid, p.optList...)
}

// Close is a no-op; Linux snapshots hold no OS handles
func (p *LinuxProcess) Close() error {
	return nil
}
