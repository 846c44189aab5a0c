//go:build linux

package process_linux

import (
	"fmt"

	"procsig/process"
)

// OpenProcessByName finds a process by name and snapshots it
func OpenProcessByName(name string, opts ...process.Option) (*LinuxProcess, error) {
	info, err := NewProcessFinder(opts...).FindProcessByName(name)
	if err != nil {
		return nil, err
	}

	p, err := NewWithPID(info.PID, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s (pid %d): %w", name, info.PID, err)
	}

	return p, nil
}
