//go:build linux

package main

import (
	"procsig/process"
	"procsig/process_linux"
)

// getProcess opens by PID when given, otherwise by name. It returns the name to record in the dump.
func getProcess(pid int, name string) (process.Process, string, error) {
	if pid == 0 {
		info, err := process_linux.NewProcessFinder().FindProcessByName(name)
		if err != nil {
			return nil, "", err
		}
		pid, name = int(info.PID), info.Name
	}

	p, err := process_linux.NewWithPID(process.ProcessID(pid))
	if err != nil {
		return nil, "", err
	}
	return p, name, nil
}
