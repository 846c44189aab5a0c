//go:build windows

package main

import (
	"procsig/process"
	"procsig/process_windows"
)

// getProcess opens by PID when given, otherwise by name. It returns the name to record in the dump.
func getProcess(pid int, name string) (process.Process, string, error) {
	if pid == 0 {
		info, err := process_windows.NewProcessFinder().FindProcessByName(name)
		if err != nil {
			return nil, "", err
		}
		pid, name = int(info.PID), info.Name
	}

	p, err := process_windows.NewWithPID(process.ProcessID(pid))
	if err != nil {
		return nil, "", err
	}
	return p, name, nil
}
