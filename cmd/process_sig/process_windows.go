package main

import (
	"procsig/process"
	"procsig/process_windows"
)

func openProcess(name string, pid int, opts []process.Option) (process.Process, error) {
	var (
		p   *process_windows.WindowsProcess
		err error
	)
	if pid != 0 {
		p, err = process_windows.NewWithPID(process.ProcessID(pid), opts...)
	} else {
		p, err = process_windows.OpenProcessByName(name, opts...)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
