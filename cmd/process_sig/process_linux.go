package main

import (
	"procsig/process"
	"procsig/process_linux"
)

func openProcess(name string, pid int, opts []process.Option) (process.Process, error) {
	var (
		p   *process_linux.LinuxProcess
		err error
	)
	if pid != 0 {
		p, err = process_linux.NewWithPID(process.ProcessID(pid), opts...)
	} else {
		p, err = process_linux.OpenProcessByName(name, opts...)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
