//go:build linux

package process_linux

import (
	"fmt"

	"procsig/process"
	"procsig/process/memory_map"
)

// scanOptions puts the backend defaults before the caller's options.
// Regions without read permission would fail with EFAULT anyway.
func (p *LinuxProcess) scanOptions(opts []process.ScanOption) []process.ScanOption {
	defaults := []process.ScanOption{
		process.WithReadableOnly(),
		process.WithSkipHook(func(region memory_map.MemoryRegion, err error) {
			p.opts.Debugln("Failed to read memory region at", fmt.Sprintf("%x", region.Address), err)
		}),
	}
	return append(defaults, opts...)
}

// ScanSignature returns the lowest address where sig matches
func (p *LinuxProcess) ScanSignature(sig process.Signature, opts ...process.ScanOption) (process.ProcessMemoryAddress, error) {
	p.opts.Infoln("Starting memory scan for signature", sig.String())

	addr, err := process.ScanRegions(p, p.regions, sig, p.scanOptions(opts)...)
	if err != nil {
		return 0, err
	}

	p.opts.Infoln("Scan complete, match at", addr.ToString())
	return addr, nil
}

// ScanSignatureAll returns every address where sig matches
func (p *LinuxProcess) ScanSignatureAll(sig process.Signature, opts ...process.ScanOption) ([]process.ProcessMemoryAddress, error) {
	p.opts.Infoln("Starting memory scan for signature", sig.String())

	addrs, err := process.ScanRegionsAll(p, p.regions, sig, p.scanOptions(opts)...)
	if err != nil {
		return nil, err
	}

	p.opts.Infoln("Scan complete, found", len(addrs), "matches")
	return addrs, nil
}
