package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"procsig/hexdump"
	"procsig/process"
	"procsig/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

func main() {
	nameFlag := flag.String("name", "", "Process name to search for (substring of the first command line token)")
	pidFlag := flag.Int("pid", 0, "Process ID to attach to (instead of --name)")
	sigFlag := flag.String("sig", "", "Signature to scan for (e.g., '48 8b ?? ?? 05')")
	addrFlag := flag.String("addr", "", "Address to decode when no signature is given (hex)")
	offsetFlag := flag.Int64("offset", 0, "Offset added to the resolved address before decoding")
	typeFlag := flag.String("type", "", "Type to decode: "+strings.Join(process.TypeNames(), ", "))
	allFlag := flag.Bool("all", false, "Report every match instead of the first")
	parallelFlag := flag.Uint("parallel", 1, "Number of regions to read concurrently")
	maxRegionFlag := flag.Uint("max-region", 0, "Skip regions larger than this many bytes (0 for no limit)")
	colorFlag := flag.Bool("color", false, "Colorize hex dumps")
	verboseFlag := flag.Bool("v", false, "Log progress")
	flag.Parse()

	if *nameFlag == "" && *pidFlag == 0 {
		fmt.Println("Error: --name or --pid is required")
		flag.Usage()
		os.Exit(1)
	}

	if *sigFlag == "" && *addrFlag == "" {
		fmt.Println("Error: --sig or --addr is required")
		flag.Usage()
		os.Exit(1)
	}

	var opts []process.Option
	if *verboseFlag {
		opts = append(opts, process.WithLogger(logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "process-sig"))))
	}

	proc, err := openProcess(*nameFlag, *pidFlag, opts)
	if err != nil {
		fmt.Printf("Error attaching to process: %v\n", err)
		os.Exit(1)
	}
	defer proc.Close()

	fmt.Printf("Attached to process %d (%d regions)\n", proc.GetPID(), len(proc.Regions()))

	var targets []process.ProcessMemoryAddress

	view := hexdump.DefaultOptions()
	view.Regions = proc.Regions()
	view.Color = *colorFlag

	if *sigFlag != "" {
		sig, err := process.ParseSignature(*sigFlag)
		if err != nil {
			fmt.Printf("Error parsing signature: %v\n", err)
			os.Exit(1)
		}
		view.Highlight = &sig

		scanOpts := []process.ScanOption{
			process.WithParallelism(*parallelFlag),
			process.WithMaxRegionSize(*maxRegionFlag),
		}

		fmt.Printf("Scanning for signature: %s\n", sig)

		if *allFlag {
			targets, err = proc.ScanSignatureAll(sig, scanOpts...)
		} else {
			var addr process.ProcessMemoryAddress
			addr, err = proc.ScanSignature(sig, scanOpts...)
			targets = append(targets, addr)
		}

		if err != nil {
			if errors.Is(err, process.ErrSignatureNotFound) {
				fmt.Println("Signature not found")
				os.Exit(2)
			}
			fmt.Printf("Error scanning memory: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Found %d matches\n", len(targets))
	} else {
		addr, err := parseAddress(*addrFlag)
		if err != nil {
			fmt.Printf("Error parsing address: %v\n", err)
			os.Exit(1)
		}
		targets = append(targets, addr)
	}

	for _, match := range targets {
		addr := process.ProcessMemoryAddress(int64(match) + *offsetFlag)
		report(proc, match, addr, *typeFlag, view)
	}
}

// report prints the decoded value at addr, or a hex dump when no type was asked for
func report(proc process.Process, match, addr process.ProcessMemoryAddress, typeName string, view hexdump.Options) {
	fmt.Printf("Match at %s -> %s:\n", match.ToString(), addr.ToString())

	if typeName == "" {
		size, ok := memory_map.ClampToRegion(uint64(addr), 64, view.Regions)
		if !ok {
			fmt.Printf("  %s is not in any region\n", addr.ToString())
			return
		}
		data, err := proc.ReadMemory(addr, process.ProcessMemorySize(size))
		if err != nil {
			fmt.Printf("  read error: %v\n", err)
			return
		}
		view.StartAddress = uint64(addr)
		hexdump.DumpToWriter(os.Stdout, data, view)
		return
	}

	value, err := process.ReadNamed(proc, addr, typeName)
	if err != nil {
		var badAddr *process.BadAddressError
		if errors.As(err, &badAddr) {
			fmt.Printf("  %s not readable: %v\n", typeName, badAddr)
			return
		}
		fmt.Printf("  %s read error: %v\n", typeName, err)
		return
	}

	fmt.Printf("  %s = %s\n", typeName, value)
}

func parseAddress(s string) (process.ProcessMemoryAddress, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, err
	}
	return process.ProcessMemoryAddress(v), nil
}
