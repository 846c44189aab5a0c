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
	"procsig/process_blob"
)

func main() {
	fromFlag := flag.String("from", "", "Directory containing the dump")
	addrFlag := flag.String("addr", "", "Address to read from (hex)")
	sigFlag := flag.String("sig", "", "Signature to scan the dump for")
	typeFlag := flag.String("type", "", "Type to decode at the address: "+strings.Join(process.TypeNames(), ", "))
	sizeFlag := flag.Int("size", 256, "Number of bytes to hexdump")
	colorFlag := flag.Bool("color", false, "Colorize the hexdump")
	flag.Parse()

	if *fromFlag == "" {
		fmt.Println("Error: --from is required")
		flag.Usage()
		os.Exit(1)
	}

	dump, err := process_blob.LoadDump(*fromFlag)
	if err != nil {
		fmt.Printf("Error loading dump from %s: %v\n", *fromFlag, err)
		os.Exit(1)
	}

	regions := dump.Regions()
	fmt.Printf("Loaded dump from %s\n", *fromFlag)
	fmt.Printf("Process Name: %s\n", dump.Name)
	fmt.Printf("PID: %d\n", dump.PID)
	fmt.Printf("Memory Regions: %d\n", len(regions))

	view := hexdump.DefaultOptions()
	view.Regions = regions
	view.Color = *colorFlag

	var addr process.ProcessMemoryAddress
	switch {
	case *sigFlag != "":
		sig, err := process.ParseSignature(*sigFlag)
		if err != nil {
			fmt.Printf("Error parsing signature: %v\n", err)
			os.Exit(1)
		}
		addr, err = dump.ScanSignature(sig)
		if errors.Is(err, process.ErrSignatureNotFound) {
			fmt.Println("Signature not found")
			os.Exit(2)
		}
		if err != nil {
			fmt.Printf("Error scanning dump: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Signature %s found at %s\n", sig, addr.ToString())
		view.Highlight = &sig

	case *addrFlag != "":
		v, err := strconv.ParseUint(strings.TrimPrefix(*addrFlag, "0x"), 16, 64)
		if err != nil {
			fmt.Printf("Error parsing address: %v\n", err)
			os.Exit(1)
		}
		addr = process.ProcessMemoryAddress(v)

	default:
		fmt.Println("\nMemory Map:")
		for _, region := range regions {
			fmt.Printf("  %016x - %016x (%s) %d bytes %s\n",
				region.Address, region.End(), region.Perms, region.Size, region.Path)
		}
		return
	}

	if *typeFlag != "" {
		value, err := process.ReadNamed(dump, addr, *typeFlag)
		if err != nil {
			fmt.Printf("Error decoding %s at %s: %v\n", *typeFlag, addr.ToString(), err)
			os.Exit(1)
		}
		fmt.Printf("%s = %s\n", *typeFlag, value)
		return
	}

	size, ok := memory_map.ClampToRegion(uint64(addr), uint(*sizeFlag), regions)
	if !ok {
		fmt.Printf("Address %s is not in any region\n", addr.ToString())
		os.Exit(1)
	}

	data, err := dump.ReadMemory(addr, process.ProcessMemorySize(size))
	if err != nil {
		fmt.Printf("Error reading memory at %s: %v\n", addr.ToString(), err)
		os.Exit(1)
	}

	fmt.Printf("\nHexdump at %s (%d bytes):\n", addr.ToString(), size)
	view.StartAddress = uint64(addr)
	hexdump.DumpToWriter(os.Stdout, data, view)
}
