package main

import (
	"flag"
	"fmt"
	"os"

	"procsig/process_blob"
)

func main() {
	pidFlag := flag.Int("pid", 0, "Process ID to attach to")
	nameFlag := flag.String("name", "", "Process name to search for (instead of --pid)")
	outputFlag := flag.String("output", "", "Output directory for the dump")
	maxRegionFlag := flag.Uint("max-region", 100*1024*1024, "Skip regions larger than this many bytes (0 for no limit)")
	flag.Parse()

	if *pidFlag == 0 && *nameFlag == "" {
		fmt.Println("Error: --pid or --name is required")
		flag.Usage()
		os.Exit(1)
	}

	if *outputFlag == "" {
		fmt.Println("Error: --output is required")
		flag.Usage()
		os.Exit(1)
	}

	proc, name, err := getProcess(*pidFlag, *nameFlag)
	if err != nil {
		fmt.Printf("Error attaching to process: %v\n", err)
		os.Exit(1)
	}
	defer proc.Close()

	fmt.Printf("Attached to process %d\n", proc.GetPID())
	fmt.Printf("Saving dump to %s...\n", *outputFlag)

	stats, err := process_blob.SaveDump(proc, name, *outputFlag, *maxRegionFlag)
	if err != nil {
		fmt.Printf("Error saving dump: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Region statistics:\n")
	fmt.Printf("  - Skipped non-readable: %d\n", stats.SkippedProtected)
	fmt.Printf("  - Skipped too large: %d\n", stats.SkippedTooLarge)
	fmt.Printf("  - Read errors: %d\n", stats.SkippedUnread)
	fmt.Printf("  - Successfully saved: %d\n", stats.Saved)
}
