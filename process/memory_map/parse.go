package memory_map

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MapParseError reports a memory map line that could not be parsed
type MapParseError struct {
	Line int    // 1-based line number
	Text string // offending line
	Err  error
}

func (e *MapParseError) Error() string {
	return fmt.Sprintf("memory map line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *MapParseError) Unwrap() error {
	return e.Err
}

// ParseMemoryMap parses maps text in the /proc/[pid]/maps format:
//
//	00400000-0040b000 r-xp 00000000 08:01 1234   /usr/bin/cat
//
// Blank lines are skipped. Any malformed address range fails the whole parse.
func ParseMemoryMap(r io.Reader) ([]MemoryRegion, error) {
	var regions []MemoryRegion

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		region, err := parseRegion(fields)
		if err != nil {
			return nil, &MapParseError{Line: lineNo, Text: line, Err: err}
		}
		regions = append(regions, region)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	SortRegions(regions)
	return regions, nil
}

func parseRegion(fields []string) (MemoryRegion, error) {
	// Parse address range (e.g., "00400000-0040b000")
	startStr, endStr, ok := strings.Cut(fields[0], "-")
	if !ok {
		return MemoryRegion{}, fmt.Errorf("missing '-' in address range")
	}

	startAddr, err := strconv.ParseUint(startStr, 16, 64)
	if err != nil {
		return MemoryRegion{}, fmt.Errorf("start address: %w", err)
	}

	endAddr, err := strconv.ParseUint(endStr, 16, 64)
	if err != nil {
		return MemoryRegion{}, fmt.Errorf("end address: %w", err)
	}

	if endAddr < startAddr {
		return MemoryRegion{}, fmt.Errorf("end %x before start %x", endAddr, startAddr)
	}

	region := MemoryRegion{
		Address: startAddr,
		Size:    uint(endAddr - startAddr),
	}

	if len(fields) > 1 {
		region.Perms = fields[1]
	}
	// pathnames may contain spaces
	if len(fields) > 5 {
		region.Path = strings.Join(fields[5:], " ")
	}

	return region, nil
}
