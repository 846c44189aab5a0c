//go:build linux

package memory_map

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ReadMemoryMap reads and parses <procRoot>/<pid>/maps
func ReadMemoryMap(procRoot string, pid int) ([]MemoryRegion, error) {
	file, err := os.Open(filepath.Join(procRoot, strconv.Itoa(pid), "maps"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	regions, err := ParseMemoryMap(file)
	if err != nil {
		return nil, fmt.Errorf("pid %d: %w", pid, err)
	}

	return regions, nil
}
