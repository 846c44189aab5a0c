package memory_map

import (
	"fmt"
	"sort"
)

// MemoryRegion is one contiguous mapped range in a process's address space
type MemoryRegion struct {
	Address uint64 // The starting address of the memory region
	Size    uint   // The size of the memory region in bytes
	Perms   string // Permissions (e.g., "r-xp"), empty when the platform does not report them
	Path    string // Backing file or pseudo name such as "[heap]", empty for anonymous mappings
}

// String returns a string representation of the memory region
func (r MemoryRegion) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s", r.Address, r.Size, r.Perms)
}

// End returns the first address past the region
func (r MemoryRegion) End() uint64 {
	return r.Address + uint64(r.Size)
}

// Contains reports whether addr falls inside the region
func (r MemoryRegion) Contains(addr uint64) bool {
	return addr >= r.Address && addr < r.End()
}

// IsReadable reports false only when the permissions are known and deny reads.
func (r MemoryRegion) IsReadable() bool {
	return len(r.Perms) == 0 || r.Perms[0] == 'r'
}

func (r MemoryRegion) IsWritable() bool {
	return len(r.Perms) > 1 && r.Perms[1] == 'w'
}

func (r MemoryRegion) IsExecutable() bool {
	return len(r.Perms) > 2 && r.Perms[2] == 'x'
}

// SortRegions orders regions by ascending address
func SortRegions(regions []MemoryRegion) {
	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Address < regions[j].Address
	})
}

// FindRegion returns the region containing addr. regions must be sorted.
func FindRegion(addr uint64, regions []MemoryRegion) (MemoryRegion, bool) {
	i := sort.Search(len(regions), func(i int) bool {
		return regions[i].End() > addr
	})
	if i < len(regions) && regions[i].Address <= addr {
		return regions[i], true
	}

	return MemoryRegion{}, false
}

// ClampToRegion shortens size so [addr, addr+size) ends inside the region
// containing addr. It returns false when no region contains addr.
func ClampToRegion(addr uint64, size uint, regions []MemoryRegion) (uint, bool) {
	region, ok := FindRegion(addr, regions)
	if !ok {
		return 0, false
	}
	return min(size, uint(region.End()-addr)), true
}
