package process_blob

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"procsig/process"
	"procsig/process/memory_map"
)

const (
	metadataFile  = "metadata.json"
	memoryMapFile = "process_memory_map.json"
)

// ProcessDump implements process.Process over region contents captured earlier.
// Regions without captured data read as bad addresses.
type ProcessDump struct {
	PID     process.ProcessID
	Name    string
	regions []memory_map.MemoryRegion
	blobs   map[uint64][]byte // region address -> data
}

var _ process.Process = (*ProcessDump)(nil)

// NewProcessDump builds a dump from regions and the captured bytes of some of
// them, keyed by region address.
func NewProcessDump(pid process.ProcessID, name string, regions []memory_map.MemoryRegion, blobs map[uint64][]byte) *ProcessDump {
	rs := make([]memory_map.MemoryRegion, len(regions))
	copy(rs, regions)
	memory_map.SortRegions(rs)

	bs := make(map[uint64][]byte, len(blobs))
	for addr, data := range blobs {
		bs[addr] = data
	}

	return &ProcessDump{
		PID:     pid,
		Name:    name,
		regions: rs,
		blobs:   bs,
	}
}

func (p *ProcessDump) GetPID() process.ProcessID {
	return p.PID
}

func (p *ProcessDump) Regions() []memory_map.MemoryRegion {
	result := make([]memory_map.MemoryRegion, len(p.regions))
	copy(result, p.regions)
	return result
}

func (p *ProcessDump) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	region, ok := memory_map.FindRegion(uint64(addr), p.regions)
	if !ok {
		return false
	}
	_, ok = p.blobs[region.Address]
	return ok
}

// ReadMemory reads within a single captured region
func (p *ProcessDump) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	region, ok := memory_map.FindRegion(uint64(addr), p.regions)
	if !ok {
		return nil, &process.BadAddressError{Addr: addr, Size: size}
	}

	data, ok := p.blobs[region.Address]
	if !ok {
		return nil, &process.BadAddressError{Addr: addr, Size: size}
	}

	return NewProcessBlob(process.ProcessMemoryAddress(region.Address), data).ReadMemory(addr, size)
}

func (p *ProcessDump) ScanSignature(sig process.Signature, opts ...process.ScanOption) (process.ProcessMemoryAddress, error) {
	return process.ScanRegions(p, p.regions, sig, opts...)
}

func (p *ProcessDump) ScanSignatureAll(sig process.Signature, opts ...process.ScanOption) ([]process.ProcessMemoryAddress, error) {
	return process.ScanRegionsAll(p, p.regions, sig, opts...)
}

// Refresh returns the dump itself; captured data never changes
func (p *ProcessDump) Refresh() (process.Process, error) {
	return p, nil
}

func (p *ProcessDump) Close() error {
	return nil
}

type dumpMetadata struct {
	PID  process.ProcessID `json:"pid"`
	Name string            `json:"name"`
}

// DumpStats counts what SaveDump did with each region
type DumpStats struct {
	Saved            int
	SkippedUnread    int // region read failed with a tolerated error
	SkippedTooLarge  int
	SkippedProtected int // permissions deny reads
}

func blobFilename(dirname string, region memory_map.MemoryRegion) string {
	return filepath.Join(dirname, fmt.Sprintf("blob_0x%x_%d.bin", region.Address, region.Size))
}

// SaveDump writes the regions of proc and their contents to dirname.
// Regions larger than maxRegionSize (0 for no limit) or unreadable are recorded
// in the map without data. Access denied and process gone abort the save.
func SaveDump(proc process.Process, name, dirname string, maxRegionSize uint) (DumpStats, error) {
	var stats DumpStats

	if err := os.MkdirAll(dirname, 0755); err != nil {
		return stats, fmt.Errorf("failed to create directory: %w", err)
	}

	metadataJSON, err := json.MarshalIndent(dumpMetadata{PID: proc.GetPID(), Name: name}, "", "  ")
	if err != nil {
		return stats, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, metadataFile), metadataJSON, 0644); err != nil {
		return stats, fmt.Errorf("failed to write metadata file: %w", err)
	}

	regions := proc.Regions()
	memoryMapJSON, err := json.MarshalIndent(regions, "", "  ")
	if err != nil {
		return stats, fmt.Errorf("failed to marshal memory map: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, memoryMapFile), memoryMapJSON, 0644); err != nil {
		return stats, fmt.Errorf("failed to write memory map file: %w", err)
	}

	for _, region := range regions {
		if !region.IsReadable() {
			stats.SkippedProtected++
			continue
		}
		if maxRegionSize > 0 && region.Size > maxRegionSize {
			stats.SkippedTooLarge++
			continue
		}

		data, err := proc.ReadMemory(process.ProcessMemoryAddress(region.Address), process.ProcessMemorySize(region.Size))
		if err != nil {
			if process.IsFatalScanError(err) {
				return stats, err
			}
			stats.SkippedUnread++
			continue
		}

		if err := os.WriteFile(blobFilename(dirname, region), data, 0644); err != nil {
			return stats, fmt.Errorf("failed to write memory file for region at %x: %w", region.Address, err)
		}
		stats.Saved++
	}

	return stats, nil
}

// LoadDump reads a dump written by SaveDump
func LoadDump(dirname string) (*ProcessDump, error) {
	metadataBytes, err := os.ReadFile(filepath.Join(dirname, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata dumpMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	mmBytes, err := os.ReadFile(filepath.Join(dirname, memoryMapFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read memory map: %w", err)
	}

	var regions []memory_map.MemoryRegion
	if err := json.Unmarshal(mmBytes, &regions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal memory map: %w", err)
	}

	blobs := make(map[uint64][]byte)
	for _, region := range regions {
		filename := blobFilename(dirname, region)

		data, err := os.ReadFile(filename)
		if errors.Is(err, fs.ErrNotExist) {
			continue // not captured
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read blob %s: %w", filename, err)
		}
		if len(data) != int(region.Size) {
			return nil, fmt.Errorf("blob %s has %d bytes, region has %d", filename, len(data), region.Size)
		}

		blobs[region.Address] = data
	}

	return NewProcessDump(metadata.PID, metadata.Name, regions, blobs), nil
}
