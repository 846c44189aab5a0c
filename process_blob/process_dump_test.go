package process_blob

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procsig/process"
	"procsig/process/memory_map"
)

func testDump() *ProcessDump {
	regions := []memory_map.MemoryRegion{
		{Address: 0x3000, Size: 0x10, Perms: "---p"},
		{Address: 0x1000, Size: 0x10, Perms: "r--p", Path: "/bin/app"},
		{Address: 0x2000, Size: 0x10, Perms: "rw-p", Path: "[heap]"},
		{Address: 0x4000, Size: 0x100, Perms: "rw-p"},
		{Address: 0x5000, Size: 0x10, Perms: "r--p"},
	}

	heap := bytes.Repeat([]byte{0x11}, 0x10)
	copy(heap[4:], []byte{0xca, 0xfe, 0xba, 0xbe})

	return NewProcessDump(1234, "app", regions, map[uint64][]byte{
		0x1000: make([]byte, 0x10),
		0x2000: heap,
		0x3000: make([]byte, 0x10),
		0x4000: make([]byte, 0x100),
	})
}

func TestProcessDump(t *testing.T) {
	dump := testDump()

	t.Run("regions are sorted copies", func(t *testing.T) {
		regions := dump.Regions()
		require.Len(t, regions, 5)
		assert.Equal(t, uint64(0x1000), regions[0].Address)

		regions[0].Address = 0
		assert.Equal(t, uint64(0x1000), dump.Regions()[0].Address)
	})

	t.Run("read within a region", func(t *testing.T) {
		v, err := process.Read[uint32](dump, 0x2004)
		require.NoError(t, err)
		assert.Equal(t, uint32(0xbebafeca), v)
	})

	t.Run("read across regions fails", func(t *testing.T) {
		_, err := dump.ReadMemory(0x100c, 8)
		assert.ErrorIs(t, err, process.ErrBadAddress)
	})

	t.Run("uncaptured region", func(t *testing.T) {
		assert.False(t, dump.IsValidAddress(0x5000))
		_, err := dump.ReadMemory(0x5000, 1)
		assert.ErrorIs(t, err, process.ErrBadAddress)
	})

	t.Run("unmapped", func(t *testing.T) {
		assert.False(t, dump.IsValidAddress(0x9000))
		assert.True(t, dump.IsValidAddress(0x200f))
	})

	t.Run("scan", func(t *testing.T) {
		addr, err := dump.ScanSignature(process.MustParseSignature("ca fe ?? be"))
		require.NoError(t, err)
		assert.Equal(t, process.ProcessMemoryAddress(0x2004), addr)

		_, err = dump.ScanSignature(process.MustParseSignature("de ad"))
		assert.ErrorIs(t, err, process.ErrSignatureNotFound)
	})

	t.Run("refresh", func(t *testing.T) {
		p, err := dump.Refresh()
		require.NoError(t, err)
		assert.Equal(t, process.ProcessID(1234), p.GetPID())
	})
}

func TestSaveLoadDump(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dump")

	stats, err := SaveDump(testDump(), "app", dir, 0x80)
	require.NoError(t, err)
	assert.Equal(t, DumpStats{
		Saved:            2,
		SkippedUnread:    1,
		SkippedTooLarge:  1,
		SkippedProtected: 1,
	}, stats)

	assert.FileExists(t, filepath.Join(dir, metadataFile))
	assert.FileExists(t, filepath.Join(dir, memoryMapFile))

	loaded, err := LoadDump(dir)
	require.NoError(t, err)

	assert.Equal(t, process.ProcessID(1234), loaded.GetPID())
	assert.Equal(t, "app", loaded.Name)
	assert.Equal(t, testDump().Regions(), loaded.Regions())

	assert.True(t, loaded.IsValidAddress(0x1000))
	assert.False(t, loaded.IsValidAddress(0x3000))
	assert.False(t, loaded.IsValidAddress(0x4000))

	addr, err := loaded.ScanSignature(process.MustParseSignature("ca fe"))
	require.NoError(t, err)
	assert.Equal(t, process.ProcessMemoryAddress(0x2004), addr)

	t.Run("truncated blob", func(t *testing.T) {
		blob := filepath.Join(dir, "blob_0x2000_16.bin")
		require.FileExists(t, blob)
		require.NoError(t, os.WriteFile(blob, []byte{1, 2, 3}, 0644))

		_, err := LoadDump(dir)
		assert.Error(t, err)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := LoadDump(filepath.Join(dir, "nope"))
		assert.Error(t, err)
	})
}

// deniedProcess fails every read the way a process without ptrace access does
type deniedProcess struct {
	*ProcessDump
}

func (deniedProcess) ReadMemory(process.ProcessMemoryAddress, process.ProcessMemorySize) ([]byte, error) {
	return nil, process.ErrAccessDenied
}

func TestSaveDumpAccessDenied(t *testing.T) {
	_, err := SaveDump(deniedProcess{testDump()}, "app", t.TempDir(), 0)
	assert.ErrorIs(t, err, process.ErrAccessDenied)
}

func TestProcessDumpReadNearRegionEnd(t *testing.T) {
	dump := testDump()

	addr := uint64(0x2000 + 0xc)
	_, err := dump.ReadMemory(process.ProcessMemoryAddress(addr), 256)
	require.ErrorIs(t, err, process.ErrBadAddress)

	size, ok := memory_map.ClampToRegion(addr, 256, dump.Regions())
	require.True(t, ok)
	data, err := dump.ReadMemory(process.ProcessMemoryAddress(addr), process.ProcessMemorySize(size))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x11, 0x11, 0x11, 0x11}, data)
}
