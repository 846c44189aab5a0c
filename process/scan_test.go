package process

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procsig/process/memory_map"
)

type fakeRegion struct {
	data []byte
	err  error
}

// fakeReader serves whole regions keyed by base address and records reads
type fakeReader struct {
	mu      sync.Mutex
	regions map[uint64]fakeRegion
	reads   []uint64
}

func (f *fakeReader) ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error) {
	f.mu.Lock()
	f.reads = append(f.reads, uint64(addr))
	f.mu.Unlock()

	region, ok := f.regions[uint64(addr)]
	if !ok || uint(len(region.data)) < uint(size) {
		if region.err != nil {
			return nil, region.err
		}
		return nil, &BadAddressError{Addr: addr, Size: size}
	}
	return region.data[:size], nil
}

func (f *fakeReader) readAddrs() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]uint64(nil), f.reads...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func newFake(fakes ...fakeRegion) (*fakeReader, []memory_map.MemoryRegion) {
	f := &fakeReader{regions: map[uint64]fakeRegion{}}
	var regions []memory_map.MemoryRegion

	base := uint64(0x10000)
	for _, fr := range fakes {
		size := uint(len(fr.data))
		if size == 0 {
			size = 0x100
		}
		f.regions[base] = fr
		regions = append(regions, memory_map.MemoryRegion{Address: base, Size: size, Perms: "r--p"})
		base += 0x10000
	}
	return f, regions
}

func filled(n int, at int, pattern ...byte) []byte {
	data := make([]byte, n)
	copy(data[at:], pattern)
	return data
}

func TestScanRegions(t *testing.T) {
	sig := MustParseSignature("de ad ?? ef")

	t.Run("match in second region", func(t *testing.T) {
		f, regions := newFake(
			fakeRegion{data: filled(64, 62, 0xde, 0xad)},
			fakeRegion{data: filled(64, 10, 0xde, 0xad, 0x00, 0xef)},
		)

		addr, err := ScanRegions(f, regions, sig)
		require.NoError(t, err)
		assert.Equal(t, ProcessMemoryAddress(regions[1].Address+10), addr)
	})

	t.Run("lowest region wins", func(t *testing.T) {
		f, regions := newFake(
			fakeRegion{data: filled(64, 0)},
			fakeRegion{data: filled(64, 30, 0xde, 0xad, 0x11, 0xef)},
			fakeRegion{data: filled(64, 1, 0xde, 0xad, 0x22, 0xef)},
		)

		addr, err := ScanRegions(f, regions, sig)
		require.NoError(t, err)
		assert.Equal(t, ProcessMemoryAddress(regions[1].Address+30), addr)
		assert.Equal(t, []uint64{regions[0].Address, regions[1].Address}, f.readAddrs())
	})

	t.Run("unreadable region is skipped", func(t *testing.T) {
		var skipped []uint64
		f, regions := newFake(
			fakeRegion{},
			fakeRegion{data: filled(64, 4, 0xde, 0xad, 0x00, 0xef)},
		)

		addr, err := ScanRegions(f, regions, sig, WithSkipHook(func(region memory_map.MemoryRegion, err error) {
			assert.ErrorIs(t, err, ErrBadAddress)
			skipped = append(skipped, region.Address)
		}))
		require.NoError(t, err)
		assert.Equal(t, ProcessMemoryAddress(regions[1].Address+4), addr)
		assert.Equal(t, []uint64{regions[0].Address}, skipped)
	})

	t.Run("access denied aborts", func(t *testing.T) {
		denied := fmt.Errorf("read 0x10000: %w", ErrAccessDenied)
		f, regions := newFake(
			fakeRegion{err: denied},
			fakeRegion{data: filled(64, 4, 0xde, 0xad, 0x00, 0xef)},
		)

		_, err := ScanRegions(f, regions, sig)
		require.Error(t, err)
		assert.Same(t, denied, err)
		assert.Equal(t, []uint64{regions[0].Address}, f.readAddrs())
	})

	t.Run("process gone aborts", func(t *testing.T) {
		f, regions := newFake(
			fakeRegion{data: filled(64, 0)},
			fakeRegion{err: ErrProcessGone},
			fakeRegion{data: filled(64, 4, 0xde, 0xad, 0x00, 0xef)},
		)

		_, err := ScanRegions(f, regions, sig)
		assert.ErrorIs(t, err, ErrProcessGone)
		assert.NotErrorIs(t, err, ErrSignatureNotFound)
	})

	t.Run("not found", func(t *testing.T) {
		f, regions := newFake(
			fakeRegion{data: filled(64, 0)},
			fakeRegion{data: filled(64, 0, 0xde, 0xad, 0x00, 0xee)},
		)

		_, err := ScanRegions(f, regions, sig)
		assert.ErrorIs(t, err, ErrSignatureNotFound)
	})

	t.Run("no regions", func(t *testing.T) {
		_, err := ScanRegions(&fakeReader{}, nil, sig)
		assert.ErrorIs(t, err, ErrSignatureNotFound)
	})

	t.Run("empty signature", func(t *testing.T) {
		f, regions := newFake(fakeRegion{data: filled(8, 0)})
		_, err := ScanRegions(f, regions, Signature{})
		assert.ErrorIs(t, err, ErrEmptySignature)
	})
}

func TestScanRegionsOptions(t *testing.T) {
	sig := MustParseSignature("aa bb")

	t.Run("max region size", func(t *testing.T) {
		f, regions := newFake(
			fakeRegion{data: filled(256, 200, 0xaa, 0xbb)},
			fakeRegion{data: filled(32, 3, 0xaa, 0xbb)},
		)

		addr, err := ScanRegions(f, regions, sig, WithMaxRegionSize(64))
		require.NoError(t, err)
		assert.Equal(t, ProcessMemoryAddress(regions[1].Address+3), addr)
	})

	t.Run("max regions", func(t *testing.T) {
		f, regions := newFake(
			fakeRegion{data: filled(32, 0)},
			fakeRegion{data: filled(32, 3, 0xaa, 0xbb)},
		)

		_, err := ScanRegions(f, regions, sig, WithMaxRegions(1))
		assert.ErrorIs(t, err, ErrSignatureNotFound)
	})

	t.Run("readable only", func(t *testing.T) {
		f, regions := newFake(
			fakeRegion{data: filled(32, 1, 0xaa, 0xbb)},
			fakeRegion{data: filled(32, 5, 0xaa, 0xbb)},
		)
		regions[0].Perms = "---p"

		addr, err := ScanRegions(f, regions, sig, WithReadableOnly())
		require.NoError(t, err)
		assert.Equal(t, ProcessMemoryAddress(regions[1].Address+5), addr)

		addr, err = ScanRegions(f, regions, sig)
		require.NoError(t, err)
		assert.Equal(t, ProcessMemoryAddress(regions[0].Address+1), addr)
	})
}

func TestScanRegionsParallel(t *testing.T) {
	sig := MustParseSignature("13 37")

	fakes := make([]fakeRegion, 16)
	for i := range fakes {
		fakes[i] = fakeRegion{data: filled(128, 0)}
	}
	fakes[3] = fakeRegion{err: errors.New("unmapped")}
	fakes[7] = fakeRegion{data: filled(128, 90, 0x13, 0x37)}
	fakes[11] = fakeRegion{data: filled(128, 2, 0x13, 0x37)}
	fakes[12] = fakeRegion{err: ErrAccessDenied}

	f, regions := newFake(fakes...)

	want, err := ScanRegions(f, regions, sig)
	require.NoError(t, err)
	assert.Equal(t, ProcessMemoryAddress(regions[7].Address+90), want)

	// built directly so the worker pool is used regardless of the CPU count
	for _, n := range []uint{2, 4, 8} {
		t.Run(fmt.Sprintf("parallelism %d", n), func(t *testing.T) {
			got, err := firstMatch(f, regions, sig, ScanConfig{Parallelism: n})
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	t.Run("fatal below match", func(t *testing.T) {
		fakes := append([]fakeRegion(nil), fakes...)
		fakes[5] = fakeRegion{err: ErrProcessGone}
		f, regions := newFake(fakes...)

		_, err := firstMatch(f, regions, sig, ScanConfig{Parallelism: 4})
		assert.ErrorIs(t, err, ErrProcessGone)
	})

	t.Run("fatal above match is ignored", func(t *testing.T) {
		fakes := append([]fakeRegion(nil), fakes...)
		fakes[8] = fakeRegion{err: ErrAccessDenied}
		f, regions := newFake(fakes...)

		got, err := firstMatch(f, regions, sig, ScanConfig{Parallelism: 4})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

// gateReader holds the read of the first region until the second region's
// read has started, which only happens when reads run concurrently
type gateReader struct {
	*fakeReader
	first, second uint64
	started       chan struct{}
	once          sync.Once
	overlapped    atomic.Bool
}

func (g *gateReader) ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error) {
	switch uint64(addr) {
	case g.second:
		g.once.Do(func() { close(g.started) })
	case g.first:
		select {
		case <-g.started:
			g.overlapped.Store(true)
		case <-time.After(5 * time.Second):
		}
	}
	return g.fakeReader.ReadMemory(addr, size)
}

func TestScanRegionsReadsConcurrently(t *testing.T) {
	f, regions := newFake(
		fakeRegion{data: filled(64, 0)},
		fakeRegion{data: filled(64, 9, 0x13, 0x37)},
	)
	g := &gateReader{
		fakeReader: f,
		first:      regions[0].Address,
		second:     regions[1].Address,
		started:    make(chan struct{}),
	}

	got, err := firstMatch(g, regions, MustParseSignature("13 37"), ScanConfig{Parallelism: 2})
	require.NoError(t, err)
	assert.Equal(t, ProcessMemoryAddress(regions[1].Address+9), got)
	assert.True(t, g.overlapped.Load())
}

func TestParallelismCappedAtCPUCount(t *testing.T) {
	cfg := newScanConfig([]ScanOption{WithParallelism(uint(runtime.NumCPU()) + 10)})
	assert.Equal(t, uint(runtime.NumCPU()), cfg.Parallelism)
}

func TestScanRegionsAll(t *testing.T) {
	sig := MustParseSignature("01 ??")

	f, regions := newFake(
		fakeRegion{data: []byte{0, 1, 2, 1, 3}},
		fakeRegion{data: []byte{1, 0}},
		fakeRegion{data: []byte{0, 0, 0}},
	)

	addrs, err := ScanRegionsAll(f, regions, sig, WithParallelism(2))
	require.NoError(t, err)
	assert.Equal(t, []ProcessMemoryAddress{
		ProcessMemoryAddress(regions[0].Address + 1),
		ProcessMemoryAddress(regions[0].Address + 3),
		ProcessMemoryAddress(regions[1].Address),
	}, addrs)

	t.Run("no match is not an error", func(t *testing.T) {
		addrs, err := ScanRegionsAll(f, regions[2:], sig)
		require.NoError(t, err)
		assert.Empty(t, addrs)
	})

	t.Run("fatal error", func(t *testing.T) {
		f.regions[regions[2].Address] = fakeRegion{err: ErrAccessDenied}
		_, err := ScanRegionsAll(f, regions, sig)
		assert.ErrorIs(t, err, ErrAccessDenied)
	})
}

func TestIsFatalScanError(t *testing.T) {
	assert.True(t, IsFatalScanError(ErrAccessDenied))
	assert.True(t, IsFatalScanError(fmt.Errorf("x: %w", ErrProcessGone)))
	assert.False(t, IsFatalScanError(&BadAddressError{Addr: 1, Size: 1}))
	assert.False(t, IsFatalScanError(errors.New("other")))
	assert.False(t, IsFatalScanError(nil))
}
