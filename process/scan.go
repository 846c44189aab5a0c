package process

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"procsig/process/memory_map"
)

// ScanConfig holds the limits and hooks of a region scan
type ScanConfig struct {
	MaxRegionSize uint // regions larger than this are not read, 0 for no limit
	MaxRegions    int  // at most this many regions are read, 0 for no limit
	ReadableOnly  bool // skip regions whose permissions deny reads
	Parallelism   uint // >1 reads regions concurrently
	OnSkip        func(region memory_map.MemoryRegion, err error)
}

// ScanOption is a function that configures a ScanConfig
type ScanOption func(*ScanConfig)

func WithMaxRegionSize(size uint) ScanOption {
	return func(c *ScanConfig) {
		c.MaxRegionSize = size
	}
}

func WithMaxRegions(n int) ScanOption {
	return func(c *ScanConfig) {
		c.MaxRegions = n
	}
}

func WithReadableOnly() ScanOption {
	return func(c *ScanConfig) {
		c.ReadableOnly = true
	}
}

// WithParallelism reads up to n regions at a time, capped at the number of CPUs.
// The result is the same as a sequential scan.
func WithParallelism(n uint) ScanOption {
	return func(c *ScanConfig) {
		c.Parallelism = n
	}
}

// WithSkipHook is called for every region skipped because its read failed
// with a tolerated error. It is never called concurrently.
func WithSkipHook(fn func(region memory_map.MemoryRegion, err error)) ScanOption {
	return func(c *ScanConfig) {
		c.OnSkip = fn
	}
}

func newScanConfig(opts []ScanOption) ScanConfig {
	var c ScanConfig
	for _, opt := range opts {
		opt(&c)
	}

	if numCPU := uint(runtime.NumCPU()); c.Parallelism > numCPU {
		c.Parallelism = numCPU
	}

	return c
}

func (c ScanConfig) candidates(regions []memory_map.MemoryRegion) []memory_map.MemoryRegion {
	var out []memory_map.MemoryRegion
	for _, region := range regions {
		if c.MaxRegions > 0 && len(out) >= c.MaxRegions {
			break
		}
		if c.ReadableOnly && !region.IsReadable() {
			continue
		}
		if c.MaxRegionSize > 0 && region.Size > c.MaxRegionSize {
			continue
		}
		out = append(out, region)
	}
	return out
}

// regionResult is the outcome of reading and searching one region
type regionResult struct {
	offsets []int
	err     error // fatal, aborts the scan
	skipped error // tolerated, region unreadable
}

// ScanRegions returns the lowest address in regions where sig matches.
//
// Regions are read in ascending order. A read failing with ErrAccessDenied or
// ErrProcessGone aborts the scan and that error is returned unchanged. Any
// other read failure skips the region. When every region is exhausted the
// error wraps ErrSignatureNotFound.
func ScanRegions(r Reader, regions []memory_map.MemoryRegion, sig Signature, opts ...ScanOption) (ProcessMemoryAddress, error) {
	if sig.Len() == 0 {
		return 0, ErrEmptySignature
	}

	return firstMatch(r, regions, sig, newScanConfig(opts))
}

func firstMatch(r Reader, regions []memory_map.MemoryRegion, sig Signature, cfg ScanConfig) (ProcessMemoryAddress, error) {
	candidates := cfg.candidates(regions)

	results := scanRegions(r, candidates, cfg, func(data []byte) []int {
		if off, ok := FindSignature(data, sig); ok {
			return []int{off}
		}
		return nil
	}, true)

	for i, res := range results {
		if res.err != nil {
			return 0, res.err
		}
		if res.skipped != nil {
			cfg.skip(candidates[i], res.skipped)
			continue
		}
		if len(res.offsets) > 0 {
			return ProcessMemoryAddress(candidates[i].Address + uint64(res.offsets[0])), nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrSignatureNotFound, sig)
}

// ScanRegionsAll returns every address in regions where sig matches, ascending.
// Read failures follow the ScanRegions policy. No match is not an error.
func ScanRegionsAll(r Reader, regions []memory_map.MemoryRegion, sig Signature, opts ...ScanOption) ([]ProcessMemoryAddress, error) {
	if sig.Len() == 0 {
		return nil, ErrEmptySignature
	}

	cfg := newScanConfig(opts)
	candidates := cfg.candidates(regions)

	results := scanRegions(r, candidates, cfg, func(data []byte) []int {
		return FindAllSignature(data, sig)
	}, false)

	var addrs []ProcessMemoryAddress
	for i, res := range results {
		if res.err != nil {
			return nil, res.err
		}
		if res.skipped != nil {
			cfg.skip(candidates[i], res.skipped)
			continue
		}
		for _, off := range res.offsets {
			addrs = append(addrs, ProcessMemoryAddress(candidates[i].Address+uint64(off)))
		}
	}

	return addrs, nil
}

func (c ScanConfig) skip(region memory_map.MemoryRegion, err error) {
	if c.OnSkip != nil {
		c.OnSkip(region, err)
	}
}

// scanRegions reads every candidate and applies search to its bytes. With
// stopAtFirst, regions above the lowest index that matched or failed fatally
// are not read. Results are indexed like candidates.
func scanRegions(r Reader, candidates []memory_map.MemoryRegion, cfg ScanConfig, search func([]byte) []int, stopAtFirst bool) []regionResult {
	results := make([]regionResult, len(candidates))

	visit := func(i int) bool {
		region := candidates[i]
		data, err := r.ReadMemory(ProcessMemoryAddress(region.Address), ProcessMemorySize(region.Size))
		if err != nil {
			if IsFatalScanError(err) {
				results[i].err = err
				return true
			}
			results[i].skipped = err
			return false
		}

		results[i].offsets = search(data)
		return len(results[i].offsets) > 0 && stopAtFirst
	}

	if cfg.Parallelism <= 1 {
		for i := range candidates {
			if visit(i) {
				break
			}
		}
		return results
	}

	// lowest index that ended the scan; regions above it are not needed
	var stop atomic.Int64
	stop.Store(math.MaxInt64)

	sem := make(chan struct{}, cfg.Parallelism)
	var wg sync.WaitGroup

	for i := range candidates {
		if int64(i) > stop.Load() {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(i int) {
			defer func() {
				<-sem
				wg.Done()
			}()

			if int64(i) > stop.Load() {
				return
			}
			if visit(i) {
				lowerTo(&stop, int64(i))
			}
		}(i)
	}

	wg.Wait()
	return results
}

func lowerTo(v *atomic.Int64, n int64) {
	for {
		cur := v.Load()
		if n >= cur || v.CompareAndSwap(cur, n) {
			return
		}
	}
}
