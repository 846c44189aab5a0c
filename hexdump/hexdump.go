// Package hexdump renders memory as address, hex and ASCII columns, with
// optional signature highlighting and pointer annotation.
package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"procsig/process"
	"procsig/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// Options defines options for customizing the hexdump output
type Options struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// StartAddress is the address of the first byte
	StartAddress uint64

	// Highlight marks every byte covered by a match of this signature
	Highlight *process.Signature

	// Regions are used to annotate 8-byte values that point into them.
	// They must be sorted.
	Regions []memory_map.MemoryRegion

	// MaxLines is the maximum number of lines to show (0 for no limit)
	MaxLines int

	// Color enables ANSI colors
	Color bool

	// AddressColor is the color for the address column
	AddressColor coloransi.ColorCode

	// HexColor is the color for the hex values
	HexColor coloransi.ColorCode

	// ZeroColor is the color for zero bytes (0x00)
	ZeroColor coloransi.ColorCode

	// NonPrintableColor is the color for non-printable ASCII characters
	NonPrintableColor coloransi.ColorCode

	// PointerColor is the color for pointer annotations
	PointerColor coloransi.ColorCode

	// HighlightColor is the color for bytes covered by a signature match
	HighlightColor coloransi.ColorCode

	// HighlightBackgroundColor is the background color for highlighting
	HighlightBackgroundColor coloransi.ColorCode
}

// DefaultOptions returns the default hexdump options
func DefaultOptions() Options {
	return Options{
		BytesPerLine:             16,
		AddressColor:             coloransi.Cyan,
		HexColor:                 coloransi.Green,
		ZeroColor:                coloransi.BrightBlack,
		NonPrintableColor:        coloransi.Red,
		PointerColor:             coloransi.Yellow,
		HighlightColor:           coloransi.Black,
		HighlightBackgroundColor: coloransi.Yellow,
	}
}

func (o Options) paint(color coloransi.ColorCode, s string) string {
	if !o.Color {
		return s
	}
	return coloransi.Foreground(color, s)
}

func (o Options) mark(s string) string {
	if !o.Color {
		return s
	}
	return coloransi.Color(o.HighlightColor, o.HighlightBackgroundColor, s)
}

// Dump creates a hex dump of the given data with specified options
func Dump(data []byte, opts Options) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, opts)
	return buffer.String()
}

// DumpToWriter writes a hex dump of the given data to the specified writer
func DumpToWriter(w io.Writer, data []byte, opts Options) {
	if opts.BytesPerLine <= 0 {
		opts.BytesPerLine = 16
	}

	marked := highlighted(data, opts.Highlight)

	lines := 0
	for offset := 0; offset < len(data); offset += opts.BytesPerLine {
		if opts.MaxLines > 0 && lines >= opts.MaxLines {
			fmt.Fprintf(w, "... %d more bytes\n", len(data)-offset)
			return
		}

		end := min(offset+opts.BytesPerLine, len(data))
		formatLine(w, data[offset:end], marked[offset:end], opts.StartAddress+uint64(offset), opts)
		lines++
	}
}

// highlighted reports for each byte whether a signature match covers it
func highlighted(data []byte, sig *process.Signature) []bool {
	marked := make([]bool, len(data))
	if sig == nil {
		return marked
	}

	for _, off := range process.FindAllSignature(data, *sig) {
		for i := off; i < off+sig.Len(); i++ {
			marked[i] = true
		}
	}
	return marked
}

// formatLine writes one line:
//
//	00007f0000001000  48 8b 05 00 00 00 00 00 | 90 90 c3 00 00 00 00 00  |H...............|  -> 0x7f0000002000
func formatLine(w io.Writer, data []byte, marked []bool, addr uint64, opts Options) {
	var sb strings.Builder

	sb.WriteString(opts.paint(opts.AddressColor, fmt.Sprintf("%016x", addr)))
	sb.WriteString("  ")

	half := opts.BytesPerLine / 2
	for i := 0; i < opts.BytesPerLine; i++ {
		if i > 0 {
			sb.WriteByte(' ')
			if opts.BytesPerLine >= 8 && i == half {
				sb.WriteString("| ")
			}
		}
		if i >= len(data) {
			sb.WriteString("  ")
			continue
		}

		cell := fmt.Sprintf("%02x", data[i])
		switch {
		case marked[i]:
			sb.WriteString(opts.mark(cell))
		case data[i] == 0:
			sb.WriteString(opts.paint(opts.ZeroColor, cell))
		default:
			sb.WriteString(opts.paint(opts.HexColor, cell))
		}
	}

	sb.WriteString("  |")
	for i, b := range data {
		c := "."
		if b >= 0x20 && b < 0x7f {
			c = string(rune(b))
		}
		switch {
		case marked[i]:
			sb.WriteString(opts.mark(c))
		case c == "." && b != '.':
			sb.WriteString(opts.paint(opts.NonPrintableColor, c))
		default:
			sb.WriteString(c)
		}
	}
	sb.WriteString("|")

	// check if pointers at byte 0 and byte 8 are valid
	var ptrs []string
	for off := 0; off+8 <= len(data) && off <= 8; off += 8 {
		ptr := binary.LittleEndian.Uint64(data[off:])
		if isValidPointer(ptr, opts.Regions) {
			ptrs = append(ptrs, opts.paint(opts.PointerColor, fmt.Sprintf("0x%x", ptr)))
		}
	}
	if len(ptrs) > 0 {
		sb.WriteString("  -> ")
		sb.WriteString(strings.Join(ptrs, " "))
	}

	fmt.Fprintln(w, sb.String())
}

func isValidPointer(ptr uint64, regions []memory_map.MemoryRegion) bool {
	if ptr == 0 || len(regions) == 0 {
		return false
	}
	region, ok := memory_map.FindRegion(ptr, regions)
	return ok && region.IsReadable()
}
