package process

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	MaskExact    byte = 0xFF
	MaskWildcard byte = 0x00
)

// Signature is a byte pattern used to locate data by content.
// Mask 0xFF means exact match and 0x00 means wildcard; any other mask
// byte compares only the bits it selects.
type Signature struct {
	Pattern []byte
	Mask    []byte
}

// NewSignature builds a signature from a pattern and mask of equal length.
// A nil mask means every byte must match exactly.
func NewSignature(pattern, mask []byte) (Signature, error) {
	if len(pattern) == 0 {
		return Signature{}, ErrEmptySignature
	}
	if mask == nil {
		mask = bytes.Repeat([]byte{MaskExact}, len(pattern))
	}
	if len(pattern) != len(mask) {
		return Signature{}, fmt.Errorf("mask length (%d) doesn't match pattern length (%d)", len(mask), len(pattern))
	}

	// copies keep the signature immutable from the caller's side
	return Signature{
		Pattern: append([]byte(nil), pattern...),
		Mask:    append([]byte(nil), mask...),
	}, nil
}

// ParseSignature parses text such as "48 8b ?? ?? 05" or "48,8b,?,05".
func ParseSignature(text string) (Signature, error) {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	pattern := make([]byte, 0, len(parts))
	mask := make([]byte, 0, len(parts))

	for _, part := range parts {
		if part == "??" || part == "?" {
			pattern = append(pattern, 0)
			mask = append(mask, MaskWildcard)
			continue
		}

		val, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return Signature{}, fmt.Errorf("invalid hex byte: %s", part)
		}
		pattern = append(pattern, byte(val))
		mask = append(mask, MaskExact)
	}

	return NewSignature(pattern, mask)
}

// MustParseSignature is like ParseSignature but panics on error.
func MustParseSignature(text string) Signature {
	sig, err := ParseSignature(text)
	if err != nil {
		panic(err)
	}
	return sig
}

func (s Signature) Len() int {
	return len(s.Pattern)
}

func (s Signature) String() string {
	var sb strings.Builder
	for i, p := range s.Pattern {
		if i > 0 {
			sb.WriteString(" ")
		}
		if s.Mask[i] == MaskWildcard {
			sb.WriteString("??")
		} else {
			sb.WriteString(hex.EncodeToString([]byte{p}))
		}
	}
	return sb.String()
}

// anchor returns the index of the first exact byte, or -1 when there is none.
func (s Signature) anchor() int {
	for i, m := range s.Mask {
		if m == MaskExact {
			return i
		}
	}
	return -1
}

func (s Signature) matchAt(data []byte, pos int) bool {
	for j := 0; j < len(s.Pattern); j++ {
		m := s.Mask[j]
		if m == MaskWildcard {
			continue
		}
		if data[pos+j]&m != s.Pattern[j]&m {
			return false
		}
	}
	return true
}

// FindSignature returns the lowest offset in haystack where sig matches.
func FindSignature(haystack []byte, sig Signature) (int, bool) {
	n := len(sig.Pattern)
	if n == 0 || len(sig.Mask) != n || len(haystack) < n {
		return -1, false
	}

	last := len(haystack) - n
	anchor := sig.anchor()

	for i := 0; i <= last; i++ {
		if anchor >= 0 {
			// jump to the next position whose anchor byte matches
			j := bytes.IndexByte(haystack[i+anchor:last+anchor+1], sig.Pattern[anchor])
			if j < 0 {
				return -1, false
			}
			i += j
		}

		if sig.matchAt(haystack, i) {
			return i, true
		}
	}

	return -1, false
}

// FindAllSignature returns every offset in haystack where sig matches, ascending.
func FindAllSignature(haystack []byte, sig Signature) []int {
	var matches []int

	for base := 0; ; {
		off, ok := FindSignature(haystack[base:], sig)
		if !ok {
			return matches
		}
		matches = append(matches, base+off)
		base += off + 1
	}
}
