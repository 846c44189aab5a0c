package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignature(t *testing.T) {
	t.Run("spaces and wildcards", func(t *testing.T) {
		sig, err := ParseSignature("48 8b ?? ? 05")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x48, 0x8b, 0, 0, 0x05}, sig.Pattern)
		assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x00, 0xFF}, sig.Mask)
		assert.Equal(t, "48 8b ?? ?? 05", sig.String())
	})

	t.Run("commas", func(t *testing.T) {
		sig, err := ParseSignature("00,ba,AD,??,f0")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0xba, 0xad, 0x00, 0xf0}, sig.Pattern)
	})

	t.Run("invalid byte", func(t *testing.T) {
		_, err := ParseSignature("48 zz")
		assert.Error(t, err)

		_, err = ParseSignature("100")
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseSignature("  ")
		assert.ErrorIs(t, err, ErrEmptySignature)
	})
}

func TestNewSignature(t *testing.T) {
	t.Run("nil mask is exact", func(t *testing.T) {
		sig, err := NewSignature([]byte{1, 2}, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xFF, 0xFF}, sig.Mask)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := NewSignature([]byte{1, 2}, []byte{0xFF})
		assert.Error(t, err)
	})

	t.Run("caller slices are copied", func(t *testing.T) {
		pattern := []byte{1, 2}
		sig, err := NewSignature(pattern, nil)
		require.NoError(t, err)
		pattern[0] = 9
		assert.Equal(t, byte(1), sig.Pattern[0])
	})
}

func TestFindSignature(t *testing.T) {
	haystack := []byte{1, 2, 3, 4, 5}

	tests := []struct {
		name     string
		haystack []byte
		sig      Signature
		want     int
		found    bool
	}{
		{"wildcard in middle", haystack, MustParseSignature("02 ?? 04"), 1, true},
		{"absent byte", haystack, MustParseSignature("09"), -1, false},
		{"whole haystack", haystack, MustParseSignature("01 02 03 04 05"), 0, true},
		{"at end", haystack, MustParseSignature("04 05"), 3, true},
		{"longer than haystack", haystack, MustParseSignature("01 02 03 04 05 06"), -1, false},
		{"all wildcards", haystack, MustParseSignature("?? ??"), 0, true},
		{"leading wildcard", haystack, MustParseSignature("?? 03"), 1, true},
		{"first of several", []byte{7, 1, 7, 1, 7, 1}, MustParseSignature("07 01"), 0, true},
		{"anchor repeats before match", []byte{2, 9, 2, 9, 2, 3, 4}, MustParseSignature("02 03 04"), 4, true},
		{"empty haystack", nil, MustParseSignature("01"), -1, false},
		{"empty signature", haystack, Signature{}, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindSignature(tt.haystack, tt.sig)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFindSignatureBitMask(t *testing.T) {
	// high nibble must be 0x4, low nibble free
	sig, err := NewSignature([]byte{0x40, 0x8b}, []byte{0xF0, 0xFF})
	require.NoError(t, err)

	off, ok := FindSignature([]byte{0x00, 0x3f, 0x8b, 0x4c, 0x8b}, sig)
	require.True(t, ok)
	assert.Equal(t, 3, off)
}

func TestFindAllSignature(t *testing.T) {
	data := []byte{0xAA, 0xAA, 0xAA, 0x01, 0xAA}
	assert.Equal(t, []int{0, 1}, FindAllSignature(data, MustParseSignature("aa aa")))
	assert.Equal(t, []int{0, 1, 2, 4}, FindAllSignature(data, MustParseSignature("aa")))
	assert.Empty(t, FindAllSignature(data, MustParseSignature("02")))
}
