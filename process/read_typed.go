package process

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"unicode/utf16"
)

// Uint128 is an unsigned 128-bit integer stored as two little-endian halves
type Uint128 struct {
	Lo uint64
	Hi uint64
}

// Int128 is a signed two's complement 128-bit integer
type Int128 struct {
	Lo uint64
	Hi int64
}

func (u Uint128) Big() *big.Int {
	v := new(big.Int).SetUint64(u.Hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(u.Lo))
}

func (u Uint128) String() string {
	return u.Big().String()
}

func (i Int128) Big() *big.Int {
	v := Uint128{Lo: i.Lo, Hi: uint64(i.Hi)}.Big()
	if i.Hi < 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return v
}

func (i Int128) String() string {
	return i.Big().String()
}

// Fixed is the set of types Read can decode
type Fixed interface {
	int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64 |
		Int128 | Uint128
}

// SizeOf returns the encoded size of T in bytes
func SizeOf[T Fixed]() ProcessMemorySize {
	var v T
	return ProcessMemorySize(binary.Size(v))
}

// Read reads a little-endian T at addr. No alignment is required.
func Read[T Fixed](r Reader, addr ProcessMemoryAddress) (T, error) {
	var v T

	data, err := r.ReadMemory(addr, SizeOf[T]())
	if err != nil {
		return v, err
	}

	return Decode[T](data)
}

// Decode decodes a little-endian T from the start of data
func Decode[T Fixed](data []byte) (T, error) {
	var v T

	size := int(SizeOf[T]())
	if len(data) < size {
		return v, fmt.Errorf("decode: need %d bytes, have %d", size, len(data))
	}

	if err := binary.Read(bytes.NewReader(data[:size]), binary.LittleEndian, &v); err != nil {
		return v, err
	}
	return v, nil
}

// maxULEB128Groups is the number of 7-bit groups needed to fill 64 bits
const maxULEB128Groups = 10

// ReadULEB128 reads an unsigned LEB128 value one byte at a time starting at addr.
// Values that need more than 64 bits fail with ErrVarintOverflow.
func ReadULEB128(r Reader, addr ProcessMemoryAddress) (uint64, error) {
	var value uint64

	for i := 0; i < maxULEB128Groups; i++ {
		b, err := Read[uint8](r, addr+ProcessMemoryAddress(i))
		if err != nil {
			return 0, err
		}

		group := uint64(b & 0x7f)
		// the last group only has room for bit 63
		if i == maxULEB128Groups-1 && group > 1 {
			return 0, fmt.Errorf("%w at %s", ErrVarintOverflow, addr.ToString())
		}
		value |= group << (7 * i)

		if b&0x80 == 0 {
			return value, nil
		}
	}

	return 0, fmt.Errorf("%w at %s", ErrVarintOverflow, addr.ToString())
}

// MaxStringLength bounds the code unit count ReadString accepts
var MaxStringLength uint32 = 1 << 20

const (
	stringLengthOffset = 0x4
	stringDataOffset   = 0x8
)

// ReadString reads a length-prefixed UTF-16 string object:
//
//	+0x0 header (ignored)
//	+0x4 uint32 code unit count
//	+0x8 UTF-16LE code units
//
// Invalid sequences are replaced with U+FFFD.
func ReadString(r Reader, addr ProcessMemoryAddress) (string, error) {
	count, err := Read[uint32](r, addr+stringLengthOffset)
	if err != nil {
		return "", err
	}

	if count == 0 {
		return "", nil
	}
	if count > MaxStringLength {
		return "", fmt.Errorf("%w: %d code units at %s", ErrStringTooLong, count, addr.ToString())
	}

	data, err := r.ReadMemory(addr+stringDataOffset, ProcessMemorySize(count)*2)
	if err != nil {
		return "", err
	}

	return string(utf16.Decode(CodeUnits(data))), nil
}

// CodeUnits converts little-endian byte pairs into UTF-16 code units.
// A trailing odd byte is ignored.
func CodeUnits(data []byte) []uint16 {
	units := make([]uint16, len(data)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	return units
}
