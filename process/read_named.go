package process

import (
	"fmt"
	"sort"
	"strconv"
)

var namedReaders = map[string]func(Reader, ProcessMemoryAddress) (string, error){
	"u8":      formatRead[uint8],
	"u16":     formatRead[uint16],
	"u32":     formatRead[uint32],
	"u64":     formatRead[uint64],
	"u128":    formatRead[Uint128],
	"i8":      formatRead[int8],
	"i16":     formatRead[int16],
	"i32":     formatRead[int32],
	"i64":     formatRead[int64],
	"i128":    formatRead[Int128],
	"f32":     formatRead[float32],
	"f64":     formatRead[float64],
	"uleb128": readULEB128String,
	"string":  readQuotedString,
	"ptr":     readPointerString,
}

// TypeNames lists the names accepted by ReadNamed
func TypeNames() []string {
	names := make([]string, 0, len(namedReaders))
	for name := range namedReaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadNamed decodes the value of the named type at addr and formats it
func ReadNamed(r Reader, addr ProcessMemoryAddress, typeName string) (string, error) {
	read, ok := namedReaders[typeName]
	if !ok {
		return "", fmt.Errorf("unknown type %q", typeName)
	}
	return read(r, addr)
}

func formatRead[T Fixed](r Reader, addr ProcessMemoryAddress) (string, error) {
	v, err := Read[T](r, addr)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(v), nil
}

func readULEB128String(r Reader, addr ProcessMemoryAddress) (string, error) {
	v, err := ReadULEB128(r, addr)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(v, 10), nil
}

func readQuotedString(r Reader, addr ProcessMemoryAddress) (string, error) {
	s, err := ReadString(r, addr)
	if err != nil {
		return "", err
	}
	return strconv.Quote(s), nil
}

func readPointerString(r Reader, addr ProcessMemoryAddress) (string, error) {
	ptr, err := ReadPointer(r, addr)
	if err != nil {
		return "", err
	}
	return ptr.ToString(), nil
}
