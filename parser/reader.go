package parser

import (
	"encoding/binary"
	"encoding/hex"
	"math"
)

// The Read* functions implement the zero-copy byte readers of spec.md
// §6. Every multi-byte reader takes an explicit littleEndian flag
// (scripts default it to true). On out-of-bounds access
// (offset+size > len(buf)) they return the zero value and ok=false —
// BufferBounds per spec.md §7 — never a panic; parsers must treat
// ok=false as "reject this packet".

func bounds(buf []byte, offset, size int) bool {
	return offset >= 0 && size >= 0 && offset+size <= len(buf)
}

func ReadU8(buf []byte, offset int) (uint8, bool) {
	if !bounds(buf, offset, 1) {
		return 0, false
	}
	return buf[offset], true
}

func ReadI8(buf []byte, offset int) (int8, bool) {
	v, ok := ReadU8(buf, offset)
	return int8(v), ok
}

func ReadU16(buf []byte, offset int, littleEndian bool) (uint16, bool) {
	if !bounds(buf, offset, 2) {
		return 0, false
	}
	b := buf[offset : offset+2]
	if littleEndian {
		return binary.LittleEndian.Uint16(b), true
	}
	return binary.BigEndian.Uint16(b), true
}

func ReadI16(buf []byte, offset int, littleEndian bool) (int16, bool) {
	v, ok := ReadU16(buf, offset, littleEndian)
	return int16(v), ok
}

func ReadU32(buf []byte, offset int, littleEndian bool) (uint32, bool) {
	if !bounds(buf, offset, 4) {
		return 0, false
	}
	b := buf[offset : offset+4]
	if littleEndian {
		return binary.LittleEndian.Uint32(b), true
	}
	return binary.BigEndian.Uint32(b), true
}

func ReadI32(buf []byte, offset int, littleEndian bool) (int32, bool) {
	v, ok := ReadU32(buf, offset, littleEndian)
	return int32(v), ok
}

func ReadU64(buf []byte, offset int, littleEndian bool) (uint64, bool) {
	if !bounds(buf, offset, 8) {
		return 0, false
	}
	b := buf[offset : offset+8]
	if littleEndian {
		return binary.LittleEndian.Uint64(b), true
	}
	return binary.BigEndian.Uint64(b), true
}

func ReadI64(buf []byte, offset int, littleEndian bool) (int64, bool) {
	v, ok := ReadU64(buf, offset, littleEndian)
	return int64(v), ok
}

func ReadFloat(buf []byte, offset int, littleEndian bool) (float32, bool) {
	bits, ok := ReadU32(buf, offset, littleEndian)
	if !ok {
		return 0, false
	}
	return math.Float32frombits(bits), true
}

func ReadDouble(buf []byte, offset int, littleEndian bool) (float64, bool) {
	bits, ok := ReadU64(buf, offset, littleEndian)
	if !ok {
		return 0, false
	}
	return math.Float64frombits(bits), true
}

// ReadString reads exactly length bytes starting at offset as a string
// (no NUL handling — embedded zero bytes are preserved verbatim).
func ReadString(buf []byte, offset, length int) (string, bool) {
	if !bounds(buf, offset, length) {
		return "", false
	}
	return string(buf[offset : offset+length]), true
}

// ReadCString reads a NUL-terminated string starting at offset. If no
// NUL byte is found before the end of buf, it's treated as BufferBounds
// (the packet is malformed).
func ReadCString(buf []byte, offset int) (string, bool) {
	if offset < 0 || offset > len(buf) {
		return "", false
	}
	for i := offset; i < len(buf); i++ {
		if buf[i] == 0 {
			return string(buf[offset:i]), true
		}
	}
	return "", false
}

// BytesToHex renders buf as a lowercase hex string, used both by scripts
// and by error-logging contexts that dump the last n bytes of a
// malformed packet (spec.md §7).
func BytesToHex(buf []byte) string {
	return hex.EncodeToString(buf)
}
