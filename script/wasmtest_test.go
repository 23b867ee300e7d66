package script

// Minimal hand-assembled WASM binary module builder, used only by this
// package's own tests to compile a real guest module against bindHost/
// bindUIHost/bindUIFrameHooks without depending on an external wasm
// toolchain — encodes just enough of the binary format (types, imports,
// memory, globals, exports, start section, code, data) to express the
// tiny guest programs these tests need.

import (
	"encoding/binary"
	"math"
)

const (
	valI32 = 0x7F
	valF64 = 0x7C
)

func uleb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

func sleb128(value int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(value & 0x7f)
		value >>= 7
		if (value == 0 && b&0x40 == 0) || (value == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func wasmString(s string) []byte {
	return append(uleb128(uint32(len(s))), []byte(s)...)
}

func wasmVec(items [][]byte) []byte {
	out := uleb128(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmSection(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb128(uint32(len(content)))...)
	return append(out, content...)
}

// funcType encodes a (params)->(results) function signature.
func funcType(params, results []byte) []byte {
	out := []byte{0x60}
	out = append(out, wasmVec(byteSlices(params))...)
	out = append(out, wasmVec(byteSlices(results))...)
	return out
}

func byteSlices(vals []byte) [][]byte {
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte{v}
	}
	return out
}

// i32Const/f64Const/opEnd/opCall/etc. build instruction byte sequences.
func i32Const(v int32) []byte { return append([]byte{0x41}, sleb128(int64(v))...) }

func f64Const(v float64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return append([]byte{0x44}, buf...)
}

func globalGet(idx uint32) []byte { return append([]byte{0x23}, uleb128(idx)...) }
func globalSet(idx uint32) []byte { return append([]byte{0x24}, uleb128(idx)...) }
func localGet(idx uint32) []byte  { return append([]byte{0x20}, uleb128(idx)...) }
func localSet(idx uint32) []byte  { return append([]byte{0x21}, uleb128(idx)...) }
func call(idx uint32) []byte      { return append([]byte{0x10}, uleb128(idx)...) }

var (
	opI32Add = []byte{0x6A}
	opEnd    = []byte{0x0B}
	opDrop   = []byte{0x1A}
)

func concatAll(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// wasmFunc is one locally-defined function: its declared type index, any
// extra i32 locals beyond its params, and its instruction body (without
// the trailing end, which is appended automatically).
type wasmFunc struct {
	typeIdx    uint32
	extraI32s  int
	body       []byte
	exportName string
}

type wasmImport struct {
	module, name string
	typeIdx      uint32
}

type wasmGlobal struct {
	init int32
}

type wasmModuleSpec struct {
	types      [][2][]byte // [params, results]
	imports    []wasmImport
	funcs      []wasmFunc
	globals    []wasmGlobal
	startFunc  int // index into funcs, -1 for none
	dataOffset int
	data       []byte
}

// build assembles the full binary module.
func (m wasmModuleSpec) build() []byte {
	header := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

	var typeEntries [][]byte
	for _, t := range m.types {
		typeEntries = append(typeEntries, funcType(t[0], t[1]))
	}
	typeSec := wasmSection(1, wasmVec(typeEntries))

	var importEntries [][]byte
	for _, im := range m.imports {
		entry := append(wasmString(im.module), wasmString(im.name)...)
		entry = append(entry, 0x00)
		entry = append(entry, uleb128(im.typeIdx)...)
		importEntries = append(importEntries, entry)
	}
	importSec := wasmSection(2, wasmVec(importEntries))

	var funcEntries [][]byte
	for _, f := range m.funcs {
		funcEntries = append(funcEntries, uleb128(f.typeIdx))
	}
	funcSec := wasmSection(3, wasmVec(funcEntries))

	memSec := wasmSection(5, wasmVec([][]byte{append([]byte{0x00}, uleb128(1)...)}))

	var globalEntries [][]byte
	for _, g := range m.globals {
		entry := []byte{valI32, 0x01}
		entry = append(entry, i32Const(g.init)...)
		entry = append(entry, opEnd...)
		globalEntries = append(globalEntries, entry)
	}
	globalSec := wasmSection(6, wasmVec(globalEntries))

	numImportFuncs := uint32(len(m.imports))
	var exportEntries [][]byte
	for i, f := range m.funcs {
		if f.exportName == "" {
			continue
		}
		entry := append(wasmString(f.exportName), 0x00)
		entry = append(entry, uleb128(numImportFuncs+uint32(i))...)
		exportEntries = append(exportEntries, entry)
	}
	exportSec := wasmSection(7, wasmVec(exportEntries))

	var startSec []byte
	if m.startFunc >= 0 {
		startSec = wasmSection(8, uleb128(numImportFuncs+uint32(m.startFunc)))
	}

	var codeEntries [][]byte
	for _, f := range m.funcs {
		var locals []byte
		if f.extraI32s > 0 {
			locals = wasmVec([][]byte{append(uleb128(uint32(f.extraI32s)), valI32)})
		} else {
			locals = uleb128(0)
		}
		body := append(append([]byte{}, locals...), f.body...)
		body = append(body, opEnd...)
		codeEntries = append(codeEntries, append(uleb128(uint32(len(body))), body...))
	}
	codeSec := wasmSection(10, wasmVec(codeEntries))

	var dataSec []byte
	if len(m.data) > 0 {
		seg := append([]byte{0x00}, i32Const(int32(m.dataOffset))...)
		seg = append(seg, opEnd...)
		seg = append(seg, uleb128(uint32(len(m.data)))...)
		seg = append(seg, m.data...)
		dataSec = wasmSection(11, wasmVec([][]byte{seg}))
	}

	return concatAll(header, typeSec, importSec, funcSec, memSec, globalSec, exportSec, startSec, codeSec, dataSec)
}
