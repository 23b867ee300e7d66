package script

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/signalforge/engine/parser"
)

// bindReaders exposes the parser package's zero-copy byte readers as
// host functions operating directly on the guest's own linear memory —
// a parser running inside the guest reads straight out of the buffer
// the host wrote the packet into (see Engine.AllocAndWrite), with no
// second copy back across the boundary. Every reader returns (value,
// ok) exactly like its Go counterpart in package parser; ok=0 on
// BufferBounds.
func bindReaders(b wazero.HostModuleBuilder) {
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length, offset uint32) (uint32, int32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return 0, 0
			}
			v, present := parser.ReadU8(buf, int(offset))
			return uint32(v), boolToI32(present)
		}).
		Export("read_u8")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length, offset uint32) (uint32, int32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return 0, 0
			}
			v, present := parser.ReadI8(buf, int(offset))
			return uint32(int32(v)), boolToI32(present)
		}).
		Export("read_i8")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length, offset uint32, littleEndian int32) (uint32, int32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return 0, 0
			}
			v, present := parser.ReadU16(buf, int(offset), littleEndian != 0)
			return uint32(v), boolToI32(present)
		}).
		Export("read_u16")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length, offset uint32, littleEndian int32) (uint32, int32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return 0, 0
			}
			v, present := parser.ReadI16(buf, int(offset), littleEndian != 0)
			return uint32(int32(v)), boolToI32(present)
		}).
		Export("read_i16")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length, offset uint32, littleEndian int32) (uint32, int32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return 0, 0
			}
			v, present := parser.ReadU32(buf, int(offset), littleEndian != 0)
			return v, boolToI32(present)
		}).
		Export("read_u32")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length, offset uint32, littleEndian int32) (uint32, int32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return 0, 0
			}
			v, present := parser.ReadI32(buf, int(offset), littleEndian != 0)
			return uint32(v), boolToI32(present)
		}).
		Export("read_i32")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length, offset uint32, littleEndian int32) (uint64, int32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return 0, 0
			}
			v, present := parser.ReadU64(buf, int(offset), littleEndian != 0)
			return v, boolToI32(present)
		}).
		Export("read_u64")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length, offset uint32, littleEndian int32) (uint64, int32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return 0, 0
			}
			v, present := parser.ReadI64(buf, int(offset), littleEndian != 0)
			return uint64(v), boolToI32(present)
		}).
		Export("read_i64")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length, offset uint32, littleEndian int32) (float32, int32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return 0, 0
			}
			v, present := parser.ReadFloat(buf, int(offset), littleEndian != 0)
			return v, boolToI32(present)
		}).
		Export("read_float")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length, offset uint32, littleEndian int32) (float64, int32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return 0, 0
			}
			v, present := parser.ReadDouble(buf, int(offset), littleEndian != 0)
			return v, boolToI32(present)
		}).
		Export("read_double")

	// read_cstring and bytes_to_hex produce a new string, so unlike the
	// fixed-width readers above they allocate it into the guest's own
	// memory (via the guest's exported "alloc", called back into here)
	// and return (ptr, len); ok=0 leaves both at zero.
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length, offset uint32) (uint32, uint32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return 0, 0
			}
			s, present := parser.ReadCString(buf, int(offset))
			if !present {
				return 0, 0
			}
			return allocInGuest(ctx, mod, []byte(s))
		}).
		Export("read_cstring")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length uint32) (uint32, uint32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return 0, 0
			}
			return allocInGuest(ctx, mod, []byte(parser.BytesToHex(buf)))
		}).
		Export("bytes_to_hex")

	// read_string reads a fixed-length run of bytes (e.g. a packet
	// header) as a string, the same shape as parser.ReadString in Go —
	// exposed to guests so a header check can be written entirely in
	// script.
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length, offset, strLen uint32) (uint32, uint32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return 0, 0
			}
			s, present := parser.ReadString(buf, int(offset), int(strLen))
			if !present {
				return 0, 0
			}
			return allocInGuest(ctx, mod, []byte(s))
		}).
		Export("read_string")
}

// allocInGuest calls the guest's own exported "alloc" from inside a host
// function call and writes data into the returned region — a reentrant
// call wazero permits, used here so a result computed host-side (a
// decoded C string, a hex dump) ends up addressable by the guest without
// a fixed-size return buffer convention.
func allocInGuest(ctx context.Context, mod api.Module, data []byte) (uint32, uint32) {
	alloc := mod.ExportedFunction("alloc")
	if alloc == nil {
		return 0, 0
	}
	results, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil || len(results) == 0 {
		return 0, 0
	}
	ptr := uint32(results[0])
	if len(data) > 0 && !mod.Memory().Write(ptr, data) {
		return 0, 0
	}
	return ptr, uint32(len(data))
}

func boolToI32(v bool) int32 {
	if v {
		return 1
	}
	return 0
}
