package handle

import "encoding/binary"

// WireSize is the byte size of the encoded wire record: 4 uint32 header
// fields plus NumInts 4-byte integers. Encode and Decode fill only the
// first 48 bytes (the header and the integer fields up to Owner); the
// last two integers are the slot of the pointer-sized Local, which never
// crosses the wire.
const WireSize = 4*4 + NumInts*4

// Encode serializes h into its native-endian wire form, as it would be
// written into a block of anonymous shared memory for another process to
// read. Local is NOT included on the wire: it is only ever valid in the
// owning process and must be rehydrated by Register on the remote side.
func Encode(h *Handle, order binary.ByteOrder, out []byte) {
	order.PutUint32(out[0:4], h.Magic)
	order.PutUint32(out[4:8], h.Version)
	order.PutUint32(out[8:12], h.NumInts)
	order.PutUint32(out[12:16], h.NumFDs)
	order.PutUint32(out[16:20], h.Width)
	order.PutUint32(out[20:24], h.Height)
	order.PutUint32(out[24:28], uint32(h.Format))
	order.PutUint32(out[28:32], uint32(h.Usage))
	order.PutUint32(out[32:36], h.PlaneMask)
	order.PutUint32(out[36:40], h.GlobalName)
	order.PutUint32(out[40:44], h.Stride)
	order.PutUint32(out[44:48], uint32(h.Owner))
}

// Decode reads a wire-format handle. Local is left at its zero value by
// design: a handle arriving from outside names no local owner until
// Register (or the no-op same-process path) assigns one. Owner travels
// on the wire and is decoded here.
func Decode(in []byte, order binary.ByteOrder) Handle {
	return Handle{
		Magic:      order.Uint32(in[0:4]),
		Version:    order.Uint32(in[4:8]),
		NumInts:    order.Uint32(in[8:12]),
		NumFDs:     order.Uint32(in[12:16]),
		Width:      order.Uint32(in[16:20]),
		Height:     order.Uint32(in[20:24]),
		Format:     Format(order.Uint32(in[24:28])),
		Usage:      Usage(order.Uint32(in[28:32])),
		PlaneMask:  order.Uint32(in[32:36]),
		GlobalName: order.Uint32(in[36:40]),
		Stride:     order.Uint32(in[40:44]),
		Owner:      int32(order.Uint32(in[44:48])),
	}
}

// BytesPerPixel returns the packed-plane pixel size for single-plane
// formats. YV12/NV12 are multi-plane and have no single bpp; callers
// resolve their per-plane layout through a backend's ResolveFormat.
func (f Format) BytesPerPixel() (int, bool) {
	switch f {
	case FormatRGB565:
		return 2, true
	case FormatRGBA8888, FormatBGRA8888, FormatRGBX8888, FormatBGRX8888:
		return 4, true
	default:
		return 0, false
	}
}

// Planar reports whether the format requires multi-plane layout
// resolution (YV12, NV12) rather than a single packed plane.
func (f Format) Planar() bool {
	return f == FormatYV12 || f == FormatNV12
}
