// Package handle implements the fixed-size, cross-process buffer handle:
// the only entity in this system that crosses process boundaries.
//
// A Handle is a flat record with a fixed integer count and zero file
// descriptors, intended for same-machine inter-process passing only (it
// is copied verbatim through shared memory or a local socket, never
// serialized over a network). Validation on entry from the outside checks
// magic, version, int-count and fd-count against compile-time constants;
// the local-side pointer is trusted only when Owner equals the caller's
// own PID.
package handle

import "sync/atomic"

const (
	// Magic tags a valid handle. Entries with any other value are rejected.
	Magic = 0x12345678

	// Version identifies the wire layout. Bumped from the original 32-bit
	// local-pointer layout to 1 because this port widens Local to a
	// pointer-sized integer (see design note on 64-bit truncation).
	Version = 1

	// NumInts is the number of native-endian integer fields in the wire
	// record, not counting Magic/Version/NumInts/NumFDs themselves.
	NumInts = 10

	// NumFDs is always zero: this handle never carries file descriptors.
	NumFDs = 0
)

// Format identifies the pixel format of the buffer the handle describes.
type Format uint32

// Recognized pixel formats. Packed formats use a single plane; YV12 and
// NV12 are multi-plane and are resolved by a backend's ResolveFormat hook.
const (
	FormatUnknown Format = iota
	FormatRGB565
	FormatRGBA8888
	FormatBGRA8888
	FormatRGBX8888
	FormatBGRX8888
	FormatYV12
	FormatNV12
)

// Usage is a bitmask describing intended access to a buffer.
type Usage uint32

const (
	UsageSWReadRarely Usage = 1 << iota
	UsageSWReadOften
	UsageSWWriteRarely
	UsageSWWriteOften
	UsageHWRender
	UsageHWTexture
	UsageHWFB // display framebuffer; see the lock loophole in bo.Lock
	UsageHWComposer
	UsageHW2D
)

// SWReadMask and SWWriteMask group the bits that require a CPU mapping.
const (
	SWReadMask  = UsageSWReadRarely | UsageSWReadOften
	SWWriteMask = UsageSWWriteRarely | UsageSWWriteOften
)

// Handle is the flat cross-process descriptor. Every field is plain data;
// Local is meaningful only in the process named by Owner.
type Handle struct {
	Magic   uint32
	Version uint32
	NumInts uint32
	NumFDs  uint32

	Width      uint32
	Height     uint32
	Format     Format
	Usage      Usage
	PlaneMask  uint32 // which overlay planes may display this buffer
	GlobalName uint32 // kernel GEM/dumb-buffer global name; 0 = never exported
	Stride     uint32 // bytes
	Owner      int32  // PID that last owned the local side
	Local      uintptr
}

// New populates the fixed header fields of a handle for a fresh,
// not-yet-allocated buffer, along with its Width, Height, Format and
// Usage. GlobalName, Stride, Owner and Local are filled in later by the
// backend and bo.Create.
func New(width, height uint32, format Format, usage Usage) Handle {
	return Handle{
		Magic:   Magic,
		Version: Version,
		NumInts: NumInts,
		NumFDs:  NumFDs,
		Width:   width,
		Height:  height,
		Format:  format,
		Usage:   usage,
	}
}

// Validate rejects a handle whose magic, version, int-count or fd-count
// do not match the compile-time constants. This is the check applied to
// every handle entering from outside the local process.
func (h *Handle) Validate() bool {
	return h != nil &&
		h.Magic == Magic &&
		h.Version == Version &&
		h.NumInts == NumInts &&
		h.NumFDs == NumFDs
}

// pidCache caches os.Getpid() the first time CachedPID is asked for it,
// per spec: "the first call in a process caches getpid() into a
// process-global atomic; subsequent checks compare against that cache."
var pidCache atomic.Int64

// CachedPID returns the current process's PID, computing and caching it
// on first use via the injected PID source (wired to os.Getpid in
// gralloc/module.go to keep this package free of process-global syscalls).
func CachedPID(getpid func() int) int32 {
	if cached := pidCache.Load(); cached != 0 {
		return int32(cached)
	}
	pid := int32(getpid())
	if pid == 0 {
		pid = -1 // never a real PID; avoids re-resolving forever on a 0 result
	}
	pidCache.CompareAndSwap(0, int64(pid))
	return int32(pidCache.Load())
}

// OwnedByCaller reports whether the handle's local pointer was cached by
// the calling process and may be dereferenced.
func (h *Handle) OwnedByCaller(pid int32) bool {
	return h.Owner == pid
}
