// Package driver defines the vendor-backend dispatch contract: a uniform
// trait implemented by the Intel, Radeon, Nouveau and generic pipe
// backends, plus the registry used to select one by kernel driver name.
package driver

import "github.com/gralloc/drm/handle"

// Rect is an integer rectangle used by Blit and by backend.Map's
// sub-region argument.
type Rect struct {
	X, Y, W, H uint32
}

// PlaneLayout is one plane of a (possibly multi-plane) buffer: the GEM
// handle backing it, its pitch in bytes, and its byte offset from the
// start of the allocation. Packed RGB formats use a single plane;
// YV12/NV12 use two or three.
type PlaneLayout struct {
	GEMHandle uint32
	Pitch     uint32
	Offset    uint32
}

// Allocation is the backend-side state of a buffer object: everything a
// vendor backend needs to free, map, blit or fb-attach it. The bo package
// wraps this with the cross-process Handle, lock bookkeeping and
// refcount; Allocation itself never crosses a process boundary.
type Allocation struct {
	GEMHandle  uint32
	Stride     uint32
	Size       uint64
	Tiled      bool
	PlaneCount int
	Planes     [4]PlaneLayout

	// CPUAddr is non-nil only between a Map call and its matching Unmap.
	CPUAddr []byte
}

// SwapMode is the display-post strategy a backend selects in
// InitKMSFeatures, driven by kernel page-flip support and (for Intel)
// hardware generation.
type SwapMode int

const (
	// SwapNoop performs no work; used when posting is otherwise disabled.
	SwapNoop SwapMode = iota
	// SwapFlip posts via an atomic page flip with a PAGE_FLIP_EVENT.
	SwapFlip
	// SwapCopy blits into a stable, once-allocated front buffer.
	SwapCopy
	// SwapSetCRTC performs a full modeset on every post.
	SwapSetCRTC
)

func (m SwapMode) String() string {
	switch m {
	case SwapFlip:
		return "flip"
	case SwapCopy:
		return "copy"
	case SwapSetCRTC:
		return "setcrtc"
	default:
		return "noop"
	}
}

// KMSFeatures is filled in by Backend.InitKMSFeatures and read by kms
// core to pick a post strategy and pacing behavior.
type KMSFeatures struct {
	SwapMode SwapMode

	// VMWgfxQuirk short-circuits vblank waits entirely and posts via
	// MODE_DIRTYFB instead of a real page flip.
	VMWgfxQuirk bool

	// RequiresSyncFlip forces the posting thread to drain a just-scheduled
	// flip synchronously instead of leaving it outstanding.
	RequiresSyncFlip bool
}

// Backend is the uniform vendor contract: alloc, free, map, unmap, blit,
// resolve_format (optional, see FormatResolver), init_kms_features.
type Backend interface {
	// Name identifies the backend for logging ("intel", "radeon",
	// "nouveau", "pipe").
	Name() string

	// Destroy releases any backend-global state (command ring, device
	// fd duplicate, etc). Called once, when the owning DRM device closes.
	Destroy()

	// InitKMSFeatures probes kernel capabilities (page-flip support,
	// hardware generation) and returns the swap strategy KMS core should
	// use.
	InitKMSFeatures() (KMSFeatures, error)

	// Alloc creates a new Allocation for h, or attaches to the existing
	// kernel object named by h.GlobalName when it is already non-zero
	// (the import path). On a fresh allocation the backend must write
	// the flinked global name and stride back into h.
	Alloc(h *handle.Handle) (*Allocation, error)

	// Free releases a's backend-side resources.
	Free(a *Allocation) error

	// Map waits for any in-flight GPU writes to a and returns a CPU
	// pointer to the region described by rect, honoring usage.
	Map(a *Allocation, usage handle.Usage, rect Rect) ([]byte, error)

	// Unmap releases a mapping obtained from Map.
	Unmap(a *Allocation) error

	// Blit copies srcRect of src into dstRect of dst. Implementations
	// must fail if the rects differ in size: no backend here scales.
	Blit(dst *Allocation, dstRect Rect, src *Allocation, srcRect Rect) error
}

// FormatResolver is an optional capability: backends that can fill in
// multi-plane pitch/offset/gem-handle arrays for YUV/NV formats
// implement it and are type-asserted for it, the same way the standard
// library probes for http.Flusher or io.ReaderFrom. A backend without
// multi-plane support (e.g. the generic pipe fallback) simply doesn't
// implement this interface.
type FormatResolver interface {
	ResolveFormat(h *handle.Handle, a *Allocation) error
}
