// Package noop is a dependency-free backend: it never opens a real DRM
// device and keeps all "GEM" allocations as plain Go byte slices, so a
// higher layer can run against it without real hardware. It registers
// itself with driver.Register under "noop".
package noop

import (
	"sync"
	"sync/atomic"

	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
)

func init() {
	driver.Register("noop", func(string) (driver.Backend, error) {
		return New(), nil
	})
}

// Backend is the in-memory stand-in.
type Backend struct {
	mu       sync.Mutex
	store    map[uint32][]byte
	nextGEM  uint32
	nextName atomic.Uint32
}

// New constructs a ready-to-use noop backend.
func New() *Backend {
	return &Backend{store: make(map[uint32][]byte)}
}

func (b *Backend) Name() string { return "noop" }
func (b *Backend) Destroy()     {}

func (b *Backend) InitKMSFeatures() (driver.KMSFeatures, error) {
	return driver.KMSFeatures{SwapMode: driver.SwapFlip}, nil
}

func (b *Backend) Alloc(h *handle.Handle) (*driver.Allocation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h.GlobalName != 0 {
		gem, ok := b.store[h.GlobalName]
		if !ok {
			return nil, driver.ErrUnsupportedFormat
		}
		return &driver.Allocation{GEMHandle: h.GlobalName, Stride: h.Stride, Size: uint64(len(gem))}, nil
	}

	bpp, ok := h.Format.BytesPerPixel()
	if !ok && !h.Format.Planar() {
		return nil, driver.ErrUnsupportedFormat
	}
	if !ok {
		bpp = 2 // YV12/NV12 average ~1.5-2 bytes/px; noop doesn't care about exactness
	}
	stride := h.Width * uint32(bpp)
	size := uint64(stride) * uint64(h.Height)

	b.nextGEM++
	gemHandle := b.nextGEM
	name := b.nextName.Add(1)
	b.store[name] = make([]byte, size)

	h.GlobalName = name
	h.Stride = stride
	return &driver.Allocation{GEMHandle: gemHandle, Stride: stride, Size: size}, nil
}

func (b *Backend) Free(a *driver.Allocation) error {
	return nil
}

func (b *Backend) Map(a *driver.Allocation, usage handle.Usage, r driver.Rect) ([]byte, error) {
	return make([]byte, a.Size), nil
}

func (b *Backend) Unmap(a *driver.Allocation) error { return nil }

func (b *Backend) Blit(dst *driver.Allocation, dstRect driver.Rect, src *driver.Allocation, srcRect driver.Rect) error {
	if dstRect.W != srcRect.W || dstRect.H != srcRect.H {
		return driver.ErrSizeMismatch
	}
	return nil
}
