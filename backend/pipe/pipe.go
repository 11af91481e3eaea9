// Package pipe implements the generic, backend-agnostic fallback over
// the kernel's "dumb buffer" allocator: no tiling, linear stride only,
// software blit via a row-copy loop. gralloc's device-open path selects
// it for any kernel driver name that no vendor backend claims; it is not
// probed ahead of the vendor backends.
package pipe

import (
	"fmt"

	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
	"github.com/gralloc/drm/internal/drmfd"
)

// Backend is the generic dumb-buffer-manager fallback.
type Backend struct {
	fd *drmfd.File
}

// Open wires pipe to an already-open DRM fd. pipe needs a live fd, so it
// cannot self-register a working factory: gralloc's device-open path
// calls Open directly once it has an fd and uses the result for that
// device's lifetime, without registering it with driver.Register.
func Open(fd *drmfd.File) *Backend {
	return &Backend{fd: fd}
}

func (b *Backend) Name() string { return "pipe" }
func (b *Backend) Destroy()     {}

func (b *Backend) InitKMSFeatures() (driver.KMSFeatures, error) {
	// The generic fallback has no way to ask the kernel about
	// page-flip support beyond attempting one; conservatively assume it
	// works, matching the original gralloc_drm.c pipe backend.
	return driver.KMSFeatures{SwapMode: driver.SwapFlip}, nil
}

const bytesPerPixel = 4 // pipe only ever allocates packed 32bpp buffers

func (b *Backend) Alloc(h *handle.Handle) (*driver.Allocation, error) {
	if h.GlobalName != 0 {
		gemHandle, size, err := b.fd.GemOpen(h.GlobalName)
		if err != nil {
			return nil, fmt.Errorf("pipe: gem open: %w", err)
		}
		return &driver.Allocation{GEMHandle: gemHandle, Stride: h.Stride, Size: size}, nil
	}

	bpp, ok := h.Format.BytesPerPixel()
	if !ok {
		return nil, driver.ErrUnsupportedFormat
	}
	gemHandle, pitch, size, err := b.fd.CreateDumb(h.Width, h.Height, uint32(bpp*8))
	if err != nil {
		return nil, fmt.Errorf("pipe: create dumb: %w", err)
	}
	name, err := b.fd.GemFlink(gemHandle)
	if err != nil {
		return nil, fmt.Errorf("pipe: flink: %w", err)
	}

	h.GlobalName = name
	h.Stride = pitch
	return &driver.Allocation{GEMHandle: gemHandle, Stride: pitch, Size: size}, nil
}

func (b *Backend) Free(a *driver.Allocation) error {
	return b.fd.DestroyDumb(a.GEMHandle)
}

func (b *Backend) Map(a *driver.Allocation, usage handle.Usage, r driver.Rect) ([]byte, error) {
	mem, err := b.fd.MapDumb(a.GEMHandle, a.Size)
	if err != nil {
		return nil, err
	}
	a.CPUAddr = mem
	return mem, nil
}

func (b *Backend) Unmap(a *driver.Allocation) error {
	if a.CPUAddr == nil {
		return nil
	}
	err := b.fd.UnmapDumb(a.CPUAddr)
	a.CPUAddr = nil
	return err
}

// Blit performs a plain row-copy between two mapped dumb buffers. There
// is no GPU command batch in the generic path: the "blit" is software,
// and it runs whenever pipe is the selected backend and kms asks for a
// blit (a SwapCopy post or the cloned secondary output).
func (b *Backend) Blit(dst *driver.Allocation, dstRect driver.Rect, src *driver.Allocation, srcRect driver.Rect) error {
	if dstRect.W != srcRect.W || dstRect.H != srcRect.H {
		return driver.ErrSizeMismatch
	}

	dstMem, err := b.fd.MapDumb(dst.GEMHandle, dst.Size)
	if err != nil {
		return fmt.Errorf("pipe: blit: map dst: %w", err)
	}
	defer b.fd.UnmapDumb(dstMem)
	srcMem, err := b.fd.MapDumb(src.GEMHandle, src.Size)
	if err != nil {
		return fmt.Errorf("pipe: blit: map src: %w", err)
	}
	defer b.fd.UnmapDumb(srcMem)

	rowBytes := int(dstRect.W) * bytesPerPixel
	for row := uint32(0); row < dstRect.H; row++ {
		srcOff := int(src.Stride)*int(srcRect.Y+row) + int(srcRect.X)*bytesPerPixel
		dstOff := int(dst.Stride)*int(dstRect.Y+row) + int(dstRect.X)*bytesPerPixel
		copy(dstMem[dstOff:dstOff+rowBytes], srcMem[srcOff:srcOff+rowBytes])
	}
	return nil
}
