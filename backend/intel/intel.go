// Package intel implements the i915 vendor backend: X/Y-tiled allocation,
// GEM mmap for CPU access, and a BLT command-batch builder used for
// SwapCopy posting. It is the largest single backend:
// the real gralloc_drm i915 path did its own tiling and batch-building
// rather than delegating to libdrm_intel, and this port follows suit.
package intel

import (
	"fmt"

	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
	"github.com/gralloc/drm/internal/drmfd"
)

// Backend is the i915 vendor backend.
type Backend struct {
	fd    *drmfd.File
	gen   int
	batch *batchBuilder
}

// Open probes the chipset ID off fd and builds the backend for the
// generation it maps to. Like pipe, intel has no way to self-register:
// the device-open path (selectBackend in module.go) calls Open once it
// has identified an i915 kernel driver and an fd, and uses the result
// directly.
func Open(fd *drmfd.File) (*Backend, error) {
	b := &Backend{fd: fd}
	chipsetID, err := b.getParam(paramChipsetID)
	if err != nil {
		return nil, fmt.Errorf("intel: getparam chipset id: %w", err)
	}
	b.gen = genFromChipsetID(chipsetID)
	b.batch = newBatchBuilder(fd, b.gen)
	return b, nil
}

func (b *Backend) Name() string { return "intel" }

// Destroy flushes any outstanding batch and releases the batch builder's
// state. The underlying fd is owned by the caller, not this backend.
func (b *Backend) Destroy() {
	b.batch.flush()
}

// InitKMSFeatures implements swap-mode selection: flip
// when the kernel can schedule one and the generation is new enough to
// trust it (gen > 3); otherwise fall back to a BLT copy on gen 3, which
// has a blit engine but unreliable flip support; anything older gets a
// full SETCRTC on every post.
func (b *Backend) InitKMSFeatures() (driver.KMSFeatures, error) {
	hasFlip, err := b.getParam(paramHasPageflipping)
	if err != nil {
		hasFlip = 0
	}

	return driver.KMSFeatures{SwapMode: selectSwapMode(b.gen, hasFlip != 0)}, nil
}

// selectSwapMode is InitKMSFeatures' decision as a pure function, split
// out so the policy can be tested without a real DRM fd.
func selectSwapMode(gen int, hasFlip bool) driver.SwapMode {
	switch {
	case hasFlip && gen > 3:
		return driver.SwapFlip
	case gen == 3:
		return driver.SwapCopy
	default:
		return driver.SwapSetCRTC
	}
}

// pitchField returns the BR13 pitch value for a surface: tiled surfaces
// on gen >= 4 encode pitch in units of 4 bytes.
func pitchField(stride uint32, tiled bool, gen int) uint32 {
	if tiled {
		return stride >> tilePitchShift(gen)
	}
	return stride
}

// XY_SRC_COPY_BLT, from <drm/i915_drm.h>'s 2D command opcodes: an 8-dword
// client-color-blit with a ROP of 0xCC (straight source copy, no masking).
const (
	xySrcCopyBltCmd uint32 = (2 << 29) | (0x53 << 22) | 6
	ropSrcCopy      uint32 = 0xCC
)

// Blit builds one XY_SRC_COPY_BLT command into the batch and flushes
// immediately: the generic pipe fallback's row-copy Blit is what runs
// when no vendor batch builder claims the device, so this is strictly a
// GPU-side replacement for it, used by the Steady/COPY post path.
func (b *Backend) Blit(dst *driver.Allocation, dstRect driver.Rect, src *driver.Allocation, srcRect driver.Rect) error {
	if dstRect.W != srcRect.W || dstRect.H != srcRect.H {
		return driver.ErrSizeMismatch
	}

	idx := b.batch.reserve(8)
	b.batch.set(idx, xySrcCopyBltCmd)
	b.batch.set(idx+1, (ropSrcCopy<<16)|pitchField(dst.Stride, dst.Tiled, b.gen))
	b.batch.set(idx+2, (dstRect.Y<<16)|dstRect.X)
	b.batch.set(idx+3, ((dstRect.Y+dstRect.H)<<16)|(dstRect.X+dstRect.W))
	b.batch.set(idx+4, 0)
	b.batch.reloc(idx+4, dst.GEMHandle, domainRender, domainRender)
	b.batch.set(idx+5, (srcRect.Y<<16)|srcRect.X)
	b.batch.set(idx+6, pitchField(src.Stride, src.Tiled, b.gen))
	b.batch.set(idx+7, 0)
	b.batch.reloc(idx+7, src.GEMHandle, domainRender, 0)

	return b.batch.flush()
}

// ResolveFormat fills in the Y/chroma plane layout for the multi-plane
// formats Intel scanout supports. Packed formats never reach here:
// kms.AttachFB only calls ResolveFormat for handle.Format.Planar() formats.
func (b *Backend) ResolveFormat(h *handle.Handle, a *driver.Allocation) error {
	yStride := alignWidth64(h.Width)
	ySize := uint64(yStride) * uint64(h.Height)

	switch h.Format {
	case handle.FormatNV12:
		a.PlaneCount = 2
		a.Planes[0] = driver.PlaneLayout{GEMHandle: a.GEMHandle, Pitch: yStride, Offset: 0}
		a.Planes[1] = driver.PlaneLayout{GEMHandle: a.GEMHandle, Pitch: yStride, Offset: uint32(ySize)}
		return nil
	case handle.FormatYV12:
		cStride := alignWidth64(h.Width / 2)
		cSize := uint64(cStride) * uint64(h.Height) / 2
		a.PlaneCount = 3
		a.Planes[0] = driver.PlaneLayout{GEMHandle: a.GEMHandle, Pitch: yStride, Offset: 0}
		a.Planes[1] = driver.PlaneLayout{GEMHandle: a.GEMHandle, Pitch: cStride, Offset: uint32(ySize)}
		a.Planes[2] = driver.PlaneLayout{GEMHandle: a.GEMHandle, Pitch: cStride, Offset: uint32(ySize + cSize)}
		return nil
	default:
		return driver.ErrUnsupportedFormat
	}
}
