package radeon

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
)

// Alloc mirrors Intel's shape: open-by-name for an already-exported
// handle, or compute pitch/height/base alignment and allocate fresh,
// flinking the result.
func (b *Backend) Alloc(h *handle.Handle) (*driver.Allocation, error) {
	if h.GlobalName != 0 {
		return b.importByName(h)
	}

	bpp, ok := h.Format.BytesPerPixel()
	if !ok {
		return nil, driver.ErrUnsupportedFormat
	}
	forFB := h.Usage&handle.UsageHWFB != 0
	forceLinear := h.Usage&(handle.SWReadMask|handle.SWWriteMask) != 0
	mode := tileModeFor(forFB, forceLinear || !b.tilingKnown)

	pitchPixels := PitchAlign(mode, b.tilingKnown, b.cfg, bpp)
	if pitchPixels < h.Width {
		pitchPixels = h.Width
	}
	heightAlign := HeightAlign(mode, b.cfg)
	height := alignUp(h.Height, heightAlign)
	pitch := pitchPixels * uint32(bpp)
	base := BaseAlign(mode, b.tilingKnown, b.tilingQueried, b.cfg, pitchPixels, bpp, heightAlign)

	size := uint64(pitch) * uint64(height)
	gemHandle, err := b.gemCreate(size, base)
	if err != nil {
		return nil, fmt.Errorf("radeon: gem create: %w", err)
	}

	tiled := mode != TileLinear
	if tiled {
		flags := tilingMicro
		if mode == TileMacro {
			flags = tilingMacro
		}
		if err := b.setTiling(gemHandle, flags, pitch); err != nil {
			b.fd.GemClose(gemHandle)
			return nil, fmt.Errorf("radeon: set tiling: %w", err)
		}
	}

	name, err := b.fd.GemFlink(gemHandle)
	if err != nil {
		b.fd.GemClose(gemHandle)
		return nil, fmt.Errorf("radeon: flink: %w", err)
	}

	h.GlobalName = name
	h.Stride = pitch
	return &driver.Allocation{GEMHandle: gemHandle, Stride: pitch, Size: size, Tiled: tiled}, nil
}

func alignUp(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

func (b *Backend) importByName(h *handle.Handle) (*driver.Allocation, error) {
	gemHandle, size, err := b.fd.GemOpen(h.GlobalName)
	if err != nil {
		return nil, fmt.Errorf("radeon: gem open: %w", err)
	}
	tiled, err := b.getTiling(gemHandle)
	if err != nil {
		b.fd.GemClose(gemHandle)
		return nil, fmt.Errorf("radeon: get tiling: %w", err)
	}
	return &driver.Allocation{GEMHandle: gemHandle, Stride: h.Stride, Size: size, Tiled: tiled}, nil
}

func (b *Backend) gemCreate(size uint64, alignment uint32) (uint32, error) {
	c := gemCreate{Size: size, Alignment: alignment}
	if err := b.fd.Ioctl(iocGemCreate, uintptr(unsafe.Pointer(&c))); err != nil {
		return 0, err
	}
	return c.Handle, nil
}

func (b *Backend) setTiling(gemHandle uint32, flags uint32, pitch uint32) error {
	t := gemSetTiling{Handle: gemHandle, TilingFlags: flags, Pitch: pitch}
	return b.fd.Ioctl(iocGemSetTiling, uintptr(unsafe.Pointer(&t)))
}

func (b *Backend) getTiling(gemHandle uint32) (bool, error) {
	t := gemGetTiling{Handle: gemHandle}
	if err := b.fd.Ioctl(iocGemGetTiling, uintptr(unsafe.Pointer(&t))); err != nil {
		return false, err
	}
	return t.TilingFlags&(tilingMacro|tilingMicro) != 0, nil
}

// Free releases the GEM handle.
func (b *Backend) Free(a *driver.Allocation) error {
	return b.fd.GemClose(a.GEMHandle)
}

// Map obtains a CPU pointer via GEM_MMAP and moves the object into the
// CPU domain, as Intel's does.
func (b *Backend) Map(a *driver.Allocation, usage handle.Usage, r driver.Rect) ([]byte, error) {
	m := gemMmap{Handle: a.GEMHandle, Size: a.Size}
	if err := b.fd.Ioctl(iocGemMmap, uintptr(unsafe.Pointer(&m))); err != nil {
		return nil, fmt.Errorf("radeon: gem mmap: %w", err)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(m.AddrPtr))), int(a.Size))

	sd := gemSetDomain{Handle: a.GEMHandle, ReadDomains: domainCPU, WriteDomain: domainCPU}
	if err := b.fd.Ioctl(iocGemSetDomain, uintptr(unsafe.Pointer(&sd))); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("radeon: gem set domain: %w", err)
	}

	a.CPUAddr = data
	return data, nil
}

// Unmap reverses Map.
func (b *Backend) Unmap(a *driver.Allocation) error {
	if a.CPUAddr == nil {
		return nil
	}
	err := unix.Munmap(a.CPUAddr)
	a.CPUAddr = nil
	return err
}

// Blit reports ErrNoBlitEngine: this backend carries no command-batch
// builder the way Intel does with its BLT engine. kms has no other copy
// path, so a blit it requests on Radeon fails with this error.
func (b *Backend) Blit(dst *driver.Allocation, dstRect driver.Rect, src *driver.Allocation, srcRect driver.Rect) error {
	return driver.ErrNoBlitEngine
}
