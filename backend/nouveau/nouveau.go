// Package nouveau implements the thin Nouveau GEM vendor backend: a
// plain aligned-size allocator with no tiling and no command-batch
// builder. Its swap strategy always selects FLIP, so the absence of a
// Blit implementation is not a gap: kms core never asks a FLIP-only
// backend to blit.
package nouveau

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
	"github.com/gralloc/drm/internal/drmfd"
)

// Backend is the Nouveau vendor backend.
type Backend struct {
	fd *drmfd.File
}

// Open wires nouveau to an already-open DRM fd. As with pipe and Intel,
// the device-open path calls Open directly once it knows the kernel
// driver name is "nouveau".
func Open(fd *drmfd.File) *Backend {
	return &Backend{fd: fd}
}

func (b *Backend) Name() string { return "nouveau" }
func (b *Backend) Destroy()     {}

// InitKMSFeatures always selects FLIP: this backend offers no COPY
// fallback.
func (b *Backend) InitKMSFeatures() (driver.KMSFeatures, error) {
	return driver.KMSFeatures{SwapMode: driver.SwapFlip}, nil
}

const pageAlign = 4096

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) / align * align
}

// computeSize computes size = aligned_width × aligned_height × bpp,
// rounded up to a page, as a pure function split out for testing.
func computeSize(width, height, bpp uint32) (stride uint32, size uint64) {
	alignedWidth := alignUp(uint64(width), 64)
	alignedHeight := alignUp(uint64(height), 64)
	stride = uint32(alignedWidth) * bpp
	size = alignUp(alignedWidth*alignedHeight*uint64(bpp), pageAlign)
	return stride, size
}

// Alloc computes size = aligned_width × aligned_height × bpp rounded up
// to a page, and creates or imports the GEM object.
func (b *Backend) Alloc(h *handle.Handle) (*driver.Allocation, error) {
	if h.GlobalName != 0 {
		gemHandle, size, err := b.fd.GemOpen(h.GlobalName)
		if err != nil {
			return nil, fmt.Errorf("nouveau: gem open: %w", err)
		}
		return &driver.Allocation{GEMHandle: gemHandle, Stride: h.Stride, Size: size}, nil
	}

	bpp, ok := h.Format.BytesPerPixel()
	if !ok {
		return nil, driver.ErrUnsupportedFormat
	}

	stride, size := computeSize(h.Width, h.Height, uint32(bpp))

	n := gemNew{Size: size, Align: pageAlign, Domain: domainVRAM}
	if err := b.fd.Ioctl(iocGemNew, uintptr(unsafe.Pointer(&n))); err != nil {
		return nil, fmt.Errorf("nouveau: gem new: %w", err)
	}

	name, err := b.fd.GemFlink(n.Handle)
	if err != nil {
		b.fd.GemClose(n.Handle)
		return nil, fmt.Errorf("nouveau: flink: %w", err)
	}

	h.GlobalName = name
	h.Stride = stride
	return &driver.Allocation{GEMHandle: n.Handle, Stride: stride, Size: size}, nil
}

func (b *Backend) Free(a *driver.Allocation) error {
	return b.fd.GemClose(a.GEMHandle)
}

// Map uses the nouveau-specific CPU-prep/fini pair to fence off GPU
// access before reading the mmap'd object, rather than Intel/Radeon's
// GEM_SET_DOMAIN.
func (b *Backend) Map(a *driver.Allocation, usage handle.Usage, r driver.Rect) ([]byte, error) {
	var flags uint32
	if usage&handle.SWWriteMask != 0 {
		flags = gemCPUPrepWrite
	}
	prep := gemCPUPrep{Handle: a.GEMHandle, Flags: flags}
	if err := b.fd.Ioctl(iocGemCPUPrep, uintptr(unsafe.Pointer(&prep))); err != nil {
		return nil, fmt.Errorf("nouveau: gem cpu prep: %w", err)
	}

	mem, err := b.fd.MapDumb(a.GEMHandle, a.Size)
	if err != nil {
		fini := gemCPUFini{Handle: a.GEMHandle}
		b.fd.Ioctl(iocGemCPUFini, uintptr(unsafe.Pointer(&fini)))
		return nil, fmt.Errorf("nouveau: map: %w", err)
	}
	a.CPUAddr = mem
	return mem, nil
}

// Unmap releases the mapping and signals GEM_CPU_FINI.
func (b *Backend) Unmap(a *driver.Allocation) error {
	if a.CPUAddr == nil {
		return nil
	}
	err := unix.Munmap(a.CPUAddr)
	a.CPUAddr = nil

	fini := gemCPUFini{Handle: a.GEMHandle}
	if fErr := b.fd.Ioctl(iocGemCPUFini, uintptr(unsafe.Pointer(&fini))); fErr != nil && err == nil {
		err = fErr
	}
	return err
}

// Blit is unreachable in practice: Nouveau always selects SwapFlip, so
// kms core never routes a SwapCopy post through this backend. It exists
// only to satisfy driver.Backend.
func (b *Backend) Blit(dst *driver.Allocation, dstRect driver.Rect, src *driver.Allocation, srcRect driver.Rect) error {
	return driver.ErrNoBlitEngine
}
