package intel

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
)

// Alloc implements the Intel side of buffer creation: for a handle that
// already names a global object, open it by name and read back its
// tiling; for a fresh allocation, run the tiling policy, create and tile
// the GEM object, then flink a name and stamp it into h.
func (b *Backend) Alloc(h *handle.Handle) (*driver.Allocation, error) {
	if h.GlobalName != 0 {
		return b.importByName(h)
	}

	bpp, ok := h.Format.BytesPerPixel()
	if !ok {
		return nil, driver.ErrUnsupportedFormat
	}
	forFB := h.Usage&handle.UsageHWFB != 0

	layout, err := ComputeLayout(b.gen, h.Width, bpp, h.Usage, forFB)
	if err != nil {
		return nil, fmt.Errorf("intel: tiling policy: %w", err)
	}

	size := uint64(layout.Stride) * uint64(h.Height)
	gemHandle, err := b.gemCreate(size)
	if err != nil {
		return nil, fmt.Errorf("intel: gem create: %w", err)
	}

	if layout.Tiled {
		actualStride, err := b.setTiling(gemHandle, tilingX, layout.Stride)
		if err != nil {
			b.fd.GemClose(gemHandle)
			return nil, fmt.Errorf("intel: set tiling: %w", err)
		}
		layout.Stride = actualStride
	}

	name, err := b.fd.GemFlink(gemHandle)
	if err != nil {
		b.fd.GemClose(gemHandle)
		return nil, fmt.Errorf("intel: flink: %w", err)
	}

	h.GlobalName = name
	h.Stride = layout.Stride
	return &driver.Allocation{GEMHandle: gemHandle, Stride: layout.Stride, Size: size, Tiled: layout.Tiled}, nil
}

// importByName attaches to an object this process didn't allocate,
// trusting the stride already recorded in h and reading back the
// kernel's tiling mode for it.
func (b *Backend) importByName(h *handle.Handle) (*driver.Allocation, error) {
	gemHandle, size, err := b.fd.GemOpen(h.GlobalName)
	if err != nil {
		return nil, fmt.Errorf("intel: gem open: %w", err)
	}
	tiled, err := b.getTiling(gemHandle)
	if err != nil {
		b.fd.GemClose(gemHandle)
		return nil, fmt.Errorf("intel: get tiling: %w", err)
	}
	return &driver.Allocation{GEMHandle: gemHandle, Stride: h.Stride, Size: size, Tiled: tiled}, nil
}

func (b *Backend) gemCreate(size uint64) (uint32, error) {
	c := gemCreate{Size: size}
	if err := b.fd.Ioctl(iocGemCreate, uintptr(unsafe.Pointer(&c))); err != nil {
		return 0, err
	}
	return c.Handle, nil
}

func (b *Backend) setTiling(gemHandle uint32, mode uint32, stride uint32) (uint32, error) {
	t := gemSetTiling{Handle: gemHandle, TilingMode: mode, Stride: stride}
	if err := b.fd.Ioctl(iocGemSetTiling, uintptr(unsafe.Pointer(&t))); err != nil {
		return 0, err
	}
	return t.Stride, nil
}

func (b *Backend) getTiling(gemHandle uint32) (bool, error) {
	t := gemGetTiling{Handle: gemHandle}
	if err := b.fd.Ioctl(iocGemGetTiling, uintptr(unsafe.Pointer(&t))); err != nil {
		return false, err
	}
	return t.TilingMode != tilingNone, nil
}

// Free releases the GEM handle. Intel objects are never dumb buffers, so
// this always closes rather than destroys.
func (b *Backend) Free(a *driver.Allocation) error {
	return b.fd.GemClose(a.GEMHandle)
}

// Map issues GEM_MMAP to obtain a CPU pointer, then GEM_SET_DOMAIN to
// move the object into the CPU read/write domain it was mapped for.
func (b *Backend) Map(a *driver.Allocation, usage handle.Usage, r driver.Rect) ([]byte, error) {
	m := gemMmap{Handle: a.GEMHandle, Size: a.Size}
	if err := b.fd.Ioctl(iocGemMmap, uintptr(unsafe.Pointer(&m))); err != nil {
		return nil, fmt.Errorf("intel: gem mmap: %w", err)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(m.AddrPtr))), int(a.Size))

	var writeDomain uint32
	if usage&handle.SWWriteMask != 0 {
		writeDomain = domainCPU
	}
	sd := gemSetDomain{Handle: a.GEMHandle, ReadDomains: domainCPU, WriteDomain: writeDomain}
	if err := b.fd.Ioctl(iocGemSetDomain, uintptr(unsafe.Pointer(&sd))); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("intel: gem set domain: %w", err)
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
