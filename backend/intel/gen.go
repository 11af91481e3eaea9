package intel

import "unsafe"

// GEM domain bits, from <drm/i915_drm.h>.
const (
	domainCPU    = 0x00000008
	domainRender = 0x00000001
)

// getParam issues DRM_IOCTL_I915_GETPARAM, which takes a pointer to the
// int the kernel writes the answer into (not the value itself).
func (b *Backend) getParam(param int32) (int32, error) {
	var v int32
	p := getParam{Param: param, Value: uint64(uintptr(unsafe.Pointer(&v)))}
	if err := b.fd.Ioctl(iocGetParam, uintptr(unsafe.Pointer(&p))); err != nil {
		return 0, err
	}
	return v, nil
}

// genFromChipsetID buckets a PCI device ID into a hardware generation.
// The boundaries approximate the real device tables in the kernel's i915
// driver; exact membership doesn't matter here, only that older chips
// land below the generations that support tiling/page-flip/BLT features
// this backend branches on.
func genFromChipsetID(id int32) int {
	switch {
	case id <= 0:
		return 3 // unknown chipset: assume a conservative mid-generation part
	case id >= 0x2500 && id < 0x2580:
		return 2
	case id >= 0x2580 && id < 0x2A00:
		return 3
	case id >= 0x2A00 && id < 0x2A50:
		return 4
	case id == 0x0042, id == 0x0046:
		return 5
	case id >= 0x0100 && id < 0x0150:
		return 6
	case id >= 0x0150 && id < 0x1600:
		return 7
	default:
		return 8
	}
}
