package kms

import (
	"fmt"

	"github.com/gralloc/drm/bo"
	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
	"github.com/gralloc/drm/internal/drmfd"
)

// AttachFB resolves per-plane pitch/offset/gem-handle layout via the
// backend's optional resolve_format hook (packed formats use plane 0
// only), then calls the kernel's multi-plane fb-add. It is idempotent: a
// second call on a BO that already carries an fb-id is a no-op.
func AttachFB(fd *drmfd.File, backend driver.Backend, b *bo.BO, pixelFormat uint32) error {
	if b.FBID != 0 {
		return nil
	}

	a := b.Alloc
	if resolver, ok := backend.(driver.FormatResolver); ok && b.Handle.Format.Planar() {
		if err := resolver.ResolveFormat(b.Handle, a); err != nil {
			return fmt.Errorf("kms: resolve format: %w", err)
		}
	} else {
		a.PlaneCount = 1
		a.Planes[0] = driver.PlaneLayout{GEMHandle: a.GEMHandle, Pitch: a.Stride, Offset: 0}
	}

	var handles, pitches, offsets [4]uint32
	for i := 0; i < a.PlaneCount && i < 4; i++ {
		handles[i] = a.Planes[i].GEMHandle
		pitches[i] = a.Planes[i].Pitch
		offsets[i] = a.Planes[i].Offset
	}

	fbID, err := fd.AddFB2(b.Handle.Width, b.Handle.Height, pixelFormat, handles, pitches, offsets)
	if err != nil {
		return fmt.Errorf("kms: add fb2: %w", err)
	}
	b.FBID = fbID
	return nil
}

// DetachFB releases a previously attached framebuffer object.
func DetachFB(fd *drmfd.File, b *bo.BO) error {
	if b.FBID == 0 {
		return nil
	}
	if err := fd.RmFB(b.FBID); err != nil {
		return fmt.Errorf("kms: rm fb: %w", err)
	}
	b.FBID = 0
	return nil
}

// PixelFormatFourCC maps a handle.Format to the DRM fourcc AddFB2 needs.
// Values mirror <drm/drm_fourcc.h>.
func PixelFormatFourCC(f handle.Format) uint32 {
	const (
		fourccRGB565   = 0x36314752 // 'RG16'
		fourccARGB8888 = 0x34325241 // 'AR24'
		fourccXRGB8888 = 0x34325258 // 'XR24'
		fourccYV12     = 0x32315659 // 'YV12'
		fourccNV12     = 0x3231564e // 'NV12'
	)
	switch f {
	case handle.FormatRGB565:
		return fourccRGB565
	case handle.FormatRGBA8888, handle.FormatBGRA8888:
		return fourccARGB8888
	case handle.FormatRGBX8888, handle.FormatBGRX8888:
		return fourccXRGB8888
	case handle.FormatYV12:
		return fourccYV12
	case handle.FormatNV12:
		return fourccNV12
	default:
		return 0
	}
}
