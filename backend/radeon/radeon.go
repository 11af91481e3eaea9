// Package radeon implements the Radeon GEM vendor backend: evergreen-era
// tile-config decoding and the pitch/height/base alignment formulas that
// follow from it. Pre-R600 hardware uses simpler constants this port
// omits (see DESIGN.md).
package radeon

import (
	"fmt"
	"unsafe"

	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/internal/drmfd"
)

// Backend is the Radeon vendor backend.
type Backend struct {
	fd  *drmfd.File
	cfg TilingConfig

	tilingQueried bool // a RADEON_INFO_TILING_CONFIG query was attempted
	tilingKnown   bool // ...and it succeeded and reported evergreen tiling
}

// Open probes RADEON_INFO_DEVICE_ID and, on evergreen-family hardware,
// RADEON_INFO_TILING_CONFIG. A failed or pre-R600 query leaves cfg
// zeroed and tilingKnown false: allocation still proceeds, linear-only,
// using the conservative fallbacks in tiling.go.
func Open(fd *drmfd.File) (*Backend, error) {
	b := &Backend{fd: fd}

	deviceID, err := b.getInfo(infoDeviceID)
	if err != nil {
		return nil, fmt.Errorf("radeon: info device id: %w", err)
	}

	if isEvergreen(int32(deviceID)) {
		b.tilingQueried = true
		raw, err := b.getInfo(infoTilingConfig)
		if err == nil {
			b.cfg = decodeTilingConfig(raw)
			b.tilingKnown = true
		}
	}

	return b, nil
}

func (b *Backend) getInfo(request uint32) (uint32, error) {
	var v uint32
	info := radeonInfo{Request: request, ValuePtr: uint64(uintptr(unsafe.Pointer(&v)))}
	if err := b.fd.Ioctl(iocInfo, uintptr(unsafe.Pointer(&info))); err != nil {
		return 0, err
	}
	return v, nil
}

func (b *Backend) Name() string { return "radeon" }
func (b *Backend) Destroy()     {}

// InitKMSFeatures always selects SwapFlip: this backend has no batch
// builder (see Blit), so it cannot serve SwapCopy, and Radeon hardware
// from the evergreen era onward reliably supports page-flip.
func (b *Backend) InitKMSFeatures() (driver.KMSFeatures, error) {
	return driver.KMSFeatures{SwapMode: driver.SwapFlip}, nil
}
