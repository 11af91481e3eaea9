package nouveau

import (
	"unsafe"

	"github.com/gralloc/drm/internal/ioctlnum"
)

// Nouveau vendor ioctls live above DRM_COMMAND_BASE, per <drm/nouveau_drm.h>.
const (
	drmIOCType      = 0x64
	commandBase     = 0x40
	cmdGemNew       = commandBase + 0x00
	cmdGemPushbuf   = commandBase + 0x01
	cmdGemCPUPrep   = commandBase + 0x02
	cmdGemCPUFini   = commandBase + 0x03
	cmdGemInfo      = commandBase + 0x04
)

type gemNew struct {
	ChannelHint uint32
	Align       uint32
	Size        uint64
	Domain      uint32
	Flags       uint32
	TileMode    uint32
	TileFlags   uint32
	Handle      uint32
}

type gemCPUPrep struct {
	Handle   uint32
	Flags    uint32
}

type gemCPUFini struct {
	Handle uint32
}

type gemInfo struct {
	Handle     uint32
	Domain     uint32
	Size       uint64
	Offset     uint64
	MapHandle  uint64
	TileMode   uint32
	TileFlags  uint32
}

const (
	sizeofGemNew     = unsafe.Sizeof(gemNew{})
	sizeofGemCPUPrep = unsafe.Sizeof(gemCPUPrep{})
	sizeofGemCPUFini = unsafe.Sizeof(gemCPUFini{})
	sizeofGemInfo    = unsafe.Sizeof(gemInfo{})
)

var (
	iocGemNew     = ioctlnum.IOWR(drmIOCType, cmdGemNew, sizeofGemNew)
	iocGemCPUPrep = ioctlnum.IOWR(drmIOCType, cmdGemCPUPrep, sizeofGemCPUPrep)
	iocGemCPUFini = ioctlnum.IOWR(drmIOCType, cmdGemCPUFini, sizeofGemCPUFini)
	iocGemInfo    = ioctlnum.IOWR(drmIOCType, cmdGemInfo, sizeofGemInfo)
)

// NOUVEAU_GEM_DOMAIN_VRAM / _GART, from <drm/nouveau_drm.h>.
const (
	domainVRAM uint32 = 1 << 1
	domainGART uint32 = 1 << 2
)

// gemCPUPrepWrite requests write access in the CPU-prep flags.
const gemCPUPrepWrite uint32 = 1 << 0
