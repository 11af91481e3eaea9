package radeon

import "github.com/gralloc/drm/internal/ioctlnum"

// Radeon vendor ioctls live above DRM_COMMAND_BASE, per <drm/radeon_drm.h>.
const (
	drmIOCType          = 0x64
	commandBase         = 0x40
	cmdInfo             = commandBase + 0x27
	cmdGemCreate        = commandBase + 0x1d
	cmdGemMmap          = commandBase + 0x1e
	cmdGemSetDomain     = commandBase + 0x1f
	cmdGemSetTiling     = commandBase + 0x28
	cmdGemGetTiling     = commandBase + 0x29
)

var (
	iocInfo         = ioctlnum.IOWR(drmIOCType, cmdInfo, sizeofRadeonInfo)
	iocGemCreate    = ioctlnum.IOWR(drmIOCType, cmdGemCreate, sizeofGemCreate)
	iocGemMmap      = ioctlnum.IOWR(drmIOCType, cmdGemMmap, sizeofGemMmap)
	iocGemSetDomain = ioctlnum.IOWR(drmIOCType, cmdGemSetDomain, sizeofGemSetDomain)
	iocGemSetTiling = ioctlnum.IOWR(drmIOCType, cmdGemSetTiling, sizeofGemSetTiling)
	iocGemGetTiling = ioctlnum.IOWR(drmIOCType, cmdGemGetTiling, sizeofGemGetTiling)
)

// RADEON_INFO_* request codes, from <drm/radeon_drm.h>.
const (
	infoDeviceID     uint32 = 0x00
	infoTilingConfig uint32 = 0x0e
)
