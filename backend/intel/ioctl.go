package intel

import "github.com/gralloc/drm/internal/ioctlnum"

// i915 vendor ioctls live above DRM_COMMAND_BASE, per <drm/i915_drm.h>.
const (
	drmIOCType       = 0x64
	commandBase      = 0x40
	cmdGetParam      = commandBase + 0x06
	cmdGemCreate     = commandBase + 0x1b
	cmdGemMmap       = commandBase + 0x1e
	cmdGemSetDomain  = commandBase + 0x1f
	cmdGemSetTiling  = commandBase + 0x21
	cmdGemGetTiling  = commandBase + 0x22
	cmdGemExecbuffer2 = commandBase + 0x29
)

var (
	iocGetParam      = ioctlnum.IOWR(drmIOCType, cmdGetParam, sizeofGetParam)
	iocGemCreate     = ioctlnum.IOWR(drmIOCType, cmdGemCreate, sizeofGemCreate)
	iocGemMmap       = ioctlnum.IOWR(drmIOCType, cmdGemMmap, sizeofGemMmap)
	iocGemSetDomain  = ioctlnum.IOWR(drmIOCType, cmdGemSetDomain, sizeofGemSetDomain)
	iocGemSetTiling  = ioctlnum.IOWR(drmIOCType, cmdGemSetTiling, sizeofGemSetTiling)
	iocGemGetTiling  = ioctlnum.IOWR(drmIOCType, cmdGemGetTiling, sizeofGemGetTiling)
	iocGemExecbuffer2 = ioctlnum.IOW(drmIOCType, cmdGemExecbuffer2, sizeofExecbuffer2)
)

// I915_PARAM_CHIPSET_ID resolves the PCI device ID, which genFromChipsetID
// maps to a hardware generation. I915_PARAM_HAS_PAGEFLIPPING reports
// whether the kernel driver can schedule an atomic page flip at all.
const (
	paramChipsetID       = 4
	paramHasPageflipping = 19
)
