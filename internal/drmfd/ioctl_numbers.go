package drmfd

import "github.com/gralloc/drm/internal/ioctlnum"

// DRM core ioctl command numbers, from <drm/drm.h>. Only the subset this
// allocator issues is declared; vendor ioctls live alongside their backend.
var (
	cmdVersion    = iowr(0x00, sizeofVersion)
	cmdGetMagic   = ior(0x02, sizeofAuth)
	cmdAuthMagic  = iow(0x11, sizeofAuth)
	cmdSetMaster  = ioctlIO(0x1e)
	cmdDropMaster = ioctlIO(0x1f)

	cmdGemClose = iow(0x09, sizeofGemClose)
	cmdGemFlink = iowr(0x0a, sizeofGemFlink)
	cmdGemOpen  = iowr(0x0b, sizeofGemOpen)

	cmdModeGetResources     = iowr(0xA0, sizeofCardRes)
	cmdModeGetCRTC          = iowr(0xA1, sizeofModeCRTC)
	cmdModeSetCRTC          = iowr(0xA2, sizeofModeCRTC)
	cmdModeGetEncoder       = iowr(0xA6, sizeofModeGetEncoder)
	cmdModeGetConnector     = iowr(0xA7, sizeofModeGetConnector)
	cmdModeRmFB             = iowr(0xAF, sizeofUint32)
	cmdModePageFlip         = iowr(0xB0, sizeofModePageFlip)
	cmdModeDirtyFB          = iowr(0xB1, sizeofModeFBDirty)
	cmdModeCreateDumb       = iowr(0xB2, sizeofCreateDumb)
	cmdModeMapDumb          = iowr(0xB3, sizeofMapDumb)
	cmdModeDestroyDumb      = iowr(0xB4, sizeofDestroyDumb)
	cmdModeGetPlaneResources = iowr(0xB5, sizeofGetPlaneRes)
	cmdModeGetPlane         = iowr(0xB6, sizeofGetPlane)
	cmdModeSetPlane         = iowr(0xB7, sizeofSetPlane)
	cmdModeAddFB2           = iowr(0xB8, sizeofAddFB2)

	cmdWaitVBlank = iowr(0x3a, sizeofWaitVBlank)
)

func ioctlIO(nr uintptr) uintptr { return ioctlnum.IO(drmIOCType, nr) }
