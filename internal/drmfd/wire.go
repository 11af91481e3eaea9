package drmfd

import "unsafe"

// Wire structs below mirror the subset of <drm/drm.h> and
// <drm/drm_mode.h> kernel ioctl argument layouts this allocator needs.
// Field order and types match the kernel's 64-bit ABI (pointers and
// size_t-sized fields are uint64) so the byte layout Go produces is
// what the ioctl() syscall expects.

type version struct {
	Major, Minor, Patch int32
	NameLen             uint64
	Name                uint64 // char* (from unsafe.Pointer(&buf[0]))
	DateLen             uint64
	Date                uint64
	DescLen             uint64
	Desc                uint64
}

type auth struct {
	Magic uint32
}

type gemClose struct {
	Handle uint32
	Pad    uint32
}

type gemFlink struct {
	Handle uint32
	Name   uint32
}

type gemOpen struct {
	Name   uint32
	Handle uint32
	Size   uint64
}

type cardRes struct {
	FBIDPtr       uint64
	CrtcIDPtr     uint64
	ConnectorIDPtr uint64
	EncoderIDPtr  uint64
	CountFBs      uint32
	CountCrtcs    uint32
	CountConnectors uint32
	CountEncoders uint32
	MinWidth, MaxWidth   uint32
	MinHeight, MaxHeight uint32
}

// ModeInfo is the kernel's drm_mode_modeinfo: a single display timing.
type ModeInfo struct {
	Clock                                  uint32
	HDisplay, HSyncStart, HSyncEnd, HTotal, HSkew uint16
	VDisplay, VSyncStart, VSyncEnd, VTotal, VScan uint16
	VRefresh                                uint32
	Flags                                   uint32
	Type                                    uint32
	Name                                    [32]byte
}

type modeCRTC struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FbID             uint32
	X, Y             uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             ModeInfo
}

type modeGetEncoder struct {
	EncoderID     uint32
	EncoderType   uint32
	CrtcID        uint32
	PossibleCrtcs uint32
	PossibleClones uint32
}

type modeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MMWidth         uint32
	MMHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

type createDumb struct {
	Height, Width uint32
	BPP           uint32
	Flags         uint32
	Handle        uint32
	Pitch         uint32
	Size          uint64
}

type mapDumb struct {
	Handle uint32
	Pad    uint32
	Offset uint64
}

type destroyDumb struct {
	Handle uint32
}

type addFB2 struct {
	FbID   uint32
	Width, Height uint32
	PixelFormat   uint32
	Flags         uint32
	Handles       [4]uint32
	Pitches       [4]uint32
	Offsets       [4]uint32
	Modifier      [4]uint64
}

type crtcPageFlip struct {
	CrtcID    uint32
	FbID      uint32
	Flags     uint32
	Reserved  uint32
	UserData  uint64
}

type fbDirty struct {
	FbID  uint32
	Flags uint32
	Color uint32
	NumClips uint32
	ClipsPtr uint64
}

type getPlaneRes struct {
	PlaneIDPtr uint64
	CountPlanes uint32
}

type getPlane struct {
	PlaneID        uint32
	CrtcID         uint32
	FbID           uint32
	PossibleCrtcs  uint32
	GammaSize      uint32
	CountFormatTypes uint32
	FormatTypePtr  uint64
}

type setPlane struct {
	PlaneID uint32
	CrtcID  uint32
	FbID    uint32
	Flags   uint32

	CrtcX, CrtcY           int32
	CrtcW, CrtcH           uint32

	// Source coordinates, in 16.16 fixed point.
	SrcX, SrcY, SrcW, SrcH uint32
}

// vblankRequest/vblankReply share the kernel's drm_wait_vblank union
// layout; this allocator only ever fills the "request" half and reads
// back into the same memory, matching libdrm's drmWaitVBlank usage.
type vblank struct {
	Type     uint32
	Sequence uint32
	Signal   uint64
}

const (
	sizeofVersion         = unsafe.Sizeof(version{})
	sizeofAuth            = unsafe.Sizeof(auth{})
	sizeofGemClose        = unsafe.Sizeof(gemClose{})
	sizeofGemFlink        = unsafe.Sizeof(gemFlink{})
	sizeofGemOpen         = unsafe.Sizeof(gemOpen{})
	sizeofCardRes         = unsafe.Sizeof(cardRes{})
	sizeofModeCRTC        = unsafe.Sizeof(modeCRTC{})
	sizeofModeGetEncoder  = unsafe.Sizeof(modeGetEncoder{})
	sizeofModeGetConnector = unsafe.Sizeof(modeGetConnector{})
	sizeofUint32          = unsafe.Sizeof(uint32(0))
	sizeofModePageFlip    = unsafe.Sizeof(crtcPageFlip{})
	sizeofModeFBDirty     = unsafe.Sizeof(fbDirty{})
	sizeofCreateDumb      = unsafe.Sizeof(createDumb{})
	sizeofMapDumb         = unsafe.Sizeof(mapDumb{})
	sizeofDestroyDumb     = unsafe.Sizeof(destroyDumb{})
	sizeofGetPlaneRes     = unsafe.Sizeof(getPlaneRes{})
	sizeofGetPlane        = unsafe.Sizeof(getPlane{})
	sizeofSetPlane        = unsafe.Sizeof(setPlane{})
	sizeofAddFB2          = unsafe.Sizeof(addFB2{})
	sizeofWaitVBlank      = unsafe.Sizeof(vblank{})
)
