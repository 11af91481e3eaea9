package drmfd

import "unsafe"

// Version is decoded driver identification: used by driver dispatch to
// pick a vendor backend ("i915", "radeon", "nouveau") by name.
type Version struct {
	Major, Minor, Patch int
	Name                string
}

// GetVersion issues DRM_IOCTL_VERSION twice: once to learn the string
// lengths, once to fill caller-allocated buffers, as libdrm's drmGetVersion
// does.
func (d *File) GetVersion() (Version, error) {
	var v version
	if err := d.Ioctl(cmdVersion, uintptr(unsafe.Pointer(&v))); err != nil {
		return Version{}, err
	}
	if v.NameLen == 0 {
		return Version{Major: int(v.Major), Minor: int(v.Minor), Patch: int(v.Patch)}, nil
	}

	name := make([]byte, v.NameLen)
	v.Name = uint64(uintptr(unsafe.Pointer(&name[0])))
	if err := d.Ioctl(cmdVersion, uintptr(unsafe.Pointer(&v))); err != nil {
		return Version{}, err
	}
	return Version{Major: int(v.Major), Minor: int(v.Minor), Patch: int(v.Patch), Name: string(name)}, nil
}

// GetMagic returns an auth token identifying this fd, for a client to hand
// to the display server it wants to become authenticated against.
func (d *File) GetMagic() (uint32, error) {
	var a auth
	if err := d.Ioctl(cmdGetMagic, uintptr(unsafe.Pointer(&a))); err != nil {
		return 0, err
	}
	return a.Magic, nil
}

// AuthMagic authenticates a client-presented magic, granting it access to
// buffers created on the master fd.
func (d *File) AuthMagic(magic uint32) error {
	a := auth{Magic: magic}
	return d.Ioctl(cmdAuthMagic, uintptr(unsafe.Pointer(&a)))
}

// SetMaster acquires DRM master status (required before any modeset
// ioctl); corresponds to the module glue's ENTER_VT opcode.
func (d *File) SetMaster() error { return d.Ioctl(cmdSetMaster, 0) }

// DropMaster releases DRM master status; the LEAVE_VT opcode.
func (d *File) DropMaster() error { return d.Ioctl(cmdDropMaster, 0) }

// GemFlink exports a GEM handle under a process-global integer name that
// another process can open by name.
func (d *File) GemFlink(gemHandle uint32) (name uint32, err error) {
	f := gemFlink{Handle: gemHandle}
	if err = d.Ioctl(cmdGemFlink, uintptr(unsafe.Pointer(&f))); err != nil {
		return 0, err
	}
	return f.Name, nil
}

// GemOpen opens a previously-flinked name, returning the local GEM handle
// and the object's size.
func (d *File) GemOpen(name uint32) (gemHandle uint32, size uint64, err error) {
	o := gemOpen{Name: name}
	if err = d.Ioctl(cmdGemOpen, uintptr(unsafe.Pointer(&o))); err != nil {
		return 0, 0, err
	}
	return o.Handle, o.Size, nil
}

// GemClose releases a local GEM handle reference.
func (d *File) GemClose(gemHandle uint32) error {
	c := gemClose{Handle: gemHandle}
	return d.Ioctl(cmdGemClose, uintptr(unsafe.Pointer(&c)))
}

// CreateDumb allocates a generic, non-tiled "dumb" buffer: the fallback
// path the pipe backend uses, and the scratch buffer every backend can
// fall back to for a linear front buffer.
func (d *File) CreateDumb(width, height, bpp uint32) (gemHandle, pitch uint32, size uint64, err error) {
	c := createDumb{Width: width, Height: height, BPP: bpp}
	if err = d.Ioctl(cmdModeCreateDumb, uintptr(unsafe.Pointer(&c))); err != nil {
		return 0, 0, 0, err
	}
	return c.Handle, c.Pitch, c.Size, nil
}

// MapDumbOffset returns the fake-mmap-offset for a dumb buffer, to be
// passed to unix.Mmap(fd, offset, ...).
func (d *File) MapDumbOffset(gemHandle uint32) (uint64, error) {
	m := mapDumb{Handle: gemHandle}
	if err := d.Ioctl(cmdModeMapDumb, uintptr(unsafe.Pointer(&m))); err != nil {
		return 0, err
	}
	return m.Offset, nil
}

// DestroyDumb frees a dumb buffer's backing storage.
func (d *File) DestroyDumb(gemHandle uint32) error {
	x := destroyDumb{Handle: gemHandle}
	return d.Ioctl(cmdModeDestroyDumb, uintptr(unsafe.Pointer(&x)))
}

// CardResources lists resource object IDs. Counts are read first; the
// caller-sized arrays are then filled in a second ioctl, matching
// libdrm's two-pass resource query.
type CardResources struct {
	FBs, CRTCs, Connectors, Encoders []uint32
	MinWidth, MaxWidth               uint32
	MinHeight, MaxHeight             uint32
}

func (d *File) GetResources() (CardResources, error) {
	var r cardRes
	if err := d.Ioctl(cmdModeGetResources, uintptr(unsafe.Pointer(&r))); err != nil {
		return CardResources{}, err
	}

	fbs := make([]uint32, r.CountFBs)
	crtcs := make([]uint32, r.CountCrtcs)
	conns := make([]uint32, r.CountConnectors)
	encs := make([]uint32, r.CountEncoders)
	if len(fbs) > 0 {
		r.FBIDPtr = uint64(uintptr(unsafe.Pointer(&fbs[0])))
	}
	if len(crtcs) > 0 {
		r.CrtcIDPtr = uint64(uintptr(unsafe.Pointer(&crtcs[0])))
	}
	if len(conns) > 0 {
		r.ConnectorIDPtr = uint64(uintptr(unsafe.Pointer(&conns[0])))
	}
	if len(encs) > 0 {
		r.EncoderIDPtr = uint64(uintptr(unsafe.Pointer(&encs[0])))
	}
	if err := d.Ioctl(cmdModeGetResources, uintptr(unsafe.Pointer(&r))); err != nil {
		return CardResources{}, err
	}

	return CardResources{
		FBs: fbs, CRTCs: crtcs, Connectors: conns, Encoders: encs,
		MinWidth: r.MinWidth, MaxWidth: r.MaxWidth,
		MinHeight: r.MinHeight, MaxHeight: r.MaxHeight,
	}, nil
}

// Connector mirrors the kernel's drm_mode_get_connector reply, with the
// per-mode timing list resolved.
type Connector struct {
	ID, Type, TypeID uint32
	Connected        bool
	EncoderID        uint32
	Encoders         []uint32
	Modes            []ModeInfo
	WidthMM, HeightMM uint32
}

const connectionConnected = 1

func (d *File) GetConnector(id uint32) (Connector, error) {
	c := modeGetConnector{ConnectorID: id}
	if err := d.Ioctl(cmdModeGetConnector, uintptr(unsafe.Pointer(&c))); err != nil {
		return Connector{}, err
	}

	modes := make([]ModeInfo, c.CountModes)
	encs := make([]uint32, c.CountEncoders)
	if len(modes) > 0 {
		c.ModesPtr = uint64(uintptr(unsafe.Pointer(&modes[0])))
	}
	if len(encs) > 0 {
		c.EncodersPtr = uint64(uintptr(unsafe.Pointer(&encs[0])))
	}
	c.CountProps = 0 // properties are not consumed by this allocator
	if err := d.Ioctl(cmdModeGetConnector, uintptr(unsafe.Pointer(&c))); err != nil {
		return Connector{}, err
	}

	return Connector{
		ID: c.ConnectorID, Type: c.ConnectorType, TypeID: c.ConnectorTypeID,
		Connected: c.Connection == connectionConnected,
		EncoderID: c.EncoderID, Encoders: encs, Modes: modes,
		WidthMM: c.MMWidth, HeightMM: c.MMHeight,
	}, nil
}

// Encoder mirrors drm_mode_get_encoder.
type Encoder struct {
	ID, Type, CrtcID, PossibleCrtcs, PossibleClones uint32
}

func (d *File) GetEncoder(id uint32) (Encoder, error) {
	e := modeGetEncoder{EncoderID: id}
	if err := d.Ioctl(cmdModeGetEncoder, uintptr(unsafe.Pointer(&e))); err != nil {
		return Encoder{}, err
	}
	return Encoder{ID: e.EncoderID, Type: e.EncoderType, CrtcID: e.CrtcID,
		PossibleCrtcs: e.PossibleCrtcs, PossibleClones: e.PossibleClones}, nil
}

// SetCRTC performs a full modeset: attach fbID to crtcID scanning out
// connectors at (x, y) with the given mode. A zero-valued mode with
// ModeValid=0 and nil connectors disables the CRTC.
func (d *File) SetCRTC(crtcID, fbID uint32, x, y uint32, mode *ModeInfo, connectorIDs []uint32) error {
	c := modeCRTC{CrtcID: crtcID, FbID: fbID, X: x, Y: y}
	if mode != nil {
		c.Mode = *mode
		c.ModeValid = 1
	}
	if len(connectorIDs) > 0 {
		c.SetConnectorsPtr = uint64(uintptr(unsafe.Pointer(&connectorIDs[0])))
		c.CountConnectors = uint32(len(connectorIDs))
	}
	return d.Ioctl(cmdModeSetCRTC, uintptr(unsafe.Pointer(&c)))
}

// AddFB2 attaches a (possibly multi-plane) framebuffer object to a set of
// GEM handles, pitches and offsets, returning the new fb ID.
func (d *File) AddFB2(width, height, pixelFormat uint32, handles, pitches, offsets [4]uint32) (uint32, error) {
	a := addFB2{Width: width, Height: height, PixelFormat: pixelFormat,
		Handles: handles, Pitches: pitches, Offsets: offsets}
	if err := d.Ioctl(cmdModeAddFB2, uintptr(unsafe.Pointer(&a))); err != nil {
		return 0, err
	}
	return a.FbID, nil
}

// RmFB detaches a framebuffer object.
func (d *File) RmFB(fbID uint32) error {
	id := fbID
	return d.Ioctl(cmdModeRmFB, uintptr(unsafe.Pointer(&id)))
}

// PageFlipFlags mirrors the kernel's DRM_MODE_PAGE_FLIP_* bits.
type PageFlipFlags uint32

const (
	PageFlipEvent PageFlipFlags = 1 << 0
	PageFlipAsync PageFlipFlags = 1 << 1
)

// PageFlip schedules an atomic scanout buffer swap on crtcID, optionally
// requesting a PAGE_FLIP_EVENT delivered on the next HandleEvent call.
func (d *File) PageFlip(crtcID, fbID uint32, flags PageFlipFlags, userData uint64) error {
	p := crtcPageFlip{CrtcID: crtcID, FbID: fbID, Flags: uint32(flags), UserData: userData}
	return d.Ioctl(cmdModePageFlip, uintptr(unsafe.Pointer(&p)))
}

// DirtyFB issues the vmwgfx MODE_DIRTYFB quirk call with no clip list
// (whole-surface dirty), used by the Steady/COPY post path.
func (d *File) DirtyFB(fbID uint32) error {
	fd := fbDirty{FbID: fbID}
	return d.Ioctl(cmdModeDirtyFB, uintptr(unsafe.Pointer(&fd)))
}

// GetPlaneResources lists overlay plane object IDs.
func (d *File) GetPlaneResources() ([]uint32, error) {
	var r getPlaneRes
	if err := d.Ioctl(cmdModeGetPlaneResources, uintptr(unsafe.Pointer(&r))); err != nil {
		return nil, err
	}
	ids := make([]uint32, r.CountPlanes)
	if len(ids) > 0 {
		r.PlaneIDPtr = uint64(uintptr(unsafe.Pointer(&ids[0])))
	}
	if err := d.Ioctl(cmdModeGetPlaneResources, uintptr(unsafe.Pointer(&r))); err != nil {
		return nil, err
	}
	return ids, nil
}

// Plane mirrors drm_mode_get_plane.
type Plane struct {
	ID, CrtcID, FbID, PossibleCrtcs uint32
}

func (d *File) GetPlane(id uint32) (Plane, error) {
	p := getPlane{PlaneID: id}
	if err := d.Ioctl(cmdModeGetPlane, uintptr(unsafe.Pointer(&p))); err != nil {
		return Plane{}, err
	}
	return Plane{ID: p.PlaneID, CrtcID: p.CrtcID, FbID: p.FbID, PossibleCrtcs: p.PossibleCrtcs}, nil
}

// SetPlaneRect bundles the fixed-point source rect and integer
// destination rect for SetPlane: source coordinates are 16.16
// fixed-point (source-space × 2^16), destination coordinates are plain
// integers.
type SetPlaneRect struct {
	CrtcX, CrtcY          int32
	CrtcW, CrtcH          uint32
	SrcX, SrcY, SrcW, SrcH uint32 // 16.16 fixed point
}

func (d *File) SetPlane(planeID, crtcID, fbID uint32, rect SetPlaneRect) error {
	p := setPlane{
		PlaneID: planeID, CrtcID: crtcID, FbID: fbID,
		CrtcX: rect.CrtcX, CrtcY: rect.CrtcY, CrtcW: rect.CrtcW, CrtcH: rect.CrtcH,
		SrcX: rect.SrcX, SrcY: rect.SrcY, SrcW: rect.SrcW, SrcH: rect.SrcH,
	}
	return d.Ioctl(cmdModeSetPlane, uintptr(unsafe.Pointer(&p)))
}

// VBlankRequestType mirrors the kernel's _DRM_VBLANK_* request bits.
type VBlankRequestType uint32

const (
	VBlankRelative  VBlankRequestType = 1 << 0
	VBlankAbsolute  VBlankRequestType = 0
	VBlankNextOnMiss VBlankRequestType = 1 << 25
)

// WaitVBlank issues WAIT_VBLANK and returns the resulting sequence number.
func (d *File) WaitVBlank(reqType VBlankRequestType, sequence uint32) (uint32, error) {
	v := vblank{Type: uint32(reqType), Sequence: sequence}
	if err := d.Ioctl(cmdWaitVBlank, uintptr(unsafe.Pointer(&v))); err != nil {
		return 0, err
	}
	return v.Sequence, nil
}
