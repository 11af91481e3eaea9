package kms

import (
	"testing"

	"github.com/gralloc/drm/bo"
	"github.com/gralloc/drm/handle"
	"github.com/gralloc/drm/internal/drmfd"
)

type fakeProps map[string]string

func (f fakeProps) Get(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

func TestSelectConnectorPrefersLVDS(t *testing.T) {
	conns := []drmfd.Connector{
		{ID: 1, Type: connectorHDMIA, Connected: true, Modes: []drmfd.ModeInfo{{}}},
		{ID: 2, Type: connectorLVDS, Connected: true, Modes: []drmfd.ModeInfo{{}}},
	}
	c, ok := SelectConnector(conns)
	if !ok || c.ID != 2 {
		t.Fatalf("SelectConnector = %+v, %v; want LVDS connector 2", c, ok)
	}
}

func TestSelectConnectorFallsBackToFirstConnected(t *testing.T) {
	conns := []drmfd.Connector{
		{ID: 1, Type: connectorHDMIA, Connected: false, Modes: []drmfd.ModeInfo{{}}},
		{ID: 2, Type: connectorHDMIA, Connected: true, Modes: []drmfd.ModeInfo{{}}},
	}
	c, ok := SelectConnector(conns)
	if !ok || c.ID != 2 {
		t.Fatalf("SelectConnector = %+v, %v; want connector 2", c, ok)
	}
}

func TestSelectConnectorNoneConnected(t *testing.T) {
	conns := []drmfd.Connector{{ID: 1, Connected: false}}
	if _, ok := SelectConnector(conns); ok {
		t.Fatalf("expected no connector selected")
	}
}

func TestSelectModePreferredWins(t *testing.T) {
	modes := []drmfd.ModeInfo{
		{HDisplay: 800, VDisplay: 600},
		{HDisplay: 1920, VDisplay: 1080, Type: modeTypePreferred},
	}
	m, format, err := SelectMode(modes, fakeProps{})
	if err != nil {
		t.Fatalf("SelectMode: %v", err)
	}
	if m.HDisplay != 1920 || m.VDisplay != 1080 {
		t.Fatalf("SelectMode = %+v, want preferred 1920x1080", m)
	}
	if format != handle.FormatBGRA8888 {
		t.Fatalf("format = %v, want BGRA8888 default", format)
	}
}

func TestSelectModeDebugOverrideNearest(t *testing.T) {
	modes := []drmfd.ModeInfo{
		{HDisplay: 800, VDisplay: 600},
		{HDisplay: 1920, VDisplay: 1080, Type: modeTypePreferred},
		{HDisplay: 1024, VDisplay: 768},
	}
	m, format, err := SelectMode(modes, fakeProps{"debug.drm.mode": "1000x700@16"})
	if err != nil {
		t.Fatalf("SelectMode: %v", err)
	}
	if m.HDisplay != 1024 || m.VDisplay != 768 {
		t.Fatalf("SelectMode = %+v, want nearest 1024x768", m)
	}
	if format != handle.FormatRGB565 {
		t.Fatalf("format = %v, want RGB565 from @16", format)
	}
}

func TestSelectModeForceSynthesizesCVT(t *testing.T) {
	m, _, err := SelectMode(nil, fakeProps{})
	if err == nil {
		t.Fatalf("expected error for empty mode list")
	}

	modes := []drmfd.ModeInfo{{HDisplay: 640, VDisplay: 480}}
	m, _, err = SelectMode(modes, fakeProps{"debug.drm.mode.force": "1280x720"})
	if err != nil {
		t.Fatalf("SelectMode: %v", err)
	}
	if m.HDisplay != 1280 || m.VDisplay != 720 {
		t.Fatalf("SelectMode = %+v, want synthesized 1280x720", m)
	}
}

func TestSelectCRTCSkipsClaimed(t *testing.T) {
	crtcs := []uint32{10, 11, 12}
	claimed := map[uint32]bool{10: true}
	id, idx, ok := SelectCRTC(crtcs, 0b111, claimed)
	if !ok || id != 11 || idx != 1 {
		t.Fatalf("SelectCRTC = %d, %d, %v; want 11, 1, true", id, idx, ok)
	}
}

func TestSelectCRTCHonorsPossibleMask(t *testing.T) {
	crtcs := []uint32{10, 11}
	id, _, ok := SelectCRTC(crtcs, 0b10, nil)
	if !ok || id != 11 {
		t.Fatalf("SelectCRTC = %d, %v; want 11, true", id, ok)
	}
}

func TestVblankTargetSubtractsOneForFlip(t *testing.T) {
	if got := vblankTarget(100, 2, true); got != 101 {
		t.Fatalf("vblankTarget(flip) = %d, want 101", got)
	}
	if got := vblankTarget(100, 2, false); got != 102 {
		t.Fatalf("vblankTarget(noflip) = %d, want 102", got)
	}
}

func TestCenteredRectClampsToSource(t *testing.T) {
	b := &bo.BO{Handle: &handle.Handle{Width: 1920, Height: 1080}}
	mode := drmfd.ModeInfo{HDisplay: 800, VDisplay: 600}
	r := centeredRect(b, mode)
	if r.W != 800 || r.H != 600 {
		t.Fatalf("centeredRect = %+v, want clamped to 800x600", r)
	}
	if r.X != 0 || r.Y != 0 {
		t.Fatalf("centeredRect offset = %+v, want 0,0 when source exceeds mode", r)
	}
}

func TestCenteredRectCentersSmallerSource(t *testing.T) {
	b := &bo.BO{Handle: &handle.Handle{Width: 640, Height: 480}}
	mode := drmfd.ModeInfo{HDisplay: 1920, VDisplay: 1080}
	r := centeredRect(b, mode)
	if r.W != 640 || r.H != 480 {
		t.Fatalf("centeredRect = %+v, want 640x480", r)
	}
	if r.X != (1920-640)/2 || r.Y != (1080-480)/2 {
		t.Fatalf("centeredRect not centered: %+v", r)
	}
}

func TestSwWritable(t *testing.T) {
	b := &bo.BO{Handle: &handle.Handle{Usage: handle.UsageSWWriteOften}}
	if !swWritable(b) {
		t.Fatalf("expected swWritable true")
	}
	b2 := &bo.BO{Handle: &handle.Handle{Usage: handle.UsageHWRender}}
	if swWritable(b2) {
		t.Fatalf("expected swWritable false")
	}
	if swWritable(nil) {
		t.Fatalf("expected swWritable false for nil")
	}
}
