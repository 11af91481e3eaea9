package plane

import (
	"errors"
	"testing"

	"github.com/gralloc/drm/bo"
	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
	"github.com/gralloc/drm/internal/drmfd"
)

var errSetPlane = errors.New("setplane failed")

type fakeSetter struct {
	calls  int
	lastFB uint32
	fail   bool
}

func (f *fakeSetter) SetPlane(planeID, crtcID, fbID uint32, rect drmfd.SetPlaneRect) error {
	f.calls++
	f.lastFB = fbID
	if f.fail {
		return errSetPlane
	}
	return nil
}

func newTestManager() (*Manager, *int, *int) {
	attachCalls := 0
	releaseCalls := 0
	attach := func(b *bo.BO) error {
		attachCalls++
		b.FBID = 42
		return nil
	}
	release := func(b *bo.BO) {
		releaseCalls++
	}
	m := NewManager(nil, 1, 0, []uint32{10, 11}, []uint32{0b1, 0b1}, attach, release)
	m.fd = &fakeSetter{}
	return m, &attachCalls, &releaseCalls
}

func TestReserveRejectsEmptyPlaneMask(t *testing.T) {
	m, _, _ := newTestManager()
	h := &handle.Handle{}
	b := &bo.BO{Handle: h}
	if err := m.Reserve(h, b, 1, driver.Rect{}, driver.Rect{}); err != ErrInval {
		t.Fatalf("Reserve = %v, want ErrInval", err)
	}
}

func TestReserveClaimsMatchingSlot(t *testing.T) {
	m, _, _ := newTestManager()
	h := &handle.Handle{PlaneMask: 1 << 1} // bit 1 -> slot index 1
	b := &bo.BO{Handle: h}
	if err := m.Reserve(h, b, 7, driver.Rect{W: 100, H: 50}, driver.Rect{W: 100, H: 50}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !m.slots[1].active || m.slots[1].reservationID != 7 {
		t.Fatalf("slot 1 not reserved: %+v", m.slots[1])
	}
	if m.slots[0].active {
		t.Fatalf("slot 0 should remain inactive")
	}
}

func TestReserveFailsWhenNoSlotMatches(t *testing.T) {
	m, _, _ := newTestManager()
	h := &handle.Handle{PlaneMask: 1 << 5} // no slot at that bit
	b := &bo.BO{Handle: h}
	if err := m.Reserve(h, b, 1, driver.Rect{}, driver.Rect{}); err != ErrBusy {
		t.Fatalf("Reserve = %v, want ErrBusy", err)
	}
}

func TestSetHandleOnUnreservedSlotFails(t *testing.T) {
	m, _, _ := newTestManager()
	if err := m.SetHandle(99, &bo.BO{}); err != ErrNotReserved {
		t.Fatalf("SetHandle = %v, want ErrNotReserved", err)
	}
}

func TestCommitAttachesAndMarksClean(t *testing.T) {
	m, attachCalls, _ := newTestManager()
	h := &handle.Handle{PlaneMask: 1}
	b := &bo.BO{Handle: h}
	if err := m.Reserve(h, b, 1, driver.Rect{}, driver.Rect{}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	m.Commit()

	if *attachCalls != 1 {
		t.Fatalf("attachFB calls = %d, want 1", *attachCalls)
	}
	if m.slots[0].dirty {
		t.Fatalf("slot should be clean after commit")
	}
	if m.slots[0].prev != b {
		t.Fatalf("prev not tracked after commit")
	}
}

func TestDisableAllPushesFBZeroOnce(t *testing.T) {
	m, _, releaseCalls := newTestManager()
	h := &handle.Handle{PlaneMask: 1}
	b := &bo.BO{Handle: h}
	if err := m.Reserve(h, b, 1, driver.Rect{}, driver.Rect{}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	m.Commit()

	m.DisableAll()
	if !m.slots[0].dirty {
		t.Fatalf("slot should be dirty after DisableAll")
	}
	m.Commit()

	if *releaseCalls != 1 {
		t.Fatalf("release calls = %d, want 1", *releaseCalls)
	}
	if m.slots[0].dirty {
		t.Fatalf("slot should be clean after the disabling commit")
	}
	// One SetPlane for the first commit, then fb=0 to each of the two planes.
	setter := m.fd.(*fakeSetter)
	if setter.calls != 3 || setter.lastFB != 0 {
		t.Fatalf("SetPlane calls = %d (last fb %d), want 3 ending with fb 0", setter.calls, setter.lastFB)
	}

	// A further commit with nothing dirty must not push another SetPlane.
	m.Commit()
	if *releaseCalls != 1 {
		t.Fatalf("release calls after no-op commit = %d, want still 1", *releaseCalls)
	}
	if setter.calls != 3 {
		t.Fatalf("SetPlane calls after no-op commit = %d, want still 3", setter.calls)
	}
}

func TestCommitClearsPlaneMaskOnSetPlaneFailure(t *testing.T) {
	m, _, _ := newTestManager()
	m.fd.(*fakeSetter).fail = true

	h := &handle.Handle{PlaneMask: 1}
	b := &bo.BO{Handle: h}
	if err := m.Reserve(h, b, 1, driver.Rect{}, driver.Rect{}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	m.Commit()

	if h.PlaneMask != 0 {
		t.Fatalf("PlaneMask = %#x, want 0 after SetPlane failure", h.PlaneMask)
	}
	if m.slots[0].active {
		t.Fatalf("slot should be inactive after SetPlane failure")
	}
}
