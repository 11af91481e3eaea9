package bo_test

import (
	"errors"
	"testing"

	"github.com/gralloc/drm/bo"
	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
)

type fakeBackend struct {
	nextName  uint32
	nextGEM   uint32
	freed     []uint32
	mapCalls  int
	unmapCalls int
}

func (f *fakeBackend) Name() string { return "fake" }
func (f *fakeBackend) Destroy()     {}
func (f *fakeBackend) InitKMSFeatures() (driver.KMSFeatures, error) {
	return driver.KMSFeatures{SwapMode: driver.SwapFlip}, nil
}

func (f *fakeBackend) Alloc(h *handle.Handle) (*driver.Allocation, error) {
	if h.GlobalName != 0 {
		// Import path: attach to the existing object.
		return &driver.Allocation{GEMHandle: h.GlobalName, Stride: h.Stride}, nil
	}
	f.nextGEM++
	f.nextName++
	h.GlobalName = f.nextName
	h.Stride = h.Width * 4
	return &driver.Allocation{GEMHandle: f.nextGEM, Stride: h.Stride}, nil
}

func (f *fakeBackend) Free(a *driver.Allocation) error {
	f.freed = append(f.freed, a.GEMHandle)
	return nil
}

func (f *fakeBackend) Map(a *driver.Allocation, usage handle.Usage, r driver.Rect) ([]byte, error) {
	f.mapCalls++
	return make([]byte, 64), nil
}

func (f *fakeBackend) Unmap(a *driver.Allocation) error {
	f.unmapCalls++
	return nil
}

func (f *fakeBackend) Blit(dst *driver.Allocation, dstRect driver.Rect, src *driver.Allocation, srcRect driver.Rect) error {
	return nil
}

func newTestManager(pid int) (*bo.Manager, *fakeBackend) {
	fb := &fakeBackend{}
	return bo.NewManager(fb, func() int { return pid }), fb
}

func TestCreateThenValidateRoundTrips(t *testing.T) {
	mgr, _ := newTestManager(100)
	b, err := mgr.Create(1024, 768, handle.FormatBGRA8888, handle.UsageHWFB)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !b.Handle.Validate() {
		t.Fatalf("handle emitted by Create should validate")
	}
	if b.Handle.Owner != 100 {
		t.Fatalf("owner = %d, want 100", b.Handle.Owner)
	}

	got := mgr.Register(b.Handle, false)
	if got != b {
		t.Fatalf("Register on same-process handle should return the original BO")
	}
}

func TestCreateUnknownFormatFails(t *testing.T) {
	mgr, fb := newTestManager(1)
	_, err := mgr.Create(4, 4, handle.Format(0xDEAD), handle.UsageHWRender)
	if !errors.Is(err, driver.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if len(fb.freed) != 0 || fb.nextGEM != 0 {
		t.Fatalf("unknown format must have no side effects, got freed=%v nextGEM=%d", fb.freed, fb.nextGEM)
	}
}

func TestRegisterImportAcrossProcesses(t *testing.T) {
	mgrA, _ := newTestManager(1)
	bA, err := mgrA.Create(64, 64, handle.FormatRGBA8888, handle.UsageHWTexture)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Simulate handle transit: B gets a copy of the handle (same Local
	// and Owner bytes, as if shared over memory) but imports under its
	// own manager/process.
	shared := *bA.Handle
	mgrB, _ := newTestManager(2)

	bB := mgrB.Register(&shared, true)
	if bB == nil {
		t.Fatalf("Register should import a foreign handle with a global name")
	}
	if !bB.Imported {
		t.Fatalf("imported BO should be marked Imported")
	}
	if shared.Owner != 2 {
		t.Fatalf("owner after import = %d, want 2", shared.Owner)
	}

	if err := mgrB.Unregister(&shared); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if shared.Owner != 0 || shared.Local != 0 {
		t.Fatalf("unregister should clear owner/local, got owner=%d local=%d", shared.Owner, shared.Local)
	}
	// A's BO and handle are untouched by B's unregister.
	if bA.Handle.Owner != 1 {
		t.Fatalf("A's handle should be untouched, owner=%d", bA.Handle.Owner)
	}
}

func TestLockUnlockCount(t *testing.T) {
	mgr, fb := newTestManager(1)
	b, _ := mgr.Create(16, 16, handle.FormatRGBA8888, handle.UsageSWReadOften|handle.UsageHWRender)

	if _, err := mgr.Lock(b, handle.UsageSWReadOften, driver.Rect{W: 16, H: 16}); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, err := mgr.Lock(b, handle.UsageSWReadOften, driver.Rect{W: 16, H: 16}); err != nil {
		t.Fatalf("nested Lock: %v", err)
	}
	if b.LockCount() != 2 {
		t.Fatalf("lock count = %d, want 2", b.LockCount())
	}

	if err := mgr.Unlock(b); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := mgr.Unlock(b); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if b.LockCount() != 0 {
		t.Fatalf("lock count after matching unlocks = %d, want 0", b.LockCount())
	}
	if fb.mapCalls != 2 || fb.unmapCalls != 2 {
		t.Fatalf("expected 2 map/unmap calls for 2 sw locks, got map=%d unmap=%d", fb.mapCalls, fb.unmapCalls)
	}
}

func TestLockRejectsUngrantedUsage(t *testing.T) {
	mgr, _ := newTestManager(1)
	b, _ := mgr.Create(16, 16, handle.FormatRGBA8888, handle.UsageHWRender)

	if _, err := mgr.Lock(b, handle.UsageSWWriteOften, driver.Rect{}); !errors.Is(err, bo.ErrUsageNotGranted) {
		t.Fatalf("expected ErrUsageNotGranted, got %v", err)
	}
}

func TestLockAllowsUngrantedUsageOnFramebuffer(t *testing.T) {
	mgr, _ := newTestManager(1)
	b, _ := mgr.Create(16, 16, handle.FormatRGBA8888, handle.UsageHWFB)

	if _, err := mgr.Lock(b, handle.UsageSWWriteOften, driver.Rect{W: 16, H: 16}); err != nil {
		t.Fatalf("framebuffer lock loophole should allow any usage, got %v", err)
	}
}

func TestLockRejectsNonSubsetNestedUsage(t *testing.T) {
	mgr, _ := newTestManager(1)
	b, _ := mgr.Create(16, 16, handle.FormatRGBA8888, handle.UsageHWRender|handle.UsageHWTexture)

	if _, err := mgr.Lock(b, handle.UsageHWRender, driver.Rect{}); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, err := mgr.Lock(b, handle.UsageHWTexture, driver.Rect{}); !errors.Is(err, bo.ErrUsageNotSubset) {
		t.Fatalf("expected ErrUsageNotSubset, got %v", err)
	}
}

func TestRefcountDestroysAtOne(t *testing.T) {
	mgr, fb := newTestManager(1)
	b, _ := mgr.Create(8, 8, handle.FormatRGBA8888, handle.UsageHWRender)

	b.Ref() // refcount now 2
	if b.Deref() {
		t.Fatalf("Deref from 2 should not report destroy-ready")
	}
	if !b.Deref() {
		t.Fatalf("Deref from 1 should report destroy-ready")
	}
	if err := mgr.Destroy(b); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if len(fb.freed) != 1 {
		t.Fatalf("expected backend Free to be called once, got %v", fb.freed)
	}
}
