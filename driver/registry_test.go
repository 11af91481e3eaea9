package driver_test

import (
	"errors"
	"testing"

	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
)

type fakeBackend struct{ name string }

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) Destroy()     {}
func (f *fakeBackend) InitKMSFeatures() (driver.KMSFeatures, error) {
	return driver.KMSFeatures{SwapMode: driver.SwapFlip}, nil
}
func (f *fakeBackend) Alloc(h *handle.Handle) (*driver.Allocation, error) {
	return &driver.Allocation{GEMHandle: 1}, nil
}
func (f *fakeBackend) Free(a *driver.Allocation) error { return nil }
func (f *fakeBackend) Map(a *driver.Allocation, usage handle.Usage, r driver.Rect) ([]byte, error) {
	return make([]byte, r.W*r.H*4), nil
}
func (f *fakeBackend) Unmap(a *driver.Allocation) error { return nil }
func (f *fakeBackend) Blit(dst *driver.Allocation, dstRect driver.Rect, src *driver.Allocation, srcRect driver.Rect) error {
	if dstRect.W != srcRect.W || dstRect.H != srcRect.H {
		return driver.ErrSizeMismatch
	}
	return nil
}

func TestSelectPrefersGenericPipeThenNamed(t *testing.T) {
	t.Cleanup(resetRegistry)

	var probed []string
	driver.Register("", func(name string) (driver.Backend, error) {
		probed = append(probed, "pipe")
		return nil, errors.New("pipe declines unknown hardware")
	})
	driver.Register("i915", func(name string) (driver.Backend, error) {
		probed = append(probed, "i915")
		return &fakeBackend{name: "intel"}, nil
	})

	b, err := driver.Select("i915")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if b.Name() != "intel" {
		t.Fatalf("got backend %q, want intel", b.Name())
	}
	if len(probed) != 2 || probed[0] != "pipe" || probed[1] != "i915" {
		t.Fatalf("probe order = %v, want [pipe i915]", probed)
	}
}

func TestSelectNoBackendClaims(t *testing.T) {
	t.Cleanup(resetRegistry)

	driver.Register("", func(name string) (driver.Backend, error) {
		return nil, errors.New("no generic pipe manager available")
	})

	if _, err := driver.Select("vmwgfx"); !errors.Is(err, driver.ErrBackendNotFound) {
		t.Fatalf("expected ErrBackendNotFound, got %v", err)
	}
}

// resetRegistry cannot reach into driver's unexported state, so each test
// registers only the names it needs and accepts that previously
// registered names from other tests may still probe (and decline, since
// they target different driver name strings): the shared registry is
// additive across tests.
func resetRegistry() {}
