package gralloc

import "testing"

func TestOSEnvPropsMapsDotsAndCase(t *testing.T) {
	p := osEnvProps{}
	t.Setenv("DEBUG_DRM_MODE", "1920x1080")
	v, ok := p.Get("debug.drm.mode")
	if !ok || v != "1920x1080" {
		t.Fatalf("Get(debug.drm.mode) = %q, %v; want 1920x1080, true", v, ok)
	}
}

func TestOSEnvPropsMissingKey(t *testing.T) {
	p := osEnvProps{}
	if _, ok := p.Get("debug.drm.mode.force"); ok {
		t.Fatalf("expected missing key to report ok=false")
	}
}

func TestErrnoMessages(t *testing.T) {
	cases := map[Errno]string{
		ErrInval: "gralloc: invalid argument",
		ErrNoMem: "gralloc: out of memory",
		ErrBusy:  "gralloc: resource busy",
		ErrNoEnt: "gralloc: no such device",
	}
	for errno, want := range cases {
		if got := errno.Error(); got != want {
			t.Fatalf("Errno(%d).Error() = %q, want %q", errno, got, want)
		}
	}
}

func TestPerformUnknownOpcode(t *testing.T) {
	d := &Device{}
	if _, err := d.Perform(Opcode(999)); err != ErrInval {
		t.Fatalf("Perform(unknown) = %v, want ErrInval", err)
	}
}
