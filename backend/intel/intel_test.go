package intel

import (
	"testing"

	"github.com/gralloc/drm/handle"
)

func TestComputeLayoutFramebufferPrefersTiling(t *testing.T) {
	layout, err := ComputeLayout(6, 1920, 4, 0, true)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	if !layout.Tiled {
		t.Fatalf("expected a framebuffer to tile, got linear stride %d", layout.Stride)
	}
	wantStride := alignWidth64(1920) * 4
	if layout.Stride != wantStride {
		t.Fatalf("stride = %d, want %d", layout.Stride, wantStride)
	}
}

func TestComputeLayoutTextureBelowTileThreshold(t *testing.T) {
	layout, err := ComputeLayout(6, 32, 4, 0, false)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	if layout.Tiled {
		t.Fatalf("a 32px-wide texture should stay linear, got tiled")
	}
	if layout.Stride != 32*4 {
		t.Fatalf("stride = %d, want %d", layout.Stride, 32*4)
	}
}

func TestComputeLayoutForcesLinearForSWAccess(t *testing.T) {
	layout, err := ComputeLayout(6, 1920, 4, handle.UsageSWWriteOften, true)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	if layout.Tiled {
		t.Fatalf("frequent SW write usage must force linear")
	}
	if layout.Stride != 1920*4 {
		t.Fatalf("stride = %d, want %d", layout.Stride, 1920*4)
	}
}

func TestComputeLayoutFallsBackToLinearWhenTooWide(t *testing.T) {
	// gen 3's max tiled stride is 8KiB. At width 2730 the 64px-aligned
	// tiled stride (2752*3 = 8256B) just crosses that limit, but the
	// unaligned linear stride (2730*3 = 8190B) still fits.
	layout, err := ComputeLayout(3, 2730, 3, 0, true)
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	if layout.Tiled {
		t.Fatalf("expected linear fallback, got tiled")
	}
	if layout.Stride != 2730*3 {
		t.Fatalf("stride = %d, want %d", layout.Stride, 2730*3)
	}
}

func TestComputeLayoutFailsWhenEvenLinearTooWide(t *testing.T) {
	_, err := ComputeLayout(2, 1<<20, 4, 0, true)
	if err != ErrStrideTooWide {
		t.Fatalf("err = %v, want ErrStrideTooWide", err)
	}
}

func TestMaxStrideHalvesPerGenerationBelowFive(t *testing.T) {
	cases := []struct {
		gen  int
		want uint32
	}{
		{gen: 5, want: 32 * 1024},
		{gen: 6, want: 32 * 1024},
		{gen: 4, want: 16 * 1024},
		{gen: 3, want: 8 * 1024},
		{gen: 2, want: 4 * 1024},
	}
	for _, c := range cases {
		if got := maxStride(c.gen); got != c.want {
			t.Errorf("maxStride(%d) = %d, want %d", c.gen, got, c.want)
		}
	}
}

func TestSelectSwapMode(t *testing.T) {
	cases := []struct {
		gen     int
		hasFlip bool
		want    string
	}{
		{gen: 6, hasFlip: true, want: "flip"},
		{gen: 3, hasFlip: true, want: "copy"},
		{gen: 3, hasFlip: false, want: "copy"},
		{gen: 2, hasFlip: true, want: "setcrtc"},
		{gen: 6, hasFlip: false, want: "setcrtc"},
	}
	for _, c := range cases {
		if got := selectSwapMode(c.gen, c.hasFlip).String(); got != c.want {
			t.Errorf("selectSwapMode(%d, %v) = %s, want %s", c.gen, c.hasFlip, got, c.want)
		}
	}
}

func TestTilePitchShift(t *testing.T) {
	if tilePitchShift(3) != 0 {
		t.Fatalf("gen 3 should have no pitch shift")
	}
	if tilePitchShift(4) != 2 {
		t.Fatalf("gen 4 should shift pitch by 2")
	}
}

func TestGenFromChipsetIDBuckets(t *testing.T) {
	cases := []struct {
		id   int32
		want int
	}{
		{id: 0, want: 3},
		{id: 0x2562, want: 2},
		{id: 0x2592, want: 3},
		{id: 0x0042, want: 5},
		{id: 0x0102, want: 6},
		{id: 0x0152, want: 7},
		{id: 0x1612, want: 8},
	}
	for _, c := range cases {
		if got := genFromChipsetID(c.id); got != c.want {
			t.Errorf("genFromChipsetID(0x%x) = %d, want %d", c.id, got, c.want)
		}
	}
}
