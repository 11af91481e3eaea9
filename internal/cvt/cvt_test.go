package cvt

import "testing"

func TestGenerateBasicShape(t *testing.T) {
	m := Generate(1920, 1080, 60)

	if m.HDisplay != 1920 {
		t.Fatalf("HDisplay = %d, want 1920", m.HDisplay)
	}
	if m.VDisplay != 1080 {
		t.Fatalf("VDisplay = %d, want 1080", m.VDisplay)
	}
	if m.Refresh != 60 {
		t.Fatalf("Refresh = %d, want 60", m.Refresh)
	}
	if m.HTotal <= m.HDisplay {
		t.Fatalf("HTotal %d must exceed HDisplay %d", m.HTotal, m.HDisplay)
	}
	if m.VTotal <= m.VDisplay {
		t.Fatalf("VTotal %d must exceed VDisplay %d", m.VTotal, m.VDisplay)
	}
	if m.HSyncStart <= m.HDisplay || m.HSyncEnd <= m.HSyncStart || m.HTotal <= m.HSyncEnd {
		t.Fatalf("hsync ordering violated: display=%d start=%d end=%d total=%d",
			m.HDisplay, m.HSyncStart, m.HSyncEnd, m.HTotal)
	}
	if m.VSyncStart < m.VDisplay || m.VSyncEnd <= m.VSyncStart || m.VTotal <= m.VSyncEnd {
		t.Fatalf("vsync ordering violated: display=%d start=%d end=%d total=%d",
			m.VDisplay, m.VSyncStart, m.VSyncEnd, m.VTotal)
	}
	if m.Clock == 0 {
		t.Fatalf("Clock must be nonzero")
	}
	// Pixel clock should roughly match htotal*vtotal*refresh within CVT's
	// rounding slop (a few percent, from cell-granularity rounding).
	want := float64(m.HTotal) * float64(m.VTotal) * 60.0 / 1000.0
	got := float64(m.Clock)
	if got < want*0.95 || got > want*1.05 {
		t.Fatalf("clock %v far from htotal*vtotal*refresh estimate %v", got, want)
	}
}

func TestHSyncWidthIsEightPercentOfTotal(t *testing.T) {
	m := Generate(1280, 720, 60)
	hSync := float64(m.HSyncEnd - m.HSyncStart)
	want := 0.08 * float64(m.HTotal)
	if hSync < want*0.5 || hSync > want*1.5 {
		t.Fatalf("hsync width %v not within range of 8%% of total %v", hSync, want)
	}
}

func TestVSyncWidthIsThreeLines(t *testing.T) {
	m := Generate(1024, 768, 60)
	if m.VSyncEnd-m.VSyncStart != 3 {
		t.Fatalf("vsync width = %d, want 3", m.VSyncEnd-m.VSyncStart)
	}
}
