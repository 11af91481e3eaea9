// Package cvt synthesizes a VESA-CVT-style mode timing for a resolution
// and refresh rate the kernel didn't already offer, for the
// debug.drm.mode.force path.
package cvt

import "math"

// Blanking-formula constants, named after the VESA CVT spec's own
// symbols (gradient M, offset C, and the scaling factors K and J that
// produce the blanking duty cycle's C' and M' terms).
const (
	cellGran        = 8.0  // assumed character cell granularity, in pixels
	minPorch        = 1.0  // minimum front porch, in lines
	vSyncWidth      = 3.0  // vsync width, in lines
	hSyncPercent    = 8.0  // hsync width as a percentage of total line time
	minVSyncPlusBP  = 550.0 // minimum vsync + back porch, in microseconds
	gradientM       = 600.0
	offsetC         = 40.0
	scaleK          = 128.0
	scaleJ          = 20.0
)

var (
	cPrime = (offsetC-scaleJ)*scaleK/256.0 + scaleJ
	mPrime = scaleK / 256.0 * gradientM
)

// Mode is the synthesized timing, in the same units drm_mode_modeinfo
// uses: Clock in kHz, all others in pixels or lines.
type Mode struct {
	Clock      uint32
	HDisplay   uint16
	HSyncStart uint16
	HSyncEnd   uint16
	HTotal     uint16
	VDisplay   uint16
	VSyncStart uint16
	VSyncEnd   uint16
	VTotal     uint16
	Refresh    uint32
}

// Generate synthesizes a timing for an hPixels × vLines mode at freq Hz,
// following the reduced (no margins, non-interlaced) CVT algorithm.
func Generate(hPixels, vLines int, freq float64) Mode {
	hPixelsRnd := math.Round(float64(hPixels)/cellGran) * cellGran
	vLinesRnd := math.Round(float64(vLines))

	hPeriodEst := ((1.0/freq - minVSyncPlusBP/1e6) / (vLinesRnd + minPorch)) * 1e6
	vSyncPlusBP := math.Round(minVSyncPlusBP / hPeriodEst)
	totalVLines := vLinesRnd + vSyncPlusBP + minPorch
	vFieldRateEst := 1.0 / hPeriodEst / totalVLines * 1e6
	hPeriod := hPeriodEst / (freq / vFieldRateEst)

	idealDutyCycle := cPrime - mPrime*hPeriod/1000.0
	hBlank := math.Round(hPixelsRnd*idealDutyCycle/(100.0-idealDutyCycle)/(2.0*cellGran)) * (2.0 * cellGran)
	totalPixels := hPixelsRnd + hBlank
	pixelFreq := totalPixels / hPeriod

	hSync := math.Round(hSyncPercent/100.0*totalPixels/cellGran) * cellGran
	hFrontPorch := hBlank/2.0 - hSync
	vOddFrontPorch := minPorch

	return Mode{
		Clock:      uint32(math.Ceil(pixelFreq)) * 1000,
		HDisplay:   uint16(hPixelsRnd),
		HSyncStart: uint16(hPixelsRnd + hFrontPorch),
		HSyncEnd:   uint16(hPixelsRnd + hFrontPorch + hSync),
		HTotal:     uint16(totalPixels),
		VDisplay:   uint16(vLinesRnd),
		VSyncStart: uint16(vLinesRnd + vOddFrontPorch),
		VSyncEnd:   uint16(vLinesRnd + vOddFrontPorch + vSyncWidth),
		VTotal:     uint16(totalVLines),
		Refresh:    uint32(freq),
	}
}
