// Package kms implements connector and mode selection, framebuffer-object
// attach, and the FirstPost/Steady post state machine that drives page
// flips, blit-copies and modesets.
package kms

import (
	"fmt"

	"github.com/gralloc/drm/handle"
	"github.com/gralloc/drm/internal/cvt"
	"github.com/gralloc/drm/internal/drmfd"
)

// Connector types this package cares about, from <drm/drm_mode.h>.
const (
	connectorLVDS  uint32 = 11
	connectorHDMIA uint32 = 13
)

// modeTypePreferred is DRM_MODE_TYPE_PREFERRED.
const modeTypePreferred uint32 = 1 << 3

// PropertyReader is the injectable source for the debug.drm.mode /
// debug.drm.mode.force configuration properties, so mode selection can
// be tested without a real property-service collaborator.
type PropertyReader interface {
	Get(key string) (value string, ok bool)
}

// SelectConnector implements connector preference: the
// first connected LVDS, else the first connected connector of any type.
func SelectConnector(conns []drmfd.Connector) (drmfd.Connector, bool) {
	var fallback drmfd.Connector
	haveFallback := false

	for _, c := range conns {
		if !c.Connected || len(c.Modes) == 0 {
			continue
		}
		if c.Type == connectorLVDS {
			return c, true
		}
		if !haveFallback {
			fallback = c
			haveFallback = true
		}
	}
	return fallback, haveFallback
}

// SelectMode implements mode policy: debug.drm.mode
// nearest-neighbor, else debug.drm.mode.force CVT synthesis, else the
// preferred mode, else the first mode. The returned Format is BGRA8888
// on every path except debug.drm.mode with a 16-bit depth, which returns
// RGB565.
func SelectMode(modes []drmfd.ModeInfo, props PropertyReader) (drmfd.ModeInfo, handle.Format, error) {
	if len(modes) == 0 {
		return drmfd.ModeInfo{}, handle.FormatUnknown, fmt.Errorf("kms: connector has no modes")
	}

	if v, ok := props.Get("debug.drm.mode"); ok {
		w, h, bpp, hasBPP := parseWxHAt(v)
		if w > 0 && h > 0 {
			m := nearestMode(modes, w, h)
			format := handle.FormatBGRA8888
			if hasBPP && bpp/8 == 2 {
				format = handle.FormatRGB565
			}
			return m, format, nil
		}
	}

	if v, ok := props.Get("debug.drm.mode.force"); ok {
		w, h, refresh, hasRefresh := parseWxHAt(v)
		if w > 0 && h > 0 {
			if !hasRefresh {
				refresh = 60
			}
			gen := cvt.Generate(w, h, float64(refresh))
			return cvtToModeInfo(gen), handle.FormatBGRA8888, nil
		}
	}

	for _, m := range modes {
		if m.Type&modeTypePreferred != 0 {
			return m, handle.FormatBGRA8888, nil
		}
	}
	return modes[0], handle.FormatBGRA8888, nil
}

// parseWxHAt parses "<w>x<h>[@<n>]", returning ok=false for the trailing
// @n component when it is absent, matching the original's sscanf
// fallback chain.
func parseWxHAt(s string) (w, h, n int, hasN bool) {
	if c, err := fmt.Sscanf(s, "%dx%d@%d", &w, &h, &n); err == nil && c == 3 {
		return w, h, n, true
	}
	if c, err := fmt.Sscanf(s, "%dx%d", &w, &h); err == nil && c == 2 {
		return w, h, 0, false
	}
	return 0, 0, 0, false
}

// nearestMode finds the mode minimizing (Δw² + Δh²) against the
// requested resolution.
func nearestMode(modes []drmfd.ModeInfo, w, h int) drmfd.ModeInfo {
	best := modes[0]
	bestDist := -1
	for _, m := range modes {
		dw := int(m.HDisplay) - w
		dh := int(m.VDisplay) - h
		dist := dw*dw + dh*dh
		if bestDist < 0 || dist < bestDist {
			best = m
			bestDist = dist
			if dist == 0 {
				break
			}
		}
	}
	return best
}

func cvtToModeInfo(m cvt.Mode) drmfd.ModeInfo {
	return drmfd.ModeInfo{
		Clock:      m.Clock,
		HDisplay:   m.HDisplay,
		HSyncStart: m.HSyncStart,
		HSyncEnd:   m.HSyncEnd,
		HTotal:     m.HTotal,
		VDisplay:   m.VDisplay,
		VSyncStart: m.VSyncStart,
		VSyncEnd:   m.VSyncEnd,
		VTotal:     m.VTotal,
		VRefresh:   m.Refresh,
	}
}

// SelectCRTC implements "find a CRTC in its
// possible_crtcs mask that has not been claimed" rule.
func SelectCRTC(crtcIDs []uint32, possibleCrtcs uint32, claimed map[uint32]bool) (uint32, int, bool) {
	for i, id := range crtcIDs {
		if possibleCrtcs&(1<<uint(i)) == 0 {
			continue
		}
		if claimed[id] {
			continue
		}
		return id, i, true
	}
	return 0, 0, false
}
