package intel

import (
	"errors"

	"github.com/gralloc/drm/handle"
)

// ErrStrideTooWide means even a linear retry exceeded the generation's
// maximum scanout stride.
var ErrStrideTooWide = errors.New("intel: stride exceeds maximum even linear")

// maxStride returns the generation's maximum tiled scanout stride: 32KiB
// on gen >= 5, halved per generation below that.
func maxStride(gen int) uint32 {
	const genMax = 32 * 1024
	if gen >= 5 {
		return genMax
	}
	if gen < 1 {
		gen = 1
	}
	return genMax >> uint(5-gen)
}

// alignWidth64 rounds width up to the 64-pixel boundary X-tiling requires.
func alignWidth64(width uint32) uint32 {
	return (width + 63) &^ 63
}

// Layout is the tiling decision for one allocation: the stride to
// allocate with and whether X-tiling was actually used.
type Layout struct {
	Stride uint32
	Tiled  bool
}

// ComputeLayout implements the Intel tiling policy:
//
//   - framebuffers prefer X-tiling with 64px width alignment;
//   - textures use X-tiling only when width >= 64;
//   - linear is forced whenever usage requests frequent software access;
//   - a tiled stride that exceeds the generation's maximum falls back to
//     linear and is retried once; if still too wide, allocation fails.
func ComputeLayout(gen int, width uint32, bpp int, usage handle.Usage, forFramebuffer bool) (Layout, error) {
	forceLinear := usage&(handle.SWReadMask|handle.SWWriteMask) != 0
	wantsTile := !forceLinear && (forFramebuffer || width >= 64)

	if !wantsTile {
		return Layout{Stride: width * uint32(bpp), Tiled: false}, nil
	}

	tiledStride := alignWidth64(width) * uint32(bpp)
	if tiledStride <= maxStride(gen) {
		return Layout{Stride: tiledStride, Tiled: true}, nil
	}

	// One linear retry.
	linearStride := width * uint32(bpp)
	if linearStride > maxStride(gen) {
		return Layout{}, ErrStrideTooWide
	}
	return Layout{Stride: linearStride, Tiled: false}, nil
}
