package radeon

// TileMode is the tiling class a Radeon allocation uses.
type TileMode int

const (
	TileLinear TileMode = iota
	TileMicro
	TileMacro
)

// TilingConfig is the decoded RADEON_INFO_TILING_CONFIG reply: the
// evergreen-family memory interleave parameters that drive pitch, height
// and base alignment.
type TilingConfig struct {
	NumChannels int // 1, 2, 4 or 8
	NumBanks    int // 4, 8 or 16
	GroupBytes  int // 256 or 512
}

var (
	channelsTable = [4]int{1, 2, 4, 8}
	banksTable    = [4]int{4, 8, 16, 16}
	groupTable    = [2]int{256, 512}
)

// decodeTilingConfig unpacks the channel/bank/group-size bitfields from
// one RADEON_INFO_TILING_CONFIG reply.
func decodeTilingConfig(raw uint32) TilingConfig {
	return TilingConfig{
		NumChannels: channelsTable[raw&0x3],
		NumBanks:    banksTable[(raw>>4)&0x3],
		GroupBytes:  groupTable[(raw>>8)&0x1],
	}
}

// gpuPageSize is the fallback base alignment when no tiling-config query
// was made at all (pre-R600 hardware). A failed query on evergreen
// hardware gets the 512-byte fallback in BaseAlign instead.
const gpuPageSize = 4096

// PitchAlign computes the required pitch alignment in pixels for mode,
// using one of three formulas (linear, 1D-tiled, 2D macro-tiled). known
// distinguishes "this hardware has tiling info we queried" from "treat
// as unknown, use the 512px fallback" for the TileLinear case.
func PitchAlign(mode TileMode, known bool, cfg TilingConfig, bpe int) uint32 {
	switch mode {
	case TileMacro:
		v := (cfg.GroupBytes / 8 / bpe) * cfg.NumBanks * 8
		if floor := cfg.NumBanks * 8; v < floor {
			v = floor
		}
		return uint32(v)
	case TileMicro:
		v := cfg.GroupBytes / (8 * bpe)
		if v < 8 {
			v = 8
		}
		if floor := cfg.GroupBytes / bpe; v < floor {
			v = floor
		}
		return uint32(v)
	default: // TileLinear
		if known {
			v := cfg.GroupBytes / bpe
			if v < 64 {
				v = 64
			}
			return uint32(v)
		}
		return 512
	}
}

// HeightAlign computes the required height alignment in rows for mode.
func HeightAlign(mode TileMode, cfg TilingConfig) uint32 {
	if mode == TileMacro {
		return uint32(cfg.NumChannels * 8)
	}
	return 8
}

// BaseAlign computes the allocation's required base address alignment in
// bytes. configAvailable reports that a RADEON_INFO_TILING_CONFIG query
// was attempted, whether or not it succeeded; hardware too old to have
// one at all gets a flat GPU-page alignment instead of the 512-byte
// non-macro fallback.
func BaseAlign(mode TileMode, known, configAvailable bool, cfg TilingConfig, pitch uint32, bpe int, heightAlign uint32) uint32 {
	if mode == TileMacro {
		a := cfg.NumBanks * cfg.NumChannels * 64 * bpe
		if b := int(pitch) * bpe * int(heightAlign); b > a {
			a = b
		}
		return uint32(a)
	}
	if known {
		return uint32(cfg.GroupBytes)
	}
	if configAvailable {
		return 512
	}
	return gpuPageSize
}

// isEvergreen reports whether deviceID falls in the evergreen-family PCI
// ID range this backend targets; pre-R600 parts use simpler constants
// that this port omits (see DESIGN.md).
func isEvergreen(deviceID int32) bool {
	return deviceID >= 0x6700 && deviceID < 0x6900
}

// tileModeFor picks macro tiling for scanout buffers, micro for textures,
// and forces linear whenever the usage requests frequent software
// access (the CPU cannot detile a macro- or micro-tiled surface).
func tileModeFor(forFramebuffer, forceLinear bool) TileMode {
	if forceLinear {
		return TileLinear
	}
	if forFramebuffer {
		return TileMacro
	}
	return TileMicro
}
