package radeon

import "testing"

func TestDecodeTilingConfig(t *testing.T) {
	// num_banks=8 (index 1), group_bytes=512 (index 1), num_channels=4 (index 2).
	raw := uint32(2) | uint32(1<<4) | uint32(1<<8)
	cfg := decodeTilingConfig(raw)
	if cfg.NumChannels != 4 || cfg.NumBanks != 8 || cfg.GroupBytes != 512 {
		t.Fatalf("decodeTilingConfig(0x%x) = %+v", raw, cfg)
	}
}

func TestPitchAlignMacro(t *testing.T) {
	// num_banks=8, group_bytes=512, bpe=4 -> (512/8/4)*8*8 = 1024px.
	cfg := TilingConfig{NumChannels: 2, NumBanks: 8, GroupBytes: 512}
	got := PitchAlign(TileMacro, true, cfg, 4)
	if got != 1024 {
		t.Fatalf("PitchAlign(macro) = %d, want 1024", got)
	}
}

func TestHeightAlignMacro(t *testing.T) {
	cfg := TilingConfig{NumChannels: 2, NumBanks: 8, GroupBytes: 512}
	if got := HeightAlign(TileMacro, cfg); got != 16 {
		t.Fatalf("HeightAlign(macro) = %d, want 16 (num_channels*8)", got)
	}
	if got := HeightAlign(TileMicro, cfg); got != 8 {
		t.Fatalf("HeightAlign(micro) = %d, want 8", got)
	}
}

func TestPitchAlignLinearFallback(t *testing.T) {
	if got := PitchAlign(TileLinear, false, TilingConfig{}, 4); got != 512 {
		t.Fatalf("PitchAlign(linear, unknown) = %d, want 512", got)
	}
}

func TestBaseAlignFallbackChain(t *testing.T) {
	cfg := TilingConfig{NumChannels: 2, NumBanks: 8, GroupBytes: 512}
	if got := BaseAlign(TileMicro, true, true, cfg, 128, 4, 8); got != 512 {
		t.Fatalf("known non-macro base align = %d, want group_bytes 512", got)
	}
	if got := BaseAlign(TileMicro, false, true, cfg, 128, 4, 8); got != 512 {
		t.Fatalf("queried-but-unknown base align = %d, want 512", got)
	}
	if got := BaseAlign(TileMicro, false, false, cfg, 128, 4, 8); got != gpuPageSize {
		t.Fatalf("never-queried base align = %d, want gpuPageSize", got)
	}
}

func TestTileModeForForcesLinear(t *testing.T) {
	if mode := tileModeFor(true, true); mode != TileLinear {
		t.Fatalf("SW access must force linear even for a framebuffer, got %v", mode)
	}
	if mode := tileModeFor(true, false); mode != TileMacro {
		t.Fatalf("framebuffer without SW access should be macro-tiled, got %v", mode)
	}
	if mode := tileModeFor(false, false); mode != TileMicro {
		t.Fatalf("texture without SW access should be micro-tiled, got %v", mode)
	}
}

func TestIsEvergreen(t *testing.T) {
	if !isEvergreen(0x6819) {
		t.Fatalf("0x6819 should be in the evergreen range")
	}
	if isEvergreen(0x9440) {
		t.Fatalf("0x9440 (R600-era) should not be evergreen")
	}
}
