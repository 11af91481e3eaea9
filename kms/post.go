package kms

import (
	"fmt"
	"sync"
	"time"

	"github.com/gralloc/drm/bo"
	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
	"github.com/gralloc/drm/internal/drmfd"
)

// SecondaryOutput is a cloned HDMI-A output: the same content as the
// primary CRTC, letterboxed into its own private back buffer and posted
// independently secondary-output clone path.
type SecondaryOutput struct {
	CrtcID      uint32
	ConnectorID uint32
	Mode        drmfd.ModeInfo
	BackBuffer  *bo.BO
}

// Config is the static, resolved-at-setup configuration a Poster needs:
// the CRTC/connector/mode this device settled on via SelectConnector/
// SelectMode/SelectCRTC, plus the stable front buffer SwapCopy mode
// requires.
type Config struct {
	PrimaryCrtcID      uint32
	PrimaryConnectorID uint32
	Mode               drmfd.ModeInfo
	PixelFormat        uint32
	SwapInterval       int

	// FrontBuffer is the once-allocated scanout target SwapCopy blits
	// into every post. Unused by SwapFlip/SwapSetCRTC.
	FrontBuffer *bo.BO
}

// AttachFBFunc resolves and attaches a BO's framebuffer object,
// idempotently. Injected so this package needs no direct dependency on
// how a caller wants format resolution and AddFB2 wired (see AttachFB).
type AttachFBFunc func(b *bo.BO) error

// Poster drives the FirstPost/Steady post state machine. One Poster
// exists per DRM device; it is not safe to share across
// devices, but its own methods are safe for concurrent use.
type Poster struct {
	fd       *drmfd.File
	backend  driver.Backend
	features driver.KMSFeatures
	attachFB AttachFBFunc
	cfg      Config

	mu           sync.Mutex
	started      bool
	currentFront *bo.BO
	nextFront    *bo.BO // non-nil while a requested flip event hasn't landed yet
	lastSequence uint32
	secondary    *SecondaryOutput
}

// NewPoster builds a Poster. features comes from the backend's
// InitKMSFeatures; cfg comes from the CRTC/mode selection the caller
// already ran via SelectConnector/SelectMode/SelectCRTC.
func NewPoster(fd *drmfd.File, backend driver.Backend, features driver.KMSFeatures, attachFB AttachFBFunc, cfg Config) *Poster {
	if cfg.SwapInterval <= 0 {
		cfg.SwapInterval = 1
	}
	return &Poster{fd: fd, backend: backend, features: features, attachFB: attachFB, cfg: cfg}
}

// ResetFirstPost forces the next Post to re-run firstPost's full modeset
// instead of the steady-state path, for callers (e.g. an enter-VT
// transition) that know the CRTC's mode may have been stolen from under
// this process while it didn't own the master fd.
func (p *Poster) ResetFirstPost() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
}

// SetSwapInterval changes the vblank pacing divisor future posts wait
// for. Values below 1 are clamped to 1.
func (p *Poster) SetSwapInterval(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= 0 {
		n = 1
	}
	p.cfg.SwapInterval = n
}

// EnableSecondary activates a cloned HDMI-A output. Called from the
// hotplug listener on connect.
func (p *Poster) EnableSecondary(out SecondaryOutput) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.secondary = &out
}

// DisableSecondary tears down the cloned output's CRTC. Called from the
// hotplug listener on disconnect.
func (p *Poster) DisableSecondary() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.secondary == nil {
		return
	}
	p.fd.SetCRTC(p.secondary.CrtcID, 0, 0, 0, nil, nil)
	p.secondary = nil
}

// Post drives one iteration of the state machine against b.
func (p *Poster) Post(b *bo.BO) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return p.firstPost(b)
	}
	switch p.features.SwapMode {
	case driver.SwapFlip:
		return p.postFlip(b)
	case driver.SwapCopy:
		return p.postCopy(b)
	case driver.SwapSetCRTC:
		return p.postSetCRTC(b)
	default:
		return nil
	}
}

func (p *Poster) firstPost(b *bo.BO) error {
	target := b
	if p.features.SwapMode == driver.SwapCopy {
		if p.cfg.FrontBuffer == nil {
			return fmt.Errorf("kms: SwapCopy requires a front buffer")
		}
		if err := p.backend.Blit(p.cfg.FrontBuffer.Alloc, fullRect(p.cfg.FrontBuffer), b.Alloc, fullRect(b)); err != nil {
			return fmt.Errorf("kms: first post blit: %w", err)
		}
		target = p.cfg.FrontBuffer
	}

	if err := p.attachFB(target); err != nil {
		return err
	}
	if err := p.waitVBlank(false); err != nil {
		driver.Logger().Warn("kms: vblank wait failed on first post", "err", err)
	}
	if err := p.fd.SetCRTC(p.cfg.PrimaryCrtcID, target.FBID, 0, 0, &p.cfg.Mode, []uint32{p.cfg.PrimaryConnectorID}); err != nil {
		return fmt.Errorf("kms: first post setcrtc: %w", err)
	}
	p.currentFront = target
	p.started = true

	if p.secondary != nil {
		if err := p.attachFB(p.secondary.BackBuffer); err == nil {
			p.fd.SetCRTC(p.secondary.CrtcID, p.secondary.BackBuffer.FBID, 0, 0, &p.secondary.Mode, []uint32{p.secondary.ConnectorID})
		}
	}
	return nil
}

func (p *Poster) postFlip(b *bo.BO) error {
	if p.cfg.SwapInterval > 1 {
		if err := p.waitVBlank(true); err != nil {
			driver.Logger().Warn("kms: vblank wait failed before flip", "err", err)
		}
	}

	if err := p.attachFB(b); err != nil {
		return err
	}

	// At most one flip outstanding per CRTC: drain a still-pending one
	// before scheduling the next.
	if p.nextFront != nil {
		if err := p.drainFlip(); err != nil {
			return fmt.Errorf("kms: drain pending flip: %w", err)
		}
	}

	userData := uint64(b.Handle.Local)
	if err := p.fd.PageFlip(p.cfg.PrimaryCrtcID, b.FBID, drmfd.PageFlipEvent, userData); err != nil {
		return fmt.Errorf("kms: page flip: %w", err)
	}
	p.nextFront = b

	if p.secondary != nil {
		rect := centeredRect(b, p.secondary.Mode)
		if err := p.backend.Blit(p.secondary.BackBuffer.Alloc, rect, b.Alloc, fullRect(b)); err == nil {
			if err := p.attachFB(p.secondary.BackBuffer); err == nil {
				p.fd.PageFlip(p.secondary.CrtcID, p.secondary.BackBuffer.FBID, 0, 0)
			}
		}
	}

	if p.features.RequiresSyncFlip || swWritable(p.currentFront) {
		return p.drainFlip()
	}
	return nil
}

func (p *Poster) postCopy(b *bo.BO) error {
	if err := p.waitVBlank(false); err != nil {
		driver.Logger().Warn("kms: vblank wait failed before copy", "err", err)
	}
	if err := p.backend.Blit(p.currentFront.Alloc, fullRect(p.currentFront), b.Alloc, fullRect(b)); err != nil {
		return fmt.Errorf("kms: copy post blit: %w", err)
	}
	if p.features.VMWgfxQuirk {
		if err := p.fd.DirtyFB(p.currentFront.FBID); err != nil {
			return fmt.Errorf("kms: dirty fb: %w", err)
		}
	}
	return nil
}

func (p *Poster) postSetCRTC(b *bo.BO) error {
	if err := p.waitVBlank(false); err != nil {
		driver.Logger().Warn("kms: vblank wait failed before setcrtc", "err", err)
	}
	if err := p.attachFB(b); err != nil {
		return err
	}
	if err := p.fd.SetCRTC(p.cfg.PrimaryCrtcID, b.FBID, 0, 0, &p.cfg.Mode, []uint32{p.cfg.PrimaryConnectorID}); err != nil {
		return fmt.Errorf("kms: setcrtc post: %w", err)
	}
	p.currentFront = b

	if p.secondary != nil {
		if err := p.attachFB(p.secondary.BackBuffer); err == nil {
			p.fd.SetCRTC(p.secondary.CrtcID, p.secondary.BackBuffer.FBID, 0, 0, &p.secondary.Mode, []uint32{p.secondary.ConnectorID})
		}
	}
	return nil
}

// drainFlip pumps exactly one DRM event batch and applies the matching
// flip-complete event's front-buffer transition, if any landed.
func (p *Poster) drainFlip() error {
	if p.nextFront == nil {
		return nil
	}
	return p.fd.HandleEvent(func(ev drmfd.Event) {
		if ev.Type != drmfd.EventFlipComplete || (ev.CrtcID != 0 && ev.CrtcID != p.cfg.PrimaryCrtcID) {
			return
		}
		p.currentFront = p.nextFront
		p.nextFront = nil
		p.lastSequence = ev.Sequence
	})
}

// waitVBlank implements the pacing algorithm: read the current sequence
// via a relative wait of zero, compute the target sequence from the
// last swap (not from "now"), and block for it (absolute wait,
// NEXTONMISS when this post isn't itself a flip) whenever the current
// sequence hasn't reached target yet, or this post isn't a flip at all.
// A non-flip post always issues the absolute wait, regardless of where
// the current sequence already sits. The vmwgfx quirk skips vblank
// pacing entirely.
func (p *Poster) waitVBlank(flip bool) error {
	if p.features.VMWgfxQuirk {
		return nil
	}

	cur, err := p.fd.WaitVBlank(drmfd.VBlankRelative, 0)
	if err != nil {
		return err
	}
	target := vblankTarget(p.lastSequence, p.cfg.SwapInterval, flip)
	if cur >= target && flip {
		p.lastSequence = cur
		return nil
	}

	reqType := drmfd.VBlankAbsolute
	if !flip {
		reqType |= drmfd.VBlankNextOnMiss
	}
	seq, err := p.fd.WaitVBlank(reqType, target)
	if err != nil {
		return err
	}
	dec := uint32(0)
	if flip {
		dec = 1
	}
	p.lastSequence = seq + dec
	return nil
}

// vblankTarget is the pure pacing computation, split out for testing
// without a real DRM fd. lastSwap is the last recorded swap sequence
// (p.lastSequence), not the current kernel sequence.
func vblankTarget(lastSwap uint32, swapInterval int, flip bool) uint32 {
	dec := uint32(0)
	if flip {
		dec = 1
	}
	return lastSwap + uint32(swapInterval) - dec
}

func fullRect(b *bo.BO) driver.Rect {
	return driver.Rect{X: 0, Y: 0, W: b.Handle.Width, H: b.Handle.Height}
}

// centeredRect letterboxes source buffer b into mode's display area,
// clamped to b's own size since no backend here scales.
func centeredRect(b *bo.BO, mode drmfd.ModeInfo) driver.Rect {
	w, h := b.Handle.Width, b.Handle.Height
	if uint32(mode.HDisplay) < w {
		w = uint32(mode.HDisplay)
	}
	if uint32(mode.VDisplay) < h {
		h = uint32(mode.VDisplay)
	}
	x := (uint32(mode.HDisplay) - w) / 2
	y := (uint32(mode.VDisplay) - h) / 2
	return driver.Rect{X: x, Y: y, W: w, H: h}
}

func swWritable(b *bo.BO) bool {
	return b != nil && b.Handle.Usage&handle.SWWriteMask != 0
}

// Shutdown implements the process-singleton termination hook: on
// SIGINT/SIGTERM, a flip may be landing concurrently with the signal, so
// give the kernel a moment before draining it synchronously rather than
// racing the event read from two goroutines.
func (p *Poster) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nextFront == nil {
		return
	}
	time.Sleep(100 * time.Millisecond)
	p.drainFlip()
}
