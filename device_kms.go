package gralloc

import (
	"context"
	"fmt"

	"github.com/gralloc/drm/bo"
	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
	"github.com/gralloc/drm/internal/drmfd"
	"github.com/gralloc/drm/kms"
	"github.com/gralloc/drm/plane"
)

// ensureKMS performs the one-time connector/mode/CRTC discovery and
// builds the Poster and plane Manager. Idempotent and safe to call
// from every framebuffer-surface entry point: only the first caller
// pays the setup cost.
func (d *Device) ensureKMS() error {
	d.kmsOnce.Do(func() {
		d.kmsErr = d.initKMS()
	})
	return d.kmsErr
}

func (d *Device) initKMS() error {
	features, err := d.backend.InitKMSFeatures()
	if err != nil {
		return fmt.Errorf("gralloc: init kms features: %w", err)
	}

	res, err := d.fd.GetResources()
	if err != nil {
		return fmt.Errorf("gralloc: get resources: %w", err)
	}

	conns, err := d.scanConnectors(res)
	if err != nil {
		return fmt.Errorf("gralloc: scan connectors: %w", err)
	}

	conn, ok := kms.SelectConnector(conns)
	if !ok {
		return ErrNoMode
	}

	mode, pixelFormat, err := kms.SelectMode(conn.Modes, d.props)
	if err != nil {
		return fmt.Errorf("gralloc: %w", err)
	}

	enc, err := d.fd.GetEncoder(conn.EncoderID)
	if err != nil {
		return fmt.Errorf("gralloc: get encoder: %w", err)
	}

	claimed := map[uint32]bool{}
	crtcID, pipeIdx, ok := kms.SelectCRTC(res.CRTCs, enc.PossibleCrtcs, claimed)
	if !ok {
		return ErrNoEncoder
	}
	claimed[crtcID] = true

	fourcc := kms.PixelFormatFourCC(pixelFormat)
	attachFB := func(b *bo.BO) error {
		return kms.AttachFB(d.fd, d.backend, b, fourcc)
	}

	cfg := kms.Config{
		PrimaryCrtcID:      crtcID,
		PrimaryConnectorID: conn.ID,
		Mode:               mode,
		PixelFormat:        fourcc,
		SwapInterval:       1,
	}

	if features.SwapMode == driver.SwapCopy {
		front, err := d.bom.Create(uint32(mode.HDisplay), uint32(mode.VDisplay), pixelFormat, handle.UsageHWFB)
		if err != nil {
			return fmt.Errorf("gralloc: allocate front buffer: %w", err)
		}
		cfg.FrontBuffer = front
	}

	d.poster = kms.NewPoster(d.fd, d.backend, features, attachFB, cfg)

	planeIDs, err := d.fd.GetPlaneResources()
	if err == nil && len(planeIDs) > 0 {
		ids := make([]uint32, 0, len(planeIDs))
		possible := make([]uint32, 0, len(planeIDs))
		for _, pid := range planeIDs {
			p, err := d.fd.GetPlane(pid)
			if err != nil {
				continue
			}
			ids = append(ids, pid)
			possible = append(possible, p.PossibleCrtcs)
		}
		release := func(b *bo.BO) {
			if b.Deref() {
				d.bom.Destroy(b)
			}
		}
		d.planes = plane.NewManager(d.fd, crtcID, uint32(pipeIdx), ids, possible, attachFB, release)
	}

	// If a secondary HDMI-A connector is already present at setup, clone
	// onto it immediately; either way, spawn the hotplug listener so
	// later connects/disconnects re-run the same logic without the
	// caller having to poll.
	var secondaryCrtcID uint32
	if sc, ok := kms.FindSecondaryConnector(conns, conn.ID); ok {
		if id, err := d.attachSecondary(sc, res, claimed); err == nil {
			secondaryCrtcID = id
		}
	}

	if listener, err := kms.NewUeventListener(); err == nil {
		d.hotplug = listener
		onChange := func() {
			res, err := d.fd.GetResources()
			if err != nil {
				return
			}
			conns, err := d.scanConnectors(res)
			if err != nil {
				return
			}
			sc, ok := kms.FindSecondaryConnector(conns, conn.ID)
			switch {
			case ok && secondaryCrtcID == 0:
				if id, err := d.attachSecondary(sc, res, claimed); err == nil {
					secondaryCrtcID = id
				}
			case !ok && secondaryCrtcID != 0:
				d.poster.DisableSecondary()
				delete(claimed, secondaryCrtcID)
				secondaryCrtcID = 0
			}
		}
		listener.Run(context.Background(), onChange)
	} else {
		driver.Logger().Warn("gralloc: hotplug listener unavailable", "err", err)
	}

	return nil
}

// scanConnectors resolves every connector id in res into its full
// drmfd.Connector, skipping ones the kernel fails to report (typically
// a connector that was just hot-unplugged).
func (d *Device) scanConnectors(res drmfd.CardResources) ([]drmfd.Connector, error) {
	conns := make([]drmfd.Connector, 0, len(res.Connectors))
	for _, id := range res.Connectors {
		c, err := d.fd.GetConnector(id)
		if err != nil {
			continue
		}
		conns = append(conns, c)
	}
	return conns, nil
}

// attachSecondary allocates the private back buffer for a newly
// (re)connected HDMI-A clone output, claims it a CRTC out of the ones
// the primary output hasn't already taken, and hands it to the poster.
func (d *Device) attachSecondary(conn drmfd.Connector, res drmfd.CardResources, claimed map[uint32]bool) (uint32, error) {
	enc, err := d.fd.GetEncoder(conn.EncoderID)
	if err != nil {
		return 0, fmt.Errorf("gralloc: secondary get encoder: %w", err)
	}
	crtcID, _, ok := kms.SelectCRTC(res.CRTCs, enc.PossibleCrtcs, claimed)
	if !ok {
		return 0, ErrNoEncoder
	}

	mode, pixelFormat, err := kms.SelectMode(conn.Modes, d.props)
	if err != nil {
		return 0, fmt.Errorf("gralloc: secondary select mode: %w", err)
	}

	back, err := d.bom.Create(uint32(mode.HDisplay), uint32(mode.VDisplay), pixelFormat, handle.UsageHWFB)
	if err != nil {
		return 0, fmt.Errorf("gralloc: secondary back buffer: %w", err)
	}

	d.poster.EnableSecondary(kms.SecondaryOutput{
		CrtcID:      crtcID,
		ConnectorID: conn.ID,
		Mode:        mode,
		BackBuffer:  back,
	})
	claimed[crtcID] = true
	return crtcID, nil
}
