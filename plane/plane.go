package plane

import (
	"sync"

	"github.com/gralloc/drm/bo"
	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
	"github.com/gralloc/drm/internal/drmfd"
)

// AttachFBFunc resolves and attaches a BO's framebuffer object,
// idempotently (wired to kms.AttachFB by the caller). ReleaseFunc drops
// a reference a committed slot was holding, destroying the backing BO
// once its refcount reaches zero (wired to bo.BO.Deref plus
// bo.Manager.Destroy).
type (
	AttachFBFunc func(b *bo.BO) error
	ReleaseFunc  func(b *bo.BO)
)

// planeSetter is the sliver of *drmfd.File Commit needs; narrowed to an
// interface so tests can exercise the commit logic without a real DRM
// fd, the same way kms.PropertyReader is injected for mode selection.
type planeSetter interface {
	SetPlane(planeID, crtcID, fbID uint32, rect drmfd.SetPlaneRect) error
}

// slot is one overlay plane object's reservation state.
type slot struct {
	id            uint32
	possibleCrtcs uint32

	active        bool
	reservationID uint32
	handle        *handle.Handle
	bo            *bo.BO
	dstRect       driver.Rect
	srcRect       driver.Rect // source-space units, pre fixed-point scaling

	prev  *bo.BO // previously committed BO, held for one generation's deref
	dirty bool   // needs a setPlane call on the next Commit, active or not
}

// Manager implements the overlay-plane reservation surface: reserve,
// disable_all, set_handle, and the commit step the posting path runs
// implicitly at flip time.
type Manager struct {
	mu sync.Mutex

	fd          planeSetter
	crtcID      uint32
	primaryPipe uint32
	attachFB    AttachFBFunc
	release     ReleaseFunc

	slots []*slot
}

// NewManager builds a plane Manager over planeIDs/possibleCrtcs pairs
// (as returned by drmfd.GetPlaneResources/GetPlane), targeting crtcID
// with primaryPipe's bit position in each plane's possible_crtcs mask.
func NewManager(fd *drmfd.File, crtcID uint32, primaryPipe uint32, planeIDs []uint32, possibleCrtcs []uint32, attachFB AttachFBFunc, release ReleaseFunc) *Manager {
	m := &Manager{fd: fd, crtcID: crtcID, primaryPipe: primaryPipe, attachFB: attachFB, release: release}
	for i, id := range planeIDs {
		pc := uint32(0)
		if i < len(possibleCrtcs) {
			pc = possibleCrtcs[i]
		}
		m.slots = append(m.slots, &slot{id: id, possibleCrtcs: pc})
	}
	return m
}

// Reserve claims the first inactive plane slot that can scan out on
// this Manager's CRTC and whose index bit is set in h's plane-mask. The
// plane's content is pushed on the next Commit.
func (m *Manager) Reserve(h *handle.Handle, buf *bo.BO, reservationID uint32, dstRect, srcRect driver.Rect) error {
	if h.PlaneMask == 0 {
		return ErrInval
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.slots {
		if s.active {
			continue
		}
		if h.PlaneMask&(1<<uint(i)) == 0 {
			continue
		}
		if s.possibleCrtcs&(1<<m.primaryPipe) == 0 {
			continue
		}

		s.active = true
		s.reservationID = reservationID
		s.handle = h
		s.bo = buf
		s.dstRect = dstRect
		s.srcRect = srcRect
		s.dirty = true
		return nil
	}
	return ErrBusy
}

// SetHandle replaces the pending buffer on an already-reserved slot.
// The swap (deref of the old BO, refcount bump of the new one) happens
// at the next Commit, consistent with every other state change here.
func (m *Manager) SetHandle(reservationID uint32, buf *bo.BO) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.slots {
		if s.active && s.reservationID == reservationID {
			s.bo = buf
			s.dirty = true
			return nil
		}
	}
	return ErrNotReserved
}

// DisableAll marks every slot inactive and dirty, so the next Commit
// pushes fb=0 to every plane, whether or not it was active.
func (m *Manager) DisableAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		s.active = false
		s.dirty = true
	}
}

// Commit pushes every dirty slot's state to the kernel: attaching a
// framebuffer object for newly-active slots, calling SetPlane with the
// 16.16 fixed-point source rect and integer destination rect, and
// pushing fb=0 for slots that were just disabled. A SetPlane failure on
// an active slot clears the handle's plane-mask and deactivates the
// slot.
func (m *Manager) Commit() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.slots {
		if !s.dirty {
			continue
		}

		if !s.active {
			m.fd.SetPlane(s.id, m.crtcID, 0, drmfd.SetPlaneRect{})
			if s.prev != nil {
				m.release(s.prev)
				s.prev = nil
			}
			s.dirty = false
			continue
		}

		if s.bo.FBID == 0 {
			if err := m.attachFB(s.bo); err != nil {
				s.handle.PlaneMask = 0
				s.active = false
				s.dirty = false
				continue
			}
		}

		rect := drmfd.SetPlaneRect{
			CrtcX: int32(s.dstRect.X), CrtcY: int32(s.dstRect.Y),
			CrtcW: s.dstRect.W, CrtcH: s.dstRect.H,
			SrcX: s.srcRect.X << 16, SrcY: s.srcRect.Y << 16,
			SrcW: s.srcRect.W << 16, SrcH: s.srcRect.H << 16,
		}
		if err := m.fd.SetPlane(s.id, m.crtcID, s.bo.FBID, rect); err != nil {
			s.handle.PlaneMask = 0
			s.active = false
			s.dirty = false
			if s.prev != nil {
				m.release(s.prev)
				s.prev = nil
			}
			continue
		}

		if s.prev != nil && s.prev != s.bo {
			m.release(s.prev)
		}
		s.bo.Ref()
		s.prev = s.bo
		s.dirty = false
	}
}
