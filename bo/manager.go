package bo

import (
	"errors"
	"fmt"

	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
)

// Sentinel errors for lock/unlock conditions the gralloc.Errno taxonomy
// doesn't name by a single code; callers map these to gralloc.Errno at
// the API boundary.
var (
	ErrUsageNotGranted = errors.New("bo: lock usage not present in handle usage")
	ErrUsageNotSubset  = errors.New("bo: lock usage is not a subset of the current lock")
	ErrNotLocked       = errors.New("bo: unlock called with no outstanding lock")
)

// newToken hands out a unique, process-local opaque value for
// Handle.Local. Real pointer values are never stored in the handle: Go's
// GC cannot see a pointer hidden in a uintptr, so the BO this token names
// is kept alive by Manager.local instead (the token is just a key).
// This is the idiomatic-Go realization of a tagged union over
// { local(pid, bo_ref), exported_only(name) }.
func (m *Manager) newToken(b *BO) uintptr {
	m.tokenMu.Lock()
	defer m.tokenMu.Unlock()
	m.nextToken++
	tok := m.nextToken
	m.local[tok] = b
	return tok
}

func (m *Manager) lookupToken(tok uintptr) *BO {
	m.tokenMu.Lock()
	defer m.tokenMu.Unlock()
	return m.local[tok]
}

// Lookup returns the local BO a handle's Local token names, or nil if
// this process owns no such BO. Exposed for the module glue layer,
// which only ever carries a *handle.Handle across its own API surface
// and needs the backing BO to drive lock/free/post operations.
func (m *Manager) Lookup(h *handle.Handle) *BO {
	if h == nil || h.Owner != m.getpid32() {
		return nil
	}
	return m.lookupToken(h.Local)
}

func (m *Manager) dropToken(tok uintptr) {
	m.tokenMu.Lock()
	defer m.tokenMu.Unlock()
	delete(m.local, tok)
}

// Create allocates a handle, calls the backend allocator, and stamps
// ownership into the handle.
func (m *Manager) Create(width, height uint32, format handle.Format, usage handle.Usage) (*BO, error) {
	if _, planar := format.BytesPerPixel(); !planar && !format.Planar() {
		return nil, driver.ErrUnsupportedFormat
	}

	h := handle.New(width, height, format, usage)
	alloc, err := m.backend.Alloc(&h)
	if err != nil {
		return nil, fmt.Errorf("bo: create: %w", err)
	}

	b := &BO{Handle: &h, Alloc: alloc, backend: m.backend, refcount: 1}
	h.Owner = m.getpid32()
	h.Local = m.newToken(b)
	return b, nil
}

// Register attaches to handle h, importing it from another process when
// necessary:
//
//   - if h.Owner already names this process, the existing local BO is
//     returned verbatim (no-op import);
//   - otherwise, if mayCreate is false, nil is returned (the validate-only
//     path);
//   - otherwise, if h has a non-zero global name, the backend attaches to
//     the existing kernel object and the new BO is marked imported.
func (m *Manager) Register(h *handle.Handle, mayCreate bool) *BO {
	pid := m.getpid32()
	if h.Owner == pid {
		return m.lookupToken(h.Local)
	}
	if !mayCreate {
		return nil
	}
	if h.GlobalName == 0 {
		return nil
	}

	alloc, err := m.backend.Alloc(h)
	if err != nil {
		driver.Logger().Warn("bo: import failed", "global_name", h.GlobalName, "err", err)
		return nil
	}

	b := &BO{Handle: h, Alloc: alloc, Imported: true, backend: m.backend, refcount: 1}
	h.Owner = pid
	h.Local = m.newToken(b)
	return b
}

// Unregister releases this process's local attachment to h. If the BO
// was imported it is destroyed (which clears h.Owner/h.Local); a locally
// allocated BO is untouched, since it owns the handle's storage and is
// released via an explicit Destroy instead.
func (m *Manager) Unregister(h *handle.Handle) error {
	pid := m.getpid32()
	if h.Owner != pid {
		return nil
	}
	b := m.lookupToken(h.Local)
	if b == nil {
		return nil
	}
	if !b.Imported {
		return nil
	}
	return m.Destroy(b)
}

// Lock requires (handle.Usage & usage) == usage unless the BO is a
// display framebuffer (a documented loophole for testing). If already
// locked, usage must be a subset of the current lock. Software read/write
// triggers a backend Map; other usage relies on GEM domain tracking and
// performs no mapping.
func (m *Manager) Lock(b *BO, usage handle.Usage, rect driver.Rect) ([]byte, error) {
	isFB := b.Handle.Usage&handle.UsageHWFB != 0
	if !isFB && (b.Handle.Usage&usage) != usage {
		return nil, ErrUsageNotGranted
	}
	if b.lockCount > 0 && (b.lockedFor&usage) != usage {
		return nil, ErrUsageNotSubset
	}

	var addr []byte
	if usage&(handle.SWReadMask|handle.SWWriteMask) != 0 {
		a, err := b.backend.Map(b.Alloc, usage, rect)
		if err != nil {
			return nil, fmt.Errorf("bo: lock: %w", err)
		}
		addr = a
	}

	b.lockCount++
	b.lockedFor |= usage
	return addr, nil
}

// Unlock reverses one Lock call. If the current lock included software
// access, the backend mapping is released. When the nesting count
// reaches zero, lockedFor is cleared.
func (m *Manager) Unlock(b *BO) error {
	if b.lockCount == 0 {
		return ErrNotLocked
	}
	if b.lockedFor&(handle.SWReadMask|handle.SWWriteMask) != 0 {
		if err := b.backend.Unmap(b.Alloc); err != nil {
			return fmt.Errorf("bo: unlock: %w", err)
		}
	}
	b.lockCount--
	if b.lockCount == 0 {
		b.lockedFor = 0
	}
	return nil
}

// Destroy frees the backend allocation. If b was imported, the handle's
// owner/local-pointer pair is cleared (but the handle's storage is left
// to its caller — this process never owned it); if local, the handle is
// considered fully released along with the BO (Go's GC reclaims it once
// the caller drops its own reference).
func (m *Manager) Destroy(b *BO) error {
	if err := b.backend.Free(b.Alloc); err != nil {
		return fmt.Errorf("bo: destroy: %w", err)
	}
	m.dropToken(b.Handle.Local)
	if b.Imported {
		b.Handle.Owner = 0
		b.Handle.Local = 0
	}
	return nil
}

func (m *Manager) getpid32() int32 {
	return int32(m.getpid())
}
