// Package bo implements buffer-object lifecycle and cross-process handle
// import: create, register (import), destroy, lock, unlock and refcount.
//
// A BO is local and non-shareable. The handle it points at is the only
// thing that crosses process boundaries; the BO itself, and the backend
// allocation it wraps, never do.
package bo

import (
	"sync"

	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
)

// BO is a local buffer object: a handle's process-local owner, or a
// process-local attachment to a handle another process still owns.
type BO struct {
	Handle   *handle.Handle
	Alloc    *driver.Allocation
	Imported bool // true when constructed to attach to a pre-existing global name
	FBID     uint32

	lockCount int
	lockedFor handle.Usage
	refcount  int32

	backend driver.Backend
}

// Ref increments the BO's refcount. Used by the cloned-output path and
// plane previous-frame retention to keep a BO alive past its immediate
// caller.
func (b *BO) Ref() {
	b.refcount++
}

// Deref decrements the refcount and reports whether it reached zero,
// i.e. whether the caller must now call Manager.Destroy: a
// decrement-reference operation destroys the BO when the count reaches
// one on entry.
func (b *BO) Deref() bool {
	b.refcount--
	return b.refcount <= 0
}

// LockCount reports the current nesting depth, exposed for the
// lock-count-returns-to-zero invariant test.
func (b *BO) LockCount() int { return b.lockCount }

// Manager owns BO lifecycle for one DRM device. The backend is selected
// once, under the device-level lazy-construction lock (see
// gralloc.Device); Manager itself stays lock-free in steady state except
// for the token table.
type Manager struct {
	backend driver.Backend
	getpid  func() int

	tokenMu   sync.Mutex
	nextToken uintptr
	local     map[uintptr]*BO
}

// NewManager builds a BO manager bound to backend, using getpid to stamp
// handle ownership (injected so tests don't depend on the real process).
func NewManager(backend driver.Backend, getpid func() int) *Manager {
	return &Manager{
		backend: backend,
		getpid:  getpid,
		local:   make(map[uintptr]*BO),
	}
}
