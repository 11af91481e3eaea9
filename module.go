package gralloc

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/gralloc/drm/backend/intel"
	"github.com/gralloc/drm/backend/nouveau"
	"github.com/gralloc/drm/backend/pipe"
	"github.com/gralloc/drm/backend/radeon"
	"github.com/gralloc/drm/bo"
	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
	"github.com/gralloc/drm/internal/drmfd"
	"github.com/gralloc/drm/kms"
	"github.com/gralloc/drm/plane"
)

// PropertyReader is the external collaborator names for the
// two debug.drm.* string properties. kms.PropertyReader has the same
// shape; anything satisfying one satisfies the other.
type PropertyReader interface {
	Get(key string) (value string, ok bool)
}

// osEnvProps is the non-Android default: properties read from the
// process environment, upper-cased and dot-to-underscore mapped
// ("debug.drm.mode" -> "DEBUG_DRM_MODE"); property reading is an
// external collaborator with an obvious fallback contract outside of
// Android.
type osEnvProps struct{}

func (osEnvProps) Get(key string) (string, bool) {
	env := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c == '.' {
			c = '_'
		} else if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		env = append(env, c)
	}
	return os.LookupEnv(string(env))
}

// Opcode is the perform-dispatch request code for Device.Perform,
// mirroring gralloc.c's hw_device_t::perform extension mechanism.
type Opcode int

const (
	OpGetDRMFD Opcode = iota
	OpGetDRMMagic
	OpAuthDRMMagic
	OpEnterVT
	OpLeaveVT
)

// Device is the process-singleton DRM device: the lazy union of the
// allocator open surface (Alloc/Free) and the framebuffer open surface
// (SetSwapInterval/Post/CompositionComplete), plus the perform-dispatch
// opcode multiplexer.
type Device struct {
	mu sync.Mutex

	fd      *drmfd.File
	backend driver.Backend
	bom     *bo.Manager
	props   PropertyReader

	kmsOnce sync.Once
	kmsErr  error
	poster  *kms.Poster
	planes  *plane.Manager
	hotplug *kms.UeventListener
}

var (
	deviceOnce sync.Once
	deviceInst *Device
	deviceErr  error

	// DevicePath overrides the DRM device node opened by GetDevice; left
	// empty it defaults to /dev/dri/card0. Tests that never call
	// GetDevice are unaffected.
	DevicePath = ""
)

// GetDevice returns the process-singleton Device, opening the DRM node
// and selecting a vendor backend on first call. This is the one place
// the whole allocator takes a lock for lazy construction; everything
// past this point is lock-free or locks only its own state.
func GetDevice() (*Device, error) {
	deviceOnce.Do(func() {
		deviceInst, deviceErr = newDevice(DevicePath, osEnvProps{}, func() int { return int(handle.CachedPID(os.Getpid)) })
	})
	return deviceInst, deviceErr
}

func newDevice(path string, props PropertyReader, getpid func() int) (*Device, error) {
	fd, err := drmfd.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gralloc: %w: %v", ErrNoEnt, err)
	}

	ver, err := fd.GetVersion()
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("gralloc: get version: %w", err)
	}

	backend, err := selectBackend(ver.Name, fd)
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("gralloc: %w: %v", ErrNoEnt, err)
	}

	return &Device{
		fd:      fd,
		backend: backend,
		bom:     bo.NewManager(backend, getpid),
		props:   props,
	}, nil
}

// selectBackend maps a kernel driver name to the vendor backend that
// claims it: a vendor name match, else the generic pipe fallback. Unlike
// driver.Select/Register — which exists for dependency-free tests like
// backend/noop — this path needs a live fd, so each vendor backend is
// opened directly instead of through a name-only factory.
func selectBackend(driverName string, fd *drmfd.File) (driver.Backend, error) {
	switch driverName {
	case "i915":
		return intel.Open(fd)
	case "radeon":
		return radeon.Open(fd)
	case "nouveau":
		return nouveau.Open(fd), nil
	default:
		return pipe.Open(fd), nil
	}
}

// Close releases the device's kernel fd and any backend-global state.
// Process-singleton devices normally outlive the process; this exists
// for tests that build a Device directly rather than through GetDevice.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backend.Destroy()
	return d.fd.Close()
}

// Alloc implements the allocator device-open surface's alloc entry
// point: create a new handle-backed buffer.
func (d *Device) Alloc(width, height uint32, format handle.Format, usage handle.Usage) (*handle.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := d.bom.Create(width, height, format, usage)
	if err != nil {
		if errors.Is(err, driver.ErrUnsupportedFormat) {
			return nil, ErrInval
		}
		return nil, fmt.Errorf("%w: %v", ErrNoMem, err)
	}
	return b.Handle, nil
}

// Free implements the allocator device-open surface's free entry
// point: drop this process's reference, destroying the BO once its
// refcount reaches zero.
func (d *Device) Free(h *handle.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b := d.bom.Lookup(h)
	if b == nil {
		return ErrInval
	}
	if b.Deref() {
		if err := d.bom.Destroy(b); err != nil {
			return fmt.Errorf("%w: %v", ErrNoMem, err)
		}
	}
	return nil
}

// Lock and Unlock expose the bo.Manager lock surface over a handle,
// for callers that only ever carry a *handle.Handle (the module-level
// API never hands out a *bo.BO).
func (d *Device) Lock(h *handle.Handle, usage handle.Usage, rect driver.Rect) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b := d.bom.Lookup(h)
	if b == nil {
		return nil, ErrInval
	}
	addr, err := d.bom.Lock(b, usage, rect)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInval, err)
	}
	return addr, nil
}

func (d *Device) Unlock(h *handle.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b := d.bom.Lookup(h)
	if b == nil {
		return ErrInval
	}
	if err := d.bom.Unlock(b); err != nil {
		return fmt.Errorf("%w: %v", ErrInval, err)
	}
	return nil
}

// SetSwapInterval implements the framebuffer device-open surface's
// swap-interval entry point.
func (d *Device) SetSwapInterval(n int) error {
	if err := d.ensureKMS(); err != nil {
		return err
	}
	d.poster.SetSwapInterval(n)
	return nil
}

// Post implements the framebuffer device-open surface's post entry
// point: hand h to the KMS post state machine.
func (d *Device) Post(h *handle.Handle) error {
	if err := d.ensureKMS(); err != nil {
		return err
	}
	d.mu.Lock()
	b := d.bom.Lookup(h)
	d.mu.Unlock()
	if b == nil {
		return ErrInval
	}
	if err := d.poster.Post(b); err != nil {
		return fmt.Errorf("%w: %v", ErrNoMode, err)
	}
	if d.planes != nil {
		d.planes.Commit()
	}
	return nil
}

// CompositionComplete implements the framebuffer device-open surface's
// composition-complete hook. No GPU fence is tracked anywhere in this
// stack (the backends here submit synchronously or rely on kernel GEM
// domain tracking), so there is nothing to wait on here.
func (d *Device) CompositionComplete() error {
	return nil
}

// Perform implements the module's perform-dispatch opcode multiplexer.
func (d *Device) Perform(op Opcode, args ...any) (any, error) {
	switch op {
	case OpGetDRMFD:
		return int(d.fd.FD()), nil
	case OpGetDRMMagic:
		magic, err := d.fd.GetMagic()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInval, err)
		}
		return magic, nil
	case OpAuthDRMMagic:
		magic, ok := args[0].(uint32)
		if !ok {
			return nil, ErrInval
		}
		if err := d.fd.AuthMagic(magic); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInval, err)
		}
		return nil, nil
	case OpEnterVT:
		if err := d.fd.SetMaster(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInval, err)
		}
		d.mu.Lock()
		poster := d.poster
		d.mu.Unlock()
		if poster != nil {
			poster.ResetFirstPost()
		}
		return nil, nil
	case OpLeaveVT:
		if err := d.fd.DropMaster(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInval, err)
		}
		return nil, nil
	default:
		return nil, ErrInval
	}
}

// ReservePlane and DisablePlanes forward to the lazily-built overlay
// manager, implementing surface over a *handle.Handle.
func (d *Device) ReservePlane(h *handle.Handle, target *handle.Handle, reservationID uint32, dstRect, srcRect driver.Rect) error {
	if err := d.ensureKMS(); err != nil {
		return err
	}
	d.mu.Lock()
	b := d.bom.Lookup(target)
	d.mu.Unlock()
	if b == nil {
		return ErrInval
	}
	if d.planes == nil {
		return ErrBusy
	}
	if err := d.planes.Reserve(h, b, reservationID, dstRect, srcRect); err != nil {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return nil
}

func (d *Device) DisablePlanes() error {
	if err := d.ensureKMS(); err != nil {
		return err
	}
	if d.planes == nil {
		return nil
	}
	d.planes.DisableAll()
	return nil
}

// Shutdown implements process-singleton termination hook.
// It is meant to be called from a SIGINT/SIGTERM handler installed by
// the process entry point (cmd/grallocctl), not by library code itself.
func (d *Device) Shutdown() {
	d.mu.Lock()
	poster := d.poster
	hotplug := d.hotplug
	d.mu.Unlock()
	if hotplug != nil {
		hotplug.Close()
	}
	if poster != nil {
		poster.Shutdown()
	}
}
