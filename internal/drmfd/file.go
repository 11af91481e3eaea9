// Package drmfd wraps the small set of DRM/KMS ioctls this allocator
// issues against /dev/dri/cardN: VERSION, GETMAGIC, AUTHMAGIC, SETMASTER,
// DROPMASTER, GEM flink/open/close, the generic dumb-buffer trio, the
// MODE_GET*/ADDFB2/RMFB/SETCRTC/PAGE_FLIP/DIRTYFB/SETPLANE family, and
// WAIT_VBLANK. Vendor-specific (i915/radeon/nouveau) ioctls live in their
// owning backend package and call through File.Ioctl directly.
package drmfd

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/gralloc/drm/internal/ioctlnum"
)

// drmIOCType is the ioctl type byte ('d') the kernel assigns to DRM core
// ioctls, per <drm/drm.h>.
const drmIOCType = 0x64

// File is a thin handle over the open DRM character device fd. All
// blocking happens in the kernel; File itself adds no buffering.
type File struct {
	f  *os.File
	fd uintptr
}

// Open opens path (default "/dev/dri/card0") read-write, as required to
// issue modeset and GEM-allocation ioctls.
func Open(path string) (*File, error) {
	if path == "" {
		path = "/dev/dri/card0"
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("drmfd: open %s: %w", path, err)
	}
	return &File{f: f, fd: f.Fd()}, nil
}

// Close releases the underlying file descriptor.
func (d *File) Close() error {
	return d.f.Close()
}

// FD returns the raw file descriptor, for handing to an external
// collaborator (e.g. the compositor's GET_DRM_FD passthrough).
func (d *File) FD() uintptr {
	return d.fd
}

// Ioctl issues req against the DRM fd with arg as the argument pointer,
// retrying on EINTR the way the kernel's DRM ioctl path expects callers
// to (modeset ioctls can be interrupted by a pending signal).
func (d *File) Ioctl(req uintptr, arg uintptr) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.fd, req, arg)
		if errno == 0 {
			return nil
		}
		if errno == unix.EINTR {
			continue
		}
		return errno
	}
}

// iow/ior/iowr build DRM core ioctl numbers from a command number and an
// argument size, mirroring the kernel's DRM_IOW/DRM_IOR/DRM_IOWR macros.
func iow(nr, size uintptr) uintptr  { return ioctlnum.IOW(drmIOCType, nr, size) }
func ior(nr, size uintptr) uintptr  { return ioctlnum.IOR(drmIOCType, nr, size) }
func iowr(nr, size uintptr) uintptr { return ioctlnum.IOWR(drmIOCType, nr, size) }
