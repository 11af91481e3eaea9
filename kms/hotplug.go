package kms

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/gralloc/drm/internal/drmfd"
	"github.com/gralloc/drm/internal/thread"
)

// FindSecondaryConnector returns the first connected HDMI-A connector
// distinct from the primary, implementing the secondary-output rule.
func FindSecondaryConnector(conns []drmfd.Connector, primaryConnectorID uint32) (drmfd.Connector, bool) {
	for _, c := range conns {
		if c.ID == primaryConnectorID {
			continue
		}
		if c.Type == connectorHDMIA && c.Connected && len(c.Modes) > 0 {
			return c, true
		}
	}
	return drmfd.Connector{}, false
}

// UeventListener watches the kernel's NETLINK_KOBJECT_UEVENT multicast
// group for DRM hotplug notifications and runs its read loop on a
// dedicated thread.Thread, keeping it off of whichever goroutine calls
// Post or SetSwapInterval. It reports only that *something* changed;
// deciding what reconnected or dropped is the caller's job, since that
// needs a device fd and KMS state this package doesn't own here.
type UeventListener struct {
	sock int
	th   *thread.Thread
}

// NewUeventListener opens and binds the uevent netlink socket.
func NewUeventListener() (*UeventListener, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("kms: open uevent socket: %w", err)
	}
	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("kms: bind uevent socket: %w", err)
	}
	return &UeventListener{sock: fd, th: thread.New()}, nil
}

// Run pumps uevent datagrams until ctx is cancelled or Close is called,
// invoking onChange once per DRM hotplug notification.
func (u *UeventListener) Run(ctx context.Context, onChange func()) {
	u.th.CallAsync(func() {
		buf := make([]byte, 4096)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, _, err := unix.Recvfrom(u.sock, buf, 0)
			if err != nil {
				return
			}
			msg := string(buf[:n])
			if strings.Contains(msg, "DEVTYPE=drm_minor") && strings.Contains(msg, "HOTPLUG=1") {
				onChange()
			}
		}
	})
}

// Close unblocks the read loop and stops its thread.
func (u *UeventListener) Close() error {
	err := unix.Close(u.sock)
	u.th.Stop()
	return err
}
