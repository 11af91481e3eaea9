package drmfd

import (
	"encoding/binary"
	"fmt"
)

// Event kinds, from <drm/drm.h>.
const (
	EventVBlank      = 0x01
	EventFlipComplete = 0x02
)

// Event is a decoded DRM event record: a page-flip or vblank completion.
type Event struct {
	Type     uint32
	Sequence uint32
	CrtcID   uint32 // 0 on kernels predating per-crtc event CRTC ids
	UserData uint64
}

// eventHeaderSize and eventVBlankSize mirror struct drm_event and
// struct drm_event_vblank.
const (
	eventHeaderSize = 8
	eventVBlankSize = 8 + 8 + 4 + 4 + 4 + 4
)

// HandleEvent performs one blocking read of the DRM fd's event queue and
// dispatches each decoded event to onEvent. All event handling funnels
// through this single call, which the posting thread pumps.
func (d *File) HandleEvent(onEvent func(Event)) error {
	buf := make([]byte, 1024)
	n, err := d.f.Read(buf)
	if err != nil {
		return fmt.Errorf("drmfd: read event: %w", err)
	}

	buf = buf[:n]
	for len(buf) >= eventHeaderSize {
		typ := binary.LittleEndian.Uint32(buf[0:4])
		length := binary.LittleEndian.Uint32(buf[4:8])
		if int(length) > len(buf) || length < eventHeaderSize {
			return fmt.Errorf("drmfd: malformed event (type=%d length=%d)", typ, length)
		}
		rec := buf[:length]

		if typ == EventVBlank || typ == EventFlipComplete {
			if len(rec) >= eventVBlankSize {
				userData := binary.LittleEndian.Uint64(rec[8:16])
				sequence := binary.LittleEndian.Uint32(rec[24:28])
				var crtcID uint32
				if len(rec) >= eventVBlankSize {
					crtcID = binary.LittleEndian.Uint32(rec[28:32])
				}
				onEvent(Event{Type: typ, Sequence: sequence, CrtcID: crtcID, UserData: userData})
			}
		}

		buf = buf[length:]
	}
	return nil
}
