package drmfd

import "golang.org/x/sys/unix"

// MapDumb maps a dumb buffer's backing store into this process's address
// space for CPU access, used by backend.Map implementations that need
// software read/write. The kernel's fake-mmap-offset indirection (an
// offset that doesn't correspond to real file content, only to an object
// to mmap) is resolved first via MapDumbOffset.
func (d *File) MapDumb(gemHandle uint32, size uint64) ([]byte, error) {
	offset, err := d.MapDumbOffset(gemHandle)
	if err != nil {
		return nil, err
	}
	return unix.Mmap(int(d.fd), int64(offset), int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// UnmapDumb reverses MapDumb.
func (d *File) UnmapDumb(data []byte) error {
	return unix.Munmap(data)
}
