package intel

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gralloc/drm/internal/drmfd"
)

// MI_BATCH_BUFFER_END and MI_NOOP, from <drm/i915_drm.h>'s command
// stream opcodes.
const (
	miBatchBufferEnd uint32 = 0x0A000000
	miNoop           uint32 = 0
)

// MI_FLUSH and its gen<4 cache-invalidate bits; MI_FLUSH_DW used on gen>=6.
const (
	miFlush               uint32 = 0x04000000
	miFlushInvalidateMap  uint32 = 1 << 0
	miFlushWriteFlush     uint32 = 1 << 1
	miFlushDW             uint32 = 0x3A << 23
)

// Ring selectors for I915_EXECBUFFER2's flags, from <drm/i915_drm.h>.
const (
	execRingRender uint64 = 1
	execRingBLT    uint64 = 3
)

// batchBuilder accumulates BLT commands and submits them as one GPU
// command batch, following a reserve/reloc/flush contract.
type batchBuilder struct {
	fd  *drmfd.File
	gen int

	cmds    []uint32
	relocs  []relocationEntry
	objects map[uint32]int
	objExec []execObject2
}

func newBatchBuilder(fd *drmfd.File, gen int) *batchBuilder {
	return &batchBuilder{fd: fd, gen: gen, objects: make(map[uint32]int)}
}

// reserve appends n zeroed dwords to the in-progress command stream and
// returns the index of the first one, for the caller to fill via
// cmds[idx:idx+n].
func (bb *batchBuilder) reserve(n int) int {
	idx := len(bb.cmds)
	bb.cmds = append(bb.cmds, make([]uint32, n)...)
	return idx
}

// set writes a single dword reserved by an earlier reserve call.
func (bb *batchBuilder) set(dwordIndex int, value uint32) {
	bb.cmds[dwordIndex] = value
}

// reloc records that the dword at dwordIndex names target and must be
// patched with target's presumed GPU address at submission, and that
// target participates in this batch with the given GEM domain
// requirements.
func (bb *batchBuilder) reloc(dwordIndex int, target uint32, readDomains, writeDomain uint32) {
	if _, ok := bb.objects[target]; !ok {
		bb.objExec = append(bb.objExec, execObject2{Handle: target})
		bb.objects[target] = len(bb.objExec) - 1
	}
	bb.relocs = append(bb.relocs, relocationEntry{
		TargetHandle: target,
		Offset:       uint64(dwordIndex) * 4,
		ReadDomains:  readDomains,
		WriteDomain:  writeDomain,
	})
}

// tilePitchShift is the right-shift BLT source/destination pitch fields
// need for tiled surfaces on gen >= 4 hardware, which stores tiled pitch
// in units of 4 bytes rather than 1.
func tilePitchShift(gen int) uint {
	if gen >= 4 {
		return 2
	}
	return 0
}

// appendCacheFlush appends the generation-appropriate cache-flush tail
// before MI_BATCH_BUFFER_END: MI_FLUSH_DW on gen >= 6, otherwise MI_FLUSH
// with the invalidate/write-flush bits set for gen < 4.
func (bb *batchBuilder) appendCacheFlush() {
	if bb.gen >= 6 {
		idx := bb.reserve(3)
		bb.set(idx, miFlushDW)
		bb.set(idx+1, 0)
		bb.set(idx+2, 0)
		return
	}
	cmd := miFlush
	if bb.gen < 4 {
		cmd |= miFlushInvalidateMap | miFlushWriteFlush
	}
	idx := bb.reserve(1)
	bb.set(idx, cmd)
}

// flush terminates the command stream with a cache flush and
// MI_BATCH_BUFFER_END, uploads it into a fresh batch BO, and submits on
// the BLT ring, falling back to the legacy render ring when the kernel
// rejects BLT submission (pre-gen6 hardware has no separate blit ring).
// A fresh batch BO backs every flush: there is no buffer reuse across
// calls.
func (bb *batchBuilder) flush() error {
	if len(bb.cmds) == 0 {
		return nil
	}
	bb.appendCacheFlush()
	bb.cmds = append(bb.cmds, miBatchBufferEnd)
	if len(bb.cmds)%2 != 0 {
		bb.cmds = append(bb.cmds, miNoop)
	}

	size := uint64(len(bb.cmds) * 4)
	batchHandle, err := bb.createAndUpload(size)
	if err != nil {
		return fmt.Errorf("intel: batch upload: %w", err)
	}
	defer bb.fd.GemClose(batchHandle)

	batchObj := execObject2{Handle: batchHandle}
	if len(bb.relocs) > 0 {
		batchObj.RelocationCount = uint32(len(bb.relocs))
		batchObj.RelocsPtr = uint64(uintptr(unsafe.Pointer(&bb.relocs[0])))
	}
	objs := append(append([]execObject2{}, bb.objExec...), batchObj)

	eb := execbuffer2{
		BuffersPtr:  uint64(uintptr(unsafe.Pointer(&objs[0]))),
		BufferCount: uint32(len(objs)),
		BatchLen:    uint32(size),
		Flags:       execRingBLT,
	}
	if err := bb.fd.Ioctl(iocGemExecbuffer2, uintptr(unsafe.Pointer(&eb))); err != nil {
		eb.Flags = execRingRender
		if err := bb.fd.Ioctl(iocGemExecbuffer2, uintptr(unsafe.Pointer(&eb))); err != nil {
			bb.reset()
			return fmt.Errorf("intel: execbuffer2 (render ring fallback): %w", err)
		}
	}

	bb.reset()
	return nil
}

func (bb *batchBuilder) reset() {
	bb.cmds = nil
	bb.relocs = nil
	bb.objects = make(map[uint32]int)
	bb.objExec = nil
}

func (bb *batchBuilder) createAndUpload(size uint64) (uint32, error) {
	c := gemCreate{Size: size}
	if err := bb.fd.Ioctl(iocGemCreate, uintptr(unsafe.Pointer(&c))); err != nil {
		return 0, err
	}

	m := gemMmap{Handle: c.Handle, Size: size}
	if err := bb.fd.Ioctl(iocGemMmap, uintptr(unsafe.Pointer(&m))); err != nil {
		bb.fd.GemClose(c.Handle)
		return 0, err
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(m.AddrPtr))), int(size))
	for i, dword := range bb.cmds {
		binary.NativeEndian.PutUint32(data[i*4:i*4+4], dword)
	}
	unix.Munmap(data)

	return c.Handle, nil
}
