package nouveau

import "testing"

func TestComputeSizeAlignsWidthHeightAndPage(t *testing.T) {
	stride, size := computeSize(100, 50, 4)
	wantStride := uint32(128) * 4 // 100 -> 128 (64px align)
	if stride != wantStride {
		t.Fatalf("stride = %d, want %d", stride, wantStride)
	}
	wantSize := alignUp(uint64(128)*uint64(64)*4, pageAlign) // 50 -> 64 (64px align)
	if size != wantSize {
		t.Fatalf("size = %d, want %d", size, wantSize)
	}
	if size%pageAlign != 0 {
		t.Fatalf("size %d not page-aligned", size)
	}
}

func TestComputeSizeExactMultiples(t *testing.T) {
	stride, size := computeSize(64, 64, 4)
	if stride != 64*4 {
		t.Fatalf("stride = %d, want %d", stride, 64*4)
	}
	if size != pageAlign*4 {
		t.Fatalf("size = %d, want %d", size, pageAlign*4)
	}
}
