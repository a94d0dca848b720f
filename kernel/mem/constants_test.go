package mem

import "testing"

// The values below are fixed by the platform; the allocator's reserved
// region math and the NVRAM-based memory detection depend on them
// bit-exactly.
func TestPlatformConstants(t *testing.T) {
	if exp, got := Size(4096), PageSize; got != exp {
		t.Fatalf("expected PageSize to be %d; got %d", exp, got)
	}

	if exp, got := Size(1)<<PageShift, PageSize; got != exp {
		t.Fatalf("expected PageSize to match PageShift; got %d", got)
	}

	if exp, got := Size(1024), HugePageSize/PageSize; got != exp {
		t.Fatalf("expected a huge page to span %d frames; got %d", exp, got)
	}

	if exp, got := uintptr(0xa0000), IOHoleStart; got != exp {
		t.Fatalf("expected IOHoleStart to be %#x; got %#x", exp, got)
	}

	if exp, got := uintptr(0x100000), IOHoleEnd; got != exp {
		t.Fatalf("expected IOHoleEnd to be %#x; got %#x", exp, got)
	}

	if IOHoleEnd != ExtendedMemBase {
		t.Fatalf("expected the I/O hole to end where extended memory begins; got %#x / %#x", IOHoleEnd, ExtendedMemBase)
	}
}
