package allocator

import (
	"testing"

	"minos/kernel/kfmt"
	"minos/kernel/mem"
)

func TestBootMemAllocator(t *testing.T) {
	var (
		alloc     bootMemAllocator
		kernelEnd = mem.KernelBase + mem.ExtendedMemBase + 123
		limit     = mem.KernelBase + uintptr(32*mem.Mb)
	)
	alloc.init(kernelEnd, limit)

	// The cursor initializes lazily to the page-rounded kernel image end
	// and a zero-size request must not advance it.
	expCursor := mem.KernelBase + mem.ExtendedMemBase + uintptr(mem.PageSize)
	if got := alloc.Alloc(0); got != expCursor {
		t.Fatalf("expected first peek to return %#x; got %#x", expCursor, got)
	}

	if got := alloc.Alloc(0); got != expCursor {
		t.Fatalf("expected repeated peek to return %#x; got %#x", expCursor, got)
	}

	// Reservations return the previous cursor and advance it by the
	// page-rounded request size.
	if got := alloc.Alloc(1); got != expCursor {
		t.Fatalf("expected reservation to return %#x; got %#x", expCursor, got)
	}

	expCursor += uintptr(mem.PageSize)
	if got := alloc.Alloc(0); got != expCursor {
		t.Fatalf("expected 1-byte reservation to advance the cursor to %#x; got %#x", expCursor, got)
	}

	if got := alloc.Alloc(2*mem.PageSize + 1); got != expCursor {
		t.Fatalf("expected reservation to return %#x; got %#x", expCursor, got)
	}

	expCursor += 3 * uintptr(mem.PageSize)
	if got := alloc.Alloc(0); got != expCursor {
		t.Fatalf("expected reservation to advance the cursor to %#x; got %#x", expCursor, got)
	}
}

func TestBootMemAllocatorExhaustion(t *testing.T) {
	defer func() {
		panicFn = kfmt.Panic
	}()

	var panicErr interface{}
	panicFn = func(e interface{}) {
		panicErr = e
	}

	var (
		alloc     bootMemAllocator
		kernelEnd = mem.KernelBase + mem.ExtendedMemBase
	)
	alloc.init(kernelEnd, kernelEnd+2*uintptr(mem.PageSize))

	if got := alloc.Alloc(3 * mem.PageSize); got != 0 {
		t.Fatalf("expected exhausted reservation to return 0; got %#x", got)
	}

	if panicErr != errBootAllocOutOfMemory {
		t.Fatalf("expected running past the mapped limit to be fatal; got %v", panicErr)
	}

	// The failed reservation must not move the cursor.
	if exp, got := kernelEnd, alloc.Alloc(0); got != exp {
		t.Fatalf("expected cursor to remain at %#x; got %#x", exp, got)
	}
}

func TestBootMemAllocatorRetire(t *testing.T) {
	defer func() {
		panicFn = kfmt.Panic
	}()

	var panicErr interface{}
	panicFn = func(e interface{}) {
		panicErr = e
	}

	var (
		alloc     bootMemAllocator
		kernelEnd = mem.KernelBase + mem.ExtendedMemBase
	)
	alloc.init(kernelEnd, kernelEnd+uintptr(32*mem.Mb))
	alloc.Alloc(mem.PageSize)
	alloc.retire()

	// The read-only peek stays legal after retirement.
	if exp, got := kernelEnd+uintptr(mem.PageSize), alloc.Alloc(0); got != exp {
		t.Fatalf("expected peek after retire to return %#x; got %#x", exp, got)
	}

	if panicErr != nil {
		t.Fatalf("expected peek after retire not to be fatal; got %v", panicErr)
	}

	if got := alloc.Alloc(mem.PageSize); got != 0 {
		t.Fatalf("expected reservation after retire to return 0; got %#x", got)
	}

	if panicErr != errBootAllocRetired {
		t.Fatalf("expected reservation after retire to be fatal; got %v", panicErr)
	}
}
