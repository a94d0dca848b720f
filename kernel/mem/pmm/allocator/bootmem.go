package allocator

import (
	"minos/kernel"
	"minos/kernel/kfmt"
	"minos/kernel/mem"
)

var (
	// panicFn is mocked by tests.
	panicFn = kfmt.Panic

	errBootAllocOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of identity-mapped memory"}
	errBootAllocRetired     = &kernel.Error{Module: "boot_mem_alloc", Message: "reservation attempted after handoff to the frame allocator"}
)

// bootMemAllocator implements a rudimentary bump allocator which is used
// only while the kernel bootstraps the free-list allocator. It carves
// page-rounded blocks out of the memory immediately above the loaded
// kernel image and never frees them.
//
// Once the free list has been constructed the allocator is retired: the
// reserved region it consumed stays off the free list forever, and any
// further reservation through it is fatal misuse. The zero-size peek form
// of Alloc stays usable since it does not mutate the cursor.
type bootMemAllocator struct {
	// kernelEnd is the address one past the last byte of the loaded
	// kernel image, as provided by the linker.
	kernelEnd uintptr

	// limit is the address one past the mapped region the allocator may
	// consume. Running past it is fatal; no allocator exists yet that
	// could recover the situation.
	limit uintptr

	// cursor is the address of the next free byte. A zero cursor marks
	// an allocator that has not served its first request yet.
	cursor uintptr

	// retired is set when the free-list allocator takes over.
	retired bool
}

// init sets up the boot memory allocator internal state.
func (alloc *bootMemAllocator) init(kernelEnd, limit uintptr) {
	alloc.kernelEnd = kernelEnd
	alloc.limit = limit
	alloc.cursor = 0
	alloc.retired = false
}

// Alloc reserves size bytes rounded up to a page boundary and returns the
// address of the start of the reservation inside the kernel's mapped
// address space. If size is zero, Alloc returns the current cursor without
// reserving anything; callers use this form to learn how much kernel
// memory is reserved so far.
func (alloc *bootMemAllocator) Alloc(size mem.Size) uintptr {
	pageSizeMinus1 := uintptr(mem.PageSize - 1)

	if alloc.cursor == 0 {
		alloc.cursor = (alloc.kernelEnd + pageSizeMinus1) & ^pageSizeMinus1
	}

	if size == 0 {
		return alloc.cursor
	}

	if alloc.retired {
		panicFn(errBootAllocRetired)
		return 0
	}

	next := (alloc.cursor + uintptr(size) + pageSizeMinus1) & ^pageSizeMinus1
	if next > alloc.limit {
		panicFn(errBootAllocOutOfMemory)
		return 0
	}

	out := alloc.cursor
	alloc.cursor = next
	return out
}

// retire marks the handoff point to the free-list allocator.
func (alloc *bootMemAllocator) retire() {
	alloc.retired = true
}
