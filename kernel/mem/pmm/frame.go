// Package pmm contains types for tracking and addressing physical memory
// page frames.
package pmm

import (
	"math"

	"minos/kernel"
	"minos/kernel/kfmt"
	"minos/kernel/mem"
)

// FramesPerHugePage is the number of regular, physically contiguous frames
// spanned by one huge page.
const FramesPerHugePage = uint64(mem.HugePageSize / mem.PageSize)

var (
	// panicFn is mocked by tests.
	panicFn = kfmt.Panic

	errNotKernelMapped = &kernel.Error{Module: "pmm", Message: "address is below the kernel mapping base"}
)

// Frame describes a physical memory page index.
type Frame uintptr

const (
	// InvalidFrame is returned by page allocators when they fail to
	// reserve the requested frame.
	InvalidFrame = Frame(math.MaxUint64)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the first byte of the page that
// this Frame describes.
func (f Frame) Address() uintptr {
	return uintptr(f) << mem.PageShift
}

// KernelAddress returns the address of this frame's page inside the
// kernel's mapped address space.
func (f Frame) KernelAddress() uintptr {
	return f.Address() + mem.KernelBase
}

// IsHugeAligned returns true if this frame can serve as the head of a huge
// page, that is its physical address is a multiple of mem.HugePageSize.
func (f Frame) IsHugeAligned() bool {
	return f.Address()&(uintptr(mem.HugePageSize)-1) == 0
}

// FrameFromAddress returns a Frame that corresponds to the given physical
// address. This function can handle both page-aligned and not aligned
// addresses. In the latter case, the input address will be rounded down to
// the frame that contains it.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr & ^(uintptr(mem.PageSize - 1))) >> mem.PageShift)
}

// FrameFromKernelAddress translates an address inside the kernel's mapped
// address space back to the Frame that contains it. Addresses below the
// kernel mapping base do not correspond to any frame; passing one is a
// programmer error and aborts.
func FrameFromKernelAddress(virtAddr uintptr) Frame {
	if virtAddr < mem.KernelBase {
		panicFn(errNotKernelMapped)
		return InvalidFrame
	}

	return FrameFromAddress(virtAddr - mem.KernelBase)
}
