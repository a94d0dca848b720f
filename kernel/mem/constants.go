package mem

const (
	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right
	// by PageShift) and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)

	// HugePageSize defines the size of a huge page. A huge page spans
	// HugePageSize / PageSize regular frames.
	HugePageSize = 4 * Mb

	// IOHoleStart and IOHoleEnd bound the legacy I/O hole. Frames whose
	// physical address falls in [IOHoleStart, IOHoleEnd) are never
	// allocatable.
	IOHoleStart = uintptr(0xa0000)
	IOHoleEnd   = uintptr(0x100000)

	// ExtendedMemBase is the physical address where extended memory
	// begins.
	ExtendedMemBase = uintptr(0x100000)

	// KernelBase is the virtual address where physical address 0 is
	// mapped in the kernel's address space.
	KernelBase = uintptr(0xf0000000)
)
