package allocator

import (
	"minos/kernel/hal/cmos"
	"minos/kernel/kfmt"
	"minos/kernel/mem"
)

// detectMemory queries the BIOS-maintained NVRAM registers for the
// installed base and extended memory sizes (in KB) and derives the total
// frame count. If extended memory is present the frame count covers the
// frames up to the extended memory base plus all extended memory frames;
// otherwise only the base memory frames are counted.
//
// Detection itself cannot fail: absent hardware data simply yields a zero
// frame count which later stages must deal with.
func (alloc *ListAllocator) detectMemory(read cmos.ReadRegisterFn) {
	baseKb := uint64(cmos.Read16(read, cmos.RegBaseMemLo))
	extKb := uint64(cmos.Read16(read, cmos.RegExtMemLo))

	alloc.baseMemFrames = baseKb * uint64(mem.Kb) >> mem.PageShift
	extMemFrames := extKb * uint64(mem.Kb) >> mem.PageShift

	if extMemFrames != 0 {
		alloc.totalFrames = uint64(mem.ExtendedMemBase)>>mem.PageShift + extMemFrames
	} else {
		alloc.totalFrames = alloc.baseMemFrames
	}

	pageKb := uint64(mem.PageSize / mem.Kb)
	kfmt.Printf("[pmm] physical memory: %dK available, base = %dK, extended = %dK\n",
		alloc.totalFrames*pageKb,
		alloc.baseMemFrames*pageKb,
		extMemFrames*pageKb,
	)
}
