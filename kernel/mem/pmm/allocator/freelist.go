// Package allocator implements the kernel's physical page-frame
// allocation sub-system. A short-lived boot bump allocator carves out the
// frame descriptor table; after that, a reference-counted free-list
// allocator serves every physical frame request for the life of the
// kernel, including naturally aligned huge-page allocations layered on
// top of the single-frame bookkeeping.
package allocator

import (
	"math"
	"unsafe"

	"minos/kernel"
	"minos/kernel/hal/cmos"
	"minos/kernel/mem"
	"minos/kernel/mem/pmm"
)

// AllocFlag describes the allocation options accepted by AllocFrame.
type AllocFlag uint32

const (
	// AllocZero instructs the allocator to zero-fill the returned page
	// (or huge page) before handing it out. The flag applies to the
	// request only; it is not recorded on the frame.
	AllocZero AllocFlag = 1 << iota

	// AllocHuge requests a naturally aligned huge page: a run of
	// physically contiguous free frames starting at a frame whose
	// address is a multiple of mem.HugePageSize.
	AllocHuge
)

// frameFlag is the set of persistent per-frame descriptor flags.
type frameFlag uint8

const (
	// flagHugeHead marks the first frame of a live huge allocation.
	flagHugeHead frameFlag = 1 << iota
)

const (
	// linkNone marks a descriptor that is not a member of the free list.
	linkNone = math.MaxUint32

	// linkEnd terminates the free list. It is distinct from linkNone so
	// that membership checks work for the last list entry too.
	linkEnd = math.MaxUint32 - 1
)

// frameDesc tracks the allocation state of a single physical page frame.
// Descriptors never move or get released; only the frame they describe
// cycles between the free and allocated states.
type frameDesc struct {
	// refCount counts the logical owners of the frame. Frames with a
	// zero refCount are eligible for the free list. The allocator never
	// raises the count on its own; retaining callers do, through
	// IncrefFrame.
	refCount uint32

	// link is the index of the next frame on the free list, linkEnd for
	// the last list entry, or linkNone while the frame is allocated or
	// reserved. A linked descriptor that is not actually reachable from
	// the list head signals corruption.
	link uint32

	flags frameFlag
}

var (
	// FrameAllocator is the ListAllocator instance that serves all
	// physical frame allocations once Init has run.
	FrameAllocator ListAllocator

	errNoMemoryDetected = &kernel.Error{Module: "pmm", Message: "no installed memory detected"}
	errOutOfMemory      = &kernel.Error{Module: "pmm", Message: "out of memory"}
	errDoubleFree       = &kernel.Error{Module: "pmm", Message: "free of a frame that is already on the free list"}
	errFreeLiveFrame    = &kernel.Error{Module: "pmm", Message: "free of a frame with a non-zero reference count"}
	errRefUnderflow     = &kernel.Error{Module: "pmm", Message: "reference count decremented below zero"}
	errFrameOutOfRange  = &kernel.Error{Module: "pmm", Message: "frame index out of range"}
	errFreeListCorrupt  = &kernel.Error{Module: "pmm", Message: "free list corrupted"}
)

// ListAllocator tracks physical page frames through a descriptor table
// built once at boot. Free frames are threaded through the table as an
// index-linked LIFO list; allocation pops the head in O(1) and huge-page
// requests scan the table for an aligned run of free frames.
//
// The allocator runs on the single boot thread of control and performs no
// locking; a post-boot multi-core user must add mutual exclusion around
// every operation.
type ListAllocator struct {
	// totalFrames is the number of physical page frames reported by the
	// memory detector. Valid frame indices are 0 <= i < totalFrames.
	totalFrames uint64

	// baseMemFrames is the number of frames that belong to base memory.
	baseMemFrames uint64

	descriptors []frameDesc
	freeHead    uint32

	// physMem holds the contents of the physical pages managed by the
	// allocator; the page for frame i occupies the byte range
	// [i*PageSize, (i+1)*PageSize).
	physMem []byte

	bootAlloc bootMemAllocator
}

// Init sets up the kernel physical memory allocation sub-system: it
// detects installed memory, reserves the frame descriptor table through
// the boot bump allocator, builds the initial free list and retires the
// boot allocator. With SelfTestOnInit set it also exercises the allocator
// consistency checks before returning. Init must be called exactly once
// at boot.
func Init(read cmos.ReadRegisterFn, kernelEnd uintptr) *kernel.Error {
	return FrameAllocator.init(read, kernelEnd)
}

func (alloc *ListAllocator) init(read cmos.ReadRegisterFn, kernelEnd uintptr) *kernel.Error {
	alloc.detectMemory(read)
	if alloc.totalFrames == 0 {
		return errNoMemoryDetected
	}

	memBytes := alloc.totalFrames << mem.PageShift
	alloc.bootAlloc.init(kernelEnd, mem.KernelBase+uintptr(memBytes))
	alloc.physMem = make([]byte, memBytes)

	// Reserve room for one descriptor per frame. Advancing the boot
	// cursor over the table keeps its backing frames off the free list.
	alloc.bootAlloc.Alloc(mem.Size(alloc.totalFrames) * mem.Size(unsafe.Sizeof(frameDesc{})))
	alloc.descriptors = make([]frameDesc, alloc.totalFrames)

	alloc.pageInit()

	if SelfTestOnInit {
		alloc.checkFreeList(true)
		alloc.checkAlloc()
	}

	alloc.bootAlloc.retire()
	return nil
}

// pageInit builds the initial free list. Every frame except frame 0 is
// classified as I/O hole, kernel-reserved (below the boot allocator's
// cursor) or free; free frames are pushed onto the list head in ascending
// index order, so list traversal yields descending frame numbers.
func (alloc *ListAllocator) pageInit() {
	for i := range alloc.descriptors {
		alloc.descriptors[i].refCount = 0
		alloc.descriptors[i].link = linkNone
		alloc.descriptors[i].flags = 0
	}
	alloc.freeHead = linkEnd

	ioHoleStartFrame := uint64(mem.IOHoleStart) >> mem.PageShift
	ioHoleEndFrame := uint64(mem.IOHoleEnd) >> mem.PageShift
	kernelReservedEnd := uint64(pmm.FrameFromKernelAddress(alloc.bootAlloc.Alloc(0)))

	// Frame 0 is historically reserved and never enters the free list.
	for i := uint64(1); i < alloc.totalFrames; i++ {
		inIOHole := i >= ioHoleStartFrame && i < ioHoleEndFrame
		inKernelArea := i >= ioHoleEndFrame && i < kernelReservedEnd
		if inIOHole || inKernelArea {
			continue
		}

		alloc.push(uint32(i))
	}
}

// AllocFrame reserves a frame and returns it. The returned frame's
// reference count is left untouched; callers that retain the frame must
// raise it through IncrefFrame. With AllocZero set, the full page (or
// huge page) is zero-filled before it is returned. If no frame can
// satisfy the request, AllocFrame returns InvalidFrame together with an
// out-of-memory error and leaves the allocator untouched.
func (alloc *ListAllocator) AllocFrame(flags AllocFlag) (pmm.Frame, *kernel.Error) {
	if flags&AllocHuge != 0 {
		return alloc.allocHuge(flags)
	}

	if alloc.freeHead == linkEnd {
		return pmm.InvalidFrame, errOutOfMemory
	}

	idx := alloc.freeHead
	alloc.freeHead = alloc.descriptors[idx].link
	alloc.descriptors[idx].link = linkNone

	if flags&AllocZero != 0 {
		alloc.zeroFill(idx, 1)
	}

	return pmm.Frame(idx), nil
}

// allocHuge scans the descriptor table in ascending order for the first
// naturally aligned run of pmm.FramesPerHugePage free frames. On success
// every frame in the run is individually unlinked from the free list and
// the first frame is tagged as the huge head. The scan is linear over the
// whole table per request; simplicity wins over speed here since huge
// allocations are rare.
func (alloc *ListAllocator) allocHuge(flags AllocFlag) (pmm.Frame, *kernel.Error) {
	run := pmm.FramesPerHugePage

	for start := uint64(0); start+run <= alloc.totalFrames; start += run {
		n := uint64(0)
		for ; n < run; n++ {
			if alloc.descriptors[start+n].link == linkNone {
				break
			}
		}
		if n != run {
			continue
		}

		for n = 0; n < run; n++ {
			alloc.unlink(uint32(start + n))
		}
		alloc.descriptors[start].flags |= flagHugeHead

		if flags&AllocZero != 0 {
			alloc.zeroFill(uint32(start), run)
		}

		return pmm.Frame(start), nil
	}

	return pmm.InvalidFrame, errOutOfMemory
}

// FreeFrame returns frame f to the free list. The caller must have
// dropped the frame's reference count to zero beforehand. Freeing a frame
// whose link is not the "not linked" sentinel indicates a double free or
// link corruption and is fatal, never silently ignored. If f heads a huge
// allocation, all of its constituent frames return to the free list and
// each one has its huge flag cleared along the way.
func (alloc *ListAllocator) FreeFrame(f pmm.Frame) {
	idx := alloc.mustIndex(f)
	desc := &alloc.descriptors[idx]

	if desc.link != linkNone {
		panicFn(errDoubleFree)
		return
	}

	if desc.refCount != 0 {
		panicFn(errFreeLiveFrame)
		return
	}

	run := uint32(1)
	if desc.flags&flagHugeHead != 0 {
		run = uint32(pmm.FramesPerHugePage)
	}

	for n := uint32(0); n < run; n++ {
		alloc.descriptors[idx+n].flags &^= flagHugeHead
		alloc.push(idx + n)
	}
}

// IncrefFrame records an additional logical owner of frame f.
func (alloc *ListAllocator) IncrefFrame(f pmm.Frame) {
	idx := alloc.mustIndex(f)
	alloc.descriptors[idx].refCount++
}

// DecrefFrame drops one logical owner of frame f and returns the frame to
// the free list once the last owner is gone. Decrementing a frame already
// at zero is fatal misuse.
func (alloc *ListAllocator) DecrefFrame(f pmm.Frame) {
	idx := alloc.mustIndex(f)
	desc := &alloc.descriptors[idx]

	if desc.refCount == 0 {
		panicFn(errRefUnderflow)
		return
	}

	desc.refCount--
	if desc.refCount == 0 {
		alloc.FreeFrame(f)
	}
}

// FreeCount walks the free list and returns the number of frames on it.
func (alloc *ListAllocator) FreeCount() uint64 {
	var count uint64
	for cur := alloc.freeHead; cur != linkEnd; cur = alloc.descriptors[cur].link {
		count++
		if count > alloc.totalFrames {
			panicFn(errFreeListCorrupt)
			return count
		}
	}

	return count
}

// TotalFrames returns the number of physical frames tracked by the
// allocator.
func (alloc *ListAllocator) TotalFrames() uint64 {
	return alloc.totalFrames
}

// PageBytes returns the contents of the page backing frame f as seen
// through the kernel's mapping.
func (alloc *ListAllocator) PageBytes(f pmm.Frame) []byte {
	idx := uint64(alloc.mustIndex(f))
	return alloc.physMem[idx<<mem.PageShift : (idx+1)<<mem.PageShift]
}

// push links frame index idx at the head of the free list.
func (alloc *ListAllocator) push(idx uint32) {
	alloc.descriptors[idx].link = alloc.freeHead
	alloc.freeHead = idx
}

// unlink removes frame index idx from the free list and marks it as not
// linked. The list is singly linked, so removal of a non-head entry walks
// the list to find its predecessor. Not finding idx on the list even
// though its descriptor claims membership is fatal corruption.
func (alloc *ListAllocator) unlink(idx uint32) {
	desc := &alloc.descriptors[idx]

	if alloc.freeHead == idx {
		alloc.freeHead = desc.link
		desc.link = linkNone
		return
	}

	for cur := alloc.freeHead; cur != linkEnd; cur = alloc.descriptors[cur].link {
		if alloc.descriptors[cur].link == idx {
			alloc.descriptors[cur].link = desc.link
			desc.link = linkNone
			return
		}
	}

	panicFn(errFreeListCorrupt)
}

// mustIndex validates that f identifies a frame tracked by the descriptor
// table. Passing an out-of-range frame is a programmer error.
func (alloc *ListAllocator) mustIndex(f pmm.Frame) uint32 {
	if uint64(f) >= alloc.totalFrames {
		panicFn(errFrameOutOfRange)
		return 0
	}

	return uint32(f)
}

// zeroFill clears the pages of the frames-long run starting at frame
// index idx.
func (alloc *ListAllocator) zeroFill(idx uint32, frames uint64) {
	start := uint64(idx) << mem.PageShift
	end := start + frames<<mem.PageShift
	kernel.Memset(alloc.physMem[start:end], 0)
}
