package allocator

import (
	"minos/kernel"
	"minos/kernel/kfmt"
	"minos/kernel/mem"
	"minos/kernel/mem/pmm"
)

// SelfTestOnInit controls whether Init exercises the allocator
// consistency checks once the free list has been built. The checks are
// meant for debug configurations: they are destructive to the free list
// order and abort on the first violation since a broken allocator must
// never reach a real workload.
var SelfTestOnInit = true

var errSelfTest = &kernel.Error{Module: "pmm", Message: "self test failed"}

func checkAssert(cond bool, what string) {
	if !cond {
		errSelfTest.Message = "self test: " + what
		panicFn(errSelfTest)
	}
}

// checkFreeList audits the free list: every entry must be a valid,
// non-reserved frame and the list must terminate without cycling.
//
// With onlyLowMemory set the list is first re-partitioned so that frames
// below the 4Mb boundary come first, preserving relative order within
// each partition; this early in boot only those frames are guaranteed to
// be mapped, and subsequent allocations must draw from them.
func (alloc *ListAllocator) checkFreeList(onlyLowMemory bool) {
	checkAssert(alloc.freeHead != linkEnd, "free list is empty")

	lowLimitFrame := uint32(uint64(mem.HugePageSize) >> mem.PageShift)

	if onlyLowMemory {
		var (
			heads = [2]uint32{linkEnd, linkEnd}
			tails = [2]*uint32{&heads[0], &heads[1]}
		)

		for cur := alloc.freeHead; cur != linkEnd; {
			next := alloc.descriptors[cur].link

			bucket := 0
			if cur >= lowLimitFrame {
				bucket = 1
			}
			*tails[bucket] = cur
			tails[bucket] = &alloc.descriptors[cur].link

			cur = next
		}
		*tails[1] = linkEnd
		*tails[0] = heads[1]
		alloc.freeHead = heads[0]
	}

	// Scribble over the start of every checked free page so that any
	// code still holding a reference to one surfaces quickly.
	limitFrame := uint32(alloc.totalFrames)
	if onlyLowMemory {
		limitFrame = lowLimitFrame
	}
	for cur := alloc.freeHead; cur != linkEnd; cur = alloc.descriptors[cur].link {
		if cur < limitFrame {
			kernel.Memset(alloc.PageBytes(pmm.Frame(cur))[:128], 0x97)
		}
	}

	firstFreeAddr := alloc.bootAlloc.Alloc(0)

	var (
		nFreeBase, nFreeExt int
		count               uint64
	)

	for cur := alloc.freeHead; cur != linkEnd; cur = alloc.descriptors[cur].link {
		count++
		if count > alloc.totalFrames {
			checkAssert(false, "free list cycles")
			return
		}

		checkAssert(uint64(cur) < alloc.totalFrames, "free frame outside the descriptor table")

		// A few frames that must never be free.
		physAddr := pmm.Frame(cur).Address()
		checkAssert(physAddr != 0, "frame 0 on the free list")
		checkAssert(physAddr != mem.IOHoleStart, "first I/O hole frame on the free list")
		checkAssert(physAddr != mem.ExtendedMemBase-uintptr(mem.PageSize), "last I/O hole frame on the free list")
		checkAssert(physAddr != mem.ExtendedMemBase, "first extended memory frame on the free list")
		checkAssert(physAddr < mem.ExtendedMemBase || pmm.Frame(cur).KernelAddress() >= firstFreeAddr,
			"kernel-reserved frame on the free list")

		if physAddr < mem.ExtendedMemBase {
			nFreeBase++
		} else {
			nFreeExt++
		}
	}

	checkAssert(nFreeBase > 0, "no free base memory frames")
	checkAssert(nFreeExt > 0, "no free extended memory frames")
}

// checkAlloc exercises pageInit, AllocFrame and FreeFrame: allocation
// distinctness, exhaustion behavior, zero-filling, free-count
// conservation and the alignment and spacing of huge allocations.
func (alloc *ListAllocator) checkAlloc() {
	checkAssert(len(alloc.descriptors) != 0, "descriptor table not allocated")

	mustAlloc := func(flags AllocFlag) pmm.Frame {
		frame, err := alloc.AllocFrame(flags)
		checkAssert(err == nil, "allocation failed unexpectedly")
		return frame
	}

	maxPhysAddr := uintptr(alloc.totalFrames << mem.PageShift)
	totalFree := alloc.FreeCount()

	// Three allocations must yield three distinct in-range frames.
	pp0 := mustAlloc(0)
	pp1 := mustAlloc(0)
	pp2 := mustAlloc(0)
	checkAssert(pp0 != pp1 && pp0 != pp2 && pp1 != pp2, "allocations returned the same frame twice")
	checkAssert(pp0.Address() < maxPhysAddr, "allocated frame beyond installed memory")
	checkAssert(pp1.Address() < maxPhysAddr, "allocated frame beyond installed memory")
	checkAssert(pp2.Address() < maxPhysAddr, "allocated frame beyond installed memory")

	// Temporarily steal the rest of the free list to simulate a
	// no-free-memory situation.
	savedHead := alloc.freeHead
	alloc.freeHead = linkEnd

	_, err := alloc.AllocFrame(0)
	checkAssert(err == errOutOfMemory, "allocation from an empty free list must fail")

	// Free and re-allocate the three frames.
	alloc.FreeFrame(pp0)
	alloc.FreeFrame(pp1)
	alloc.FreeFrame(pp2)
	pp0 = mustAlloc(0)
	pp1 = mustAlloc(0)
	pp2 = mustAlloc(0)
	checkAssert(pp0 != pp1 && pp0 != pp2 && pp1 != pp2, "allocations returned the same frame twice")
	_, err = alloc.AllocFrame(0)
	checkAssert(err == errOutOfMemory, "allocation must fail once the stolen list is drained")

	// AllocZero must scrub the previous page contents.
	kernel.Memset(alloc.PageBytes(pp0), 1)
	alloc.FreeFrame(pp0)
	pp := mustAlloc(AllocZero)
	checkAssert(pp == pp0, "expected LIFO reuse of the last freed frame")
	page := alloc.PageBytes(pp)
	for i := 0; i < len(page); i++ {
		if page[i] != 0 {
			checkAssert(false, "AllocZero returned a dirty page")
			break
		}
	}

	// Give the free list back and release the frames we took.
	alloc.freeHead = savedHead
	alloc.FreeFrame(pp0)
	alloc.FreeFrame(pp1)
	alloc.FreeFrame(pp2)

	checkAssert(alloc.FreeCount() == totalFree, "free frame count changed after an alloc/free cycle")
	kfmt.Printf("[pmm] page allocator check passed (4K)\n")

	// A huge allocation must be naturally aligned and must not overlap
	// neighbouring single-frame allocations.
	pp0 = mustAlloc(0)
	php0 := mustAlloc(AllocHuge)
	pp1 = mustAlloc(0)
	checkAssert(pp0 != php0 && pp0 != pp1 && php0 != pp1, "allocations returned the same frame twice")
	checkAssert(php0.IsHugeAligned(), "huge allocation is not naturally aligned")
	if pp1.Address() > php0.Address() {
		checkAssert(pp1.Address()-php0.Address() >= uintptr(mem.HugePageSize), "frame allocated inside a live huge page")
	}

	// Free and re-allocate two huge pages; they must be spaced at least
	// one huge page apart.
	alloc.FreeFrame(php0)
	alloc.FreeFrame(pp0)
	alloc.FreeFrame(pp1)
	php0 = mustAlloc(AllocHuge)
	php1 := mustAlloc(AllocHuge)
	if php1.Address() > php0.Address() {
		checkAssert(php1.Address()-php0.Address() >= uintptr(mem.HugePageSize), "huge allocations overlap")
	} else {
		checkAssert(php0.Address()-php1.Address() >= uintptr(mem.HugePageSize), "huge allocations overlap")
	}

	alloc.FreeFrame(php0)
	alloc.FreeFrame(php1)

	checkAssert(alloc.FreeCount() == totalFree, "free frame count changed after a huge alloc/free cycle")
	kfmt.Printf("[pmm] page allocator check passed (4M)\n")
}
