package pmm

import (
	"testing"

	"minos/kernel/kfmt"
	"minos/kernel/mem"
)

func TestFrameMethods(t *testing.T) {
	for frameIndex := uint64(0); frameIndex < 128; frameIndex++ {
		frame := Frame(frameIndex)

		if !frame.Valid() {
			t.Errorf("expected frame %d to be valid", frameIndex)
		}

		if exp, got := uintptr(frameIndex<<mem.PageShift), frame.Address(); got != exp {
			t.Errorf("expected frame (%d, index: %d) call to Address() to return %x; got %x", frame, frameIndex, exp, got)
		}

		if exp, got := uintptr(frameIndex<<mem.PageShift)+mem.KernelBase, frame.KernelAddress(); got != exp {
			t.Errorf("expected frame (%d, index: %d) call to KernelAddress() to return %x; got %x", frame, frameIndex, exp, got)
		}
	}

	invalidFrame := InvalidFrame
	if invalidFrame.Valid() {
		t.Error("expected InvalidFrame.Valid() to return false")
	}
}

func TestFrameIsHugeAligned(t *testing.T) {
	specs := []struct {
		frame      Frame
		expAligned bool
	}{
		{Frame(0), true},
		{Frame(1), false},
		{Frame(1023), false},
		{Frame(1024), true},
		{Frame(2048), true},
		{Frame(2049), false},
	}

	for specIndex, spec := range specs {
		if got := spec.frame.IsHugeAligned(); got != spec.expAligned {
			t.Errorf("[spec %d] expected IsHugeAligned for frame %d to return %t; got %t", specIndex, spec.frame, spec.expAligned, got)
		}
	}
}

func TestFrameFromAddress(t *testing.T) {
	specs := []struct {
		input    uintptr
		expFrame Frame
	}{
		{0, Frame(0)},
		{4095, Frame(0)},
		{4096, Frame(1)},
		{4123, Frame(1)},
	}

	for specIndex, spec := range specs {
		if got := FrameFromAddress(spec.input); got != spec.expFrame {
			t.Errorf("[spec %d] expected returned frame to be %v; got %v", specIndex, spec.expFrame, got)
		}
	}
}

func TestFrameFromKernelAddress(t *testing.T) {
	defer func() {
		panicFn = kfmt.Panic
	}()

	var panicCalled bool
	panicFn = func(_ interface{}) {
		panicCalled = true
	}

	if exp, got := Frame(1), FrameFromKernelAddress(mem.KernelBase+uintptr(mem.PageSize)); got != exp {
		t.Fatalf("expected returned frame to be %v; got %v", exp, got)
	}

	if panicCalled {
		t.Fatal("expected no panic for an address inside the kernel mapping")
	}

	if got := FrameFromKernelAddress(mem.KernelBase - 1); got != InvalidFrame {
		t.Fatalf("expected InvalidFrame for an address below the kernel mapping; got %v", got)
	}

	if !panicCalled {
		t.Fatal("expected an address below the kernel mapping to be fatal")
	}
}
