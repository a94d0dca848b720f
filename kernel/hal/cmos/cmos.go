// Package cmos provides access to the MC146818 RTC's battery-backed NVRAM
// registers that the BIOS uses to record the installed base and extended
// memory sizes.
package cmos

// NVRAM register indices for the BIOS-maintained memory size information.
// The values are fixed by the MC146818 register layout.
const (
	nvramStart = 0x0e

	// RegBaseMemLo is the low byte of the base memory size in KB. The
	// high byte lives in the next register.
	RegBaseMemLo = nvramStart + 7

	// RegExtMemLo is the low byte of the extended memory size in KB. The
	// high byte lives in the next register.
	RegExtMemLo = nvramStart + 9
)

// ReadRegisterFn reads a single byte from an indexed NVRAM register. It is
// supplied by the platform layer and never fails.
type ReadRegisterFn func(reg uint8) uint8

// Read16 combines the two consecutive registers starting at reg into a
// 16-bit quantity, low byte first.
func Read16(read ReadRegisterFn, reg uint8) uint16 {
	return uint16(read(reg)) | uint16(read(reg+1))<<8
}
