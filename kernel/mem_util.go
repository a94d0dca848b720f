package kernel

// Memset sets every byte in target to the supplied value. The
// implementation is based on bytes.Repeat; instead of using a for loop,
// this function uses log2(len(target)) copy calls which gives us a speed
// boost as the target is usually a page-sized block.
func Memset(target []byte, value byte) {
	if len(target) == 0 {
		return
	}

	// Set first element and make log2(len) optimized copies
	target[0] = value
	for index := 1; index < len(target); index *= 2 {
		copy(target[index:], target[:index])
	}
}
