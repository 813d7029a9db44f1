package util

// FillBytes 把 buf 全部置为 b，NOR 介质擦除后的状态为 0xFF
func FillBytes(buf []byte, b byte) {
	for i := range buf {
		buf[i] = b
	}
}

// IsFilled 判断 buf 是否全部为 b
func IsFilled(buf []byte, b byte) bool {
	for _, v := range buf {
		if v != b {
			return false
		}
	}
	return true
}
