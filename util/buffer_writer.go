package util

// PutUB2 以小端序把 i 写入 buf[cursor:cursor+2]，返回新的游标
func PutUB2(buf []byte, cursor int, i uint16) int {
	buf[cursor] = byte(i & 0xFF)
	buf[cursor+1] = byte((i >> 8) & 0xFF)
	return cursor + 2
}

// PutUB4 以小端序把 i 写入 buf[cursor:cursor+4]，返回新的游标
func PutUB4(buf []byte, cursor int, i uint32) int {
	buf[cursor] = byte(i & 0xFF)
	buf[cursor+1] = byte((i >> 8) & 0xFF)
	buf[cursor+2] = byte((i >> 16) & 0xFF)
	buf[cursor+3] = byte((i >> 24) & 0xFF)
	return cursor + 4
}
