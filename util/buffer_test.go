package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPutReadUB2(t *testing.T) {
	buf := make([]byte, 4)
	cursor := PutUB2(buf, 0, 0x1234)
	cursor = PutUB2(buf, cursor, 0xFFFE)
	assert.Equal(t, 4, cursor)
	assert.Equal(t, []byte{0x34, 0x12, 0xFE, 0xFF}, buf)

	cursor, v := ReadUB2(buf, 0)
	assert.Equal(t, uint16(0x1234), v)
	_, v = ReadUB2(buf, cursor)
	assert.Equal(t, uint16(0xFFFE), v)
}

func TestPutReadUB4(t *testing.T) {
	buf := make([]byte, 6)
	cursor := PutUB4(buf, 2, 0x28122013)
	assert.Equal(t, 6, cursor)
	assert.Equal(t, []byte{0x13, 0x20, 0x12, 0x28}, buf[2:])

	_, v := ReadUB4(buf, 2)
	assert.Equal(t, uint32(0x28122013), v)
}

func TestFillBytes(t *testing.T) {
	buf := make([]byte, 8)
	assert.False(t, IsFilled(buf, 0xFF))
	FillBytes(buf, 0xFF)
	assert.True(t, IsFilled(buf, 0xFF))
	buf[7] = 0
	assert.False(t, IsFilled(buf, 0xFF))
}
