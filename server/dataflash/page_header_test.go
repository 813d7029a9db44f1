package dataflash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageHeaderEncoding(t *testing.T) {
	buf := make([]byte, PageHeaderSize)
	PageHeader{FileNumber: 0x0102, FilePage: 0x0304}.Encode(buf)
	assert.Equal(t, []byte{0x02, 0x01, 0x04, 0x03}, buf)

	h := DecodePageHeader(buf)
	assert.Equal(t, uint16(0x0102), h.FileNumber)
	assert.Equal(t, uint16(0x0304), h.FilePage)
	assert.False(t, h.IsErased())
	assert.Equal(t, "file=258 page=772", h.String())

	assert.True(t, DecodePageHeader([]byte{0xFF, 0xFF, 0xFF, 0xFF}).IsErased())
}

func TestWrapPolicy(t *testing.T) {
	p, err := ParseWrapPolicy("Bounded")
	assert.NoError(t, err)
	assert.Equal(t, WrapBounded, p)
	assert.Equal(t, "ring", WrapRing.String())

	_, err = ParseWrapPolicy("spiral")
	assert.Error(t, err)
}

func TestDataFlashError(t *testing.T) {
	err := NewError("start write", ErrSessionHeld)
	assert.Equal(t, "start write: session already held", err.Error())
	assert.True(t, IsSessionHeld(err))
	assert.False(t, IsMediaBusy(err))
	assert.Equal(t, "<nil>", (&DataFlashError{Op: "x"}).Error())
}
