package device

import (
	"os"
	"path/filepath"
	"testing"

	jerrors "github.com/juju/errors"
	"github.com/smartystreets/assertions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGeometry = Geometry{PageSize: 16, PagesPerSector: 4, Sectors: 3}

func TestGeometry(t *testing.T) {
	g := testGeometry
	assert.Equal(t, uint32(12), g.TotalPages())
	assert.Equal(t, int64(192), g.Size())
	assert.Equal(t, 64, g.SectorSize())
	assert.Equal(t, uint32(2), g.SectorOf(9))
	assert.Equal(t, uint32(8), g.FirstPageOf(2))
	assert.NoError(t, g.Validate())
	assert.Error(t, Geometry{PageSize: 16}.Validate())
}

// 两种实现共享同一组行为测试
func testBlockDevice(t *testing.T, dev BlockDevice) {
	require.True(t, dev.Present())
	require.True(t, dev.Ready())

	buf := make([]byte, 16)
	require.NoError(t, dev.ReadPage(5, 0, buf))
	assert.Equal(t, make16(0xFF), buf)

	// 编程只能把 1 清成 0
	require.NoError(t, dev.WritePage(5, 2, []byte{0x0F, 0xF0}))
	require.NoError(t, dev.WritePage(5, 2, []byte{0xF3, 0x3F}))
	got := make([]byte, 2)
	require.NoError(t, dev.ReadPage(5, 2, got))
	assert.Equal(t, []byte{0x03, 0x30}, got)

	require.NoError(t, dev.EraseSector(1))
	require.NoError(t, dev.ReadPage(5, 0, buf))
	assert.Equal(t, make16(0xFF), buf)

	err := dev.ReadPage(12, 0, buf)
	assert.Equal(t, ErrPageOutOfRange, jerrors.Cause(err))
	err = dev.WritePage(1, 10, buf)
	assert.Equal(t, ErrOffsetOutOfRange, jerrors.Cause(err))
	err = dev.EraseSector(3)
	assert.Equal(t, ErrSectorOutOfRange, jerrors.Cause(err))
}

func make16(b byte) []byte {
	buf := make([]byte, 16)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestMemDevice(t *testing.T) {
	dev := NewMemDevice(testGeometry)
	testBlockDevice(t, dev)

	assert.Equal(t, []WriteRecord{{Page: 5, Offset: 2, Len: 2}, {Page: 5, Offset: 2, Len: 2}}, dev.Writes())
	assert.Equal(t, []uint32{1}, dev.Erases())

	dev.ResetHistory()
	assert.Empty(t, dev.Writes())
	assert.Empty(t, dev.Erases())
}

func TestMemDeviceStatus(t *testing.T) {
	dev := NewMemDevice(testGeometry)

	dev.BusyFor(2)
	assert.False(t, dev.Ready())
	assert.False(t, dev.Ready())
	assert.True(t, dev.Ready())

	dev.SetBusy(true)
	assert.False(t, dev.Ready())
	dev.SetBusy(false)
	assert.True(t, dev.Ready())

	dev.SetPresent(false)
	assert.False(t, dev.Present())
}

func TestMemDeviceAutoErase(t *testing.T) {
	dev := NewMemDevice(testGeometry)
	assert.False(t, AutoErases(dev))
	dev.SetAutoErase(true)
	assert.True(t, AutoErases(dev))

	require.NoError(t, dev.WritePage(1, 0, []byte{0x00}))
	require.NoError(t, dev.WritePage(1, 0, []byte{0xAB}))
	got := make([]byte, 1)
	require.NoError(t, dev.ReadPage(1, 0, got))
	if ok, msg := assertions.So(got[0], assertions.ShouldEqual, byte(0xAB)); !ok {
		t.Error(msg)
	}
}

func TestMemDevicePoke(t *testing.T) {
	dev := NewMemDevice(testGeometry)
	dev.Poke(2, 0, []byte{1, 2, 3})
	snap := dev.Snapshot()
	assert.Equal(t, []byte{1, 2, 3}, snap[32:35])
	assert.Empty(t, dev.Writes())
}

func TestFileDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img", "flash.img")
	dev := NewFileDevice(path, testGeometry)
	assert.False(t, dev.Present())
	assert.Equal(t, ErrDeviceClosed, dev.ReadPage(0, 0, make([]byte, 1)))

	require.NoError(t, dev.Open())
	testBlockDevice(t, dev)
	require.NoError(t, dev.Sync())
	require.NoError(t, dev.Close())

	stat, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, testGeometry.Size(), stat.Size())

	// 重新打开后内容仍在
	reopened := NewFileDevice(path, testGeometry)
	require.NoError(t, reopened.Open())
	defer reopened.Close()
	require.NoError(t, reopened.WritePage(0, 0, []byte{0x12}))
	got := make([]byte, 1)
	require.NoError(t, reopened.ReadPage(0, 0, got))
	assert.Equal(t, byte(0x12), got[0])
}

func TestFileDeviceExtendsShortImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.img")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01}, 0644))

	dev := NewFileDevice(path, testGeometry)
	require.NoError(t, dev.Open())
	defer dev.Close()

	got := make([]byte, 4)
	require.NoError(t, dev.ReadPage(0, 0, got))
	assert.Equal(t, []byte{0x00, 0x01, 0xFF, 0xFF}, got)
}

func TestFileDeviceAutoErase(t *testing.T) {
	dev := NewFileDevice(filepath.Join(t.TempDir(), "auto.img"), testGeometry)
	assert.False(t, AutoErases(dev))
	dev.AutoErase = true
	assert.True(t, AutoErases(dev))
	require.NoError(t, dev.Open())
	defer dev.Close()

	require.NoError(t, dev.WritePage(3, 0, []byte{0x00, 0x00}))
	require.NoError(t, dev.WritePage(3, 0, []byte{0xAA, 0xFF}))
	got := make([]byte, 2)
	require.NoError(t, dev.ReadPage(3, 0, got))
	assert.Equal(t, []byte{0xAA, 0xFF}, got)
}
