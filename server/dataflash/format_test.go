package dataflash

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedErase(t *testing.T) {
	df, dev := newTestFlash(t, nil)

	// 全新介质读出 0xFFFFFFFF
	assert.True(t, df.NeedErase())
	assert.Equal(t, StateUnformatted, df.State())

	dev.Poke(df.StampPage(), 0, []byte{1, 0, 1, 0, 0, 0, 0, 0})
	err := df.CheckFormat()
	assert.True(t, IsFormatMismatch(err))
	assert.Contains(t, err.Error(), "stamp 0x00000000, want 0x28122013")

	require.NoError(t, df.EraseAll())
	assert.False(t, df.NeedErase())
	assert.Equal(t, StateStamped, df.State())

	stamp := dev.Snapshot()[int(df.StampPage())*testGeometry.PageSize:]
	assert.Equal(t, []byte{1, 0, 1, 0, 0x13, 0x20, 0x12, 0x28}, stamp[:8])
}

func TestEraseAllResetsFileSequence(t *testing.T) {
	df, _ := newTestFlash(t, nil)
	df.SetFileNumber(9)
	df.advanceFilePage()

	require.NoError(t, df.EraseAll())
	assert.Equal(t, uint16(1), df.FileNumber())
	assert.Equal(t, uint16(1), df.FilePage())
}

func TestEraseAllClearsEverySectorWithPacing(t *testing.T) {
	var slept []time.Duration
	var progress [][2]uint32
	var df *DataFlash
	var states []FormatState

	df, dev := newTestFlash(t, func(o *Options) {
		o.EraseBatch = 2
		o.EraseBatchDelay = time.Millisecond
		o.FormatSettleDelay = 5 * time.Millisecond
		o.Sleep = func(d time.Duration) { slept = append(slept, d) }
		o.OnEraseProgress = func(done, total uint32) {
			progress = append(progress, [2]uint32{done, total})
			states = append(states, df.State())
		}
	})
	dev.Poke(6, 0, []byte{0, 0, 0, 0})

	require.NoError(t, df.EraseAll())

	assert.Equal(t, []uint32{0, 1, 2, 3}, dev.Erases())
	assert.Equal(t, [][2]uint32{{1, 4}, {2, 4}, {3, 4}, {4, 4}}, progress)
	assert.Equal(t, []FormatState{StateErasing, StateErasing, StateErasing, StateErasing}, states)
	assert.Equal(t, []time.Duration{
		time.Millisecond, time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond,
	}, slept)

	h, err := df.ReadHeader(6)
	require.NoError(t, err)
	assert.True(t, h.IsErased())
	assert.Equal(t, uint64(4), df.Stats().SectorsErased)
}

func TestEraseAllRefusesOpenSessions(t *testing.T) {
	df, _ := newTestFlash(t, nil)

	r, err := df.StartRead(1)
	require.NoError(t, err)
	assert.True(t, IsSessionHeld(df.EraseAll()))
	require.NoError(t, r.Close())

	require.NoError(t, df.EraseAll())
	w, err := df.StartWrite(1)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestEraseAllWithoutMedium(t *testing.T) {
	df, dev := newTestFlash(t, nil)
	dev.SetPresent(false)

	assert.True(t, IsMediaAbsent(df.EraseAll()))
	assert.True(t, df.NeedErase())
	assert.Empty(t, dev.Erases())
}

func TestEraseAllStallsOnBusyDevice(t *testing.T) {
	df, dev := newTestFlash(t, nil)
	dev.SetBusy(true)

	err := df.EraseAll()
	assert.True(t, IsMediaBusy(err))
	assert.Equal(t, StateUnformatted, df.State())
	dev.SetBusy(false)
	assert.True(t, df.NeedErase())
}
