package dataflash

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWrapsToFirstPage(t *testing.T) {
	df, _ := newTestFlash(t, nil)
	last := df.NumPages()

	w, err := df.StartWrite(last)
	require.NoError(t, err)
	w.WriteBlock(pattern(testPayload, 1))
	assert.Equal(t, uint32(1), w.GetWritePage())
	w.WriteBlock(pattern(testPayload, 2))
	require.NoError(t, w.Close())

	r, err := df.StartRead(last)
	require.NoError(t, err)
	defer r.Close()

	got := make([]byte, 2*testPayload)
	require.NoError(t, r.ReadBlock(got))
	assert.Equal(t, append(pattern(testPayload, 1), pattern(testPayload, 2)...), got)
	assert.Equal(t, uint32(2), r.GetPage())
}

func TestReaderImplementsIOReader(t *testing.T) {
	df, _ := newTestFlash(t, nil)
	data := pattern(3*testPayload+5, 9)

	w, err := df.StartWrite(1)
	require.NoError(t, err)
	w.WriteBlock(data)
	require.NoError(t, w.Close())

	r, err := df.StartRead(1)
	require.NoError(t, err)
	defer r.Close()

	var reader io.Reader = r
	got := make([]byte, len(data))
	_, err = io.ReadFull(reader, got)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, testPayload-5, r.Remaining())
}

func TestStartReadValidatesPage(t *testing.T) {
	df, _ := newTestFlash(t, nil)

	_, err := df.StartRead(0)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
	_, err = df.StartRead(df.StampPage())
	assert.ErrorIs(t, err, ErrPageOutOfRange)

	_, err = df.ReadHeader(0)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}

func TestReadAfterClose(t *testing.T) {
	df, _ := newTestFlash(t, nil)
	r, err := df.StartRead(1)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	err = r.ReadBlock(make([]byte, 1))
	assert.ErrorIs(t, err, ErrSessionNotStarted)
}

func TestReadStallReportsBusy(t *testing.T) {
	df, dev := newTestFlash(t, nil)
	r, err := df.StartRead(1)
	require.NoError(t, err)
	defer r.Close()

	dev.SetBusy(true)
	n, err := r.Read(make([]byte, testPayload+1))
	assert.Equal(t, testPayload, n)
	assert.True(t, IsMediaBusy(err))
	dev.SetBusy(false)
}
