package dataflash

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xdataflash/server/dataflash/device"
)

// 32 字节页，每扇区 4 页，4 个扇区：日志页 1..11，格式戳在第 15 页
var testGeometry = device.Geometry{PageSize: 32, PagesPerSector: 4, Sectors: 4}

const testPayload = 32 - PageHeaderSize

func testOptions() Options {
	opts := DefaultOptions()
	opts.ReadyTimeout = 5 * time.Millisecond
	opts.ReadyPollInterval = 0
	opts.EraseBatchDelay = 0
	opts.FormatSettleDelay = 0
	opts.Sleep = func(time.Duration) {}
	return opts
}

func newTestFlash(t *testing.T, mutate func(o *Options)) (*DataFlash, *device.MemDevice) {
	t.Helper()
	dev := device.NewMemDevice(testGeometry)
	opts := testOptions()
	if mutate != nil {
		mutate(&opts)
	}
	df, err := New(dev, opts)
	require.NoError(t, err)
	return df, dev
}

func pattern(n int, seed byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i*7) + seed
	}
	return buf
}

func writeAll(t *testing.T, s *WriteSession, data []byte, chunks ...int) {
	t.Helper()
	for i := 0; len(data) > 0; i++ {
		n := len(data)
		if len(chunks) > 0 && chunks[i%len(chunks)] < n {
			n = chunks[i%len(chunks)]
		}
		s.WriteBlock(data[:n])
		data = data[n:]
	}
}
