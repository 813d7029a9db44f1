package logfile

import (
	"io"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xdataflash/logger"
	"github.com/zhukovaskychina/xdataflash/server/dataflash"
)

// StartNewLog opens a write session for a fresh log numbered after the newest
// one, positioned right after it. After 0xFFFE the number wraps to 1, skipping
// numbers that still have pages on the medium.
func StartNewLog(df *dataflash.DataFlash) (*dataflash.WriteSession, uint16, error) {
	if err := df.CheckFormat(); err != nil {
		return nil, 0, err
	}
	idx, err := Scan(df)
	if err != nil {
		return nil, 0, err
	}

	fileNumber := uint16(1)
	if last, ok := idx.LastLog(); ok {
		fileNumber = last + 1
	}
	for tries := 0; fileNumber == 0 || fileNumber == 0xFFFF || idx.Has(fileNumber); tries++ {
		if tries > 0xFFFF {
			return nil, 0, errors.New("no free file number")
		}
		fileNumber++
	}
	df.SetFileNumber(fileNumber)

	page := idx.NextWritePage()
	w, err := df.StartWrite(page)
	if err != nil {
		return nil, 0, err
	}
	logger.Infof("logfile: log %d starts at page %d", fileNumber, w.GetWritePage())
	return w, fileNumber, nil
}

// ReadLog copies the payload of a log to w, page by page, stopping at the
// first page whose header belongs to another file. The last page may end
// with erased 0xFF padding if it was flushed before it was full.
func ReadLog(df *dataflash.DataFlash, fileNumber uint16, w io.Writer) (int64, error) {
	idx, err := Scan(df)
	if err != nil {
		return 0, err
	}
	start, end, err := idx.Boundaries(fileNumber)
	if err != nil {
		return 0, err
	}

	r, err := df.StartRead(start)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	var total int64
	buf := make([]byte, df.PayloadSize())
	for r.FileNumber() == fileNumber {
		page := r.GetPage()
		if err := r.ReadBlock(buf); err != nil {
			return total, err
		}
		n, err := w.Write(buf)
		total += int64(n)
		if err != nil {
			return total, errors.Wrapf(err, "copy page %d", page)
		}
		if page == end {
			break
		}
	}
	return total, nil
}
