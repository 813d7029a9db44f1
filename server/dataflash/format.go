package dataflash

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xdataflash/logger"
	"github.com/zhukovaskychina/xdataflash/server/dataflash/device"
	"github.com/zhukovaskychina/xdataflash/util"
)

// EraseAll erases every sector, then writes the format stamp. The stamp is
// the last thing written, so an interrupted erase leaves the medium reported
// as needing erase.
//
// Erasing is paced: after every EraseBatch sectors it sleeps EraseBatchDelay,
// and it sleeps FormatSettleDelay around the stamp write. No session may be
// open while erasing.
func (df *DataFlash) EraseAll() error {
	df.mu.Lock()
	if df.writeHeld || df.readHeld {
		df.mu.Unlock()
		return NewError("erase all", ErrSessionHeld)
	}
	df.writeHeld, df.readHeld = true, true
	df.state = StateErasing
	df.mu.Unlock()

	defer func() {
		df.mu.Lock()
		df.writeHeld, df.readHeld = false, false
		df.mu.Unlock()
	}()

	if !df.dev.Present() {
		df.setState(StateUnknown)
		return NewError("erase all", ErrMediaAbsent)
	}

	total := df.geometry.Sectors
	logger.Infof("dataflash: erasing %d sectors", total)
	for sector := uint32(0); sector < total; sector++ {
		if err := df.eraseSector(sector); err != nil {
			df.setState(StateUnformatted)
			return NewError("erase all", err)
		}
		if df.opts.OnEraseProgress != nil {
			df.opts.OnEraseProgress(sector+1, total)
		}
		if df.opts.EraseBatch > 0 && (sector+1)%uint32(df.opts.EraseBatch) == 0 && df.opts.EraseBatchDelay > 0 {
			df.opts.Sleep(df.opts.EraseBatchDelay)
		}
	}

	df.settle()
	if err := df.writeStamp(); err != nil {
		df.setState(StateUnformatted)
		return NewError("erase all", err)
	}
	df.SetFileNumber(1)
	df.settle()

	df.setState(StateStamped)
	logger.Infof("dataflash: format stamp 0x%08x written to page %d", LoggingFormat, df.stampPage)
	return nil
}

func (df *DataFlash) settle() {
	if df.opts.FormatSettleDelay > 0 {
		df.opts.Sleep(df.opts.FormatSettleDelay)
	}
}

func (df *DataFlash) writeStamp() error {
	page := make([]byte, df.geometry.PageSize)
	util.FillBytes(page, device.ErasedByte)
	PageHeader{FileNumber: 1, FilePage: 1}.Encode(page)
	util.PutUB4(page, PageHeaderSize, LoggingFormat)

	if err := df.waitReady(); err != nil {
		return err
	}
	if err := df.dev.WritePage(df.stampPage, 0, page); err != nil {
		return errors.Wrapf(err, "write stamp page %d", df.stampPage)
	}
	if err := df.waitReady(); err != nil {
		return err
	}
	df.count(func(s *Stats) { s.PagesWritten++ })
	return nil
}

// CheckFormat reads the format stamp and reports ErrFormatMismatch when it
// differs from LoggingFormat.
func (df *DataFlash) CheckFormat() error {
	if !df.dev.Present() {
		return NewError("check format", ErrMediaAbsent)
	}
	if err := df.waitReady(); err != nil {
		return NewError("check format", err)
	}

	buf := make([]byte, formatStampSize)
	if err := df.dev.ReadPage(df.stampPage, 0, buf); err != nil {
		return NewError("check format", errors.Wrapf(err, "read stamp page %d", df.stampPage))
	}
	_, version := util.ReadUB4(buf, PageHeaderSize)
	if version != LoggingFormat {
		df.setState(StateUnformatted)
		return NewError("check format", errors.Wrapf(ErrFormatMismatch, "stamp 0x%08x, want 0x%08x", version, LoggingFormat))
	}
	df.setState(StateStamped)
	return nil
}

// NeedErase reports whether the medium must be erased before use.
func (df *DataFlash) NeedErase() bool {
	if err := df.CheckFormat(); err != nil {
		logger.Warnf("dataflash: %v", err)
		return true
	}
	return false
}
