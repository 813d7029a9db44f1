package dataflash

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xdataflash/logger"
	"github.com/zhukovaskychina/xdataflash/server/dataflash/device"
	"github.com/zhukovaskychina/xdataflash/util"
)

// pageBuffer assembles whole pages in RAM and programs each one exactly once.
//
// With Options.DoubleBuffer it owns two slots: after a slot is handed to the
// device the writer continues in the other one without waiting for the
// program to complete. The single slot variant waits for completion before
// the slot is reused.
type pageBuffer struct {
	df       *DataFlash
	slots    [][]byte
	active   int
	index    int
	pageAddr uint32
	// full 有界日志写到最后一页后置位
	full bool
}

func newPageBuffer(df *DataFlash) *pageBuffer {
	n := 1
	if df.opts.DoubleBuffer {
		n = 2
	}
	slots := make([][]byte, n)
	for i := range slots {
		slots[i] = make([]byte, df.geometry.PageSize)
		util.FillBytes(slots[i], device.ErasedByte)
	}
	return &pageBuffer{df: df, slots: slots}
}

func (pb *pageBuffer) current() []byte {
	return pb.slots[pb.active]
}

// start positions the buffer on page, wrapping or refusing pages past the log
// area according to the wrap policy.
func (pb *pageBuffer) start(page uint32) error {
	df := pb.df
	pb.index = 0
	pb.active = 0
	pb.full = false
	for _, slot := range pb.slots {
		util.FillBytes(slot, device.ErasedByte)
	}

	if page == 0 {
		return errors.Wrap(ErrPageOutOfRange, "page 0 is reserved")
	}
	if err := df.waitReady(); err != nil {
		return err
	}
	if page > df.numPages {
		if df.opts.WrapPolicy == WrapBounded {
			return errors.Wrapf(ErrLogFull, "page %d beyond %d", page, df.numPages)
		}
		if err := pb.wrap(); err != nil {
			return err
		}
	} else {
		pb.pageAddr = page
	}

	if pb.eraseAhead() {
		return pb.ensureErased(pb.pageAddr)
	}
	return nil
}

// finish programs the active slot to the current page and advances the cursor.
func (pb *pageBuffer) finish() error {
	df := pb.df
	if !df.dev.Present() {
		return ErrMediaAbsent
	}
	if err := df.waitReady(); err != nil {
		return err
	}
	if err := df.dev.WritePage(pb.pageAddr, 0, pb.current()); err != nil {
		return errors.Wrapf(err, "program page %d", pb.pageAddr)
	}
	if !df.opts.DoubleBuffer {
		if err := df.waitReady(); err != nil {
			return err
		}
	}
	df.count(func(s *Stats) { s.PagesWritten++ })

	pb.pageAddr++
	if pb.pageAddr > df.numPages {
		if df.opts.WrapPolicy == WrapBounded {
			pb.full = true
			logger.Warnf("dataflash: log area full after page %d", df.numPages)
		} else if err := pb.wrap(); err != nil {
			return err
		}
	}
	if !pb.full && pb.eraseAhead() && pb.pageAddr%df.geometry.PagesPerSector == 0 {
		if err := pb.ensureErased(pb.pageAddr); err != nil {
			return err
		}
	}

	if df.opts.DoubleBuffer {
		pb.active ^= 1
	}
	util.FillBytes(pb.current(), device.ErasedByte)
	pb.index = 0
	return nil
}

// wrap restarts at page 1 after clearing sector 0; the oldest data is lost.
func (pb *pageBuffer) wrap() error {
	df := pb.df
	if err := df.eraseSector(0); err != nil {
		return err
	}
	pb.pageAddr = 1
	df.count(func(s *Stats) { s.Wraps++ })
	logger.Infof("dataflash: write cursor wrapped to page 1")
	return nil
}

// eraseAhead reports whether sectors are checked before use. A NOR part that
// cannot erase on program always needs it, whatever SectorEraseCheck says.
func (pb *pageBuffer) eraseAhead() bool {
	return pb.df.opts.SectorEraseCheck || !device.AutoErases(pb.df.dev)
}

func (pb *pageBuffer) ensureErased(page uint32) error {
	blank, err := pb.df.sectorBlank(page)
	if err != nil {
		return err
	}
	if blank {
		return nil
	}
	return pb.df.eraseSector(pb.df.geometry.SectorOf(page))
}
