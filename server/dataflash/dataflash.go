// Package dataflash implements a page oriented flight data logger on top of a
// NOR-flash like block device.
//
// Medium layout, for a device of S sectors of P pages each:
//
//	page 0                sentinel, never written by the log writer
//	pages 1 .. (S-1)*P-1  log pages, each starting with a PageHeader
//	sector S-1            reserved; its last page (S*P-1) holds the format stamp
//
// The format stamp page carries PageHeader{1, 1} followed by LoggingFormat as a
// little-endian uint32. Keeping the stamp in its own sector means ring
// erase-ahead never touches it.
//
// A DataFlash is not safe for concurrent use. At most one WriteSession and one
// ReadSession may be open at a time; a second StartWrite or StartRead fails
// with ErrSessionHeld until the first session is closed.
package dataflash

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xdataflash/logger"
	"github.com/zhukovaskychina/xdataflash/server/dataflash/device"
	"github.com/zhukovaskychina/xdataflash/util"
)

// FormatState 介质格式化状态
type FormatState int

const (
	StateUnknown FormatState = iota
	StateUnformatted
	StateErasing
	StateStamped
)

func (s FormatState) String() string {
	switch s {
	case StateUnformatted:
		return "unformatted"
	case StateErasing:
		return "erasing"
	case StateStamped:
		return "stamped"
	default:
		return "unknown"
	}
}

// DataFlash owns a block device, the file sequence counter and the session
// held flags.
type DataFlash struct {
	mu       sync.Mutex
	dev      device.BlockDevice
	geometry device.Geometry
	opts     Options

	numPages  uint32
	stampPage uint32

	// 文件序号计数器，由调用方通过 SetFileNumber 管理
	fileNumber uint16
	filePage   uint16

	writeHeld bool
	readHeld  bool
	state     FormatState
	stats     Stats
}

// New 校验介质几何参数并创建 DataFlash
func New(dev device.BlockDevice, opts Options) (*DataFlash, error) {
	g := dev.Geometry()
	if err := g.Validate(); err != nil {
		return nil, NewError("new", errors.Wrap(ErrInvalidLayout, err.Error()))
	}
	if g.PageSize < formatStampSize {
		return nil, NewError("new", errors.Wrapf(ErrInvalidLayout, "page size %d below %d", g.PageSize, formatStampSize))
	}
	if g.Sectors < 2 {
		return nil, NewError("new", errors.Wrap(ErrInvalidLayout, "need a reserved stamp sector"))
	}
	numPages := (g.Sectors-1)*g.PagesPerSector - 1
	if numPages < 2 {
		return nil, NewError("new", errors.Wrapf(ErrInvalidLayout, "only %d log pages", numPages))
	}

	opts.applyDefaults()
	return &DataFlash{
		dev:        dev,
		geometry:   g,
		opts:       opts,
		numPages:   numPages,
		stampPage:  g.TotalPages() - 1,
		fileNumber: 1,
		filePage:   1,
	}, nil
}

// Device 底层介质
func (df *DataFlash) Device() device.BlockDevice {
	return df.dev
}

// Geometry 介质几何参数
func (df *DataFlash) Geometry() device.Geometry {
	return df.geometry
}

// NumPages 可用日志页数，日志页编号为 1..NumPages
func (df *DataFlash) NumPages() uint32 {
	return df.numPages
}

// StampPage 格式戳所在的物理页
func (df *DataFlash) StampPage() uint32 {
	return df.stampPage
}

// WrapPolicy 写满日志区后的处理策略
func (df *DataFlash) WrapPolicy() WrapPolicy {
	return df.opts.WrapPolicy
}

// PayloadSize 每页去掉头部后的有效载荷
func (df *DataFlash) PayloadSize() int {
	return df.geometry.PageSize - PageHeaderSize
}

// SetFileNumber starts a new logical file; FilePage restarts at 1.
func (df *DataFlash) SetFileNumber(fileNumber uint16) {
	df.mu.Lock()
	defer df.mu.Unlock()
	df.fileNumber = fileNumber
	df.filePage = 1
}

func (df *DataFlash) FileNumber() uint16 {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.fileNumber
}

func (df *DataFlash) FilePage() uint16 {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.filePage
}

func (df *DataFlash) sequence() PageHeader {
	df.mu.Lock()
	defer df.mu.Unlock()
	return PageHeader{FileNumber: df.fileNumber, FilePage: df.filePage}
}

func (df *DataFlash) advanceFilePage() {
	df.mu.Lock()
	df.filePage++
	df.mu.Unlock()
}

// State 最近一次检查或擦除后的格式化状态
func (df *DataFlash) State() FormatState {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.state
}

func (df *DataFlash) setState(state FormatState) {
	df.mu.Lock()
	df.state = state
	df.mu.Unlock()
}

func (df *DataFlash) acquire(held *bool) error {
	df.mu.Lock()
	defer df.mu.Unlock()
	if *held {
		return ErrSessionHeld
	}
	*held = true
	return nil
}

func (df *DataFlash) release(held *bool) {
	df.mu.Lock()
	*held = false
	df.mu.Unlock()
}

// ReadHeader reads the PageHeader of a log page without opening a session.
func (df *DataFlash) ReadHeader(page uint32) (PageHeader, error) {
	if page == 0 || page > df.numPages {
		return PageHeader{}, NewError("read header", errors.Wrapf(ErrPageOutOfRange, "page %d", page))
	}
	if !df.dev.Present() {
		return PageHeader{}, NewError("read header", ErrMediaAbsent)
	}
	if err := df.waitReady(); err != nil {
		return PageHeader{}, NewError("read header", err)
	}
	buf := make([]byte, PageHeaderSize)
	if err := df.dev.ReadPage(page, 0, buf); err != nil {
		return PageHeader{}, NewError("read header", errors.Wrapf(err, "page %d", page))
	}
	return DecodePageHeader(buf), nil
}

// waitReady polls the device until it is ready or ReadyTimeout elapses.
func (df *DataFlash) waitReady() error {
	if df.dev.Ready() {
		return nil
	}
	deadline := time.Now().Add(df.opts.ReadyTimeout)
	for !df.dev.Ready() {
		if time.Now().After(deadline) {
			df.count(func(s *Stats) { s.Stalls++ })
			logger.Warnf("dataflash: device not ready after %s", df.opts.ReadyTimeout)
			return errors.Wrapf(ErrMediaBusy, "waited %s", df.opts.ReadyTimeout)
		}
		if df.opts.ReadyPollInterval > 0 {
			df.opts.Sleep(df.opts.ReadyPollInterval)
		}
	}
	return nil
}

func (df *DataFlash) eraseSector(sector uint32) error {
	if err := df.waitReady(); err != nil {
		return err
	}
	if err := df.dev.EraseSector(sector); err != nil {
		return errors.Wrapf(err, "erase sector %d", sector)
	}
	if err := df.waitReady(); err != nil {
		return err
	}
	df.count(func(s *Stats) { s.SectorsErased++ })
	logger.Debugf("dataflash: erased sector %d", sector)
	return nil
}

// sectorBlank reports whether the first word of page still reads erased.
func (df *DataFlash) sectorBlank(page uint32) (bool, error) {
	word := make([]byte, 2)
	if err := df.dev.ReadPage(page, 0, word); err != nil {
		return false, errors.Wrapf(err, "probe page %d", page)
	}
	return util.IsFilled(word, device.ErasedByte), nil
}
