// Package device defines the raw block device the data logger runs on and
// provides an in-memory and an image-file implementation.
//
// Both implementations follow NOR flash rules: an erased byte reads 0xFF and
// programming can only clear bits, so a page must be erased (at sector
// granularity) before it can be rewritten. A device configured with
// AutoErase behaves like a part with built-in erase on page program and
// simply replaces the page contents.
package device

import (
	jerrors "github.com/juju/errors"
)

// ErasedByte is the value of every byte after a sector erase.
const ErasedByte = 0xFF

var (
	ErrPageOutOfRange   = jerrors.New("page out of range")
	ErrSectorOutOfRange = jerrors.New("sector out of range")
	ErrOffsetOutOfRange = jerrors.New("offset out of range")
	ErrDeviceClosed     = jerrors.New("device closed")
)

// Geometry describes the physical layout of a medium.
type Geometry struct {
	PageSize       int
	PagesPerSector uint32
	Sectors        uint32
}

// TotalPages 物理页总数（含哨兵页和格式戳页）
func (g Geometry) TotalPages() uint32 {
	return g.PagesPerSector * g.Sectors
}

// Size 介质字节数
func (g Geometry) Size() int64 {
	return int64(g.TotalPages()) * int64(g.PageSize)
}

// SectorSize 扇区字节数
func (g Geometry) SectorSize() int {
	return int(g.PagesPerSector) * g.PageSize
}

// SectorOf 返回页所在的扇区号
func (g Geometry) SectorOf(page uint32) uint32 {
	return page / g.PagesPerSector
}

// FirstPageOf 返回扇区的第一页
func (g Geometry) FirstPageOf(sector uint32) uint32 {
	return sector * g.PagesPerSector
}

// Validate 检查几何参数是否可用
func (g Geometry) Validate() error {
	if g.PageSize <= 0 || g.PagesPerSector == 0 || g.Sectors == 0 {
		return jerrors.Errorf("invalid geometry page_size=%d pages_per_sector=%d sectors=%d",
			g.PageSize, g.PagesPerSector, g.Sectors)
	}
	return nil
}

func (g Geometry) checkAccess(page uint32, offset int, n int) error {
	if page >= g.TotalPages() {
		return jerrors.Annotatef(ErrPageOutOfRange, "page %d of %d", page, g.TotalPages())
	}
	if offset < 0 || offset+n > g.PageSize {
		return jerrors.Annotatef(ErrOffsetOutOfRange, "page %d offset %d len %d", page, offset, n)
	}
	return nil
}

func (g Geometry) checkSector(sector uint32) error {
	if sector >= g.Sectors {
		return jerrors.Annotatef(ErrSectorOutOfRange, "sector %d of %d", sector, g.Sectors)
	}
	return nil
}

// BlockDevice is the raw medium driven by the page buffer manager.
type BlockDevice interface {
	Geometry() Geometry

	// Present reports whether a physical medium is detected.
	Present() bool

	// Ready reports whether the medium can accept a new command.
	Ready() bool

	// ReadPage copies len(dst) bytes starting at offset of page into dst.
	ReadPage(page uint32, offset int, dst []byte) error

	// WritePage programs src at offset of page.
	WritePage(page uint32, offset int, src []byte) error

	// EraseSector resets every byte of the sector to ErasedByte.
	EraseSector(sector uint32) error
}

// AutoEraser is implemented by devices that can report whether WritePage
// replaces bytes instead of clearing bits.
type AutoEraser interface {
	AutoErases() bool
}

// AutoErases reports whether dev programs pages without a prior sector
// erase. Devices that do not implement AutoEraser are treated as plain NOR.
func AutoErases(dev BlockDevice) bool {
	ae, ok := dev.(AutoEraser)
	return ok && ae.AutoErases()
}

// program applies src onto dst with NOR semantics.
func program(dst, src []byte, autoErase bool) {
	if autoErase {
		copy(dst, src)
		return
	}
	for i := range src {
		dst[i] &= src[i]
	}
}
