package device

import (
	"sync"

	"github.com/zhukovaskychina/xdataflash/util"
)

// WriteRecord is one WritePage call observed by a MemDevice.
type WriteRecord struct {
	Page   uint32
	Offset int
	Len    int
}

// MemDevice 内存模拟介质，记录所有写入和擦除调用
type MemDevice struct {
	mu        sync.Mutex
	geometry  Geometry
	memory    []byte
	autoErase bool

	present   bool
	busy      bool
	busyPolls int

	writes []WriteRecord
	erases []uint32
}

var _ BlockDevice = (*MemDevice)(nil)

// NewMemDevice 创建一个已擦除的内存介质
func NewMemDevice(g Geometry) *MemDevice {
	memory := make([]byte, g.Size())
	util.FillBytes(memory, ErasedByte)
	return &MemDevice{
		geometry: g,
		memory:   memory,
		present:  true,
	}
}

func (d *MemDevice) Geometry() Geometry {
	return d.geometry
}

func (d *MemDevice) Present() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.present
}

func (d *MemDevice) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return false
	}
	if d.busyPolls > 0 {
		d.busyPolls--
		return false
	}
	return true
}

func (d *MemDevice) ReadPage(page uint32, offset int, dst []byte) error {
	if err := d.geometry.checkAccess(page, offset, len(dst)); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(dst, d.memory[d.addr(page, offset):])
	return nil
}

func (d *MemDevice) WritePage(page uint32, offset int, src []byte) error {
	if err := d.geometry.checkAccess(page, offset, len(src)); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	start := d.addr(page, offset)
	program(d.memory[start:start+int64(len(src))], src, d.autoErase)
	d.writes = append(d.writes, WriteRecord{Page: page, Offset: offset, Len: len(src)})
	return nil
}

func (d *MemDevice) EraseSector(sector uint32) error {
	if err := d.geometry.checkSector(sector); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	start := d.addr(d.geometry.FirstPageOf(sector), 0)
	util.FillBytes(d.memory[start:start+int64(d.geometry.SectorSize())], ErasedByte)
	d.erases = append(d.erases, sector)
	return nil
}

func (d *MemDevice) addr(page uint32, offset int) int64 {
	return int64(page)*int64(d.geometry.PageSize) + int64(offset)
}

// SetPresent 模拟介质插拔
func (d *MemDevice) SetPresent(present bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.present = present
}

// SetBusy 让 Ready 一直返回 false，直到再次调用 SetBusy(false)
func (d *MemDevice) SetBusy(busy bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy = busy
}

// BusyFor 让接下来 n 次 Ready 查询返回 false
func (d *MemDevice) BusyFor(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busyPolls = n
}

// SetAutoErase 模拟带内置擦除的页编程
func (d *MemDevice) SetAutoErase(autoErase bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.autoErase = autoErase
}

func (d *MemDevice) AutoErases() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.autoErase
}

// Poke 绕过 NOR 规则直接改写原始字节，用来构造残留数据
func (d *MemDevice) Poke(page uint32, offset int, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.memory[d.addr(page, offset):], data)
}

// Writes 返回写入调用记录的副本
func (d *MemDevice) Writes() []WriteRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]WriteRecord(nil), d.writes...)
}

// Erases 返回被擦除的扇区序列
func (d *MemDevice) Erases() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint32(nil), d.erases...)
}

// ResetHistory 清空写入和擦除记录
func (d *MemDevice) ResetHistory() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = nil
	d.erases = nil
}

// Snapshot 返回整个介质的副本
func (d *MemDevice) Snapshot() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.memory...)
}
