package device

import (
	"os"
	"path/filepath"
	"sync"

	jerrors "github.com/juju/errors"

	"github.com/zhukovaskychina/xdataflash/logger"
	"github.com/zhukovaskychina/xdataflash/util"
)

// FileDevice is a flash image stored in a regular file, one page after another.
type FileDevice struct {
	mu       sync.RWMutex
	file     *os.File
	filePath string
	geometry Geometry

	// AutoErase makes WritePage replace the bytes instead of clearing bits.
	AutoErase bool
}

var _ BlockDevice = (*FileDevice)(nil)

// NewFileDevice creates a device over filePath; call Open before use.
func NewFileDevice(filePath string, g Geometry) *FileDevice {
	return &FileDevice{
		filePath: filePath,
		geometry: g,
	}
}

// Open opens the image, creating it erased when missing or extending a short
// image with erased bytes.
func (fd *FileDevice) Open() error {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if fd.file != nil {
		return nil
	}
	if err := fd.geometry.Validate(); err != nil {
		return jerrors.Trace(err)
	}
	if dir := filepath.Dir(fd.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return jerrors.Annotatef(err, "os.MkdirAll(%s)", dir)
		}
	}

	file, err := os.OpenFile(fd.filePath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return jerrors.Annotatef(err, "os.OpenFile(%s)", fd.filePath)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return jerrors.Annotatef(err, "stat %s", fd.filePath)
	}

	if size := stat.Size(); size < fd.geometry.Size() {
		logger.Infof("extending flash image %s from %d to %d bytes", fd.filePath, size, fd.geometry.Size())
		if err := fillErased(file, size, fd.geometry.Size()); err != nil {
			file.Close()
			return jerrors.Annotatef(err, "initialise %s", fd.filePath)
		}
	}
	fd.file = file
	return nil
}

func fillErased(file *os.File, from, to int64) error {
	chunk := make([]byte, 64*1024)
	util.FillBytes(chunk, ErasedByte)
	for off := from; off < to; {
		n := int64(len(chunk))
		if to-off < n {
			n = to - off
		}
		if _, err := file.WriteAt(chunk[:n], off); err != nil {
			return err
		}
		off += n
	}
	return nil
}

// Close closes the image file
func (fd *FileDevice) Close() error {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if fd.file != nil {
		err := fd.file.Close()
		fd.file = nil
		return jerrors.Trace(err)
	}
	return nil
}

// Sync flushes the image to disk
func (fd *FileDevice) Sync() error {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if fd.file != nil {
		return jerrors.Trace(fd.file.Sync())
	}
	return nil
}

func (fd *FileDevice) AutoErases() bool {
	return fd.AutoErase
}

func (fd *FileDevice) Geometry() Geometry {
	return fd.geometry
}

// Present 镜像文件已打开即视为介质在位
func (fd *FileDevice) Present() bool {
	fd.mu.RLock()
	defer fd.mu.RUnlock()
	return fd.file != nil
}

// Ready 文件操作是同步完成的
func (fd *FileDevice) Ready() bool {
	return fd.Present()
}

func (fd *FileDevice) ReadPage(page uint32, offset int, dst []byte) error {
	if err := fd.geometry.checkAccess(page, offset, len(dst)); err != nil {
		return err
	}
	fd.mu.RLock()
	defer fd.mu.RUnlock()
	if fd.file == nil {
		return ErrDeviceClosed
	}

	if _, err := fd.file.ReadAt(dst, fd.addr(page, offset)); err != nil {
		return jerrors.Annotatef(err, "read page %d offset %d", page, offset)
	}
	return nil
}

func (fd *FileDevice) WritePage(page uint32, offset int, src []byte) error {
	if err := fd.geometry.checkAccess(page, offset, len(src)); err != nil {
		return err
	}
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if fd.file == nil {
		return ErrDeviceClosed
	}

	current := make([]byte, len(src))
	if !fd.AutoErase {
		if _, err := fd.file.ReadAt(current, fd.addr(page, offset)); err != nil {
			return jerrors.Annotatef(err, "read page %d before program", page)
		}
	}
	program(current, src, fd.AutoErase)
	if _, err := fd.file.WriteAt(current, fd.addr(page, offset)); err != nil {
		return jerrors.Annotatef(err, "program page %d offset %d", page, offset)
	}
	return nil
}

func (fd *FileDevice) EraseSector(sector uint32) error {
	if err := fd.geometry.checkSector(sector); err != nil {
		return err
	}
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if fd.file == nil {
		return ErrDeviceClosed
	}

	blank := make([]byte, fd.geometry.SectorSize())
	util.FillBytes(blank, ErasedByte)
	if _, err := fd.file.WriteAt(blank, fd.addr(fd.geometry.FirstPageOf(sector), 0)); err != nil {
		return jerrors.Annotatef(err, "erase sector %d", sector)
	}
	return nil
}

func (fd *FileDevice) addr(page uint32, offset int) int64 {
	return int64(page)*int64(fd.geometry.PageSize) + int64(offset)
}
