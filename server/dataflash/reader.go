package dataflash

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zhukovaskychina/xdataflash/logger"
)

// ReadSession streams log payload out of successive pages. Page headers are
// consumed at every page transition and exposed through Header; they never
// appear in the returned bytes.
type ReadSession struct {
	df       *DataFlash
	id       string
	page     []byte
	index    int
	pageAddr uint32
	header   PageHeader
	open     bool
}

// StartRead opens the read session at a log page and loads its header.
func (df *DataFlash) StartRead(page uint32) (*ReadSession, error) {
	if page == 0 || page > df.numPages {
		return nil, NewError("start read", errors.Wrapf(ErrPageOutOfRange, "page %d", page))
	}
	if !df.dev.Present() {
		return nil, NewError("start read", ErrMediaAbsent)
	}
	if err := df.acquire(&df.readHeld); err != nil {
		return nil, NewError("start read", err)
	}

	s := &ReadSession{
		df:   df,
		id:   uuid.New().String(),
		page: make([]byte, df.geometry.PageSize),
	}
	if err := s.load(page); err != nil {
		df.release(&df.readHeld)
		return nil, NewError("start read", err)
	}
	s.open = true
	logger.WithFields(logrus.Fields{"session": s.id, "page": page}).Debug("read session started")
	return s, nil
}

func (s *ReadSession) load(page uint32) error {
	if err := s.df.waitReady(); err != nil {
		return err
	}
	if err := s.df.dev.ReadPage(page, 0, s.page); err != nil {
		return errors.Wrapf(err, "read page %d", page)
	}
	s.pageAddr = page
	s.header = DecodePageHeader(s.page)
	s.index = PageHeaderSize
	s.df.count(func(st *Stats) { st.PagesRead++ })
	return nil
}

// ReadBlock fills p completely, crossing page boundaries and wrapping from
// the last log page to page 1.
func (s *ReadSession) ReadBlock(p []byte) error {
	_, err := s.read(p)
	return err
}

// Read implements io.Reader. The log is an endless ring, so Read only
// returns fewer than len(p) bytes on error.
func (s *ReadSession) Read(p []byte) (int, error) {
	return s.read(p)
}

func (s *ReadSession) read(p []byte) (int, error) {
	if !s.open {
		return 0, NewError("read block", ErrSessionNotStarted)
	}
	total := 0
	for len(p) > 0 {
		n := copy(p, s.page[s.index:])
		s.index += n
		p = p[n:]
		total += n

		if s.index == len(s.page) {
			next := s.pageAddr + 1
			if next > s.df.numPages {
				next = 1
			}
			if err := s.load(next); err != nil {
				return total, NewError("read block", err)
			}
		}
	}
	return total, nil
}

// Remaining 当前页还未读出的有效载荷字节数
func (s *ReadSession) Remaining() int {
	return len(s.page) - s.index
}

// Close releases the read session.
func (s *ReadSession) Close() error {
	if !s.open {
		return nil
	}
	s.open = false
	s.df.release(&s.df.readHeld)
	return nil
}

// ID 会话标识
func (s *ReadSession) ID() string {
	return s.id
}

// GetPage 当前所在的页
func (s *ReadSession) GetPage() uint32 {
	return s.pageAddr
}

// Header 当前页的页头
func (s *ReadSession) Header() PageHeader {
	return s.header
}

func (s *ReadSession) FileNumber() uint16 {
	return s.header.FileNumber
}

func (s *ReadSession) FilePage() uint16 {
	return s.header.FilePage
}
