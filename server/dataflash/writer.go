package dataflash

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zhukovaskychina/xdataflash/logger"
)

// WriteSession is the single open write stream of a DataFlash.
//
// WriteBlock never reports failure: data written while the medium is absent
// or busy, after the session is closed, after a stalled flush, or once a
// bounded log is full is dropped and only counted in Stats.BytesDropped.
// Callers that care use Err and Full.
type WriteSession struct {
	df      *DataFlash
	id      string
	buf     *pageBuffer
	started bool
	// detached 会话在无介质时打开，之后介质恢复也不会写入
	detached bool
	err      error
}

// StartWrite opens the write session at page. On a ring log a page past the
// log area wraps to page 1; on a bounded log it fails with ErrLogFull.
//
// When no medium is present the session still opens, but every write is
// dropped and the device is never touched, even if the medium shows up
// before the session is closed.
func (df *DataFlash) StartWrite(page uint32) (*WriteSession, error) {
	if page == 0 {
		return nil, NewError("start write", errors.Wrap(ErrPageOutOfRange, "page 0 is reserved"))
	}
	if page > df.numPages && df.opts.WrapPolicy == WrapBounded {
		return nil, NewError("start write", errors.Wrapf(ErrLogFull, "page %d beyond %d", page, df.numPages))
	}
	if err := df.acquire(&df.writeHeld); err != nil {
		return nil, NewError("start write", err)
	}

	s := &WriteSession{
		df:  df,
		id:  uuid.New().String(),
		buf: newPageBuffer(df),
	}
	if !df.dev.Present() {
		s.buf.pageAddr = page
		s.started = true
		s.detached = true
		s.log().Warn("write session opened without medium, writes will be dropped")
		return s, nil
	}
	if err := s.buf.start(page); err != nil {
		df.release(&df.writeHeld)
		return nil, NewError("start write", err)
	}
	s.started = true
	s.log().WithField("file", df.FileNumber()).Info("write session started")
	return s, nil
}

func (s *WriteSession) log() *logrus.Entry {
	return logger.WithFields(logrus.Fields{"session": s.id, "page": s.buf.pageAddr})
}

// WriteBlock appends p to the log, inserting a PageHeader at the start of
// every page and flushing each page as soon as it is full.
func (s *WriteSession) WriteBlock(p []byte) {
	df := s.df
	if !s.started || s.detached || s.err != nil || s.buf.full {
		df.countDropped(len(p))
		return
	}
	if !df.dev.Present() || !df.dev.Ready() {
		df.countDropped(len(p))
		return
	}

	for len(p) > 0 {
		page := s.buf.current()
		if s.buf.index == 0 {
			df.sequence().Encode(page)
			s.buf.index = PageHeaderSize
		}

		n := copy(page[s.buf.index:], p)
		s.buf.index += n
		p = p[n:]
		df.count(func(st *Stats) { st.BytesWritten += uint64(n) })

		if s.buf.index == len(page) {
			if err := s.FinishWrite(); err != nil {
				df.countDropped(len(p))
				return
			}
			if s.buf.full {
				df.countDropped(len(p))
				return
			}
		}
	}
}

// FinishWrite flushes the buffered page, even a partial one, and moves on to
// the next page and FilePage. It is a no-op when nothing is buffered.
func (s *WriteSession) FinishWrite() error {
	if !s.started {
		return NewError("finish write", ErrSessionNotStarted)
	}
	if s.err != nil {
		return s.err
	}
	if s.buf.index == 0 {
		return nil
	}
	if s.buf.full {
		return NewError("finish write", ErrLogFull)
	}

	if err := s.buf.finish(); err != nil {
		s.err = NewError("finish write", err)
		s.log().WithError(err).Warn("write session stalled, further writes dropped")
		return s.err
	}
	s.df.advanceFilePage()
	return nil
}

// Close flushes a partial page and releases the write session.
func (s *WriteSession) Close() error {
	if !s.started {
		return nil
	}
	var err error
	if !s.detached && s.err == nil && s.buf.index > 0 && !s.buf.full && s.df.dev.Present() {
		err = s.FinishWrite()
	}
	s.started = false
	s.df.release(&s.df.writeHeld)
	s.log().Info("write session closed")
	if err != nil {
		return err
	}
	return s.err
}

// ID 会话标识
func (s *WriteSession) ID() string {
	return s.id
}

// GetWritePage 下一次刷写的目标页
func (s *WriteSession) GetWritePage() uint32 {
	return s.buf.pageAddr
}

// BufferIndex 当前页缓冲中已写入的字节数（含页头）
func (s *WriteSession) BufferIndex() int {
	return s.buf.index
}

// ActiveSlot 双缓冲时正在填充的槽位
func (s *WriteSession) ActiveSlot() int {
	return s.buf.active
}

// Full 有界日志已写满
func (s *WriteSession) Full() bool {
	return s.buf.full
}

// Err 返回导致会话停止写入的错误
func (s *WriteSession) Err() error {
	return s.err
}
