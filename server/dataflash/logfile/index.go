// Package logfile rebuilds logical log files from the page headers on the
// medium and drives whole-log writes and reads on top of dataflash sessions.
package logfile

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xdataflash/server/dataflash"
)

var ErrLogNotFound = errors.New("log not found")

// LogInfo is one logical file as recovered from page headers.
type LogInfo struct {
	FileNumber uint16
	StartPage  uint32
	EndPage    uint32
	Pages      uint32
}

// Index 日志边界索引，只依赖每页的 {FileNumber, FilePage}
type Index struct {
	numPages uint32
	wrap     dataflash.WrapPolicy
	logs     []LogInfo
}

type run struct {
	info          LogInfo
	firstFilePage uint16
	lastFilePage  uint16
}

func (r *run) follows(h dataflash.PageHeader) bool {
	return h.FileNumber == r.info.FileNumber && h.FilePage == r.lastFilePage+1
}

// Scan reads the header of every log page once.
//
// A run is a stretch of physically adjacent pages of one file whose FilePage
// grows by one from page to page. A run that reaches the last log page and
// continues on page 1 is joined back into one log. Two runs with the same
// FileNumber are kept apart, so a stale log never merges with a newer log
// that reused its number.
func Scan(df *dataflash.DataFlash) (*Index, error) {
	numPages := df.NumPages()
	var runs []*run
	var cur *run
	for page := uint32(1); page <= numPages; page++ {
		h, err := df.ReadHeader(page)
		if err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		if h.IsErased() {
			cur = nil
			continue
		}
		if cur != nil && cur.follows(h) {
			cur.info.EndPage = page
			cur.info.Pages++
			cur.lastFilePage = h.FilePage
			continue
		}
		cur = &run{
			info:          LogInfo{FileNumber: h.FileNumber, StartPage: page, EndPage: page, Pages: 1},
			firstFilePage: h.FilePage,
			lastFilePage:  h.FilePage,
		}
		runs = append(runs, cur)
	}

	if n := len(runs); n > 1 {
		head, tail := runs[0], runs[n-1]
		if head.info.StartPage == 1 && tail.info.EndPage == numPages &&
			head.info.FileNumber == tail.info.FileNumber && head.firstFilePage == tail.lastFilePage+1 {
			tail.info.EndPage = head.info.EndPage
			tail.info.Pages += head.info.Pages
			runs = runs[1:]
		}
	}

	idx := &Index{numPages: numPages, wrap: df.WrapPolicy()}
	for _, r := range runs {
		idx.logs = append(idx.logs, r.info)
	}
	sort.Slice(idx.logs, func(i, j int) bool {
		if idx.logs[i].FileNumber != idx.logs[j].FileNumber {
			return idx.logs[i].FileNumber < idx.logs[j].FileNumber
		}
		return idx.logs[i].StartPage < idx.logs[j].StartPage
	})
	return idx, nil
}

// Logs 按文件号、起始页排序的日志列表
func (idx *Index) Logs() []LogInfo {
	return append([]LogInfo(nil), idx.logs...)
}

// Has reports whether any page on the medium belongs to fileNumber.
func (idx *Index) Has(fileNumber uint16) bool {
	for _, l := range idx.logs {
		if l.FileNumber == fileNumber {
			return true
		}
	}
	return false
}

func (idx *Index) NumLogs() int {
	return len(idx.logs)
}

// LastLog returns the highest file number on the medium.
func (idx *Index) LastLog() (uint16, bool) {
	if len(idx.logs) == 0 {
		return 0, false
	}
	return idx.logs[len(idx.logs)-1].FileNumber, true
}

// Boundaries returns the first and last page of a log. When stale pages
// carry the same FileNumber, the run starting at the lowest page wins.
func (idx *Index) Boundaries(fileNumber uint16) (uint32, uint32, error) {
	for _, l := range idx.logs {
		if l.FileNumber == fileNumber {
			return l.StartPage, l.EndPage, nil
		}
	}
	return 0, 0, errors.Wrapf(ErrLogNotFound, "file %d", fileNumber)
}

// NextWritePage is the page following the newest log. A bounded log that
// already reached the last page reports NumPages+1.
func (idx *Index) NextWritePage() uint32 {
	last, ok := idx.LastLog()
	if !ok {
		return 1
	}
	_, end, _ := idx.Boundaries(last)
	if end < idx.numPages {
		return end + 1
	}
	if idx.wrap == dataflash.WrapBounded {
		return idx.numPages + 1
	}
	return 1
}
