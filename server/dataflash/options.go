package dataflash

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// WrapPolicy decides what happens when the write cursor passes the last log page.
type WrapPolicy int

const (
	// WrapRing wraps to page 1 and erases sector 0, overwriting the oldest data.
	WrapRing WrapPolicy = iota
	// WrapBounded stops logging once the last page is written.
	WrapBounded
)

func (p WrapPolicy) String() string {
	switch p {
	case WrapRing:
		return "ring"
	case WrapBounded:
		return "bounded"
	default:
		return "unknown"
	}
}

// ParseWrapPolicy parses "ring" or "bounded".
func ParseWrapPolicy(s string) (WrapPolicy, error) {
	switch strings.ToLower(s) {
	case "ring":
		return WrapRing, nil
	case "bounded":
		return WrapBounded, nil
	}
	return WrapRing, errors.Errorf("unknown wrap policy %q", s)
}

// Options selects the page buffer variant and the timing of device waits.
type Options struct {
	// DoubleBuffer alternates two page slots; a flush does not wait for the
	// program to finish before the next slot is filled.
	DoubleBuffer bool
	// SectorEraseCheck erases a sector on entry when its first page is not blank.
	// Turning it off only takes effect on devices that erase on program.
	SectorEraseCheck bool
	WrapPolicy       WrapPolicy

	// ReadyTimeout bounds every wait for the device to become ready.
	ReadyTimeout      time.Duration
	ReadyPollInterval time.Duration

	// EraseAll sleeps EraseBatchDelay after every EraseBatch sectors.
	EraseBatch        int
	EraseBatchDelay   time.Duration
	FormatSettleDelay time.Duration

	// OnEraseProgress is called after each sector erased by EraseAll.
	OnEraseProgress func(done, total uint32)

	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
}

// DefaultOptions 单缓冲、带扇区擦除检查的环形日志
func DefaultOptions() Options {
	return Options{
		SectorEraseCheck:  true,
		WrapPolicy:        WrapRing,
		ReadyTimeout:      50 * time.Millisecond,
		ReadyPollInterval: 50 * time.Microsecond,
		EraseBatch:        6,
		EraseBatchDelay:   6 * time.Millisecond,
		FormatSettleDelay: 100 * time.Millisecond,
	}
}

func (o *Options) applyDefaults() {
	def := DefaultOptions()
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = def.ReadyTimeout
	}
	if o.ReadyPollInterval < 0 {
		o.ReadyPollInterval = 0
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
}
