package dataflash

import (
	"github.com/pkg/errors"
)

var (
	// 介质错误
	ErrMediaAbsent = errors.New("no storage medium present")
	ErrMediaBusy   = errors.New("storage medium not ready")

	// 格式错误
	ErrFormatMismatch = errors.New("format stamp mismatch, medium needs erase")

	// 会话错误
	ErrSessionNotStarted = errors.New("session not started")
	ErrSessionHeld       = errors.New("session already held")

	// 寻址错误
	ErrPageOutOfRange = errors.New("page out of range")
	ErrLogFull        = errors.New("log area full")
	ErrInvalidLayout  = errors.New("invalid medium layout")
)

// DataFlashError 带操作名的错误
type DataFlashError struct {
	Op  string
	Err error
}

func (e *DataFlashError) Error() string {
	if e.Err == nil {
		return "<nil>"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *DataFlashError) Unwrap() error {
	return e.Err
}

// NewError 创建带操作名的错误
func NewError(op string, err error) error {
	return &DataFlashError{
		Op:  op,
		Err: err,
	}
}

// IsMediaAbsent 检查是否为介质缺失
func IsMediaAbsent(err error) bool {
	return errors.Is(err, ErrMediaAbsent)
}

// IsMediaBusy 检查是否为等待介质就绪超时
func IsMediaBusy(err error) bool {
	return errors.Is(err, ErrMediaBusy)
}

// IsFormatMismatch 检查是否需要重新格式化
func IsFormatMismatch(err error) bool {
	return errors.Is(err, ErrFormatMismatch)
}

// IsSessionHeld 检查是否已有同类会话
func IsSessionHeld(err error) bool {
	return errors.Is(err, ErrSessionHeld)
}

// IsLogFull 检查有界日志是否已写满
func IsLogFull(err error) bool {
	return errors.Is(err, ErrLogFull)
}
