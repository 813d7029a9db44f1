package dataflash

const (
	// LoggingFormat is stamped on the format page. Change it if, and only if,
	// the on-medium layout changes.
	LoggingFormat uint32 = 0x28122013

	// PageHeaderSize is the size of the {FileNumber, FilePage} prefix of a page.
	PageHeaderSize = 4

	// DefaultPageSize 常见 DataFlash 芯片的页大小
	DefaultPageSize = 256

	// erasedWord 是擦除后页首 16 位的读数
	erasedWord uint16 = 0xFFFF

	formatStampSize = PageHeaderSize + 4
)
