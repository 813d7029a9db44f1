package dataflash

import (
	"fmt"

	"github.com/zhukovaskychina/xdataflash/util"
)

// PageHeader 每个物理页开头的元数据，标识所属日志文件和文件内页序号
//
//	0      2      4
//	+------+------+---------------
//	| file | page | payload ...
//	+------+------+---------------
//
// 两个字段均为小端序 uint16。
type PageHeader struct {
	FileNumber uint16
	FilePage   uint16
}

// Encode 把头部写入 buf 的前 PageHeaderSize 字节
func (h PageHeader) Encode(buf []byte) {
	cursor := util.PutUB2(buf, 0, h.FileNumber)
	util.PutUB2(buf, cursor, h.FilePage)
}

// DecodePageHeader 从页首解析头部
func DecodePageHeader(buf []byte) PageHeader {
	cursor, fileNumber := util.ReadUB2(buf, 0)
	_, filePage := util.ReadUB2(buf, cursor)
	return PageHeader{FileNumber: fileNumber, FilePage: filePage}
}

// IsErased 擦除后未写入过的页
func (h PageHeader) IsErased() bool {
	return h.FileNumber == erasedWord && h.FilePage == erasedWord
}

func (h PageHeader) String() string {
	return fmt.Sprintf("file=%d page=%d", h.FileNumber, h.FilePage)
}
