package util

import (
	"fmt"
	"hash"

	"github.com/OneOfOne/xxhash"
)

// NewDigest 返回流式摘要，用于边拷贝边计算日志内容的校验值
func NewDigest() hash.Hash64 {
	return xxhash.New64()
}

// FormatDigest 把 64 位摘要格式化为固定宽度的十六进制
func FormatDigest(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
