package dataflash

// Stats 运行期计数器
type Stats struct {
	PagesWritten  uint64
	BytesWritten  uint64
	BytesDropped  uint64
	SectorsErased uint64
	Stalls        uint64
	Wraps         uint64
	PagesRead     uint64
}

// Stats 返回计数器快照
func (df *DataFlash) Stats() Stats {
	df.mu.Lock()
	defer df.mu.Unlock()
	return df.stats
}

func (df *DataFlash) countDropped(n int) {
	df.mu.Lock()
	df.stats.BytesDropped += uint64(n)
	df.mu.Unlock()
}

func (df *DataFlash) count(fn func(s *Stats)) {
	df.mu.Lock()
	fn(&df.stats)
	df.mu.Unlock()
}
