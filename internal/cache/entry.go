package cache

import (
	"go.uber.org/atomic"
)

// Entry 是一个缓存文件：正文只读共享，读取时不复制。
type Entry struct {
	content []byte

	// Mime 是响应使用的 Content-Type。
	Mime string
	// LastModified 为 unix 秒；预热时取文件 mtime，写穿时取写入时刻。
	LastModified int64
	// Size 恒等于 len(content)。
	Size int64

	accessCount atomic.Uint64
	lastAccess  atomic.Int64
}

func newEntry(content []byte, mime string, lastModified, now int64) *Entry {
	e := &Entry{
		content:      content,
		Mime:         mime,
		LastModified: lastModified,
		Size:         int64(len(content)),
	}
	e.lastAccess.Store(now)
	return e
}

// Content 返回共享的正文切片，调用方不得修改。
func (e *Entry) Content() []byte {
	return e.content
}

// AccessCount 返回累计访问次数，仅用于诊断。
func (e *Entry) AccessCount() uint64 {
	return e.accessCount.Load()
}

// LastAccess 返回最近一次访问的 unix 秒。
func (e *Entry) LastAccess() int64 {
	return e.lastAccess.Load()
}

func (e *Entry) touch(now int64) {
	e.accessCount.Inc()
	e.lastAccess.Store(now)
}
