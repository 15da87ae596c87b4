package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.uber.org/atomic"
)

// MaxFileSize 是单个文件的缓存上限，超过的文件永远不会进入缓存。
const MaxFileSize = 10 * 1024 * 1024

// IndexKey 是根路径对应的缓存键。
const IndexKey = "index.html"

// Options 描述 FileCache 的构造参数。
type Options struct {
	// Root 仅在 Initialize 预热时使用。
	Root    string
	MaxSize int64
	Enabled bool
	// Fs 默认为 afero.NewOsFs()。
	Fs     afero.Fs
	Logger *logrus.Logger
	// Clock 默认为 time.Now，测试可注入固定时钟。
	Clock func() time.Time
}

// FileCache 以规范化后的相对路径为键缓存文件内容，整站共享一份实例。
type FileCache struct {
	entries sync.Map // key: string, value: *Entry
	count   atomic.Int64
	total   atomic.Int64

	maxSize int64
	enabled bool
	root    string
	fs      afero.Fs
	logger  *logrus.Logger
	now     func() time.Time
}

// Stats 是 FileCache 的只读快照。
type Stats struct {
	Entries    int64
	TotalBytes int64
	MaxBytes   int64
	Enabled    bool
}

// New 构造 FileCache；未提供的依赖使用默认实现。
func New(opts Options) *FileCache {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &FileCache{
		maxSize: opts.MaxSize,
		enabled: opts.Enabled,
		root:    opts.Root,
		fs:      fs,
		logger:  logger,
		now:     clock,
	}
}

// NormalizeKey 去掉一个前导斜杠，并把空路径或 "/" 映射为 index.html。
func NormalizeKey(path string) string {
	key := strings.TrimPrefix(path, "/")
	if key == "" || key == "/" {
		return IndexKey
	}
	return key
}

// Enabled 返回缓存是否启用。
func (c *FileCache) Enabled() bool {
	return c.enabled
}

// Get 查找缓存条目；命中时更新访问计数与最近访问时间。不会访问文件系统。
func (c *FileCache) Get(path string) *Entry {
	if !c.enabled {
		return nil
	}
	value, ok := c.entries.Load(NormalizeKey(path))
	if !ok {
		return nil
	}
	entry := value.(*Entry)
	entry.touch(c.now().Unix())
	return entry
}

// Insert 写穿缓存。禁用、超过单文件上限或预计超出预算时静默拒绝并返回 false。
func (c *FileCache) Insert(path string, content []byte, mime string) bool {
	now := c.now().Unix()
	return c.admit(path, content, mime, now, now)
}

// admit 是预热与写穿共用的准入逻辑。检查与提交之间不加锁，
// 并发准入可能短暂超出预算，但计数总会收敛到真实总和。
func (c *FileCache) admit(key string, content []byte, mime string, lastModified, now int64) bool {
	if !c.enabled {
		return false
	}
	size := int64(len(content))
	if size > MaxFileSize {
		return false
	}
	// 替换已有键时先扣除旧条目的大小，同尺寸刷新不会因预算被拒。
	var replaced int64
	if previous, ok := c.entries.Load(key); ok {
		replaced = previous.(*Entry).Size
	}
	if c.total.Load()-replaced+size > c.maxSize {
		return false
	}

	entry := newEntry(content, mime, lastModified, now)
	if previous, loaded := c.entries.Swap(key, entry); loaded {
		c.total.Sub(previous.(*Entry).Size)
	} else {
		c.count.Inc()
	}
	c.total.Add(size)
	return true
}

// Cleanup 移除 now-lastAccess 超过 maxAge 的条目，逐条删除，不独占整个 map。
func (c *FileCache) Cleanup(maxAge time.Duration) (removed int, freed int64) {
	if !c.enabled {
		return 0, 0
	}
	now := c.now().Unix()
	limit := int64(maxAge / time.Second)

	c.entries.Range(func(key, value any) bool {
		entry := value.(*Entry)
		if now-entry.LastAccess() <= limit {
			return true
		}
		// 条目可能已被并发写穿替换，只删除本次观察到的那一个。
		if c.entries.CompareAndDelete(key, entry) {
			c.total.Sub(entry.Size)
			c.count.Dec()
			removed++
			freed += entry.Size
		}
		return true
	})

	if removed > 0 {
		c.logger.WithFields(logrus.Fields{
			"action":  "cache_cleanup",
			"removed": removed,
			"freed":   freed,
		}).Infof("清理了 %d 个过期缓存条目，释放 %s", removed, humanize.IBytes(uint64(freed)))
	}
	return removed, freed
}

// Stats 返回条目数、当前总字节与预算。
func (c *FileCache) Stats() Stats {
	return Stats{
		Entries:    c.count.Load(),
		TotalBytes: c.total.Load(),
		MaxBytes:   c.maxSize,
		Enabled:    c.enabled,
	}
}
