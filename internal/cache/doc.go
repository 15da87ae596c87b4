// Package cache 提供静态根目录前的内存文件缓存，以及缓存未命中时使用的受限磁盘读取器。
//
// FileCache 可并发使用：条目存放在 sync.Map 中，容量统计使用原子计数器，
// 并发写入时可能短暂超出预算。条目只会被按年龄清理（Cleanup / RunSweeper）移除，
// 没有 LRU 或按容量触发的淘汰。
package cache
