// Package contenttype 把文件扩展名映射为 Content-Type。
package contenttype

import "path"

// Default 是未知扩展名的兜底类型。
const Default = "application/octet-stream"

// table 按扩展名精确匹配（区分大小写）。
var table = map[string]string{
	"html": "text/html; charset=utf-8",
	"htm":  "text/html; charset=utf-8",
	"css":  "text/css",
	"js":   "application/javascript",
	"json": "application/json",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"ico":  "image/x-icon",
	"txt":  "text/plain",
	"pdf":  "application/pdf",
	"zip":  "application/zip",
	"xml":  "application/xml",
}

// Resolve 返回 name 扩展名对应的 Content-Type，未知扩展名返回 Default。
func Resolve(name string) string {
	ext := path.Ext(name)
	if len(ext) > 1 {
		if ct, ok := table[ext[1:]]; ok {
			return ct
		}
	}
	return Default
}
