// Package errpage 根据状态码解析错误页：缓存 → 错误页目录 → 内置模板。
package errpage

import (
	"fmt"
	"html"

	"github.com/gofiber/fiber/v3"

	"github.com/routerway/routerway/internal/headers"
)

// ContentType 是所有错误页统一使用的类型。
const ContentType = "text/html; charset=utf-8"

// Page 是一份待写出的错误页。
type Page struct {
	Status int
	Body   []byte
	// Source 标记页面来源（cache/disk/synthesized），仅用于日志。
	Source string
}

const (
	SourceCache       = "cache"
	SourceDisk        = "disk"
	SourceSynthesized = "synthesized"
)

// FileName 返回状态码对应的错误页文件名。
func FileName(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "404.html"
	case fiber.StatusBadRequest:
		return "400.html"
	case fiber.StatusForbidden:
		return "403.html"
	case fiber.StatusInternalServerError:
		return "500.html"
	case fiber.StatusBadGateway:
		return "502.html"
	case fiber.StatusServiceUnavailable:
		return "503.html"
	default:
		return "error.html"
	}
}

// DefaultMessage 是找不到错误页文件时使用的简短提示。
func DefaultMessage(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "404 - 页面未找到"
	case fiber.StatusInternalServerError:
		return "500 - 内部服务器错误"
	case fiber.StatusForbidden:
		return "403 - 访问被拒绝"
	default:
		return "发生错误"
	}
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>%d - RouterWay</title>
    <style>
        body { font-family: Arial, sans-serif; text-align: center; margin-top: 50px; }
        .error { color: #e74c3c; }
    </style>
</head>
<body>
    <h1 class="error">%d</h1>
    <p>%s</p>
    <hr>
    <small>RouterWay Server</small>
</body>
</html>`

// Synthesize 生成包含数字状态码与提示信息的最小 HTML 页面。
func Synthesize(status int, message string) Page {
	body := fmt.Sprintf(pageTemplate, status, status, html.EscapeString(message))
	return Page{Status: status, Body: []byte(body), Source: SourceSynthesized}
}

// Write 把页面写入响应，附带 CORS 与 Server 头。
func (p Page) Write(c fiber.Ctx) error {
	headers.SetOrigin(c)
	c.Set(fiber.HeaderContentType, ContentType)
	return c.Status(p.Status).Send(p.Body)
}
