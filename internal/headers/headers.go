// Package headers 集中维护所有响应共用的 CORS 与 Server 头。
package headers

import "github.com/gofiber/fiber/v3"

const (
	ServerName         = "RouterWay"
	AllowOrigin        = "*"
	AllowMethods       = "GET, POST, PUT, DELETE, OPTIONS"
	AllowHeaders       = "Content-Type, Authorization"
	StaticCacheControl = "public, max-age=3600"
)

// SetOrigin 写入所有响应都必须携带的 ACAO 与 Server 头。
func SetOrigin(c fiber.Ctx) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, AllowOrigin)
	c.Set(fiber.HeaderServer, ServerName)
}

// SetCORS 写入完整的宽松 CORS 头，用于预检与代理响应。
func SetCORS(c fiber.Ctx) {
	SetOrigin(c)
	c.Set(fiber.HeaderAccessControlAllowMethods, AllowMethods)
	c.Set(fiber.HeaderAccessControlAllowHeaders, AllowHeaders)
}

// SetStatic 写入静态文件 200 响应的头部。
func SetStatic(c fiber.Ctx, mime string) {
	c.Set(fiber.HeaderContentType, mime)
	c.Set(fiber.HeaderCacheControl, StaticCacheControl)
	SetOrigin(c)
}
