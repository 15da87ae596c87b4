package server

import (
	"errors"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/routerway/routerway/internal/config"
	"github.com/routerway/routerway/internal/dispatch"
	"github.com/routerway/routerway/internal/errpage"
	"github.com/routerway/routerway/internal/headers"
	"github.com/routerway/routerway/internal/logging"
)

// ProxyHandler 负责把命中路由的请求转发到上游，测试中可注入假实现。
type ProxyHandler interface {
	Handle(c fiber.Ctx, route *config.ApiRoute, decodedPath string) error
}

// ProxyHandlerFunc adapts a function to the ProxyHandler interface.
type ProxyHandlerFunc func(fiber.Ctx, *config.ApiRoute, string) error

// Handle makes ProxyHandlerFunc satisfy ProxyHandler.
func (f ProxyHandlerFunc) Handle(c fiber.Ctx, route *config.ApiRoute, decodedPath string) error {
	return f(c, route, decodedPath)
}

// StaticHandler 按规范化后的缓存键返回静态文件。
type StaticHandler interface {
	Serve(c fiber.Ctx, key string) error
}

// StaticHandlerFunc adapts a function to the StaticHandler interface.
type StaticHandlerFunc func(fiber.Ctx, string) error

// Serve makes StaticHandlerFunc satisfy StaticHandler.
func (f StaticHandlerFunc) Serve(c fiber.Ctx, key string) error {
	return f(c, key)
}

// AppOptions 描述构建 Fiber 应用所需的依赖。
type AppOptions struct {
	Logger *logrus.Logger
	Routes *dispatch.RouteTable
	Proxy  ProxyHandler
	Static StaticHandler
	// Diagnostics 为 true 时 /-/ 前缀交给后续注册的诊断路由。
	Diagnostics bool
}

const contextKeyRequestID = "_routerway_request_id"

// 400/403 直接使用内置页面，不访问缓存或磁盘。
const (
	messageBadEncoding  = "Invalid path encoding"
	messageAccessDenied = "Access denied"
	messageInternal     = "Internal Server Error"
	messageNotSupported = "Method Not Implemented"
)

// extensionMethods 在 fiber 默认方法之外额外接受的方法，代理路由原样转发给上游。
var extensionMethods = []string{
	"PROPFIND", "PROPPATCH", "MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK",
	"REPORT", "SEARCH", "MKCALENDAR", "PURGE", "LINK", "UNLINK",
}

// RequestMethods 返回应用接受的全部方法，默认方法的顺序保持不变。
func RequestMethods() []string {
	methods := slices.Clone(fiber.DefaultMethods)
	return append(methods, extensionMethods...)
}

// NewApp builds the Fiber application: request IDs, panic recovery, and a
// catch-all handler that evaluates dispatch.Decide for every request.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Proxy == nil {
		return nil, errors.New("proxy handler is required")
	}
	if opts.Static == nil {
		return nil, errors.New("static handler is required")
	}

	methods := RequestMethods()
	app := fiber.New(fiber.Config{
		CaseSensitive:  true,
		ServerHeader:   headers.ServerName,
		ErrorHandler:   errorHandler(opts.Logger),
		RequestMethods: methods,
	})
	guardUnknownMethods(app, methods, opts.Logger)

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.All("/*", func(c fiber.Ctx) error {
		decision := dispatch.Decide(c.Method(), rawRequestPath(c), opts.Routes)
		// 诊断接口只在通过路径校验、且未命中代理路由时放行。
		if opts.Diagnostics && decision.Kind == dispatch.KindStatic && isDiagnosticsKey(decision.Key) {
			return c.Next()
		}
		return serveDecision(c, opts, decision)
	})

	return app, nil
}

func serveDecision(c fiber.Ctx, opts AppOptions, decision dispatch.Decision) error {
	if opts.Logger.IsLevelEnabled(logrus.DebugLevel) {
		fields := logging.RequestFields(decision.Kind.String(), c.Method(), decision.Path, false)
		fields["action"] = "dispatch"
		fields["request_id"] = RequestID(c)
		opts.Logger.WithFields(fields).Debug("收到请求")
	}

	switch decision.Kind {
	case dispatch.KindPreflight:
		headers.SetCORS(c)
		c.Status(fiber.StatusOK)
		return nil
	case dispatch.KindBadRequest:
		logRejected(opts.Logger, c, decision, "无法解码路径")
		return errpage.Synthesize(fiber.StatusBadRequest, messageBadEncoding).Write(c)
	case dispatch.KindForbidden:
		logRejected(opts.Logger, c, decision, "拒绝不安全的路径")
		return errpage.Synthesize(fiber.StatusForbidden, messageAccessDenied).Write(c)
	case dispatch.KindProxy:
		return opts.Proxy.Handle(c, decision.Route, decision.Path)
	default:
		return opts.Static.Serve(c, decision.Key)
	}
}

func logRejected(logger *logrus.Logger, c fiber.Ctx, decision dispatch.Decision, msg string) {
	fields := logging.RequestFields(decision.Kind.String(), c.Method(), rawRequestPath(c), false)
	fields["action"] = "dispatch"
	fields["request_id"] = RequestID(c)
	logger.WithError(decision.Err).WithFields(fields).Warn(msg)
}

// requestIDMiddleware 为每个请求生成 X-Request-ID。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// errorHandler 把处理链中漏出的错误（含 recover 捕获的 panic）转换为内置错误页，
// 只影响当前请求。
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := messageInternal
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = errpage.DefaultMessage(status)
		}

		logger.WithError(err).WithFields(logrus.Fields{
			"action":     "request_error",
			"status":     status,
			"method":     c.Method(),
			"path":       rawRequestPath(c),
			"request_id": RequestID(c),
		}).Error("请求处理失败")

		return errpage.Synthesize(status, message).Write(c)
	}
}

// rawRequestPath 返回未经 fasthttp 规范化、未解码的原始路径，
// 以便 dispatch 自行解码并识别 ".." 与 "//"。
func rawRequestPath(c fiber.Ctx) string {
	return originalPath(c.Request())
}

func originalPath(req *fasthttp.Request) string {
	raw := req.URI().PathOriginal()
	if len(raw) == 0 {
		return "/"
	}
	path := string(raw)
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// isDiagnosticsKey 只匹配 routes 包注册的诊断接口，其余 /-/ 路径仍按静态文件处理。
func isDiagnosticsKey(key string) bool {
	return key == "-/cache" || key == "-/routes" || strings.HasPrefix(key, "-/routes/")
}

// guardUnknownMethods 接管 fiber 对未注册方法的 501 应答，改为带 CORS 头的内置错误页。
func guardUnknownMethods(app *fiber.App, methods []string, logger *logrus.Logger) {
	server := app.Server()
	next := server.Handler
	server.Handler = func(rctx *fasthttp.RequestCtx) {
		method := string(rctx.Method())
		if slices.Contains(methods, method) {
			next(rctx)
			return
		}

		logger.WithFields(logrus.Fields{
			"action": "request_error",
			"status": fiber.StatusNotImplemented,
			"method": method,
			"path":   originalPath(&rctx.Request),
		}).Warn("不支持的请求方法")

		page := errpage.Synthesize(fiber.StatusNotImplemented, messageNotSupported)
		resp := &rctx.Response
		resp.Header.Set(fiber.HeaderAccessControlAllowOrigin, headers.AllowOrigin)
		resp.Header.Set(fiber.HeaderServer, headers.ServerName)
		resp.Header.SetContentType(errpage.ContentType)
		resp.SetStatusCode(page.Status)
		resp.SetBody(page.Body)
	}
}
