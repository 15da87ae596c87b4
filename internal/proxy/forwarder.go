package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/routerway/routerway/internal/config"
	"github.com/routerway/routerway/internal/errpage"
	"github.com/routerway/routerway/internal/headers"
	"github.com/routerway/routerway/internal/logging"
	"github.com/routerway/routerway/internal/server"
)

// ErrTransport 包装上游不可达或读取响应失败的错误，对应 502。
var ErrTransport = errors.New("proxy transport failure")

// Transport 是发送上游请求的协作方，*http.Client 即满足该接口。
type Transport interface {
	Do(*http.Request) (*http.Response, error)
}

const (
	messageInvalidTarget = "Invalid proxy target"
	messageProxyFailed   = "Proxy request failed"
)

// Forwarder 按路由改写目标并转发请求，上游失败时返回 502 错误页。
type Forwarder struct {
	transport Transport
	pages     *errpage.Resolver
	logger    *logrus.Logger
}

// NewForwarder 创建 Forwarder；pages 为空时 502 直接使用内置页面。
func NewForwarder(transport Transport, pages *errpage.Resolver, logger *logrus.Logger) *Forwarder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Forwarder{
		transport: transport,
		pages:     pages,
		logger:    logger,
	}
}

// Handle 实现 server.ProxyHandler。
func (f *Forwarder) Handle(c fiber.Ctx, route *config.ApiRoute, decodedPath string) error {
	started := time.Now()
	requestID := server.RequestID(c)

	target, err := Rewrite(route, decodedPath, string(c.Request().URI().QueryString()))
	if err != nil {
		f.logResult(c, route, decodedPath, "", requestID, 0, started, err)
		return errpage.Synthesize(fiber.StatusBadRequest, messageInvalidTarget).Write(c)
	}

	req, err := f.buildUpstreamRequest(c, target)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		f.logResult(c, route, decodedPath, target.String(), requestID, 0, started, err)
		return errpage.Synthesize(fiber.StatusBadRequest, messageInvalidTarget).Write(c)
	}

	resp, err := f.transport.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrTransport, err)
		f.logResult(c, route, decodedPath, target.String(), requestID, 0, started, err)
		return f.writeBadGateway(c)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrTransport, err)
		f.logResult(c, route, decodedPath, target.String(), requestID, resp.StatusCode, started, err)
		return f.writeBadGateway(c)
	}

	copyResponseHeaders(c, resp.Header)
	headers.SetCORS(c)
	f.logResult(c, route, decodedPath, target.String(), requestID, resp.StatusCode, started, nil)
	return c.Status(resp.StatusCode).Send(body)
}

func (f *Forwarder) buildUpstreamRequest(c fiber.Ctx, target *url.URL) (*http.Request, error) {
	// 客户端断开不会取消该 ctx，请求始终执行到结束。
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, c.Method(), target.String(), bytesReader(c.Body()))
	if err != nil {
		return nil, err
	}

	server.CopyHeaders(req.Header, fiberHeadersAsHTTP(c))
	req.Header.Del("Accept-Encoding")
	req.Header.Del("Host")
	req.Host = target.Host
	req.Header.Set("X-Forwarded-Host", c.Hostname())
	if ip := c.IP(); ip != "" {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			req.Header.Set("X-Forwarded-For", prior+", "+ip)
		} else {
			req.Header.Set("X-Forwarded-For", ip)
		}
	}
	req.Header.Set("X-Forwarded-Proto", c.Protocol())
	return req, nil
}

// writeBadGateway 优先使用 502 错误页，写出失败时退回固定提示。
func (f *Forwarder) writeBadGateway(c fiber.Ctx) error {
	if f.pages == nil {
		return errpage.Synthesize(fiber.StatusBadGateway, messageProxyFailed).Write(c)
	}
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := f.pages.Resolve(ctx, fiber.StatusBadGateway).Write(c); err != nil {
		return errpage.Synthesize(fiber.StatusBadGateway, messageProxyFailed).Write(c)
	}
	return nil
}

func (f *Forwarder) logResult(
	c fiber.Ctx,
	route *config.ApiRoute,
	path string,
	upstream string,
	requestID string,
	status int,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields("proxy", c.Method(), path, false)
	fields["action"] = "proxy"
	if route != nil {
		fields["route"] = route.Name
	}
	fields["upstream"] = upstream
	fields["upstream_status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		f.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	f.logger.WithFields(fields).Info("proxy_complete")
}

func bytesReader(b []byte) io.Reader {
	if len(b) == 0 {
		return http.NoBody
	}
	return bytes.NewReader(b)
}

func fiberHeadersAsHTTP(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

func copyResponseHeaders(c fiber.Ctx, src http.Header) {
	for key, values := range src {
		if server.IsHopByHopHeader(key) || key == fiber.HeaderContentLength {
			continue
		}
		for _, value := range values {
			c.Response().Header.Add(key, value)
		}
	}
}
