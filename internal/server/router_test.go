package server

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/routerway/routerway/internal/config"
	"github.com/routerway/routerway/internal/dispatch"
)

func TestRouterPreflightShortCircuits(t *testing.T) {
	app, rec := newTestApp(t, false)

	resp, err := app.Test(httptest.NewRequest("OPTIONS", "/api/anything", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || len(body) != 0 {
		t.Fatalf("expected empty 200, got %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("Access-Control-Allow-Methods") != "GET, POST, PUT, DELETE, OPTIONS" {
		t.Fatalf("missing CORS methods header")
	}
	if rec.proxyCalls() != 0 || rec.staticCalls() != 0 {
		t.Fatalf("preflight must not reach handlers")
	}
}

func TestRouterDispatchesProxyAndStatic(t *testing.T) {
	app, rec := newTestApp(t, false)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/users?x=1", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("expected proxy handler status, got %d", resp.StatusCode)
	}
	if rec.lastRoute != "api" || rec.lastPath != "/api/users" {
		t.Fatalf("unexpected proxy call: route=%s path=%s", rec.lastRoute, rec.lastPath)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/%E6%96%87%E6%A1%A3.txt", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected static handler status, got %d", resp.StatusCode)
	}
	if rec.lastKey != "文档.txt" {
		t.Fatalf("static key should be decoded, got %q", rec.lastKey)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestRouterRejectsTraversalAndBadEncoding(t *testing.T) {
	app, rec := newTestApp(t, false)

	cases := []struct {
		path   string
		status int
		text   string
	}{
		{"/../secret", fiber.StatusForbidden, "Access denied"},
		{"/a//b", fiber.StatusForbidden, "Access denied"},
		{"/%2e%2e/secret", fiber.StatusForbidden, "Access denied"},
		{"/%FF", fiber.StatusBadRequest, "Invalid path encoding"},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", tc.path, nil))
		if err != nil {
			t.Fatalf("app.Test(%s) failed: %v", tc.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.status, resp.StatusCode)
		}
		if !strings.Contains(string(body), tc.text) {
			t.Fatalf("%s: unexpected body %s", tc.path, body)
		}
		if resp.Header.Get("Server") != "RouterWay" {
			t.Fatalf("%s: missing Server header", tc.path)
		}
	}
	if rec.staticCalls() != 0 || rec.proxyCalls() != 0 {
		t.Fatalf("rejected requests must not reach handlers")
	}
}

func TestRouterDiagnosticsBypass(t *testing.T) {
	app, rec := newTestApp(t, true)
	app.Get("/-/cache", func(c fiber.Ctx) error {
		return c.SendString("stats")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/-/cache", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "stats" || rec.staticCalls() != 0 {
		t.Fatalf("diagnostics path should skip dispatch, got %q", body)
	}

	for _, target := range []string{"/-/../secret", "/-/%2e%2e/secret", "/-//etc"} {
		resp, err := app.Test(httptest.NewRequest("GET", target, nil))
		if err != nil {
			t.Fatalf("app.Test failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusForbidden {
			t.Fatalf("%s should be rejected with 403, got %d", target, resp.StatusCode)
		}
	}

	if _, err := app.Test(httptest.NewRequest("GET", "/-/assets/app.js", nil)); err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if rec.staticCalls() != 1 || rec.lastKey != "-/assets/app.js" {
		t.Fatalf("unregistered /-/ paths should stay static, key=%q", rec.lastKey)
	}

	disabled, rec2 := newTestApp(t, false)
	if _, err := disabled.Test(httptest.NewRequest("GET", "/-/cache", nil)); err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if rec2.staticCalls() != 1 {
		t.Fatalf("without diagnostics /-/ is a normal static path")
	}
}

func TestRouterForwardsExtensionMethods(t *testing.T) {
	app, rec := newTestApp(t, false)

	for _, method := range []string{"PROPFIND", "PURGE", "MKCOL"} {
		resp, err := app.Test(httptest.NewRequest(method, "/api/items", nil))
		if err != nil {
			t.Fatalf("app.Test failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusAccepted {
			t.Fatalf("%s should reach the proxy handler, got %d", method, resp.StatusCode)
		}
	}
	if rec.proxyCalls() != 3 || rec.lastPath != "/api/items" {
		t.Fatalf("unexpected proxy calls=%d path=%q", rec.proxyCalls(), rec.lastPath)
	}

	if _, err := app.Test(httptest.NewRequest("PURGE", "/style.css", nil)); err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if rec.staticCalls() != 1 {
		t.Fatalf("extension methods on static paths should be dispatched like GET")
	}
}

func TestRouterUnknownMethodGetsErrorPage(t *testing.T) {
	app, rec := newTestApp(t, false)

	resp, err := app.Test(httptest.NewRequest("BREW", "/api/pot", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("501 must carry CORS origin, got %q", got)
	}
	if got := resp.Header.Get("Server"); got != "RouterWay" {
		t.Fatalf("unexpected server header %q", got)
	}
	if !strings.Contains(string(body), "RouterWay Server") || !strings.Contains(string(body), "Method Not Implemented") {
		t.Fatalf("expected synthesized error page, got %s", body)
	}
	if rec.proxyCalls() != 0 || rec.staticCalls() != 0 {
		t.Fatalf("unknown methods must not reach handlers")
	}
}

func TestRouterRecoversFromPanics(t *testing.T) {
	logBuf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(logBuf)

	app, err := NewApp(AppOptions{
		Logger: logger,
		Routes: dispatch.NewRouteTable(nil),
		Proxy: ProxyHandlerFunc(func(fiber.Ctx, *config.ApiRoute, string) error {
			return nil
		}),
		Static: StaticHandlerFunc(func(fiber.Ctx, string) error {
			panic("boom")
		}),
	})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/explode", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "500") {
		t.Fatalf("expected synthesized 500 page, got %s", body)
	}
	if !strings.Contains(logBuf.String(), "request_error") {
		t.Fatalf("expected error log, got %s", logBuf.String())
	}
}

func TestRouterMapsFiberErrors(t *testing.T) {
	app, err := NewApp(AppOptions{
		Logger: quietLogger(),
		Proxy: ProxyHandlerFunc(func(fiber.Ctx, *config.ApiRoute, string) error {
			return nil
		}),
		Static: StaticHandlerFunc(func(fiber.Ctx, string) error {
			return fiber.NewError(fiber.StatusServiceUnavailable, "busy")
		}),
	})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestNewAppRequiresDependencies(t *testing.T) {
	if _, err := NewApp(AppOptions{}); err == nil {
		t.Fatalf("missing logger should fail")
	}
	if _, err := NewApp(AppOptions{Logger: quietLogger()}); err == nil {
		t.Fatalf("missing handlers should fail")
	}
	_, err := NewApp(AppOptions{
		Logger: quietLogger(),
		Proxy:  ProxyHandlerFunc(func(fiber.Ctx, *config.ApiRoute, string) error { return nil }),
	})
	if err == nil || !strings.Contains(err.Error(), "static") {
		t.Fatalf("missing static handler should fail, got %v", err)
	}
}

type handlerRecorder struct {
	mu        sync.Mutex
	proxies   int
	statics   int
	lastRoute string
	lastPath  string
	lastKey   string
}

func (r *handlerRecorder) proxyCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proxies
}

func (r *handlerRecorder) staticCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statics
}

func newTestApp(t *testing.T, diagnostics bool) (*fiber.App, *handlerRecorder) {
	t.Helper()
	rec := &handlerRecorder{}

	app, err := NewApp(AppOptions{
		Logger: quietLogger(),
		Routes: dispatch.NewRouteTable([]config.ApiRoute{
			{Name: "api", From: "/api", To: "http://backend/v1"},
		}),
		Proxy: ProxyHandlerFunc(func(c fiber.Ctx, route *config.ApiRoute, path string) error {
			rec.mu.Lock()
			rec.proxies++
			rec.lastRoute = route.Name
			rec.lastPath = path
			rec.mu.Unlock()
			return c.SendStatus(fiber.StatusAccepted)
		}),
		Static: StaticHandlerFunc(func(c fiber.Ctx, key string) error {
			rec.mu.Lock()
			rec.statics++
			rec.lastKey = key
			rec.mu.Unlock()
			return c.SendStatus(fiber.StatusNoContent)
		}),
		Diagnostics: diagnostics,
	})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app, rec
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestOriginalPathKeepsEncodingAndDropsQuery(t *testing.T) {
	cases := map[string]string{
		"/a/%2e%2e/b?x=1": "/a/%2e%2e/b",
		"/x%2Fy":          "/x%2Fy",
		"/plain":          "/plain",
	}
	for uri, want := range cases {
		req := fasthttp.AcquireRequest()
		req.SetRequestURI(uri)
		if got := originalPath(req); got != want {
			t.Fatalf("originalPath(%q) = %q, want %q", uri, got, want)
		}
		fasthttp.ReleaseRequest(req)
	}
}
