// Package server 承载 Fiber HTTP 服务：请求 ID 中间件、panic 恢复、
// 基于 dispatch 决策的分派，以及代理转发共享的上游 http.Client。
// 代理与静态文件处理通过接口注入，测试中可替换为假实现。
package server
