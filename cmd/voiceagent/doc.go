// Copyright (c) Project2CS Authors.
// Licensed under the MIT License.

/*
Package main 提供语音评估服务的程序入口。

# 概述

cmd/voiceagent 启动 HTTP 服务：/ws 承载实时语音会话（Deepgram 转写 →
RAG + LLM 回复 → Deepgram 合成），/chat 提供同一回复链路的文本接口。
程序支持 YAML 配置文件与环境变量、结构化日志（zap + 滚动文件）、
Prometheus 指标与 OpenTelemetry 追踪。

# 核心类型

  - Server: 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware: HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter: 包装 http.ResponseWriter 以捕获状态码，保留 Hijack

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    Metrics、OTelTracing、CORS、RateLimiter（基于 IP）
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 停止语音会话 → 关闭 HTTP → 关闭 Metrics → 释放依赖
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
