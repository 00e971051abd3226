// Copyright (c) Project2CS Authors.
// Licensed under the MIT License.

/*
Package handlers 提供语音评估服务 HTTP API 的请求处理器实现。

# 概述

handlers 包实现了所有 HTTP 端点的请求处理逻辑，
包括 WebSocket 语音会话、文本对话、健康检查以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - VoiceHandler: 升级 /ws 连接并运行 voice.Session，停机时统一停止会话
  - ChatHandler: POST /chat，与语音会话共用回复生成器
  - HealthHandler: 服务健康检查（/health, /healthz, /ready, /version）
  - Response: 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo: 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter: 包装 http.ResponseWriter 以捕获状态码，支持 Hijack
  - HealthCheck: 可插拔健康检查接口（Redis、向量检索等）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 就绪检查并发执行，任一失败返回 503
*/
package handlers
