// Package api 定义语音评估服务 HTTP 接口的请求与响应结构。
//
// # API Overview
//
// 服务提供以下端点：
//   - GET  /ws       语音会话（WebSocket，二进制音频上行，JSON 字幕与二进制音频下行）
//   - POST /chat     文本对话，复用语音会话的回复生成器
//   - GET  /health   存活检查
//   - GET  /healthz  Kubernetes 存活探针
//   - GET  /ready    就绪检查（Redis、检索后端）
//   - GET  /version  版本信息
//
// Prometheus 指标在独立端口的 /metrics 上暴露。
//
// # Base URL
//
// 默认地址：
//
//	http://localhost:8000
//
// # WebSocket 消息
//
// 服务端发送的 JSON 消息形如：
//
//	{"type": "transcript_interim" | "transcript_final" | "assistant" | "finish", "content": "..."}
//
// finish 不携带 content；收到 finish 后服务端关闭连接。
package api
