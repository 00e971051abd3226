// Copyright (c) Project2CS Authors.
// Licensed under the MIT License.

// Package config 提供语音评估服务的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 VOICEAGENT）的顺序叠加，
// 覆盖 HTTP 服务、Deepgram 语音、LLM、检索、对话、Redis、日志与遥测。
package config
