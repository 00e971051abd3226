// Copyright (c) Project2CS Authors.
// Licensed under the MIT License.

/*
Package types 提供语音评估服务的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 voice、rag、llm、speech、
api 等上层模块提供统一的类型契约。

# 核心类型

  - Role / Message: 对话轮次（system / user / assistant + 文本内容）
  - Error / ErrorCode: 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
*/
package types
