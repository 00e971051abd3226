// 版权所有 2024 Project2CS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供对话补全模型接入层。

# 概述

语音助手只需要一次非流式的 chat completion：传入 system + 历史消息，
取第一个候选的文本。ChatClient 通过 go-openai 访问任何 OpenAI 兼容接口
（默认 Groq），并把服务端错误统一转换为 types.Error，便于上层判断是否可重试。

# 核心类型

  - ChatClient：实现 Complete(ctx, types.ChatRequest)。
  - Config：API Key、Base URL、默认模型、采样参数、超时与重试次数。

429、5xx 与超时按 internal/retry 的退避策略重试，其余错误直接返回。
*/
package llm
