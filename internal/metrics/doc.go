// 版权所有 2024 Project2CS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的语音链路指标采集能力，覆盖
HTTP、语音会话、转写事件、回复生成、检索与语音合成。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，指标经
promauto.With 注册到调用方传入的 Registerer（服务进程使用自己的
prometheus.Registry 并由 /metrics 暴露），所有指标按 namespace 隔离。Collector 的方法对 nil
接收者安全，未启用指标时调用方可以直接传 nil。

# 主要能力

  - HTTP 指标：请求总数、请求耗时，状态码归类为 2xx/3xx/4xx/5xx。
  - 会话指标：活跃会话 Gauge、会话结果计数（finished/disconnected/failed）、会话时长。
  - 转写指标：按 kind（transcript_interim/transcript_final/speech_final）计数。
  - 回复指标：回复耗时、兜底回复次数（按失败阶段）。
  - LLM / 检索指标：请求总数与耗时，检索缓存命中与未命中。
  - 合成指标：下发音频字节数与分片数。
*/
package metrics
