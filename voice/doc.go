// 版权所有 2024 Project2CS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 voice 实现实时语音评估会话：一条客户端连接上同时承载麦克风音频输入、
字幕与助手回复的 JSON 消息以及合成语音输出。

# 概述

数据流为：客户端音频 → 语音识别 → 转写事件 → 轮次判定 → 会话管理 →
回复生成（上下文检索 + LLM）→ 语音合成 → 客户端音频。期间 interim / final
转写会原样转发给客户端用于实时字幕。

每个会话由 Session 监督三个并发任务：音频输入、识别结果泵（事件队列的生产端）
以及会话管理（事件队列的唯一消费端）。任一任务失败都会取消其余任务；
客户端断开与识别到告别语都视为正常结束。

# 核心类型

  - FragmentBuffer：累积 final 片段，Flush 幂等地拼接并清空。
  - Transcriber：把识别结果转换为 Event 写入 FIFO 队列。
  - TerminationDetector：判断规范化后的话语是否以告别词结尾。
  - History：有界的对话历史窗口。
  - Responder：检索上下文并调用 LLM 生成回复，失败时返回固定兜底文本。
  - Speaker：把合成音频按固定大小分块转发给客户端。
  - Conversation：按顺序处理事件，驱动回复与播报。
  - Session：会话编排，负责启动、取消与收尾。
*/
package voice
