// 版权所有 2024 Project2CS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 speech 提供 Deepgram 语音识别 (STT) 与语音合成 (TTS) 接入层。

# 概述

STT 使用 Deepgram live 接口：通过 websocket 持续发送二进制音频帧，
服务端异步推送带有 is_final / speech_final 标记的转写结果以及基于静音的
UtteranceEnd 信号。LiveStream 把这些推送整理成单一的 Result 通道，
调用方只需消费通道即可，不需要注册回调。

TTS 使用 Deepgram speak 接口：POST {text} 后以流的形式读取音频，
调用方可以边读边转发，无需等待完整音频。

# 核心类型

  - LiveClient / LiveStream：实时转写连接与会话，SendAudio 发送音频，
    Results 返回结果通道，Close 发送 CloseStream 并释放连接。
  - Result：单条识别结果（转写或 UtteranceEnd）。
  - TTSClient：流式语音合成，Synthesize 返回音频 io.ReadCloser。
  - LiveConfig / TTSConfig：两个客户端各自的配置与默认值。
*/
package speech
