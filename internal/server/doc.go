// 版权所有 2024 Project2CS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动、
优雅关闭与后台异常上报。

# 概述

本包通过 Manager 封装 net/http.Server，统一管理监听、服务、
关闭与错误传播流程。语音会话使用被劫持（hijack）的 websocket 连接，
http.Server.Shutdown 不会等待这类连接，因此 Manager 提供 OnShutdown
钩子，让会话处理器在停机时主动结束仍在进行的会话。

# 核心类型

  - Manager：HTTP 服务器管理器，提供 Start/Shutdown/OnShutdown/Errors。
  - Config：监听地址、请求头与读写超时、空闲超时、最大请求头大小与优雅关闭超时，零值取默认。
*/
package server
