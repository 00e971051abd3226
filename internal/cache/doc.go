// 版权所有 2024 Project2CS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的检索结果缓存。

# 概述

本包封装 go-redis 客户端，为检索层提供统一的缓存读写接口，
相同问题在 TTL 内复用向量检索得到的上下文片段，减少 Cohere 与
向量库的往返。Manager 负责连接生命周期管理，包括初始化、健康检查与优雅关闭。

# 核心类型

  - Manager：缓存管理器，持有 Redis 客户端与连接池配置，
    提供 Get/Set/Delete 基础操作与 GetJSON/SetJSON 序列化方法。
  - Config：缓存配置，包含地址、密码、连接池大小、默认 TTL、
    键前缀与健康检查间隔等参数。

# 错误语义

未命中返回 ErrCacheMiss，可用 IsCacheMiss 判断。
*/
package cache
