// Copyright (c) Project2CS Authors.
// Licensed under the MIT License.

/*
Package testutil 提供语音服务测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertMessagesEqual
  - 异步断言: AssertEventuallyTrue / WaitFor / WaitForChannel
  - 网络辅助: WSURL 把 httptest 地址转换为 ws:// 地址

# 子包

  - testutil/mocks: MockChatModel（LLM）、MockRetriever（检索）
*/
package testutil
