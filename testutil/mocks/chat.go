// MockChatModel / MockRetriever 是回复生成依赖的测试模拟实现。
//
// 支持固定响应、错误注入与调用记录。
package mocks

import (
	"context"
	"sync"

	"github.com/MeriemTerki/Project2CS/types"
)

// --- MockChatModel ---

// MockChatModel 模拟 LLM 对话补全
type MockChatModel struct {
	mu sync.Mutex

	response string
	err      error
	fn       func(ctx context.Context, req types.ChatRequest) (string, error)

	calls []types.ChatRequest
}

// NewMockChatModel 创建返回固定响应的 MockChatModel
func NewMockChatModel(response string) *MockChatModel {
	return &MockChatModel{response: response}
}

// WithError 让每次调用返回错误
func (m *MockChatModel) WithError(err error) *MockChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFunc 用自定义函数替代固定响应
func (m *MockChatModel) WithFunc(fn func(ctx context.Context, req types.ChatRequest) (string, error)) *MockChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// Complete 实现对话补全
func (m *MockChatModel) Complete(ctx context.Context, req types.ChatRequest) (string, error) {
	m.mu.Lock()
	copied := req
	copied.Messages = append([]types.Message(nil), req.Messages...)
	m.calls = append(m.calls, copied)
	fn, resp, err := m.fn, m.response, m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

// Calls 返回所有调用记录的副本
func (m *MockChatModel) Calls() []types.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.ChatRequest(nil), m.calls...)
}

// CallCount 返回调用次数
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// --- MockRetriever ---

// RetrieveCall 记录单次检索
type RetrieveCall struct {
	Query string
	TopK  int
}

// MockRetriever 模拟上下文检索
type MockRetriever struct {
	mu sync.Mutex

	snippets []string
	err      error
	calls    []RetrieveCall
}

// NewMockRetriever 创建返回固定片段的 MockRetriever
func NewMockRetriever(snippets ...string) *MockRetriever {
	return &MockRetriever{snippets: snippets}
}

// WithError 让每次检索返回错误
func (m *MockRetriever) WithError(err error) *MockRetriever {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Retrieve 按 topK 截断固定片段
func (m *MockRetriever) Retrieve(ctx context.Context, query string, topK int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, RetrieveCall{Query: query, TopK: topK})
	if m.err != nil {
		return nil, m.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := m.snippets
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return append([]string(nil), out...), nil
}

// Calls 返回所有检索记录的副本
func (m *MockRetriever) Calls() []RetrieveCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RetrieveCall(nil), m.calls...)
}
