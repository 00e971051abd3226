package rag

import (
	"context"
	"strings"
)

// Match 向量检索命中的一条记录
type Match struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
	Text  string  `json:"text"`
}

// VectorStore 向量库的只读查询接口
type VectorStore interface {
	// Search 返回与向量最相近的 topK 条记录，按得分降序
	Search(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// Name 返回后端名称
	Name() string

	// Close 释放底层连接
	Close() error
}

// Embedder 把查询文本编码为向量
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Texts 提取非空文本片段，保持原顺序
func Texts(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		out = append(out, m.Text)
	}
	return out
}
