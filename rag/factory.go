// Config → RAG 桥接层。
//
// 把 config.RetrievalConfig 转换为检索器实例。
package rag

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/config"
	"github.com/MeriemTerki/Project2CS/internal/metrics"
)

// VectorStoreType 标识向量库后端
type VectorStoreType string

const (
	VectorStorePinecone VectorStoreType = "pinecone"
	VectorStoreQdrant   VectorStoreType = "qdrant"
)

// NewVectorStoreFromConfig 根据 backend 创建 VectorStore，空值默认 Pinecone
func NewVectorStoreFromConfig(cfg config.RetrievalConfig, logger *zap.Logger) (VectorStore, error) {
	switch VectorStoreType(cfg.Backend) {
	case VectorStorePinecone, "":
		return NewPineconeStore(mapPineconeConfig(cfg), logger), nil
	case VectorStoreQdrant:
		return NewQdrantStore(mapQdrantConfig(cfg), logger)
	default:
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Backend)
	}
}

// NewRetrieverFromConfig 创建 Cohere + 向量库检索器
func NewRetrieverFromConfig(cfg config.RetrievalConfig, collector *metrics.Collector, logger *zap.Logger) (*Retriever, error) {
	store, err := NewVectorStoreFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	embedder := NewCohereEmbedder(CohereConfig{
		APIKey:  cfg.Cohere.APIKey,
		BaseURL: cfg.Cohere.BaseURL,
		Model:   cfg.Cohere.Model,
		Timeout: cfg.Timeout,
	})
	return NewRetriever(embedder, store, collector, logger), nil
}

func mapPineconeConfig(cfg config.RetrievalConfig) PineconeConfig {
	return PineconeConfig{
		APIKey:            cfg.Pinecone.APIKey,
		Index:             cfg.Pinecone.Index,
		BaseURL:           cfg.Pinecone.BaseURL,
		Namespace:         cfg.Pinecone.Namespace,
		Timeout:           cfg.Timeout,
		ControllerBaseURL: cfg.Pinecone.ControllerURL,
		TextField:         cfg.TextField,
	}
}

func mapQdrantConfig(cfg config.RetrievalConfig) QdrantConfig {
	return QdrantConfig{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		TextField:  cfg.TextField,
	}
}
