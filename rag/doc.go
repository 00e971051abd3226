// 版权所有 2024 Project2CS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 rag 提供回复生成所需的上下文检索能力。

# 概述

检索流程为：用 Cohere 将用户话语编码为查询向量，在向量库中取 top-k
最相近的记录，返回记录元数据中的文本片段。向量库支持 Pinecone（REST）
与 Qdrant（gRPC），由配置中的 backend 选择。对同一话语的重复检索可以
通过 Redis 缓存直接命中。

检索索引在各会话之间共享，只读。

# 核心接口

  - Embedder：EmbedQuery 将查询文本编码为向量。
  - VectorStore：Search 返回按相似度排序的 Match。
  - Retriever：组合 Embedder 与 VectorStore，实现 Retrieve(ctx, query, topK)。
  - CachedRetriever：在任意检索器之上加一层 Redis 缓存。
*/
package rag
