// Package tlsutil 提供集中式 TLS 配置，
// 为 Deepgram、Groq、Cohere、Pinecone 等出站 HTTP / websocket 客户端提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
