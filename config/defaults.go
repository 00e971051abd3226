// =============================================================================
// 📦 VoiceAgent 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultSystemPrompt 是心理健康评估助手的默认系统提示词，{context} 由检索结果替换
const DefaultSystemPrompt = `You are a compassionate, professional mental health assistant. Your role is to:
1. Listen actively and respond with empathy, warmth, and non-judgmental support.
2. Use the provided context (therapy Q&A, techniques, or resources) to offer accurate, evidence-based guidance.
3. Prioritize safety: never diagnose or replace human therapists. For crises (self-harm, abuse), urge the person to contact a crisis hotline or their therapist immediately.
4. Keep responses concise (1-2 sentences) for voice interactions, like in a conversation.
5. Encourage professional help when a topic needs it.
If you don't know, just say you don't know.

Context to use (if available):
{context}
`

// DefaultFallbackReply 是回复生成失败时返回给用户的固定文本
const DefaultFallbackReply = "Sorry, I encountered an error. Could you please repeat that?"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Deepgram:     DefaultDeepgramConfig(),
		LLM:          DefaultLLMConfig(),
		Retrieval:    DefaultRetrievalConfig(),
		Conversation: DefaultConversationConfig(),
		Redis:        DefaultRedisConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:           8000,
		MetricsPort:        9091,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		CORSAllowedOrigins: []string{"*"},
		RateLimitRPS:       50,
		RateLimitBurst:     100,
	}
}

// DefaultDeepgramConfig 返回默认 Deepgram 配置
func DefaultDeepgramConfig() DeepgramConfig {
	return DeepgramConfig{
		ListenURL:         "wss://api.deepgram.com/v1/listen",
		SpeakURL:          "https://api.deepgram.com/v1/speak",
		Model:             "nova-2",
		Language:          "en",
		SmartFormat:       true,
		InterimResults:    true,
		UtteranceEndMS:    1000,
		Endpointing:       500,
		VADEvents:         true,
		Voice:             "aura-luna-en",
		DialTimeout:       10 * time.Second,
		TTSTimeout:        60 * time.Second,
		KeepAliveInterval: 5 * time.Second,
		FlushTimeout:      2 * time.Second,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置（Groq OpenAI 兼容接口）
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "groq",
		BaseURL:     "https://api.groq.com/openai/v1",
		Model:       "llama3-8b-8192",
		Temperature: 0.7,
		MaxTokens:   150,
		Timeout:     30 * time.Second,
		MaxRetries:  1,
	}
}

// DefaultRetrievalConfig 返回默认检索配置
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		Enabled:   true,
		Backend:   "pinecone",
		TopK:      3,
		Timeout:   15 * time.Second,
		CacheTTL:  10 * time.Minute,
		TextField: "text",
		Cohere: CohereConfig{
			BaseURL: "https://api.cohere.com",
			Model:   "embed-english-v2.0",
		},
		Pinecone: PineconeConfig{
			Index:         "voice-agent",
			ControllerURL: "https://api.pinecone.io",
		},
		Qdrant: QdrantConfig{
			Collection: "voice_agent",
		},
	}
}

// DefaultConversationConfig 返回默认对话配置
func DefaultConversationConfig() ConversationConfig {
	return ConversationConfig{
		MemorySize:         10,
		TerminationPhrases: []string{"goodbye", "bye"},
		SystemPrompt:       DefaultSystemPrompt,
		FallbackReply:      DefaultFallbackReply,
		EventQueueSize:     64,
		AudioChunkSize:     1024,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
		File: LogFileConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "voiceagent",
		SampleRate:   0.1,
	}
}
