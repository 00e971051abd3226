// =============================================================================
// 📦 VoiceAgent 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("VOICEAGENT").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是语音评估服务的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Deepgram 语音识别与合成配置
	Deepgram DeepgramConfig `yaml:"deepgram" env:"DEEPGRAM"`

	// LLM 大语言模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Retrieval 上下文检索配置
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Conversation 对话管理配置
	Conversation ConversationConfig `yaml:"conversation" env:"CONVERSATION"`

	// Redis 缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 允许的 CORS 来源，"*" 表示全部
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// 每 IP 每秒请求数
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 每 IP 突发请求数
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// DeepgramConfig Deepgram 语音服务配置
type DeepgramConfig struct {
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 实时转写 websocket 地址
	ListenURL string `yaml:"listen_url" env:"LISTEN_URL"`
	// 合成 REST 地址
	SpeakURL string `yaml:"speak_url" env:"SPEAK_URL"`
	// 识别模型
	Model string `yaml:"model" env:"MODEL"`
	// 识别语言
	Language string `yaml:"language" env:"LANGUAGE"`
	// 智能格式化
	SmartFormat bool `yaml:"smart_format" env:"SMART_FORMAT"`
	// 是否返回中间结果
	InterimResults bool `yaml:"interim_results" env:"INTERIM_RESULTS"`
	// 静音判定的话语结束时长（毫秒）
	UtteranceEndMS int `yaml:"utterance_end_ms" env:"UTTERANCE_END_MS"`
	// 端点检测阈值（毫秒）
	Endpointing int `yaml:"endpointing" env:"ENDPOINTING"`
	// 是否发送 VAD 事件
	VADEvents bool `yaml:"vad_events" env:"VAD_EVENTS"`
	// 入站音频编码，空表示由服务端探测容器格式
	Encoding string `yaml:"encoding" env:"ENCODING"`
	// 入站音频采样率，0 表示不指定
	SampleRate int `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// 合成音色模型
	Voice string `yaml:"voice" env:"VOICE"`
	// 握手超时
	DialTimeout time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
	// 合成请求超时
	TTSTimeout time.Duration `yaml:"tts_timeout" env:"TTS_TIMEOUT"`
	// 保活间隔
	KeepAliveInterval time.Duration `yaml:"keepalive_interval" env:"KEEPALIVE_INTERVAL"`
	// 发送 CloseStream 后等待服务端刷新最后结果的时长
	FlushTimeout time.Duration `yaml:"flush_timeout" env:"FLUSH_TIMEOUT"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	// Provider 名称
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// OpenAI 兼容的基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 温度参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 最大 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 可重试错误的重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
}

// RetrievalConfig 检索增强配置
type RetrievalConfig struct {
	// 是否启用检索
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 后端: pinecone, qdrant
	Backend string `yaml:"backend" env:"BACKEND"`
	// 检索片段数量
	TopK int `yaml:"top_k" env:"TOP_K"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 查询缓存 TTL，0 表示不缓存
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	// 元数据中存放文本的字段
	TextField string `yaml:"text_field" env:"TEXT_FIELD"`
	// Cohere 向量化配置
	Cohere CohereConfig `yaml:"cohere" env:"COHERE"`
	// Pinecone 配置
	Pinecone PineconeConfig `yaml:"pinecone" env:"PINECONE"`
	// Qdrant 配置
	Qdrant QdrantConfig `yaml:"qdrant" env:"QDRANT"`
}

// CohereConfig Cohere 向量化配置
type CohereConfig struct {
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 向量模型
	Model string `yaml:"model" env:"MODEL"`
}

// PineconeConfig Pinecone 向量存储配置
type PineconeConfig struct {
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 索引名
	Index string `yaml:"index" env:"INDEX"`
	// 数据面地址（可选，为空时通过控制面解析）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 控制面地址
	ControllerURL string `yaml:"controller_url" env:"CONTROLLER_URL"`
	// 命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// QdrantConfig Qdrant 向量存储配置
type QdrantConfig struct {
	// 服务地址，例如 https://example.qdrant.io:6334
	URL string `yaml:"url" env:"URL"`
	// API Key（可选）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 集合名
	Collection string `yaml:"collection" env:"COLLECTION"`
}

// ConversationConfig 对话管理配置
type ConversationConfig struct {
	// 记忆窗口大小（轮次）
	MemorySize int `yaml:"memory_size" env:"MEMORY_SIZE"`
	// 结束对话的短语
	TerminationPhrases []string `yaml:"termination_phrases" env:"TERMINATION_PHRASES"`
	// 系统提示词模板，{context} 会被检索结果替换
	SystemPrompt string `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
	// 出错时的兜底回复
	FallbackReply string `yaml:"fallback_reply" env:"FALLBACK_REPLY"`
	// 事件队列容量
	EventQueueSize int `yaml:"event_queue_size" env:"EVENT_QUEUE_SIZE"`
	// 音频分片大小（字节）
	AudioChunkSize int `yaml:"audio_chunk_size" env:"AUDIO_CHUNK_SIZE"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
	// 滚动日志文件（可选）
	File LogFileConfig `yaml:"file" env:"FILE"`
}

// LogFileConfig 滚动日志文件配置
type LogFileConfig struct {
	// 文件路径，为空时不启用
	Path string `yaml:"path" env:"PATH"`
	// 单文件最大 MB
	MaxSizeMB int `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	// 保留的旧文件数
	MaxBackups int `yaml:"max_backups" env:"MAX_BACKUPS"`
	// 保留天数
	MaxAgeDays int `yaml:"max_age_days" env:"MAX_AGE_DAYS"`
	// 是否压缩旧文件
	Compress bool `yaml:"compress" env:"COMPRESS"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "VOICEAGENT",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 嵌套结构体递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			field.Set(reflect.ValueOf(out))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}

	if c.Deepgram.APIKey == "" {
		errs = append(errs, "deepgram.api_key is required")
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, "llm.api_key is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, "llm.max_tokens must be positive")
	}

	if c.Conversation.MemorySize <= 0 {
		errs = append(errs, "conversation.memory_size must be positive")
	}
	if len(c.Conversation.TerminationPhrases) == 0 {
		errs = append(errs, "conversation.termination_phrases must not be empty")
	}
	if !strings.Contains(c.Conversation.SystemPrompt, "{context}") {
		errs = append(errs, "conversation.system_prompt must contain {context}")
	}
	if c.Conversation.AudioChunkSize <= 0 {
		errs = append(errs, "conversation.audio_chunk_size must be positive")
	}

	if c.Retrieval.Enabled {
		if c.Retrieval.TopK <= 0 {
			errs = append(errs, "retrieval.top_k must be positive")
		}
		if c.Retrieval.Cohere.APIKey == "" {
			errs = append(errs, "retrieval.cohere.api_key is required when retrieval is enabled")
		}
		switch c.Retrieval.Backend {
		case "pinecone":
			if c.Retrieval.Pinecone.APIKey == "" || c.Retrieval.Pinecone.Index == "" {
				errs = append(errs, "retrieval.pinecone.api_key and index are required")
			}
		case "qdrant":
			if c.Retrieval.Qdrant.URL == "" || c.Retrieval.Qdrant.Collection == "" {
				errs = append(errs, "retrieval.qdrant.url and collection are required")
			}
		default:
			errs = append(errs, fmt.Sprintf("unknown retrieval backend %q", c.Retrieval.Backend))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
