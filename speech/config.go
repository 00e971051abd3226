package speech

import "time"

// LiveConfig 配置 Deepgram 实时转写连接
type LiveConfig struct {
	APIKey            string        `json:"api_key" yaml:"api_key"`
	URL               string        `json:"url" yaml:"url"`
	Model             string        `json:"model,omitempty" yaml:"model,omitempty"` // nova-2
	Language          string        `json:"language,omitempty" yaml:"language,omitempty"`
	SmartFormat       bool          `json:"smart_format" yaml:"smart_format"`
	InterimResults    bool          `json:"interim_results" yaml:"interim_results"`
	UtteranceEndMS    int           `json:"utterance_end_ms,omitempty" yaml:"utterance_end_ms,omitempty"`
	Endpointing       int           `json:"endpointing,omitempty" yaml:"endpointing,omitempty"`
	VADEvents         bool          `json:"vad_events" yaml:"vad_events"`
	Encoding          string        `json:"encoding,omitempty" yaml:"encoding,omitempty"` // 为空时由服务端探测容器格式
	SampleRate        int           `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	DialTimeout       time.Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout,omitempty"`
	KeepAliveInterval time.Duration `json:"keepalive_interval,omitempty" yaml:"keepalive_interval,omitempty"`
	ResultBuffer      int           `json:"result_buffer,omitempty" yaml:"result_buffer,omitempty"`
	// FlushTimeout 关闭时发送 CloseStream 后等待服务端刷新并断开的最长时间
	FlushTimeout time.Duration `json:"flush_timeout,omitempty" yaml:"flush_timeout,omitempty"`
}

// TTSConfig 配置 Deepgram 语音合成
type TTSConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	URL     string        `json:"url" yaml:"url"`
	Voice   string        `json:"voice,omitempty" yaml:"voice,omitempty"` // aura-luna-en
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultLiveConfig 返回默认实时转写配置
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		URL:               "wss://api.deepgram.com/v1/listen",
		Model:             "nova-2",
		Language:          "en",
		SmartFormat:       true,
		InterimResults:    true,
		UtteranceEndMS:    1000,
		Endpointing:       500,
		VADEvents:         true,
		DialTimeout:       10 * time.Second,
		KeepAliveInterval: 5 * time.Second,
		ResultBuffer:      100,
		FlushTimeout:      2 * time.Second,
	}
}

// DefaultTTSConfig 返回默认语音合成配置
func DefaultTTSConfig() TTSConfig {
	return TTSConfig{
		URL:     "https://api.deepgram.com/v1/speak",
		Voice:   "aura-luna-en",
		Timeout: 60 * time.Second,
	}
}
