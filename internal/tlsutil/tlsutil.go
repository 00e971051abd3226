package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"slices"
	"time"
)

// aeadSuites TLS 1.2 下允许的密码套件；TLS 1.3 的套件由运行时固定，不受此列表影响
var aeadSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// DefaultTLSConfig 返回 TLS 1.2+、仅 AEAD 套件的配置，每次调用都是新副本
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		CipherSuites: slices.Clone(aeadSuites),
	}
}

// newTransport 出站连接的公共参数。
// http2 为 false 时只协商 HTTP/1.1，websocket 握手需要这一点。
func newTransport(http2 bool) *http.Transport {
	tlsConfig := DefaultTLSConfig()
	if !http2 {
		tlsConfig.NextProtos = []string{"http/1.1"}
	}
	return &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: tlsConfig,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     http2,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// SecureTransport 返回加固后的 Transport，可协商 HTTP/2
func SecureTransport() *http.Transport {
	return newTransport(true)
}

// SecureHTTPClient 用于 JSON 请求（Groq、Cohere、Pinecone），timeout 限制整个请求
func SecureHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: SecureTransport()}
}

// StreamingHTTPClient 用于合成音频这类长响应体。
// headerTimeout 只限制等待响应头，响应体随请求 ctx 持续读取。
func StreamingHTTPClient(headerTimeout time.Duration) *http.Client {
	tr := SecureTransport()
	tr.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: tr}
}

// UpgradeHTTPClient 用于 websocket 握手（Deepgram live）。
// 只走 HTTP/1.1，不设置 Client.Timeout，握手时限由 Dial 的 ctx 控制。
func UpgradeHTTPClient() *http.Client {
	return &http.Client{Transport: newTransport(false)}
}
