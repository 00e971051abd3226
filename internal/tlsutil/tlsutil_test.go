package tlsutil

import (
	"crypto/tls"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTLSConfig(t *testing.T) {
	cfg := DefaultTLSConfig()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	require.NotEmpty(t, cfg.CipherSuites)

	aead := map[uint16]bool{
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384: true,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384:   true,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256: true,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:   true,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305:  true,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305:    true,
	}
	for _, cs := range cfg.CipherSuites {
		assert.True(t, aead[cs], "unexpected non-AEAD cipher suite: %d", cs)
	}
}

func TestDefaultTLSConfig_ReturnsFreshCopy(t *testing.T) {
	a := DefaultTLSConfig()
	a.MinVersion = tls.VersionTLS13
	assert.Equal(t, uint16(tls.VersionTLS12), DefaultTLSConfig().MinVersion)
}

func TestDefaultTLSConfig_CipherListNotShared(t *testing.T) {
	a := DefaultTLSConfig()
	a.CipherSuites[0] = tls.TLS_RSA_WITH_AES_128_CBC_SHA
	assert.Equal(t, tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384, DefaultTLSConfig().CipherSuites[0])
}

func TestSecureTransport(t *testing.T) {
	tr := SecureTransport()
	require.NotNil(t, tr.TLSClientConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), tr.TLSClientConfig.MinVersion)
	assert.True(t, tr.ForceAttemptHTTP2)
	assert.NotNil(t, tr.Proxy)
	assert.Empty(t, tr.TLSClientConfig.NextProtos)
}

func TestUpgradeHTTPClient(t *testing.T) {
	client := UpgradeHTTPClient()
	assert.Zero(t, client.Timeout, "handshake deadline comes from the dial context")

	tr, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.False(t, tr.ForceAttemptHTTP2)
	assert.Equal(t, []string{"http/1.1"}, tr.TLSClientConfig.NextProtos)
	assert.Equal(t, uint16(tls.VersionTLS12), tr.TLSClientConfig.MinVersion)
}

func TestSecureHTTPClient(t *testing.T) {
	client := SecureHTTPClient(15 * time.Second)
	assert.Equal(t, 15*time.Second, client.Timeout)
	require.NotNil(t, client.Transport)
}

func TestStreamingHTTPClient(t *testing.T) {
	client := StreamingHTTPClient(5 * time.Second)
	assert.Zero(t, client.Timeout, "streaming client must not cap the body read")

	tr, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, tr.ResponseHeaderTimeout)
}
