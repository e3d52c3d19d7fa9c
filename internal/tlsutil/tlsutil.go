package tlsutil

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"
)

// MaxProbeRedirects bounds redirects followed by a probe client. Campus
// sites commonly bounce http to https and then to a trailing slash.
const MaxProbeRedirects = 5

// DefaultTLSConfig requires TLS 1.2 and AEAD cipher suites. TLS 1.3 suites
// are not configurable and are AEAD by definition.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// profile is the connection behaviour of one class of outbound traffic.
type profile struct {
	dial, keepAlive, idle, handshake, header time.Duration
	maxIdle, maxIdlePerHost                   int
	http2                                     bool
}

var (
	// apiProfile keeps a handful of warm connections to the model,
	// embedding, rerank and Qdrant servers.
	apiProfile = profile{
		dial:           30 * time.Second,
		keepAlive:      30 * time.Second,
		idle:           90 * time.Second,
		handshake:      10 * time.Second,
		maxIdle:        100,
		maxIdlePerHost: 16,
		http2:          true,
	}
	// probeProfile touches thousands of campus hosts once each during
	// URL resolution, so it fails fast and pools almost nothing.
	probeProfile = profile{
		dial:           5 * time.Second,
		keepAlive:      15 * time.Second,
		idle:           30 * time.Second,
		handshake:      5 * time.Second,
		header:         10 * time.Second,
		maxIdle:        32,
		maxIdlePerHost: 1,
	}
)

func (p profile) transport() *http.Transport {
	return &http.Transport{
		TLSClientConfig:       DefaultTLSConfig(),
		DialContext:           (&net.Dialer{Timeout: p.dial, KeepAlive: p.keepAlive}).DialContext,
		ForceAttemptHTTP2:     p.http2,
		MaxIdleConns:          p.maxIdle,
		MaxIdleConnsPerHost:   p.maxIdlePerHost,
		IdleConnTimeout:       p.idle,
		TLSHandshakeTimeout:   p.handshake,
		ResponseHeaderTimeout: p.header,
		ExpectContinueTimeout: time.Second,
	}
}

// SecureHTTPClient is the client for API backends.
func SecureHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: apiProfile.transport()}
}

// ProbeHTTPClient is the client for URL existence checks.
func ProbeHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: probeProfile.transport(),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxProbeRedirects {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		},
	}
}
