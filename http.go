package grvl

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultConnectTimeout = 15 * time.Second
	defaultReadTimeout    = 30 * time.Second
)

// newHTTPClient returns client with separate connect and read timeouts
func newHTTPClient(connectTimeout, readTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = readTimeout
	return &http.Client{
		Transport: transport,
		Timeout:   connectTimeout + readTimeout,
	}
}
