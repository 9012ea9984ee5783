package app

import (
	"net"
	"net/http"
	"time"
)

// newSearchHTTPClient returns the HTTP client shared by every provider. The
// transport is safe for concurrent use; request deadlines are set per attempt
// by the search client, so the client-level timeout is only a backstop.
func newSearchHTTPClient(perRequest time.Duration) *http.Client {
	if perRequest <= 0 {
		perRequest = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: perRequest,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   perRequest + 5*time.Second,
	}
}
