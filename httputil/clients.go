package httputil

import (
	"net/http"
	"net/url"
	"time"
)

// NewAPIClient returns the client used for marketplace REST calls. When
// proxyURL is set, requests are routed through it.
func NewAPIClient(timeout time.Duration, proxyURL string) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
