package net

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	maxIdleConns   = 10
	defaultTimeout = 60 * time.Second
)

func newTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          maxIdleConns,
		IdleConnTimeout:       timeout,
		DisableKeepAlives:     false,
		ResponseHeaderTimeout: timeout,
	}
}

// GetHTTPClient returns a client whose requests give up after timeout.
// A non-positive timeout uses the 60s default.
func GetHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Transport: newTransport(timeout),
		Timeout:   timeout,
	}
}

// GetOAuthClient returns a client that sends token as a Bearer credential.
func GetOAuthClient(ctx context.Context, token string, timeout time.Duration) *http.Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{
			TokenType:   "Bearer",
			AccessToken: token,
		},
	)

	base := GetHTTPClient(timeout)
	tc := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), ts)
	tc.Timeout = base.Timeout

	return tc
}
