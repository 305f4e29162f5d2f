package customHttpClient

import (
	"net/http"
	"sync"

	"github.com/akolanti/JournalRAG/internal/config"
)

var (
	once   sync.Once
	client *http.Client
)

var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
	ForceAttemptHTTP2:   true,
}

// Client is the pooled client shared by the embedding and llm SDKs so they reuse connections.
// Per-call deadlines come from the request context, not from Client.Timeout.
func Client() *http.Client {
	once.Do(func() {
		client = &http.Client{Transport: customTransport}
	})
	return client
}
