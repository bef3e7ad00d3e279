package customHttpClient

import (
	"net/http"

	"github.com/akolanti/GoRAG/internal/config"
)

// one transport for every vendor SDK so embedding and generation calls reuse connections
var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: customTransport,
		Timeout:   config.HttpClientTimeout,
	}
}

func CloseIdleConnections() {
	customTransport.CloseIdleConnections()
}
