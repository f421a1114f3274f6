package writer

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
)

// HTTPDoer abstracts HTTP client operations for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Ensure http.Client implements HTTPDoer.
var _ HTTPDoer = (*http.Client)(nil)

// NewHTTPClient returns a pooled client whose requests are bounded by timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newRoundTripper(timeout),
	}
}

func newRoundTripper(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
}

// ElasticTransport sends requests through the Elastic client transport.
// Retries are disabled and response codes are left to the caller.
type ElasticTransport struct {
	client *elastictransport.Client
	rt     *http.Transport
}

// NewElasticTransport builds an ElasticTransport whose single node is the
// scheme and host of endpoint.
func NewElasticTransport(endpoint string, timeout time.Duration) (*ElasticTransport, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q must be an absolute URL", endpoint)
	}

	rt := newRoundTripper(timeout)
	client, err := elastictransport.New(elastictransport.Config{
		URLs:         []*url.URL{{Scheme: u.Scheme, Host: u.Host}},
		DisableRetry: true,
		Transport:    rt,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elastic transport: %w", err)
	}

	return &ElasticTransport{client: client, rt: rt}, nil
}

// Do performs req against the configured node.
func (t *ElasticTransport) Do(req *http.Request) (*http.Response, error) {
	return t.client.Perform(req)
}

// CloseIdleConnections releases the pooled connections of the node transport.
func (t *ElasticTransport) CloseIdleConnections() {
	t.rt.CloseIdleConnections()
}
