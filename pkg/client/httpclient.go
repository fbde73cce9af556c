package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const DefaultUserAgent = "LocalBus timetable client (https://github.com/rycus86/localbus)"

type HttpClient struct {
	client *http.Client

	mu          sync.Mutex
	cachedItems map[string]cachedItem
}

type cachedItem struct {
	lastModified string
	etag         string
	value        []byte
}

var (
	downloadCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "localbus_http_download_count",
		Help: "Number of times a timetable endpoint was downloaded (uncached)",
	}, []string{"url"})
	cachedCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "localbus_http_cached_count",
		Help: "Number of times a timetable endpoint answered not modified",
	}, []string{"url"})
	errorCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "localbus_http_error_count",
		Help: "Number of times a timetable endpoint returned an error",
	}, []string{"url"})
)

func init() {
	prometheus.MustRegister(downloadCount, cachedCount, errorCount)
}

// FetchJSON downloads url. A previous good response is revalidated with
// If-Modified-Since / If-None-Match and reused on 304.
func (c *HttpClient) FetchJSON(ctx context.Context, url string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retError(url, err)
	}
	request.Header.Set("Accept", "application/json")

	cached, hasCached := c.getCachedItem(url)
	if hasCached {
		if cached.lastModified != "" {
			request.Header.Set("If-Modified-Since", cached.lastModified)
		}
		if cached.etag != "" {
			request.Header.Set("If-None-Match", cached.etag)
		}
	}

	response, err := c.client.Do(request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return retError(url, ctxErr)
		}
		return retError(url, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err))
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotModified && hasCached {
		cachedCount.With(prometheus.Labels{"url": url}).Inc()
		log.Debug().Str("url", url).Msg("Timetable not modified, reusing previous download")
		return cached.value, nil
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return retError(url, &HTTPError{URL: url, StatusCode: response.StatusCode})
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return retError(url, ctxErr)
		}
		return retError(url, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err))
	}

	lastModified := response.Header.Get("Last-Modified")
	etag := response.Header.Get("ETag")
	if lastModified != "" || etag != "" {
		c.setCachedItem(url, cachedItem{
			lastModified: lastModified,
			etag:         etag,
			value:        body,
		})
	}

	downloadCount.With(prometheus.Labels{"url": url}).Inc()

	return body, nil
}

func retError(url string, err error) ([]byte, error) {
	errorCount.With(prometheus.Labels{"url": url}).Inc()
	return nil, err
}

func (c *HttpClient) getCachedItem(url string) (cachedItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.cachedItems[url]
	return cached, ok
}

func (c *HttpClient) setCachedItem(url string, item cachedItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cachedItems[url] = item
}

func NewHttpClient(timeout time.Duration) *HttpClient {
	return &HttpClient{
		client: &http.Client{
			Timeout:   timeout,
			Transport: newTransport(DefaultUserAgent),
		},
		cachedItems: map[string]cachedItem{},
	}
}

type userAgentTransport struct {
	UserAgent string
}

func (t *userAgentTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	request = request.Clone(request.Context())
	request.Header.Set("User-Agent", t.UserAgent)

	return http.DefaultTransport.RoundTrip(request)
}

func newTransport(userAgent string) http.RoundTripper {
	return &userAgentTransport{
		UserAgent: userAgent,
	}
}
