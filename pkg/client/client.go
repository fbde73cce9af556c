package client

import (
	"context"
	"errors"
	"fmt"
)

type Client interface {
	FetchJSON(ctx context.Context, url string) ([]byte, error)
}

var ErrNetworkUnavailable = errors.New("network unavailable")

// HTTPError is returned for any response outside the 2xx range.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("failed to fetch data from %s: HTTP %d", e.URL, e.StatusCode)
}
