// Package acquire implements the source page fetcher using gocolly.
package acquire

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/presellkit/presell-engine/internal/presell"
)

// Config controls collector behavior.
type Config struct {
	// UserAgent is sent on every request. Many marketing landing pages
	// reject default client identifiers, so it should look like a real
	// browser.
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements presell.Acquirer using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true

	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Acquire issues a single GET for url and returns the raw body. Any non-2xx
// status or transport error surfaces as *presell.AcquireError. Retrying is
// the orchestrator's job, never this fetcher's.
func (f *Fetcher) Acquire(ctx context.Context, url string) ([]byte, error) {
	var (
		body     []byte
		status   int
		fetchErr error
	)

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)

	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	// Visit returns the same failure OnError observed; prefer the hook's
	// version because it carries the response status.
	visitErr := f.runCollector(ctx, collector, url)
	if fetchErr != nil {
		return nil, &presell.AcquireError{URL: url, StatusCode: status, Err: fetchErr}
	}
	if visitErr != nil {
		return nil, &presell.AcquireError{URL: url, Err: visitErr}
	}
	if status < 200 || status > 299 {
		return nil, &presell.AcquireError{URL: url, StatusCode: status, Err: fmt.Errorf("non-2xx response")}
	}
	return body, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
