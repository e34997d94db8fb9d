// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Headers are sent with every request; per-request headers win.
	Headers     map[string]string
	MaxBodySize int
}

// Fetcher implements crawler.Fetcher using the Colly collector. It performs a
// single attempt; retries belong to crawler.RetryingFetcher.
type Fetcher struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type outcome struct {
	doc    crawler.Document
	status int
	err    error
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	// Clones share the base HTTP client, so the timeout is set once here.
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		logger:        logger.Named("fetcher"),
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET and classifies the result.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.Request) (crawler.Document, error) {
	start := time.Now()
	out, err := f.run(ctx, request)
	if err != nil {
		metrics.ObserveFetch(request.URL, "canceled", 0, time.Since(start))
		return crawler.Document{}, err
	}

	err = classify(request, out)
	label := "ok"
	if err != nil {
		label = "fatal"
		if !crawler.IsFatalFetch(err) {
			label = "transient"
		}
		f.logger.Debug("fetch failed",
			zap.String("url", request.URL),
			zap.Int("status", out.status),
			zap.Error(err),
		)
	}
	metrics.ObserveFetch(request.URL, label, len(out.doc.Body), time.Since(start))
	if err != nil {
		return crawler.Document{}, err
	}
	return out.doc, nil
}

func (f *Fetcher) buildCollector(request crawler.Request, out *outcome) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}

	f.configureCollectorHooks(collector, request, out)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, request crawler.Request, out *outcome) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		out.status = r.StatusCode
		out.doc = crawler.Document{
			Request:    request,
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
		if r.Headers != nil {
			out.doc.ContentType = r.Headers.Get("Content-Type")
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		out.err = err
		if r != nil {
			out.status = r.StatusCode
		}
	})
}

// run visits the URL on its own collector. The outcome is owned by the visit
// goroutine and only handed over when the visit finishes, so an abandoned
// visit never writes to state the caller still reads.
func (f *Fetcher) run(ctx context.Context, request crawler.Request) (outcome, error) {
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		collector := f.buildCollector(request, &out)
		if err := collector.Visit(request.URL); err != nil && out.err == nil {
			out.err = err
		}
		done <- out
	}()

	select {
	case <-ctx.Done():
		return outcome{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case out := <-done:
		return out, nil
	}
}

func (f *Fetcher) copyHeaders(request crawler.Request, r *colly.Request) {
	for key, value := range f.cfg.Headers {
		r.Headers.Set(key, value)
	}
	for key, value := range request.Headers {
		r.Headers.Set(key, value)
	}
}

// classify maps a collector outcome to a Document or a FetchError.
func classify(request crawler.Request, out outcome) error {
	if out.err != nil && out.status == 0 {
		return &crawler.FetchError{
			Request:   request,
			Transient: isTransientTransport(out.err),
			Err:       out.err,
		}
	}
	if out.status == 0 {
		return &crawler.FetchError{Request: request, Transient: true, Err: errors.New("no response received")}
	}
	if out.status < 200 || out.status > 299 {
		return crawler.NewStatusError(request, out.status, out.err)
	}
	return nil
}

func isTransientTransport(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "connection reset", "connection refused", "eof", "no such host"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
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
