package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNotReady is returned when the target never answered with a success status.
var ErrNotReady = errors.New("probe: target not ready")

// Options configures a Client.
type Options struct {
	// Retries is how many times a failed attempt is repeated.
	Retries int
	MinWait time.Duration
	MaxWait time.Duration
	// Interval spaces consecutive Wait calls.
	Interval time.Duration
	Timeout  time.Duration
	Logger   *zap.Logger
}

// DefaultOptions returns three retries with backoff between 500ms and 15s.
func DefaultOptions() Options {
	return Options{
		Retries:  3,
		MinWait:  500 * time.Millisecond,
		MaxWait:  15 * time.Second,
		Interval: 100 * time.Millisecond,
		Timeout:  10 * time.Second,
	}
}

// Client checks that an HTTP endpoint is serving before the view loads it.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a probe client. Retries happen in the retryablehttp transport;
// resty only shapes the request.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("probe")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = opts.MinWait
	retryClient.RetryWaitMax = opts.MaxWait
	retryClient.Logger = nil
	retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Info("Retrying readiness probe",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
			)
		}
	}

	restyClient := resty.NewWithClient(retryClient.StandardClient())
	restyClient.
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", "browserautomation-probe/1.0")

	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}

	return &Client{
		resty:   restyClient,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Wait blocks until target answers with a 2xx or 3xx status, the retries run
// out, or ctx is done.
func (c *Client) Wait(ctx context.Context, target string) error {
	if !Probeable(target) {
		return fmt.Errorf("%w: unsupported url %q", ErrNotReady, target)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit error: %w", err)
	}

	c.logger.Info("Waiting for target", zap.String("url", target))
	start := time.Now()

	resp, err := c.resty.R().SetContext(ctx).Get(target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrNotReady, ctxErr)
		}
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s answered %s", ErrNotReady, target, resp.Status())
	}

	c.logger.Info("Target ready",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Probeable reports whether target is an http(s) URL Wait can check.
func Probeable(target string) bool {
	u, err := url.Parse(target)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
