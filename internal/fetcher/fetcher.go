// Package fetcher implements the adaptive fetch client: GET requests route
// through the bypass service and fall back to a direct request on any bypass
// failure, so callers only ever see an error when both paths fail.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/scrapsama/scrapsama/internal/catalog"
	"github.com/scrapsama/scrapsama/internal/metrics"
	"github.com/scrapsama/scrapsama/internal/solverr"
)

// Solver is the bypass path of the two-step fetch strategy.
type Solver interface {
	EnsureSession(ctx context.Context) error
	DestroySession(ctx context.Context)
	Get(ctx context.Context, url string) (solverr.Solution, error)
}

// Config controls Client behavior.
type Config struct {
	// BypassEnabled routes GETs through the bypass service. When false every
	// request is direct and no fallback logic runs.
	BypassEnabled bool
	UserAgent     string
	Timeout       time.Duration
	// MaxParallel bounds concurrent solve calls; a solve blocks for up to the
	// service's solve budget, so unbounded calls would stall sibling tasks
	// sharing the client.
	MaxParallel int
}

// Client produces HTTP-response-shaped results for catalogue URLs.
// It implements catalog.Fetcher.
type Client struct {
	cfg    Config
	solver Solver
	direct *http.Client
	pool   *ants.Pool
	log    *zap.Logger
}

// New builds a Client. solver may be nil when the bypass path is disabled.
func New(cfg Config, solver Solver, logger *zap.Logger) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 2
	}
	if cfg.BypassEnabled && solver == nil {
		return nil, fmt.Errorf("bypass enabled but no solver configured")
	}

	var pool *ants.Pool
	if cfg.BypassEnabled {
		p, err := ants.NewPool(cfg.MaxParallel, ants.WithNonblocking(false))
		if err != nil {
			return nil, fmt.Errorf("create solve pool: %w", err)
		}
		pool = p
	}

	return &Client{
		cfg:    cfg,
		solver: solver,
		direct: &http.Client{Timeout: cfg.Timeout},
		pool:   pool,
		log:    logger,
	}, nil
}

// Get fetches url, preferring the bypass path and masking its failures
// behind a direct-request fallback.
func (c *Client) Get(ctx context.Context, url string) (catalog.FetchResponse, error) {
	if !c.cfg.BypassEnabled {
		return c.doDirect(ctx, http.MethodGet, url, "", nil)
	}

	// Best-effort: a missing session does not abort, the solve can still run
	// sessionless.
	if err := c.solver.EnsureSession(ctx); err != nil {
		c.log.Warn("bypass session unavailable", zap.Error(err))
	}

	sol, err := c.solveOffloaded(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return catalog.FetchResponse{}, ctx.Err()
		}
		metrics.BypassFallbacksTotal.Inc()
		c.log.Warn("bypass fetch failed, falling back to direct request",
			zap.String("url", url), zap.Error(err))
		resp, directErr := c.doDirect(ctx, http.MethodGet, url, "", nil)
		if directErr != nil {
			return catalog.FetchResponse{}, fmt.Errorf("both bypass and direct request failed: %w", directErr)
		}
		return resp, nil
	}

	metrics.FetchesTotal.WithLabelValues("bypass").Inc()
	return solutionResponse(url, sol), nil
}

// Post sends a direct POST. Challenge pages are only served for navigational
// GETs, so the default policy keeps POSTs off the bypass path entirely.
func (c *Client) Post(ctx context.Context, url string, contentType string, body []byte) (catalog.FetchResponse, error) {
	return c.doDirect(ctx, http.MethodPost, url, contentType, body)
}

// Close releases the solve pool and destroys the bypass session. The session
// lifetime is bounded by the client's.
func (c *Client) Close() {
	if c.pool != nil {
		c.pool.Release()
	}
	if c.solver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.solver.DestroySession(ctx)
	}
}

// solveOffloaded runs one blocking solve on the bounded pool and waits for
// it. The pool goroutine owns the call exclusively; nothing else mutable is
// touched inside it.
func (c *Client) solveOffloaded(ctx context.Context, url string) (solverr.Solution, error) {
	type solveResult struct {
		sol solverr.Solution
		err error
	}
	ch := make(chan solveResult, 1)

	if err := c.pool.Submit(func() {
		sol, err := c.solver.Get(ctx, url)
		ch <- solveResult{sol: sol, err: err}
	}); err != nil {
		return solverr.Solution{}, fmt.Errorf("submit solve: %w", err)
	}

	select {
	case res := <-ch:
		return res.sol, res.err
	case <-ctx.Done():
		return solverr.Solution{}, ctx.Err()
	}
}

func (c *Client) doDirect(ctx context.Context, method, url, contentType string, body []byte) (catalog.FetchResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return catalog.FetchResponse{}, fmt.Errorf("build request: %w", err)
	}
	setBrowserHeaders(req, c.cfg.UserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.direct.Do(req)
	if err != nil {
		return catalog.FetchResponse{}, fmt.Errorf("direct %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return catalog.FetchResponse{}, fmt.Errorf("read body of %s: %w", url, err)
	}

	metrics.FetchesTotal.WithLabelValues("direct").Inc()
	return catalog.FetchResponse{
		URL:        url,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Body:       data,
	}, nil
}

func solutionResponse(url string, sol solverr.Solution) catalog.FetchResponse {
	headers := make(http.Header, len(sol.Headers))
	for k, v := range sol.Headers {
		headers.Set(k, v)
	}
	return catalog.FetchResponse{
		URL:        url,
		StatusCode: sol.Status,
		Headers:    headers,
		Body:       []byte(sol.Response),
	}
}

// setBrowserHeaders mimics a real browser so direct requests survive basic
// bot filtering.
func setBrowserHeaders(req *http.Request, userAgent string) {
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}
