// Package solverr speaks the challenge-solving bypass service's HTTP+JSON
// protocol and owns the reusable session it hands out.
package solverr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scrapsama/scrapsama/internal/metrics"
)

// Solution is the page content the bypass service solved its way to.
type Solution struct {
	URL      string            `json:"url"`
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers"`
	Response string            `json:"response"`
}

type command struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url,omitempty"`
	Session    string `json:"session,omitempty"`
	MaxTimeout int    `json:"maxTimeout,omitempty"`
	PostData   string `json:"postData,omitempty"`
}

type reply struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Session  string   `json:"session"`
	Solution Solution `json:"solution"`
}

// Client talks to one bypass-service endpoint. The session id is the only
// cross-call mutable state and is guarded by mu; creation uses double-checked
// locking so concurrent callers never open duplicate sessions.
type Client struct {
	endpoint   string
	maxTimeout time.Duration
	httpc      *http.Client
	log        *zap.Logger

	mu      sync.RWMutex
	session string
}

// New builds a Client for the bypass service at endpoint. maxTimeout is the
// solve-time budget forwarded with every fetch command.
func New(endpoint string, maxTimeout time.Duration, logger *zap.Logger) *Client {
	if maxTimeout <= 0 {
		maxTimeout = 60 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		maxTimeout: maxTimeout,
		// The service blocks until the challenge is solved, so the HTTP
		// timeout must exceed the solve budget.
		httpc: &http.Client{Timeout: maxTimeout + 10*time.Second},
		log:   logger,
	}
}

// Session returns the currently held session id, empty when none.
func (c *Client) Session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// EnsureSession makes sure a reusable session exists. It returns nil
// immediately when one is already held. On any failure the id stays unset so
// a later call retries; the failure is returned, never raised further by the
// fetch path.
func (c *Client) EnsureSession(ctx context.Context) error {
	c.mu.RLock()
	held := c.session != ""
	c.mu.RUnlock()
	if held {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != "" {
		return nil
	}

	rep, err := c.send(ctx, command{Cmd: "sessions.create"})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if rep.Session == "" {
		return fmt.Errorf("create session: reply carried no session id")
	}
	c.session = rep.Session
	metrics.SessionsCreatedTotal.Inc()
	c.log.Info("bypass session created", zap.String("session", rep.Session))
	return nil
}

// DestroySession best-effort destroys the held session and clears the id
// regardless of outcome. It never fails: destruction problems are logged so
// they cannot block shutdown.
func (c *Client) DestroySession(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == "" {
		return
	}
	session := c.session
	c.session = ""

	if _, err := c.send(ctx, command{Cmd: "sessions.destroy", Session: session}); err != nil {
		c.log.Warn("bypass session destroy failed", zap.String("session", session), zap.Error(err))
		return
	}
	c.log.Info("bypass session destroyed", zap.String("session", session))
}

// Get asks the service to fetch url, reusing the held session if any.
func (c *Client) Get(ctx context.Context, url string) (Solution, error) {
	return c.solve(ctx, command{Cmd: "request.get", URL: url})
}

// Post asks the service to POST postData to url.
func (c *Client) Post(ctx context.Context, url, postData string) (Solution, error) {
	return c.solve(ctx, command{Cmd: "request.post", URL: url, PostData: postData})
}

func (c *Client) solve(ctx context.Context, cmd command) (Solution, error) {
	cmd.Session = c.Session()
	cmd.MaxTimeout = int(c.maxTimeout / time.Millisecond)

	rep, err := c.send(ctx, cmd)
	if err != nil {
		return Solution{}, err
	}
	return rep.Solution, nil
}

// send posts one command and classifies the reply. A non-200 status, a
// status field other than "ok", and a malformed payload are all failures.
func (c *Client) send(ctx context.Context, cmd command) (reply, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return reply{}, fmt.Errorf("marshal %s: %w", cmd.Cmd, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return reply{}, fmt.Errorf("build %s request: %w", cmd.Cmd, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return reply{}, fmt.Errorf("%s: %w", cmd.Cmd, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return reply{}, fmt.Errorf("%s: service returned status %d", cmd.Cmd, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return reply{}, fmt.Errorf("read %s reply: %w", cmd.Cmd, err)
	}
	var rep reply
	if err := json.Unmarshal(body, &rep); err != nil {
		return reply{}, fmt.Errorf("decode %s reply: %w", cmd.Cmd, err)
	}
	if rep.Status != "ok" {
		return reply{}, fmt.Errorf("%s: service status %q: %s", cmd.Cmd, rep.Status, rep.Message)
	}
	return rep, nil
}
