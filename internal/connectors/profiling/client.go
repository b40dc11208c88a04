package profiling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTimeout marks requests that were abandoned without retrying.
	ErrTimeout = errors.New("profiling service timeout")
	// ErrStreamInterrupted means the response was already started when copying failed.
	ErrStreamInterrupted = errors.New("profiling response stream interrupted")
)

// proxiedHeaders are copied from the upstream response when present.
var proxiedHeaders = []string{"Content-Encoding", "Vary"}

// Client talks to the profiling service.
type Client struct {
	endpoint string
	token    string
	retries  int
	backoff  time.Duration
	http     *http.Client

	// OnRetry is called before each retry; used for metrics.
	OnRetry func(method, path string, err error)
}

func NewClient(endpoint string, timeout time.Duration, retries int, token string) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		token:    strings.TrimSpace(token),
		retries:  retries,
		backoff:  100 * time.Millisecond,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.endpoint != ""
}

// Do sends one request, retrying transport errors but never a response
// timeout. Dial failures, including dial timeouts, are retried. Any HTTP
// response, 5xx included, is returned as is. The caller closes the returned body.
func (c *Client) Do(ctx context.Context, method, path string, params url.Values, payload any) (*http.Response, error) {
	if !c.Enabled() {
		return nil, errors.New("profiling service disabled")
	}

	var body []byte
	if payload != nil {
		blob, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = blob
	}

	u := c.endpoint + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if c.OnRetry != nil {
				c.OnRetry(method, path, lastErr)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if isTimeout(err) && !isDialError(err) {
				return nil, fmt.Errorf("%w: %s %s: %v", ErrTimeout, method, path, err)
			}
			lastErr = err
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("%s %s: %w", method, path, lastErr)
}

// Proxy forwards the upstream response to w: status, body, and content headers.
func (c *Client) Proxy(ctx context.Context, w http.ResponseWriter, method, path string, params url.Values, payload any) error {
	resp, err := c.Do(ctx, method, path, params, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	for _, h := range proxiedHeaders {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
	}
	return nil
}

// FlamegraphRequest selects the profiles aggregated into one flamegraph.
// Fingerprint narrows to profiles containing one function and is only set
// for the functions dataset.
type FlamegraphRequest struct {
	Org         string            `json:"-"`
	ProjectID   int64             `json:"-"`
	Dataset     string            `json:"dataset"`
	Fingerprint *uint32           `json:"fingerprint,omitempty"`
	Query       string            `json:"query,omitempty"`
	Filters     map[string]string `json:"filters,omitempty"`
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
}

// ChunksRequest asks for the continuous-profiling chunks of one profiler.
// Start and End are nanosecond timestamps encoded as strings.
type ChunksRequest struct {
	ProfilerID string `json:"profiler_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

// ChunksFlamegraphRequest aggregates the chunks overlapping one span group.
type ChunksFlamegraphRequest struct {
	SpanGroup string    `json:"span_group"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// UnixNanoString renders t the way the chunks endpoint expects.
func UnixNanoString(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

// FlamegraphPath is the upstream endpoint for a single-project flamegraph.
func FlamegraphPath(org string, projectID int64) string {
	return projectPath(org, projectID, "flamegraph")
}

// ChunksPath is the upstream endpoint for raw profile chunks.
func ChunksPath(org string, projectID int64) string {
	return projectPath(org, projectID, "chunks")
}

// ChunksFlamegraphPath is the upstream endpoint for a span group flamegraph.
func ChunksFlamegraphPath(org string, projectID int64) string {
	return projectPath(org, projectID, "chunks-flamegraph")
}

func projectPath(org string, projectID int64, action string) string {
	return fmt.Sprintf("/organizations/%s/projects/%d/%s", url.PathEscape(org), projectID, action)
}

// ServiceStats checks the upstream health endpoint.
func (c *Client) ServiceStats(ctx context.Context) (map[string]any, error) {
	start := time.Now()
	resp, err := c.Do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("profiling service status=%d", resp.StatusCode)
	}
	return map[string]any{
		"ping_ms": time.Since(start).Milliseconds(),
		"status":  resp.StatusCode,
	}, nil
}

// isDialError reports a failure to establish the connection, before any
// request bytes reached the service.
func isDialError(err error) bool {
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
