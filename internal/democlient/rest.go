package democlient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/golang-jwt/jwt/v5"

	"github.com/HerbHall/sysinfo/internal/version"
	"github.com/HerbHall/sysinfo/pkg/models"
)

// APIError is a problem+json error returned by the REST API.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Title)
}

// RESTClient calls the SysInfo HTTP API.
type RESTClient struct {
	baseURL string
	http    *http.Client
	token   string

	// OnServerVersion, if set, is called with the X-SysInfo-Version of each
	// response.
	OnServerVersion func(string)
}

// NewRESTClient creates a client for baseURL (e.g. http://localhost:5058).
func NewRESTClient(baseURL string, httpClient *http.Client) *RESTClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RESTClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// WithToken returns a copy of c that sends token as a bearer credential.
func (c *RESTClient) WithToken(token string) *RESTClient {
	cp := *c
	cp.token = token
	return &cp
}

// Snapshot fetches GET /api/SystemInfo and reports the round-trip time and
// body size.
func (c *RESTClient) Snapshot(ctx context.Context) (models.SystemInfoResponse, time.Duration, int, error) {
	var out models.SystemInfoResponse
	start := time.Now()
	n, err := c.getJSON(ctx, "/api/SystemInfo", &out)
	return out, time.Since(start), n, err
}

// Metric fetches GET /api/SystemInfo/{metric} as a generic JSON object.
func (c *RESTClient) Metric(ctx context.Context, metric string) (map[string]any, error) {
	var out map[string]any
	_, err := c.getJSON(ctx, "/api/SystemInfo/"+url.PathEscape(metric), &out)
	return out, err
}

// Poll fetches the snapshot count times, every interval, calling fn after
// each. A count <= 0 polls until ctx ends. Cancellation is not an error.
func (c *RESTClient) Poll(ctx context.Context, count int, every time.Duration, fn func(int, models.SystemInfoResponse, time.Duration) error) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for i := 1; count <= 0 || i <= count; i++ {
		snap, elapsed, _, err := c.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := fn(i, snap, elapsed); err != nil {
			return err
		}
		if count > 0 && i == count {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// Watch opens the WebSocket stream and calls fn for each snapshot until ctx
// ends or the server closes the stream.
func (c *RESTClient) Watch(ctx context.Context, interval time.Duration, fn func(models.SystemInfoResponse) error) error {
	u := c.baseURL + "/ws/SystemInfo"
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	if interval > 0 {
		u += "?intervalMs=" + strconv.FormatInt(interval.Milliseconds(), 10)
	}

	opts := &websocket.DialOptions{HTTPClient: c.http}
	if c.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + c.token}}
	}
	conn, resp, err := websocket.Dial(ctx, u, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.CloseNow()
	if resp != nil {
		c.reportVersion(resp.Header)
	}

	for {
		var snap models.SystemInfoResponse
		if err := wsjson.Read(ctx, conn, &snap); err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}
		if err := fn(snap); err != nil {
			return err
		}
	}
}

func (c *RESTClient) getJSON(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	c.reportVersion(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		_ = json.Unmarshal(body, apiErr)
		return len(body), apiErr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return len(body), fmt.Errorf("decode %s: %w", path, err)
	}
	return len(body), nil
}

func (c *RESTClient) reportVersion(h http.Header) {
	if c.OnServerVersion == nil {
		return
	}
	if v := h.Get(version.Header); v != "" {
		c.OnServerVersion(v)
	}
}

// VersionWarning returns a warning when server and client majors differ, or
// "" when they are compatible.
func VersionWarning(client, server string) string {
	if version.Compatible(client, server) {
		return ""
	}
	return fmt.Sprintf("warning: server version %s is not compatible with client version %s", server, client)
}

// MintToken signs an HS256 token for subject that expires after ttl.
func MintToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret is required")
	}
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    "sysinfo-client",
	})
	return tok.SignedString(secret)
}
