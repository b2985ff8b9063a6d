package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/sketchroom/internal/domain"
)

const (
	defaultTimeout = 3 * time.Second
	snapshotKey    = "snapshot"
)

// Client talks to the HTTP surface of a sketchroom server.
type Client struct {
	client     *http.Client
	cache      *cache.Cache
	userAgent  string
	baseURL    string
	adminToken string
}

type Health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Sockets     int    `json:"sockets"`
	Strokes     int    `json:"strokes"`
}

type cachedSnapshot struct {
	etag     string
	snapshot domain.Snapshot
}

func New(baseURL, adminToken string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:     &httpClient,
		cache:      cache.New(10*time.Minute, 15*time.Minute),
		userAgent:  "sketchroom-client",
		baseURL:    strings.TrimRight(baseURL, "/"),
		adminToken: adminToken,
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %v", err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, response any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var health Health
	err := c.getJSON(ctx, "/healthz", &health)
	return health, err
}

func (c *Client) History(ctx context.Context) ([]domain.Stroke, error) {
	var strokes []domain.Stroke
	err := c.getJSON(ctx, "/history", &strokes)
	return strokes, err
}

func (c *Client) Presence(ctx context.Context) (map[string]domain.PresenceEntry, error) {
	presence := map[string]domain.PresenceEntry{}
	err := c.getJSON(ctx, "/presence", &presence)
	return presence, err
}

// Snapshot fetches the current raster. The last response is kept and
// revalidated with its ETag, so an unchanged image is not downloaded twice.
// ok is false when the server has no snapshot.
func (c *Client) Snapshot(ctx context.Context) (domain.Snapshot, bool, error) {
	header := http.Header{}
	cached, found := c.cache.Get(snapshotKey)
	if found {
		header.Set("If-None-Match", cached.(cachedSnapshot).etag)
	}

	resp, err := c.do(ctx, http.MethodGet, "/snapshot", header)
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		if !found {
			return domain.Snapshot{}, false, fmt.Errorf("not modified without a cached snapshot")
		}
		return cached.(cachedSnapshot).snapshot, true, nil
	case http.StatusNotFound:
		c.cache.Delete(snapshotKey)
		return domain.Snapshot{}, false, nil
	case http.StatusOK:
	default:
		return domain.Snapshot{}, false, statusError(resp)
	}

	var snapshot domain.Snapshot
	err = json.NewDecoder(resp.Body).Decode(&snapshot)
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("failed to decode snapshot: %v", err)
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		c.cache.Set(snapshotKey, cachedSnapshot{etag: etag, snapshot: snapshot}, cache.DefaultExpiration)
	}
	return snapshot, true, nil
}

// Reset clears the canvas. It needs the admin token.
func (c *Client) Reset(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.adminToken)

	resp, err := c.do(ctx, http.MethodPost, "/admin/reset", header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	c.cache.Delete(snapshotKey)
	return nil
}
