// Package archive talks to the legacy web archive that publishes the diary.
package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/mklimuk/diary-pilot/pkg/diary"
)

// RemoteTimeLayout is the format of the archive's clock endpoint.
const RemoteTimeLayout = "2006-01-02T15:04:05"

// Client is an authenticated session against the archive. URL is the base of
// the diary folder; entries live at URL/<id>.
type Client struct {
	URL      string
	Username string
	Password string

	http *http.Client
	log  *zap.Logger
}

// NewClient creates a Client. A nil logger disables logging.
func NewClient(baseURL, username, password string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		URL:      strings.TrimRight(baseURL, "/"),
		Username: username,
		Password: password,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      logger.Named("archive"),
	}
}

// resolve turns a possibly relative uri into an absolute URL against the base.
func (c *Client) resolve(uri string) (string, error) {
	if uri == "" {
		return c.URL, nil
	}
	base, err := url.Parse(c.URL + "/")
	if err != nil {
		return "", fmt.Errorf("invalid archive url: %w", err)
	}
	ref, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid uri %q: %w", uri, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if strings.HasPrefix(uri, "/") {
		return c.URL + uri, nil
	}
	return base.ResolveReference(ref).String(), nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.SetBasicAuth(c.Username, c.Password)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", req.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: unexpected status %s", req.Method, req.URL, resp.Status)
	}
	return raw, nil
}

// Get fetches uri, relative to the base unless absolute, and returns the page
// decoded from latin-1.
func (c *Client) Get(ctx context.Context, uri string) (string, error) {
	target, err := c.resolve(uri)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	c.log.Debug("get", zap.String("url", target))
	raw, err := c.do(req)
	if err != nil {
		return "", err
	}
	page, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", target, err)
	}
	return string(page), nil
}

func (c *Client) post(ctx context.Context, uri string, data url.Values) error {
	target, err := c.resolve(uri)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.log.Debug("post", zap.String("url", target))
	_, err = c.do(req)
	return err
}

// PostData builds the form shared by Add and Update.
func PostData(p diary.Period) (url.Values, error) {
	summary, err := charmap.ISO8859_1.NewEncoder().String(p.Summary())
	if err != nil {
		return nil, fmt.Errorf("summary of %s is not latin-1: %w", p.Header(), err)
	}
	return url.Values{
		"title":    {p.Header()},
		"author":   {"-"},
		"summary":  {summary},
		"encoding": {"Plain"},
	}, nil
}

// Add publishes p as a new entry.
func (c *Client) Add(ctx context.Context, p diary.Period) error {
	data, err := PostData(p)
	if err != nil {
		return err
	}
	data.Set("addPosting:method", " Add ")
	if err := c.post(ctx, "", data); err != nil {
		return fmt.Errorf("failed to add %s: %w", p.Header(), err)
	}
	return nil
}

// Update replaces the entry p.RemoteID with the content of p.
func (c *Client) Update(ctx context.Context, p diary.Period) error {
	if p.RemoteID == "" {
		return fmt.Errorf("cannot update %s: no remote id", p.Header())
	}
	data, err := PostData(p)
	if err != nil {
		return err
	}
	data.Set("edit:method", "Change")
	if err := c.post(ctx, "/"+p.RemoteID, data); err != nil {
		return fmt.Errorf("failed to update %s: %w", p.Header(), err)
	}
	return nil
}

// RemoteTime reads the archive host's local clock.
func (c *Client) RemoteTime(ctx context.Context) (time.Time, error) {
	page, err := c.Get(ctx, "/vm_now")
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(RemoteTimeLayout, strings.TrimSpace(page), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("unexpected remote time %q: %w", page, err)
	}
	return t, nil
}
