// Package api is the client of the DevTracker content API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"devtracker-bot/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Config configures a Client.
type Config struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration // catalog, accounts and status calls
	PostsTimeout      time.Duration // posts of a single game
	RequestsPerSecond float64       // zero disables pacing
}

// Client fetches games, posts and accounts. It is safe for concurrent use.
type Client struct {
	cfg     Config
	base    string
	http    *http.Client
	limiter *rate.Limiter
	log     *logrus.Entry
}

func NewClient(cfg Config, log *logrus.Entry) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		cfg:     cfg,
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{},
		limiter: limiter,
		log:     log,
	}
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// ListGames returns the catalog of tracked games.
func (c *Client) ListGames(ctx context.Context) ([]models.Game, error) {
	games, err := get[[]models.Game](ctx, c, "/games", c.cfg.Timeout)
	if err != nil {
		return nil, wrap("", err)
	}
	return games, nil
}

// ListPosts returns the full current post snapshot of a game.
func (c *Client) ListPosts(ctx context.Context, gameID string) ([]models.Post, error) {
	posts, err := get[[]models.Post](ctx, c, "/"+url.PathEscape(gameID)+"/posts", c.cfg.PostsTimeout)
	if err != nil {
		return nil, wrap(gameID, err)
	}
	return posts, nil
}

// ListAccounts returns the accounts tracked for a game.
func (c *Client) ListAccounts(ctx context.Context, gameID string) ([]models.Account, error) {
	accounts, err := get[[]models.Account](ctx, c, "/"+url.PathEscape(gameID)+"/accounts", c.cfg.Timeout)
	if err != nil {
		return nil, wrap(gameID, err)
	}
	return accounts, nil
}

// ListServices returns the sorted services the accounts of a game publish on.
func (c *Client) ListServices(ctx context.Context, gameID string) ([]string, error) {
	accounts, err := c.ListAccounts(ctx, gameID)
	if err != nil {
		return nil, err
	}
	seen := models.Set{}
	var services []string
	for _, a := range accounts {
		if a.Service == "" || seen.Has(a.Service) {
			continue
		}
		seen.Add(a.Service)
		services = append(services, a.Service)
	}
	sort.Strings(services)
	return services, nil
}

// Status requests the catalog and reports the HTTP status and latency. A
// request that got no response reports status zero.
func (c *Client) Status(ctx context.Context) (int, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, "/games")
	if err != nil {
		return 0, 0, err
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, time.Since(start), wrap("", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, time.Since(start), nil
}

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func get[T any](ctx context.Context, c *Client, path string, timeout time.Duration) (T, error) {
	var zero T
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return zero, err
	}

	req, err := c.newRequest(ctx, path)
	if err != nil {
		return zero, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return zero, fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		return zero, &contentTypeError{got: resp.Header.Get("Content-Type")}
	}

	var env envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return zero, &contentTypeError{got: "invalid JSON", err: err}
	}
	c.log.Debugf("GET %s: %s", path, resp.Status)
	return env.Data, nil
}

// Tag classifies a failed fetch.
type Tag string

const (
	TagTimeout     Tag = "timeout"
	TagContentType Tag = "content_type_error"
	TagError       Tag = "error"
)

// FetchError is returned by every failed call. Game is empty for calls
// that are not scoped to a game.
type FetchError struct {
	Game string
	Tag  Tag
	Err  error
}

func (e *FetchError) Error() string {
	if e.Game == "" {
		return fmt.Sprintf("api %s: %v", e.Tag, e.Err)
	}
	return fmt.Sprintf("api %s for game %s: %v", e.Tag, e.Game, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// TagOf returns the tag of a FetchError, or TagError for any other error.
func TagOf(err error) Tag {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Tag
	}
	return TagError
}

type contentTypeError struct {
	got string
	err error
}

func (e *contentTypeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("unexpected content (%s): %v", e.got, e.err)
	}
	return fmt.Sprintf("unexpected content type %q", e.got)
}

func (e *contentTypeError) Unwrap() error {
	return e.err
}

func wrap(gameID string, err error) error {
	return &FetchError{Game: gameID, Tag: classify(err), Err: err}
}

func classify(err error) Tag {
	var netErr net.Error
	var ctErr *contentTypeError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return TagTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return TagTimeout
	case errors.As(err, &ctErr):
		return TagContentType
	default:
		return TagError
	}
}
