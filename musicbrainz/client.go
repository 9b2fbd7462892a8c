// Package musicbrainz looks up release track lists from the MusicBrainz web
// service. Calls go through a circuit breaker that opens after consecutive
// upstream failures.
package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const (
	DefaultBaseURL   = "https://musicbrainz.org/ws/2/"
	DefaultUserAgent = "go-record-catalog/1.0 ( catalog@example.com )"
	DefaultTimeout   = 5 * time.Second
)

// ErrUnavailable reports that the lookup could not reach MusicBrainz, either
// because the request failed or because the breaker is open.
var ErrUnavailable = errors.New("musicbrainz unavailable")

var errServerStatus = errors.New("musicbrainz server error")

// Config configures a Client.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:          DefaultBaseURL,
		UserAgent:        DefaultUserAgent,
		Timeout:          DefaultTimeout,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Release is the part of a MusicBrainz release document the client reads.
type Release struct {
	Media []struct {
		Tracks []struct {
			Title string `json:"title"`
		} `json:"tracks"`
	} `json:"media"`
}

// Client fetches track lists by release MBID.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient returns a Client for cfg. Zero fields fall back to DefaultConfig.
func NewClient(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	threshold := cfg.FailureThreshold
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "musicbrainz",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	return c
}

// TrackList returns the track titles of the release, in media order. An
// unknown release or an upstream error status yields an empty list.
func (c *Client) TrackList(ctx context.Context, mbid string) ([]string, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, mbid)
	})
	switch {
	case err == nil:
		return ExtractTrackList(result.(*Release)), nil
	case errors.Is(err, errServerStatus):
		c.logger.Error().Err(err).Str("mbid", mbid).Msg("track list lookup failed")
		return []string{}, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return nil, err
	}
}

func (c *Client) fetch(ctx context.Context, mbid string) (*Release, error) {
	endpoint := c.baseURL + "release/" + url.PathEscape(mbid) + "?inc=recordings+media&fmt=json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", errServerStatus, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		c.logger.Error().Int("status", resp.StatusCode).Str("mbid", mbid).Msg("track list lookup rejected")
		return &Release{}, nil
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("%w: decode release: %v", errServerStatus, err)
	}
	return &rel, nil
}

// ExtractTrackList flattens the track titles of every medium.
func ExtractTrackList(rel *Release) []string {
	tracks := []string{}
	if rel == nil {
		return tracks
	}
	for _, medium := range rel.Media {
		for _, track := range medium.Tracks {
			tracks = append(tracks, track.Title)
		}
	}
	return tracks
}
