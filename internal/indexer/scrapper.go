// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"

	"github.com/torrentcompanion/companion/internal/buildinfo"
	"github.com/torrentcompanion/companion/internal/models"
)

const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultRetries        = 2

	maxResponseBytes = 16 << 20
)

// ScrapperConfig configures the HTTP plumbing shared by backends.
type ScrapperConfig struct {
	Descriptor models.BackendDescriptor
	Timeout    time.Duration
	Retries    uint
	RetryDelay time.Duration
	HTTPClient *http.Client
	UserAgent  string
}

// Scrapper carries the descriptor and HTTP client of a backend and provides
// the default implementations of the non-domain Backend methods. Concrete
// backends embed it.
type Scrapper struct {
	desc       models.BackendDescriptor
	client     *http.Client
	retries    uint
	retryDelay time.Duration
	userAgent  string
}

func NewScrapper(cfg ScrapperConfig) *Scrapper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = buildinfo.UserAgent
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.Descriptor.BaseURL = strings.TrimRight(cfg.Descriptor.BaseURL, "/")

	return &Scrapper{
		desc:       cfg.Descriptor,
		client:     cfg.HTTPClient,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		userAgent:  cfg.UserAgent,
	}
}

func (s *Scrapper) Descriptor() models.BackendDescriptor {
	return s.desc
}

func (s *Scrapper) Name() string {
	return s.desc.Name
}

func (s *Scrapper) BaseURL() string {
	return s.desc.BaseURL
}

// Authenticate is a no-op for public backends. A backend that requires
// credentials must provide its own implementation.
func (s *Scrapper) Authenticate(ctx context.Context) error {
	if s.desc.RequiresAuth {
		return &UnsupportedOperationError{Indexer: s.desc.Name, Op: "authenticate"}
	}
	return nil
}

func (s *Scrapper) BuildURL(tpl string, params map[string]string) (string, error) {
	return BuildURL(tpl, params)
}

// TestConnection sends a single GET to the base URL without retries.
func (s *Scrapper) TestConnection(ctx context.Context) bool {
	req, err := s.newRequest(ctx, s.desc.BaseURL)
	if err != nil {
		return false
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("indexer", s.desc.Name).Msg("Connectivity probe failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return isSuccess(resp.StatusCode)
}

// Get fetches url and returns the body of a 2xx response. Transport failures
// are retried; a non-2xx status is returned as a RemoteError immediately.
func (s *Scrapper) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			b, err := s.get(ctx, url)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.retries+1),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var connErr *ConnectivityError
			return errors.As(err, &connErr) && ctx.Err() == nil
		}),
	)
	if err != nil {
		return nil, s.classify(ctx, url, err)
	}

	return body, nil
}

// GetJSON fetches url and decodes the JSON body into v.
func (s *Scrapper) GetJSON(ctx context.Context, url string, v any) error {
	body, err := s.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: decode response from %s: %w", s.desc.Name, url, err)
	}
	return nil
}

func (s *Scrapper) get(ctx context.Context, url string) ([]byte, error) {
	req, err := s.newRequest(ctx, url)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &ConnectivityError{Indexer: s.desc.Name, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &RemoteError{Indexer: s.desc.Name, URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ConnectivityError{Indexer: s.desc.Name, URL: url, Err: err}
	}

	return body, nil
}

func (s *Scrapper) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", s.desc.Name, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	return req, nil
}

// classify separates deadlines and cancellations from plain transport errors.
func (s *Scrapper) classify(ctx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return &TimeoutError{Indexer: s.desc.Name, Op: "GET " + url, Err: ctxErr}
		}
		return ctxErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Indexer: s.desc.Name, Op: "GET " + url, Err: err}
	}

	return err
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
