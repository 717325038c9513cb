// Package xapi is a client for the upstream v2 user and post endpoints.
//
// The client paces requests with a token bucket but never retries: a 429 is
// returned to the caller as a Result with Status 429.
package xapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	EndpointUser         = "/2/users/:id"
	EndpointUserByHandle = "/2/users/by/username/:username"
	EndpointUserPosts    = "/2/users/:id/tweets"

	DefaultPageSize = 100
)

type Config struct {
	BaseURL           string
	PageSize          int
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	pageSize   int
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		pageSize: pageSize,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger.With("component", "xapi"),
	}
}

// PostsQuery bounds one page request.
type PostsQuery struct {
	SinceID         string
	PaginationToken string
	MaxResults      int
	StartTime       *time.Time
	EndTime         *time.Time
}

// GetUser looks up an account by platform user id.
func (c *Client) GetUser(ctx context.Context, token, userID string) (*UserResponse, error) {
	params := url.Values{"user.fields": {"public_metrics"}}

	var resp UserResponse
	result, err := c.get(ctx, token, "/users/"+url.PathEscape(userID), params, &resp)
	if err != nil {
		return partialUser(result), err
	}
	resp.Result = result
	return &resp, nil
}

// GetUserByUsername resolves a handle, with or without a leading '@'.
func (c *Client) GetUserByUsername(ctx context.Context, token, username string) (*UserResponse, error) {
	params := url.Values{"user.fields": {"public_metrics"}}
	handle := strings.TrimPrefix(username, "@")

	var resp UserResponse
	result, err := c.get(ctx, token, "/users/by/username/"+url.PathEscape(handle), params, &resp)
	if err != nil {
		return partialUser(result), err
	}
	resp.Result = result
	return &resp, nil
}

// GetUserPosts fetches one page of a user's posts.
func (c *Client) GetUserPosts(ctx context.Context, token, userID string, q PostsQuery) (*PostsResponse, error) {
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = c.pageSize
	}

	params := url.Values{
		"tweet.fields": {"created_at,public_metrics,entities,attachments"},
		"expansions":   {"attachments.media_keys"},
		"media.fields": {"type"},
		"max_results":  {strconv.Itoa(maxResults)},
	}
	if q.SinceID != "" {
		params.Set("since_id", q.SinceID)
	}
	if q.PaginationToken != "" {
		params.Set("pagination_token", q.PaginationToken)
	}
	if q.StartTime != nil {
		params.Set("start_time", q.StartTime.UTC().Format(time.RFC3339))
	}
	if q.EndTime != nil {
		params.Set("end_time", q.EndTime.UTC().Format(time.RFC3339))
	}

	var page struct {
		Data     []json.RawMessage `json:"data"`
		Includes *Includes         `json:"includes"`
		Meta     *Meta             `json:"meta"`
	}
	result, err := c.get(ctx, token, "/users/"+url.PathEscape(userID)+"/tweets", params, &page)
	if err != nil {
		return partialPosts(result), err
	}

	resp := &PostsResponse{
		Result:   result,
		Includes: page.Includes,
		Meta:     page.Meta,
		Data:     make([]Post, 0, len(page.Data)),
	}
	for _, raw := range page.Data {
		var p Post
		if err := json.Unmarshal(raw, &p); err != nil {
			return partialPosts(result), fmt.Errorf("decode post: %w", err)
		}
		p.Raw = raw
		resp.Data = append(resp.Data, p)
	}
	return resp, nil
}

// partialUser and partialPosts keep the upstream status of a call that
// answered but whose body could not be used. They return nil when no
// status was obtained.
func partialUser(result Result) *UserResponse {
	if result.Status == 0 {
		return nil
	}
	return &UserResponse{Result: result}
}

func partialPosts(result Result) *PostsResponse {
	if result.Status == 0 {
		return nil
	}
	return &PostsResponse{Result: result}
}

// get performs one paced request. It returns an error only when no HTTP
// status could be obtained or a success body could not be decoded.
func (c *Client) get(ctx context.Context, token, path string, params url.Values, out any) (Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("wait for rate limiter: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "EngagementTracker/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	result := Result{
		Status:    resp.StatusCode,
		RateLimit: parseRateLimit(resp.Header),
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		result.Errors = []APIError{{Message: "Rate limited", Title: "Too Many Requests", Type: "rate_limit"}}
		c.logger.Warn("rate limited", "path", path, "reset", result.RateLimit.Reset)
		return result, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("read response: %w", err)
	}

	var envelope struct {
		Errors []APIError `json:"errors"`
	}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &envelope)
	}
	result.Errors = envelope.Errors

	if resp.StatusCode != http.StatusOK {
		if len(result.Errors) == 0 {
			result.Errors = []APIError{{Message: http.StatusText(resp.StatusCode)}}
		}
		return result, nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return result, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("request completed", "path", path, "status", resp.StatusCode)

	return result, nil
}

func parseRateLimit(h http.Header) RateLimit {
	var rl RateLimit
	if v := h.Get("x-rate-limit-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rl.Remaining = &n
		}
	}
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			rl.Reset = &n
		}
	}
	return rl
}
