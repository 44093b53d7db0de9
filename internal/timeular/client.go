// Package timeular is a client for the upstream activity-tracking API.
// Every operation issues exactly one HTTP call; there are no retries.
package timeular

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/goodtune/trackgate/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	userAgent = "trackgate/1.0"

	// maxErrorBody bounds how much of an error response is kept for logging.
	maxErrorBody = 4 << 10
)

// Client talks to the upstream API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client for baseURL. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With().Str("component", "timeular").Logger(),
	}
}

// SignIn exchanges an API key/secret pair for a session token.
func (c *Client) SignIn(ctx context.Context, apiKey, apiSecret string) (Session, error) {
	const op = "sign_in"

	var resp signInResponse
	body := signInRequest{APIKey: apiKey, APISecret: apiSecret}
	if err := c.do(ctx, op, http.MethodPost, "/developer/sign-in", Session{}, body, &resp); err != nil {
		return Session{}, err
	}
	if resp.Token == "" {
		return Session{}, externalError(op, http.StatusOK, errors.New("sign-in response carried no token"))
	}

	return NewSession(resp.Token), nil
}

// ListActivities returns every activity visible to the session.
func (c *Client) ListActivities(ctx context.Context, s Session) (ActivitiesResponse, error) {
	var resp ActivitiesResponse
	if err := c.do(ctx, "list_activities", http.MethodGet, "/activities", s, nil, &resp); err != nil {
		return ActivitiesResponse{}, err
	}
	if resp.Activities == nil {
		resp.Activities = []Activity{}
	}
	return resp, nil
}

// GetActivity lists all activities and returns the one whose ID equals id.
// The upstream API has no lookup-by-id endpoint.
func (c *Client) GetActivity(ctx context.Context, s Session, id string) (Activity, error) {
	list, err := c.ListActivities(ctx, s)
	if err != nil {
		return Activity{}, err
	}

	for _, activity := range list.Activities {
		if activity.ID == id {
			return activity, nil
		}
	}

	return Activity{}, &Error{
		Op:   "get_activity",
		Kind: KindNotFound,
		Err:  fmt.Errorf("no activity with id %q among %d", id, len(list.Activities)),
	}
}

// CreateActivity creates an activity and returns the upstream representation.
func (c *Client) CreateActivity(ctx context.Context, s Session, req ActivityRequest) (Activity, error) {
	var activity Activity
	if err := c.do(ctx, "create_activity", http.MethodPost, "/activities", s, req, &activity); err != nil {
		return Activity{}, err
	}
	return activity, nil
}

// EditActivity applies a partial update. Only non-nil fields are sent.
func (c *Client) EditActivity(ctx context.Context, s Session, id string, req EditActivityRequest) (Activity, error) {
	var activity Activity
	if err := c.do(ctx, "edit_activity", http.MethodPatch, "/activities/"+url.PathEscape(id), s, req, &activity); err != nil {
		return Activity{}, err
	}
	return activity, nil
}

// DeleteActivity deletes an activity and returns the upstream result list.
func (c *Client) DeleteActivity(ctx context.Context, s Session, id string) (DeleteResponse, error) {
	var resp DeleteResponse
	if err := c.do(ctx, "delete_activity", http.MethodDelete, "/activities/"+url.PathEscape(id), s, nil, &resp); err != nil {
		return DeleteResponse{}, err
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	return resp, nil
}

// do performs one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, op, method, path string, s Session, in, out any) (err error) {
	start := time.Now()
	status := 0
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(op, outcome).Inc()
		metrics.UpstreamRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

		event := c.logger.Debug()
		if err != nil {
			event = c.logger.Warn().Err(err)
		}
		event.
			Str("op", op).
			Str("method", method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("Upstream call")
	}()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return externalError(op, 0, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return externalError(op, 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Valid() {
		req.Header.Set("Authorization", "Bearer "+s.Token())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return externalError(op, 0, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return externalError(op, resp.StatusCode, fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(snippet))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return externalError(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}

	return nil
}
