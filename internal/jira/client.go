package jira

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

	"golang.org/x/time/rate"
)

// ErrUnavailable means the tracker could not be reached at all, timed out,
// or rejected the configured credentials. Retrying is the outer scheduler's
// call, never this package's.
var ErrUnavailable = errors.New("tracker unavailable")

// QueryError means the server answered but rejected the query itself.
type QueryError struct {
	StatusCode int
	Body       string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("tracker rejected query (status %d): %s", e.StatusCode, e.Body)
}

const (
	searchPageSize = 50
	callTimeout    = 30 * time.Second
)

// Client talks to a Jira Server rest/api/2 endpoint with basic auth.
// It holds no state beyond connection settings and is safe to retry.
type Client struct {
	baseURL    string
	user       string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(baseURL, user, password string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		user:       user,
		password:   password,
		httpClient: &http.Client{Timeout: callTimeout},
		// Jira Server instances commonly throttle around 10 req/s per user.
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	u := c.baseURL + "/rest/api/2/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: authentication rejected (status %d)", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: server error (status %d)", ErrUnavailable, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &QueryError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// SearchIssues pages through /search and returns the full flattened issue
// list in server order.
func (c *Client) SearchIssues(ctx context.Context, jql string, fields, expand []string) ([]Issue, error) {
	var all []Issue
	startAt := 0
	for {
		query := url.Values{}
		query.Set("jql", jql)
		query.Set("startAt", strconv.Itoa(startAt))
		query.Set("maxResults", strconv.Itoa(searchPageSize))
		if len(fields) > 0 {
			query.Set("fields", strings.Join(fields, ","))
		}
		if len(expand) > 0 {
			query.Set("expand", strings.Join(expand, ","))
		}

		var page searchResponse
		if err := c.get(ctx, "search", query, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Issues...)

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			return all, nil
		}
	}
}

// Worklogs fetches the complete worklog list for an issue. The search
// payload truncates embedded worklogs, so issues with more entries than the
// embed limit need this extra call.
func (c *Client) Worklogs(ctx context.Context, issueKey string) ([]Worklog, error) {
	var container worklogContainer
	if err := c.get(ctx, "issue/"+issueKey+"/worklog", nil, &container); err != nil {
		return nil, err
	}
	return container.Worklogs, nil
}

// Comments fetches the complete comment list for an issue.
func (c *Client) Comments(ctx context.Context, issueKey string) ([]Comment, error) {
	var container struct {
		Comments []Comment `json:"comments"`
	}
	if err := c.get(ctx, "issue/"+issueKey+"/comment", nil, &container); err != nil {
		return nil, err
	}
	return container.Comments, nil
}

// ProjectName resolves a project key to its display name. Config value
// validation uses this as a cheap authenticated round-trip.
func (c *Client) ProjectName(ctx context.Context, key string) (string, error) {
	var proj projectResponse
	if err := c.get(ctx, "project/"+key, nil, &proj); err != nil {
		return "", err
	}
	return proj.Name, nil
}
