// Package scm resolves commit references for issues from the project's
// code review system (FishEye or Stash). Lookups are optional enrichment:
// any failure degrades to missing refs with a logged warning and never
// fails the project report.
package scm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/forgeahead/jiradsr/internal/config"
)

type Linker struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewLinker(logger *slog.Logger) *Linker {
	return &Linker{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Resolve maps each issue key to its ordered commit refs. A nil source
// short-circuits to an empty map without any network call. Per-key lookup
// failures leave that key absent and log a warning; the returned map is
// always usable.
func (l *Linker) Resolve(ctx context.Context, src *config.Source, issueKeys []string) map[string][]string {
	refs := make(map[string][]string)
	if src == nil {
		return refs
	}

	for _, key := range issueKeys {
		var (
			commits []string
			err     error
		)
		switch strings.ToUpper(src.Type) {
		case "STASH":
			commits, err = l.stashCommits(ctx, src, key)
		case "FISHEYE":
			commits, err = l.fisheyeCommits(ctx, src, key)
		default:
			err = fmt.Errorf("unknown source type %q", src.Type)
		}
		if err != nil {
			l.logger.Warn("commit lookup failed, leaving refs empty",
				"issue", key, "source", src.Type, "error", err)
			continue
		}
		if len(commits) > 0 {
			refs[key] = commits
		}
	}
	return refs
}

type stashCommit struct {
	ID        string `json:"id"`
	DisplayID string `json:"displayId"`
}

// stashCommits uses the Stash (Bitbucket Server) Jira integration resource,
// which returns the commits linked to an issue key across the instance.
func (l *Linker) stashCommits(ctx context.Context, src *config.Source, issueKey string) ([]string, error) {
	u := strings.TrimRight(src.URL, "/") + "/rest/jira/1.0/issues/" + url.PathEscape(issueKey) + "/commits"

	var payload struct {
		Commits []stashCommit `json:"commits"`
	}
	if err := l.getJSON(ctx, u, src, &payload); err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(payload.Commits))
	for _, c := range payload.Commits {
		if c.DisplayID != "" {
			refs = append(refs, c.DisplayID)
		} else {
			refs = append(refs, c.ID)
		}
	}
	return refs, nil
}

// fisheyeCommits runs an EyeQL query for changesets whose comment mentions
// the issue key.
func (l *Linker) fisheyeCommits(ctx context.Context, src *config.Source, issueKey string) ([]string, error) {
	eyeql := fmt.Sprintf(`select revisions where comment matches "%s" return csid`, issueKey)
	u := strings.TrimRight(src.URL, "/") + "/rest-service-fe/search-v1/queryAsRows/" +
		url.PathEscape(src.Repo) + "?query=" + url.QueryEscape(eyeql)

	var payload struct {
		Row []struct {
			Item []string `json:"item"`
		} `json:"row"`
	}
	if err := l.getJSON(ctx, u, src, &payload); err != nil {
		return nil, err
	}

	var refs []string
	seen := make(map[string]bool)
	for _, row := range payload.Row {
		for _, csid := range row.Item {
			if csid == "" || seen[csid] {
				continue
			}
			seen[csid] = true
			refs = append(refs, csid)
		}
	}
	return refs, nil
}

func (l *Linker) getJSON(ctx context.Context, rawURL string, src *config.Source, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if src.User != "" {
		req.SetBasicAuth(src.User, src.Password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
