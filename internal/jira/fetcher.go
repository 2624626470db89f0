package jira

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forgeahead/jiradsr/internal/report"
)

// jqlWindow matches issues with any create or update inside the window.
// Individual events are still filtered record by record afterwards, since
// an issue updated in the window can carry worklogs from outside it.
const jqlWindow = `project = %s AND ((created >= "%s" AND created < "%s") OR (updated >= "%s" AND updated < "%s")) ORDER BY updated ASC`

const jqlTimeLayout = "2006-01-02 15:04"

// Fetcher retrieves all issue activity for one project and normalizes it
// into report.ActivityRecord values. Stateless apart from the client.
type Fetcher struct {
	client *Client
	loc    *time.Location
}

func NewFetcher(client *Client, loc *time.Location) *Fetcher {
	return &Fetcher{client: client, loc: loc}
}

// Fetch returns every activity record for projectKey whose timestamp falls
// in [window.Start, window.End). Timestamps are converted to the project
// timezone for display; the boundary test happens on the instant, so the
// half-open guarantee holds regardless of the server zone.
func (f *Fetcher) Fetch(ctx context.Context, projectKey string, window report.TimeWindow) ([]report.ActivityRecord, error) {
	start := window.Start.In(f.loc).Format(jqlTimeLayout)
	end := window.End.In(f.loc).Format(jqlTimeLayout)
	jql := fmt.Sprintf(jqlWindow, projectKey, start, end, start, end)

	issues, err := f.client.SearchIssues(ctx, jql,
		[]string{"summary", "status", "project", "worklog", "comment"},
		[]string{"changelog"})
	if err != nil {
		return nil, err
	}

	var records []report.ActivityRecord
	for _, issue := range issues {
		recs, err := f.issueRecords(ctx, issue, window)
		if err != nil {
			return nil, fmt.Errorf("collecting activity for %s: %w", issue.Key, err)
		}
		records = append(records, recs...)
	}
	return records, nil
}

func (f *Fetcher) issueRecords(ctx context.Context, issue Issue, window report.TimeWindow) ([]report.ActivityRecord, error) {
	var records []report.ActivityRecord

	worklogs := issue.Fields.Worklog.Worklogs
	if issue.Fields.Worklog.Total > len(worklogs) {
		full, err := f.client.Worklogs(ctx, issue.Key)
		if err != nil {
			return nil, err
		}
		worklogs = full
	}
	for _, wl := range worklogs {
		if !window.Contains(wl.Updated.Time) {
			continue
		}
		detail := FormatDuration(wl.TimeSpentSeconds)
		if wl.Comment != "" {
			detail += ": " + wl.Comment
		}
		records = append(records, report.ActivityRecord{
			Actor:     wl.UpdateAuthor.Identity(),
			IssueKey:  issue.Key,
			Kind:      report.KindWorklog,
			Timestamp: wl.Updated.In(f.loc),
			Detail:    detail,
		})
	}

	comments := issue.Fields.Comment.Comments
	if issue.Fields.Comment.Total > len(comments) {
		full, err := f.client.Comments(ctx, issue.Key)
		if err != nil {
			return nil, err
		}
		comments = full
	}
	for _, cm := range comments {
		if !window.Contains(cm.Updated.Time) {
			continue
		}
		records = append(records, report.ActivityRecord{
			Actor:     cm.UpdateAuthor.Identity(),
			IssueKey:  issue.Key,
			Kind:      report.KindComment,
			Timestamp: cm.Updated.In(f.loc),
			Detail:    cm.Body,
		})
	}

	for _, history := range issue.Changelog.Histories {
		if !window.Contains(history.Created.Time) {
			continue
		}
		for _, item := range history.Items {
			switch item.Field {
			case "status":
				records = append(records, report.ActivityRecord{
					Actor:     history.Author.Identity(),
					IssueKey:  issue.Key,
					Kind:      report.KindTransition,
					Timestamp: history.Created.In(f.loc),
					Detail:    item.FromString + " -> " + item.ToString,
				})
			case "resolution":
				if item.ToString == "" {
					continue
				}
				records = append(records, report.ActivityRecord{
					Actor:     history.Author.Identity(),
					IssueKey:  issue.Key,
					Kind:      report.KindResolution,
					Timestamp: history.Created.In(f.loc),
					Detail:    item.ToString,
				})
			}
		}
	}

	return records, nil
}

// FormatDuration renders seconds as "6h 11m", the shape Jira itself shows
// for logged work.
func FormatDuration(seconds int) string {
	hours := seconds / 3600
	minutes := seconds % 3600 / 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// ValidateProject checks that the configured key exists on the server with
// the configured credentials and returns the project display name.
func ValidateProject(ctx context.Context, client *Client, key string) (string, error) {
	name, err := client.ProjectName(ctx, key)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("project %s exists but has no name", key)
	}
	return name, nil
}
