package dsr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeahead/jiradsr/internal/config"
	"github.com/forgeahead/jiradsr/internal/jira"
	"github.com/forgeahead/jiradsr/internal/mail"
	"github.com/forgeahead/jiradsr/internal/report"
)

type fakeMailer struct {
	sent    []*mail.Message
	failFor string // fail any message whose subject contains this
}

func (f *fakeMailer) Send(_ context.Context, msg *mail.Message) error {
	if f.failFor != "" && strings.Contains(msg.Subject, f.failFor) {
		return fmt.Errorf("relay rejected message")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func projectYAML(key string) string {
	return fmt.Sprintf(`key: %s
url: https://jira.example.com/%s
user: bot
password: secret
manager:
  - pm@example.com
timezone: UTC
enabled: true
`, key, strings.ToLower(key))
}

func newTestApp(t *testing.T, base string, mailer mail.Mailer) *App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := New(Options{
		BasePath:  base,
		Format:    "html",
		From:      "dsr-report@forgeahead.io",
		StartSpec: "2016-04-11 00:00",
		EndSpec:   "2016-04-12 00:00",
		RunID:     "testrun",
	}, logger, mailer)
	require.NoError(t, err)
	app.validate = func(context.Context, config.Project) (string, error) { return "Test Project", nil }
	return app
}

func writeProjects(t *testing.T, base string, keys ...string) {
	t.Helper()
	confDir := filepath.Join(base, "conf")
	require.NoError(t, os.MkdirAll(confDir, 0o755))
	for _, key := range keys {
		name := fmt.Sprintf("%s.yaml", strings.ToLower(key))
		require.NoError(t, os.WriteFile(filepath.Join(confDir, name), []byte(projectYAML(key)), 0o644))
	}
}

func activityFor(actor string) []report.ActivityRecord {
	ts := time.Date(2016, 4, 11, 10, 0, 0, 0, time.UTC)
	return []report.ActivityRecord{
		{Actor: actor, IssueKey: "T-1", Kind: report.KindWorklog, Timestamp: ts, Detail: "2h 0m"},
		{Actor: actor, IssueKey: "T-1", Kind: report.KindComment, Timestamp: ts.Add(time.Hour), Detail: "done"},
	}
}

func TestRun_OneFailureDoesNotAbortTheBatch(t *testing.T) {
	base := t.TempDir()
	writeProjects(t, base, "AAA", "BBB", "CCC")

	mailer := &fakeMailer{}
	app := newTestApp(t, base, mailer)
	app.fetch = func(_ context.Context, p config.Project, _ report.TimeWindow) ([]report.ActivityRecord, error) {
		if p.Key == "BBB" {
			return nil, fmt.Errorf("connecting to %s: %w", p.URL, jira.ErrUnavailable)
		}
		return activityFor("alice@example.com"), nil
	}

	require.NoError(t, app.Run(context.Background()))

	byProject := map[string]Outcome{}
	for _, e := range app.Summary().Entries() {
		byProject[e.Project] = e.Outcome
	}
	assert.Equal(t, OutcomeSucceeded, byProject["AAA"])
	assert.Equal(t, OutcomeFailed, byProject["BBB"])
	assert.Equal(t, OutcomeSucceeded, byProject["CCC"], "projects after the failure still reach a terminal outcome")

	// Per successful project: one manager digest plus one actor report.
	assert.Len(t, mailer.sent, 4)
}

func TestRun_EmptyProjectSendsManagerOnlyMail(t *testing.T) {
	base := t.TempDir()
	writeProjects(t, base, "QUIET")

	mailer := &fakeMailer{}
	app := newTestApp(t, base, mailer)
	app.fetch = func(context.Context, config.Project, report.TimeWindow) ([]report.ActivityRecord, error) {
		return nil, nil
	}

	require.NoError(t, app.Run(context.Background()))

	entries := app.Summary().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, OutcomeEmpty, entries[0].Outcome)

	require.Len(t, mailer.sent, 1, "exactly one mail for an empty window")
	msg := mailer.sent[0]
	assert.Contains(t, msg.Subject, "No DSR Report")
	assert.Equal(t, []string{"pm@example.com"}, msg.To)
	assert.Empty(t, msg.Cc)
}

func TestRun_ActorMailCopiesManagers(t *testing.T) {
	base := t.TempDir()
	writeProjects(t, base, "AAA")

	mailer := &fakeMailer{}
	app := newTestApp(t, base, mailer)
	app.fetch = func(context.Context, config.Project, report.TimeWindow) ([]report.ActivityRecord, error) {
		return activityFor("alice@example.com"), nil
	}

	require.NoError(t, app.Run(context.Background()))
	require.Len(t, mailer.sent, 2)

	manager := mailer.sent[0]
	assert.Contains(t, manager.Subject, "manager digest")
	assert.Equal(t, []string{"pm@example.com"}, manager.To)

	actor := mailer.sent[1]
	assert.Equal(t, []string{"alice@example.com"}, actor.To)
	assert.Equal(t, []string{"pm@example.com"}, actor.Cc)
	assert.Contains(t, actor.HTMLBody, "T-1", "HTML report body is inlined")
}

func TestRun_DuplicateConfigIsSkipped(t *testing.T) {
	base := t.TempDir()
	confDir := filepath.Join(base, "conf")
	require.NoError(t, os.MkdirAll(confDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(confDir, "01-aaa.yaml"), []byte(projectYAML("AAA")), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(confDir, "02-aaa.yaml"), []byte(projectYAML("AAA")), 0o644))

	var fetched int
	mailer := &fakeMailer{}
	app := newTestApp(t, base, mailer)
	app.fetch = func(context.Context, config.Project, report.TimeWindow) ([]report.ActivityRecord, error) {
		fetched++
		return activityFor("alice@example.com"), nil
	}

	require.NoError(t, app.Run(context.Background()))
	assert.Equal(t, 1, fetched, "the duplicate is never processed")

	byOutcome := map[Outcome]int{}
	for _, e := range app.Summary().Entries() {
		byOutcome[e.Outcome]++
	}
	assert.Equal(t, 1, byOutcome[OutcomeSkipped])
	assert.Equal(t, 1, byOutcome[OutcomeSucceeded])
}

func TestRun_InvalidConfigIsRecordedNotFatal(t *testing.T) {
	base := t.TempDir()
	confDir := filepath.Join(base, "conf")
	require.NoError(t, os.MkdirAll(confDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(confDir, "bad.yaml"), []byte("key: BAD\nenabled: true\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(confDir, "good.yaml"), []byte(projectYAML("GOOD")), 0o644))

	mailer := &fakeMailer{}
	app := newTestApp(t, base, mailer)
	app.fetch = func(context.Context, config.Project, report.TimeWindow) ([]report.ActivityRecord, error) {
		return activityFor("alice@example.com"), nil
	}

	require.NoError(t, app.Run(context.Background()))

	byOutcome := map[Outcome]int{}
	for _, e := range app.Summary().Entries() {
		byOutcome[e.Outcome]++
	}
	assert.Equal(t, 1, byOutcome[OutcomeValidationFailed])
	assert.Equal(t, 1, byOutcome[OutcomeSucceeded])
}

func TestRun_DeliveryFailureMarksProjectFailed(t *testing.T) {
	base := t.TempDir()
	writeProjects(t, base, "AAA")

	mailer := &fakeMailer{failFor: "manager digest"}
	app := newTestApp(t, base, mailer)
	app.fetch = func(context.Context, config.Project, report.TimeWindow) ([]report.ActivityRecord, error) {
		return activityFor("alice@example.com"), nil
	}

	require.NoError(t, app.Run(context.Background()))

	entries := app.Summary().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, OutcomeFailed, entries[0].Outcome)
}

func TestRun_InvertedWindowAbortsBeforeProcessing(t *testing.T) {
	base := t.TempDir()
	writeProjects(t, base, "AAA")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := New(Options{
		BasePath:  base,
		Format:    "html",
		From:      "dsr-report@forgeahead.io",
		StartSpec: "2016-04-12 00:00",
		EndSpec:   "2016-04-11 00:00",
	}, logger, &fakeMailer{})
	require.NoError(t, err)

	var fetched bool
	app.fetch = func(context.Context, config.Project, report.TimeWindow) ([]report.ActivityRecord, error) {
		fetched = true
		return nil, nil
	}

	err = app.Run(context.Background())
	require.Error(t, err)
	assert.False(t, fetched, "no project is processed on an inverted operator window")
}

func TestRun_ValidateOnlyStopsBeforeReports(t *testing.T) {
	base := t.TempDir()
	writeProjects(t, base, "AAA")

	mailer := &fakeMailer{}
	app := newTestApp(t, base, mailer)
	app.opts.Validate = true
	app.fetch = func(context.Context, config.Project, report.TimeWindow) ([]report.ActivityRecord, error) {
		t.Fatal("fetch must not run in validate mode")
		return nil, nil
	}

	require.NoError(t, app.Run(context.Background()))
	assert.Empty(t, mailer.sent)
}

func TestRun_SummaryMailIncludesLogAttachment(t *testing.T) {
	base := t.TempDir()
	writeProjects(t, base, "AAA")

	logPath := filepath.Join(base, "run.log")
	require.NoError(t, os.WriteFile(logPath, []byte("log line\n"), 0o644))

	mailer := &fakeMailer{}
	app := newTestApp(t, base, mailer)
	app.opts.SummaryTo = "ops@example.com"
	app.opts.LogPath = logPath
	app.fetch = func(context.Context, config.Project, report.TimeWindow) ([]report.ActivityRecord, error) {
		return errFetch()
	}

	require.NoError(t, app.Run(context.Background()))

	require.NotEmpty(t, mailer.sent)
	last := mailer.sent[len(mailer.sent)-1]
	assert.Contains(t, last.Subject, "Run Summary")
	assert.Equal(t, []string{"ops@example.com"}, last.To)
	assert.Equal(t, []string{logPath}, last.Attachments)
	assert.Contains(t, last.HTMLBody, "AAA")
}

func errFetch() ([]report.ActivityRecord, error) {
	return nil, errors.New("boom")
}
