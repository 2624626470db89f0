// Package dsr runs the daily status report batch: load project configs,
// fetch and aggregate tracker activity per project, render and email the
// reports, and account for every project in the run summary.
package dsr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forgeahead/jiradsr/internal/config"
	"github.com/forgeahead/jiradsr/internal/fsutil"
	"github.com/forgeahead/jiradsr/internal/jira"
	"github.com/forgeahead/jiradsr/internal/mail"
	"github.com/forgeahead/jiradsr/internal/report"
	"github.com/forgeahead/jiradsr/internal/scm"
)

// Options is the operator-facing run configuration, filled from CLI flags.
type Options struct {
	BasePath   string
	ConfigFile string // single config file name under conf/; empty = all
	StartSpec  string // "2006-01-02 15:04" in each project's timezone
	EndSpec    string
	Format     string // html, csv or xlsx
	Attach     bool
	Validate   bool // validate configs and exit
	From       string
	SummaryTo  string
	RunID      string
	LogPath    string

	// Retention for generated reports and logs, rotated at run end.
	Retention time.Duration
}

// FetchFunc retrieves normalized activity for one project and window.
type FetchFunc func(ctx context.Context, project config.Project, window report.TimeWindow) ([]report.ActivityRecord, error)

// LinkFunc resolves commit refs per issue key; it must never fail, only
// degrade to missing entries.
type LinkFunc func(ctx context.Context, src *config.Source, issueKeys []string) map[string][]string

// ValidateFunc checks the project key against the live tracker.
type ValidateFunc func(ctx context.Context, project config.Project) (string, error)

type App struct {
	opts     Options
	logger   *slog.Logger
	mailer   mail.Mailer
	renderer report.Renderer
	summary  *Summary

	fetch    FetchFunc
	link     LinkFunc
	validate ValidateFunc
}

func New(opts Options, logger *slog.Logger, mailer mail.Mailer) (*App, error) {
	var renderer report.Renderer
	switch opts.Format {
	case "", "html":
		r, err := report.NewHTMLRenderer()
		if err != nil {
			return nil, err
		}
		renderer = r
	case "csv":
		renderer = report.NewCSVRenderer()
	case "xlsx":
		renderer = report.NewExcelRenderer()
	default:
		return nil, fmt.Errorf("unknown report format %q (want html, csv or xlsx)", opts.Format)
	}
	if opts.Retention == 0 {
		opts.Retention = 7 * 24 * time.Hour
	}

	linker := scm.NewLinker(logger)
	return &App{
		opts:     opts,
		logger:   logger,
		mailer:   mailer,
		renderer: renderer,
		summary:  NewSummary(),
		fetch: func(ctx context.Context, p config.Project, w report.TimeWindow) ([]report.ActivityRecord, error) {
			loc, err := p.Location()
			if err != nil {
				return nil, err
			}
			f := jira.NewFetcher(jira.NewClient(p.URL, p.User, p.Password), loc)
			return f.Fetch(ctx, p.Key, w)
		},
		link: linker.Resolve,
		validate: func(ctx context.Context, p config.Project) (string, error) {
			return jira.ValidateProject(ctx, jira.NewClient(p.URL, p.User, p.Password), p.Key)
		},
	}, nil
}

// Run processes the whole batch. Only run-level misconfiguration (no conf
// directory, inverted operator window) returns an error; every per-project
// failure is recorded and the loop continues.
func (a *App) Run(ctx context.Context) error {
	if err := a.checkWindowSpec(); err != nil {
		return err
	}

	confDir := filepath.Join(a.opts.BasePath, "conf")
	var (
		loaded *config.LoadResult
		err    error
	)
	if a.opts.ConfigFile != "" {
		loaded = &config.LoadResult{}
		p, lerr := config.Load(filepath.Join(confDir, a.opts.ConfigFile))
		if lerr != nil {
			loaded.Invalid = append(loaded.Invalid, config.Invalid{File: a.opts.ConfigFile, Err: lerr})
		} else {
			loaded.Projects = append(loaded.Projects, p)
		}
	} else {
		loaded, err = config.LoadDir(confDir)
		if err != nil {
			return err
		}
	}

	for _, inv := range loaded.Invalid {
		a.logger.Error("project config rejected", "file", inv.File, "error", inv.Err)
		a.summary.Record(filepath.Base(inv.File), OutcomeValidationFailed, inv.Err.Error())
	}
	for _, sk := range loaded.Skipped {
		a.logger.Warn("skipping duplicate project config",
			"file", sk.File, "key", sk.Key, "url", sk.URL, "first_seen", sk.FirstSeen)
		a.summary.Record(sk.Key, OutcomeSkipped, fmt.Sprintf("duplicate of %s", sk.FirstSeen))
	}

	var projects []config.Project
	for _, p := range loaded.Projects {
		name, verr := a.validate(ctx, p)
		if verr != nil {
			a.logger.Error("project config value validation failed",
				"project", p.Key, "url", p.URL, "error", verr)
			a.summary.Record(p.Key, OutcomeValidationFailed, verr.Error())
			continue
		}
		a.logger.Info("project config validated", "project", p.Key, "name", name)
		projects = append(projects, p)
	}

	if a.opts.Validate {
		a.logger.Warn("run with --validate, stopping after config validation")
		return nil
	}

	for _, p := range projects {
		outcome, detail := a.processProject(ctx, p)
		a.summary.Record(p.Key, outcome, detail)
	}

	if a.opts.SummaryTo != "" {
		if err := a.sendRunSummary(ctx); err != nil {
			a.logger.Error("failed to send run summary", "error", err)
		}
	}

	a.rotate()
	return nil
}

// Summary exposes the collector for inspection after the run.
func (a *App) Summary() *Summary {
	return a.summary
}

func (a *App) checkWindowSpec() error {
	if a.opts.StartSpec == "" && a.opts.EndSpec == "" {
		return nil
	}
	// Zone does not matter for the ordering check; each project reparses
	// the specs in its own timezone later.
	start, err := time.Parse("2006-01-02 15:04", a.opts.StartSpec)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", a.opts.StartSpec, err)
	}
	end, err := time.Parse("2006-01-02 15:04", a.opts.EndSpec)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", a.opts.EndSpec, err)
	}
	if _, err := report.NewWindow(start, end); err != nil {
		return err
	}
	return nil
}

func (a *App) projectWindow(p config.Project) (report.TimeWindow, error) {
	loc, err := p.Location()
	if err != nil {
		return report.TimeWindow{}, err
	}
	if a.opts.StartSpec == "" && a.opts.EndSpec == "" {
		return report.PreviousDay(time.Now(), loc), nil
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", a.opts.StartSpec, loc)
	if err != nil {
		return report.TimeWindow{}, err
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", a.opts.EndSpec, loc)
	if err != nil {
		return report.TimeWindow{}, err
	}
	return report.NewWindow(start, end)
}

// processProject runs one project through fetch -> aggregate -> build ->
// render -> deliver. Everything that can go wrong is converted into the
// returned outcome; nothing propagates past the project boundary.
func (a *App) processProject(ctx context.Context, p config.Project) (Outcome, string) {
	window, err := a.projectWindow(p)
	if err != nil {
		return OutcomeFailed, err.Error()
	}

	a.logger.Info("processing project", "project", p.Key, "url", p.URL, "window", window.String())

	records, err := a.fetch(ctx, p, window)
	if err != nil {
		a.logger.Error("activity fetch failed", "project", p.Key, "error", err)
		return OutcomeFailed, err.Error()
	}

	digests := report.Aggregate(records)

	var commits map[string][]string
	if p.Source != nil && digests.Len() > 0 {
		commits = a.link(ctx, p.Source, issueKeys(records))
	}

	rep := report.BuildReport(p, window, digests, commits)

	if rep.IsEmpty() {
		a.logger.Warn("no activity in window", "project", p.Key, "window", window.String())
		if err := a.sendNoWorklog(ctx, rep); err != nil {
			a.logger.Error("failed to send no-activity mail", "project", p.Key, "error", err)
			return OutcomeFailed, err.Error()
		}
		return OutcomeEmpty, ""
	}

	if err := a.deliver(ctx, rep); err != nil {
		a.logger.Error("report delivery failed", "project", p.Key, "error", err)
		return OutcomeFailed, err.Error()
	}

	a.logger.Info("project reports delivered",
		"project", p.Key, "actors", digests.Len(), "records", rep.TotalRecords())
	return OutcomeSucceeded, ""
}

func (a *App) deliver(ctx context.Context, rep *report.ProjectReport) error {
	loc := rep.Window.Start.Location()
	publishDate := time.Now().In(loc).Format("02-Jan-2006")
	outputDir := filepath.Join(a.opts.BasePath, "reports", rep.Project.Key, publishDate)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	managerPath, err := a.renderer.RenderManager(rep, outputDir)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s DSR Report %s | manager digest", rep.Project.Key, publishDate)
	if err := a.sendReport(ctx, subject, rep.Project.Manager, nil, managerPath); err != nil {
		return err
	}

	for _, actor := range rep.Actors() {
		path, err := a.renderer.RenderActor(rep, actor, outputDir)
		if err != nil {
			return err
		}
		to, cc := actorRecipients(actor, rep.Project.Manager)
		subject := fmt.Sprintf("%s DSR Report %s | %s", rep.Project.Key, publishDate, actor)
		if !strings.Contains(actor, "@") {
			a.logger.Warn("actor identity is not an email address, sending to managers only",
				"project", rep.Project.Key, "actor", actor)
		}
		if err := a.sendReport(ctx, subject, to, cc, path); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) sendReport(ctx context.Context, subject string, to, cc []string, path string) error {
	msg := &mail.Message{
		Subject: subject,
		From:    a.opts.From,
		To:      to,
		Cc:      cc,
	}
	if a.renderer.Extension() == "html" {
		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading rendered report: %w", err)
		}
		msg.HTMLBody = string(body)
		if a.opts.Attach {
			msg.Attachments = []string{path}
		}
	} else {
		msg.HTMLBody = fmt.Sprintf("<b>The %s report is attached.</b>", a.renderer.Extension())
		msg.Attachments = []string{path}
	}
	return a.mailer.Send(ctx, msg)
}

// sendNoWorklog implements the empty-report rule: exactly one mail, to the
// manager list only, and no per-actor mails.
func (a *App) sendNoWorklog(ctx context.Context, rep *report.ProjectReport) error {
	loc := rep.Window.Start.Location()
	publishDate := time.Now().In(loc).Format("02-Jan-2006")
	body := fmt.Sprintf("<b>There is no worklog activity on project [%s] for the report window %s</b>",
		rep.Project.Key, rep.Window.String())
	return a.mailer.Send(ctx, &mail.Message{
		Subject:  fmt.Sprintf("No DSR Report for %s on %s", rep.Project.Key, publishDate),
		From:     a.opts.From,
		To:       rep.Project.Manager,
		HTMLBody: body,
	})
}

func (a *App) sendRunSummary(ctx context.Context) error {
	windowLabel := "previous calendar day (per project timezone)"
	if a.opts.StartSpec != "" {
		windowLabel = fmt.Sprintf("[%s] - [%s]", a.opts.StartSpec, a.opts.EndSpec)
	}
	body := a.summary.Finalize(windowLabel)

	msg := &mail.Message{
		Subject:  fmt.Sprintf("JIRA DSR Report | Daily Run Summary | %s | run %s", time.Now().Format("02-Jan-2006"), a.opts.RunID),
		From:     a.opts.From,
		To:       []string{a.opts.SummaryTo},
		HTMLBody: body,
	}
	if a.opts.LogPath != "" {
		msg.Attachments = []string{a.opts.LogPath}
	}
	a.logger.Info("sending run summary", "to", a.opts.SummaryTo, "run_id", a.opts.RunID)
	return a.mailer.Send(ctx, msg)
}

func (a *App) rotate() {
	reportsDir := filepath.Join(a.opts.BasePath, "reports")
	if n, err := fsutil.Rotate(reportsDir, "*/*/*", a.opts.Retention, false); err != nil {
		a.logger.Warn("report rotation failed", "error", err)
	} else if n > 0 {
		a.logger.Info("rotated old reports", "removed", n)
	}

	logsDir := filepath.Join(a.opts.BasePath, "logs")
	if n, err := fsutil.Rotate(logsDir, "*.log", a.opts.Retention, true); err != nil {
		a.logger.Warn("log rotation failed", "error", err)
	} else if n > 0 {
		a.logger.Info("archived old logs", "archived", n)
	}
}

func issueKeys(records []report.ActivityRecord) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, rec := range records {
		if !seen[rec.IssueKey] {
			seen[rec.IssueKey] = true
			keys = append(keys, rec.IssueKey)
		}
	}
	return keys
}

func actorRecipients(actor string, managers []string) (to, cc []string) {
	if strings.Contains(actor, "@") {
		return []string{actor}, managers
	}
	return managers, nil
}
