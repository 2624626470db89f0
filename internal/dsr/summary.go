package dsr

import (
	"fmt"
	"strings"
)

// Outcome is the terminal classification of one project in a run.
type Outcome string

const (
	OutcomeValidationFailed Outcome = "validation-failed"
	OutcomeSkipped          Outcome = "skipped-duplicate"
	OutcomeSucceeded        Outcome = "succeeded"
	OutcomeEmpty            Outcome = "succeeded-empty"
	OutcomeFailed           Outcome = "failed"
)

// SummaryEntry is one recorded project outcome.
type SummaryEntry struct {
	Project string
	Outcome Outcome
	Detail  string
}

// Summary accumulates per-project outcomes across a run, in processing
// order, so the entry list doubles as an audit trail. Finalize may be
// called exactly once, at the end of the run; it is a programming error
// to finalize mid-run or record afterwards, and both panic.
type Summary struct {
	entries   []SummaryEntry
	finalized bool
}

func NewSummary() *Summary {
	return &Summary{}
}

func (s *Summary) Record(project string, outcome Outcome, detail string) {
	if s.finalized {
		panic("dsr: Record called after Finalize")
	}
	s.entries = append(s.entries, SummaryEntry{Project: project, Outcome: outcome, Detail: detail})
}

// Entries returns the recorded outcomes in processing order.
func (s *Summary) Entries() []SummaryEntry {
	return append([]SummaryEntry(nil), s.entries...)
}

// Finalize partitions the outcomes and renders the HTML body of the run
// summary email.
func (s *Summary) Finalize(windowLabel string) string {
	if s.finalized {
		panic("dsr: Finalize called twice")
	}
	s.finalized = true

	var validation, success, empty, failed []string
	for _, e := range s.entries {
		line := e.Project
		if e.Detail != "" {
			line = fmt.Sprintf("%s — %s", e.Project, e.Detail)
		}
		switch e.Outcome {
		case OutcomeValidationFailed, OutcomeSkipped:
			validation = append(validation, line)
		case OutcomeSucceeded:
			success = append(success, line)
		case OutcomeEmpty:
			empty = append(empty, line)
		case OutcomeFailed:
			failed = append(failed, line)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h3>Report date range: %s</h3>", windowLabel)
	writeSection(&b, "Config validation failed or skipped for projects", validation)
	writeSection(&b, "Reports successfully generated for projects", success)
	writeSection(&b, "No activity reports for projects", empty)
	writeSection(&b, "Report generation failed for projects", failed)
	b.WriteString("<b>Attachment is the log file generated for this run.</b>")
	return b.String()
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "<ul><h4>%s:</h4>", title)
	for _, item := range items {
		fmt.Fprintf(b, "<li>%s</li>", item)
	}
	b.WriteString("</ul>")
}
