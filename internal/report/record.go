package report

import (
	"fmt"
	"time"
)

// Kind classifies a normalized activity record. The fetcher tags every
// event at the API boundary so nothing downstream has to look at raw
// tracker payloads again.
type Kind string

const (
	KindWorklog    Kind = "worklog"
	KindComment    Kind = "comment"
	KindTransition Kind = "transition"
	KindResolution Kind = "resolution"
)

// ActivityRecord is one unit of work attributable to a single actor.
type ActivityRecord struct {
	Actor      string
	IssueKey   string
	Kind       Kind
	Timestamp  time.Time
	Detail     string
	CommitRefs []string
}

// ActorDigest is the ordered activity of one actor within a window.
// Records are sorted by timestamp, ties broken by issue key then kind.
type ActorDigest struct {
	Actor      string
	Records    []ActivityRecord
	TotalCount int
}

// TimeWindow is the half-open interval [Start, End) activity is queried
// for. A record stamped exactly at End belongs to the next window, never
// to this one, so adjacent daily runs never double-count.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window and rejects a start at or after the end.
// An inverted window is an operator mistake, not a pipeline failure.
func NewWindow(start, end time.Time) (TimeWindow, error) {
	if !start.Before(end) {
		return TimeWindow{}, fmt.Errorf("window start %s is not before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeWindow{Start: start, End: end}, nil
}

// PreviousDay is the default window: the previous calendar day in loc.
func PreviousDay(now time.Time, loc *time.Location) TimeWindow {
	local := now.In(loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return TimeWindow{Start: end.AddDate(0, 0, -1), End: end}
}

// Contains reports whether t falls inside the half-open interval.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s - %s)", w.Start.Format("2006-01-02 15:04 MST"), w.End.Format("2006-01-02 15:04 MST"))
}
