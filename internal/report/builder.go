package report

import (
	"github.com/forgeahead/jiradsr/internal/config"
)

// ProjectReport is the render-ready model for one project and one window.
// It is fully formed on construction and read-only afterwards; a concurrent
// reader sees either the whole report or nothing.
type ProjectReport struct {
	Project config.Project
	Window  TimeWindow

	actors  []string
	digests map[string]ActorDigest
}

// BuildReport joins the aggregated digests with commit references looked up
// per issue key. Inputs are never mutated: records are copied before commit
// refs are attached, and a record with no matching commits keeps an empty
// ref list.
func BuildReport(project config.Project, window TimeWindow, digests *Digests, commits map[string][]string) *ProjectReport {
	r := &ProjectReport{
		Project: project,
		Window:  window,
		digests: make(map[string]ActorDigest),
	}
	for _, actor := range digests.Actors() {
		src, _ := digests.Get(actor)
		dig := ActorDigest{
			Actor:      src.Actor,
			Records:    make([]ActivityRecord, len(src.Records)),
			TotalCount: src.TotalCount,
		}
		for i, rec := range src.Records {
			if refs := commits[rec.IssueKey]; len(refs) > 0 {
				rec.CommitRefs = append([]string(nil), refs...)
			} else {
				rec.CommitRefs = []string{}
			}
			dig.Records[i] = rec
		}
		r.actors = append(r.actors, src.Actor)
		r.digests[actorKey(src.Actor)] = dig
	}
	return r
}

// IsEmpty reports whether the window held no activity at all. An empty
// report triggers the manager-only "no worklog" mail instead of per-actor
// reports.
func (r *ProjectReport) IsEmpty() bool {
	return len(r.actors) == 0
}

// Actors returns actor display names in stable aggregation order.
func (r *ProjectReport) Actors() []string {
	return append([]string(nil), r.actors...)
}

// Digest returns one actor's digest.
func (r *ProjectReport) Digest(actor string) (ActorDigest, bool) {
	dig, ok := r.digests[actorKey(actor)]
	return dig, ok
}

// TotalRecords is the record count across all actors.
func (r *ProjectReport) TotalRecords() int {
	total := 0
	for _, dig := range r.digests {
		total += dig.TotalCount
	}
	return total
}
