package report

import (
	"sort"
	"strings"
)

// UnattributedActor buckets records whose actor identity is empty.
// Dropping them silently would hide work from the report.
const UnattributedActor = "unattributed"

// Digests is the per-actor grouping produced by Aggregate. Actor iteration
// follows first-seen order, which is stable for a given input set.
type Digests struct {
	order   []string
	byActor map[string]*ActorDigest
}

// Aggregate groups records by actor identity (trimmed, case-insensitive)
// and orders each group by timestamp, then issue key, then kind. The result
// is deterministic: any permutation of the same record set aggregates to
// identical digests.
func Aggregate(records []ActivityRecord) *Digests {
	d := &Digests{byActor: make(map[string]*ActorDigest)}
	for _, rec := range records {
		key := actorKey(rec.Actor)
		dig, ok := d.byActor[key]
		if !ok {
			display := strings.TrimSpace(rec.Actor)
			if display == "" {
				display = UnattributedActor
			}
			dig = &ActorDigest{Actor: display}
			d.byActor[key] = dig
			d.order = append(d.order, key)
		}
		dig.Records = append(dig.Records, rec)
	}

	// First-seen order depends on input order; canonicalize it by each
	// group's earliest record so shuffled inputs aggregate identically.
	sort.SliceStable(d.order, func(i, j int) bool {
		return recordLess(earliest(d.byActor[d.order[i]]), earliest(d.byActor[d.order[j]]))
	})

	for _, dig := range d.byActor {
		sort.Slice(dig.Records, func(i, j int) bool {
			return recordLess(dig.Records[i], dig.Records[j])
		})
		dig.TotalCount = len(dig.Records)
	}
	return d
}

// Actors returns actor display names in iteration order.
func (d *Digests) Actors() []string {
	actors := make([]string, 0, len(d.order))
	for _, key := range d.order {
		actors = append(actors, d.byActor[key].Actor)
	}
	return actors
}

// Get looks up one actor's digest by display name or identity key.
func (d *Digests) Get(actor string) (*ActorDigest, bool) {
	dig, ok := d.byActor[actorKey(actor)]
	return dig, ok
}

// Len is the number of distinct actors.
func (d *Digests) Len() int {
	return len(d.order)
}

func actorKey(actor string) string {
	key := strings.ToLower(strings.TrimSpace(actor))
	if key == "" {
		return UnattributedActor
	}
	return key
}

func earliest(d *ActorDigest) ActivityRecord {
	min := d.Records[0]
	for _, rec := range d.Records[1:] {
		if recordLess(rec, min) {
			min = rec
		}
	}
	return min
}

func recordLess(a, b ActivityRecord) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if a.IssueKey != b.IssueKey {
		return a.IssueKey < b.IssueKey
	}
	return a.Kind < b.Kind
}
