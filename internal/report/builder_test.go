package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeahead/jiradsr/internal/config"
)

func testProject() config.Project {
	return config.Project{
		Key:      "ABC",
		URL:      "https://jira.example.com",
		User:     "bot",
		Manager:  []string{"pm@example.com"},
		Timezone: "UTC",
		Enabled:  true,
	}
}

func TestBuildReport_JoinsCommitsByIssueKey(t *testing.T) {
	base := time.Date(2016, 4, 11, 9, 0, 0, 0, time.UTC)
	records := []ActivityRecord{
		rec("alice", "ABC-1", KindWorklog, base, "2h 0m"),
		rec("alice", "ABC-2", KindComment, base.Add(time.Hour), "note"),
		rec("bob", "ABC-1", KindComment, base.Add(2*time.Hour), "reply"),
	}
	digests := Aggregate(records)
	window := TimeWindow{Start: base.Add(-9 * time.Hour), End: base.Add(15 * time.Hour)}
	commits := map[string][]string{"ABC-1": {"a1b2c3d", "e4f5a6b"}}

	rep := BuildReport(testProject(), window, digests, commits)
	require.False(t, rep.IsEmpty())

	alice, ok := rep.Digest("alice")
	require.True(t, ok)
	assert.Equal(t, []string{"a1b2c3d", "e4f5a6b"}, alice.Records[0].CommitRefs)
	assert.Equal(t, []string{}, alice.Records[1].CommitRefs, "no match keeps an empty ref list")

	bob, ok := rep.Digest("bob")
	require.True(t, ok)
	assert.Equal(t, []string{"a1b2c3d", "e4f5a6b"}, bob.Records[0].CommitRefs)
}

func TestBuildReport_DoesNotMutateInputs(t *testing.T) {
	base := time.Date(2016, 4, 11, 9, 0, 0, 0, time.UTC)
	records := []ActivityRecord{rec("alice", "ABC-1", KindWorklog, base, "2h 0m")}
	digests := Aggregate(records)

	commits := map[string][]string{"ABC-1": {"a1b2c3d"}}
	rep := BuildReport(testProject(), TimeWindow{Start: base, End: base.Add(time.Hour)}, digests, commits)

	src, _ := digests.Get("alice")
	assert.Nil(t, src.Records[0].CommitRefs, "aggregated digests stay untouched")

	dig, _ := rep.Digest("alice")
	commits["ABC-1"][0] = "mutated"
	assert.Equal(t, "a1b2c3d", dig.Records[0].CommitRefs[0], "report holds its own copy of the refs")
}

func TestBuildReport_EmptyDigests(t *testing.T) {
	base := time.Date(2016, 4, 11, 0, 0, 0, 0, time.UTC)
	rep := BuildReport(testProject(), TimeWindow{Start: base, End: base.Add(24 * time.Hour)}, Aggregate(nil), nil)

	assert.True(t, rep.IsEmpty())
	assert.Empty(t, rep.Actors())
	assert.Equal(t, 0, rep.TotalRecords())
}
