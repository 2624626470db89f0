package jira

import (
	"fmt"
	"strings"
	"time"
)

// jiraTimeLayout is the timestamp format Jira Server emits in REST payloads.
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// Timestamp unmarshals Jira's non-RFC3339 timestamp format.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(jiraTimeLayout, s)
	if err != nil {
		// Some servers are configured to emit RFC3339.
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parsing jira timestamp %q: %w", s, err)
		}
	}
	t.Time = parsed
	return nil
}

type User struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// Identity prefers the email address as the actor identity, falling back
// to the login name, then the display name.
func (u User) Identity() string {
	if u.EmailAddress != "" {
		return u.EmailAddress
	}
	if u.Name != "" {
		return u.Name
	}
	return u.DisplayName
}

type Worklog struct {
	Author           User      `json:"author"`
	UpdateAuthor     User      `json:"updateAuthor"`
	Updated          Timestamp `json:"updated"`
	TimeSpentSeconds int       `json:"timeSpentSeconds"`
	Comment          string    `json:"comment"`
}

type worklogContainer struct {
	Total    int       `json:"total"`
	Worklogs []Worklog `json:"worklogs"`
}

type Comment struct {
	Author       User      `json:"author"`
	UpdateAuthor User      `json:"updateAuthor"`
	Updated      Timestamp `json:"updated"`
	Body         string    `json:"body"`
}

type commentContainer struct {
	Total    int       `json:"total"`
	Comments []Comment `json:"comments"`
}

type ChangeItem struct {
	Field      string `json:"field"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

type ChangeHistory struct {
	Author  User         `json:"author"`
	Created Timestamp    `json:"created"`
	Items   []ChangeItem `json:"items"`
}

type Changelog struct {
	Histories []ChangeHistory `json:"histories"`
}

type IssueFields struct {
	Summary string `json:"summary"`
	Status  struct {
		Name string `json:"name"`
	} `json:"status"`
	Project struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"project"`
	Worklog worklogContainer `json:"worklog"`
	Comment commentContainer `json:"comment"`
}

type Issue struct {
	Key       string      `json:"key"`
	Fields    IssueFields `json:"fields"`
	Changelog Changelog   `json:"changelog"`
}

type searchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

type projectResponse struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}
