package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrDisabled marks a project config that parsed cleanly but is switched off.
var ErrDisabled = errors.New("project is not enabled")

// Source describes the code review / source control system attached to a
// project. Commit lookups are optional enrichment, so the whole block may
// be absent from a config file.
type Source struct {
	Type     string `yaml:"type"`
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Repo     string `yaml:"repo"`
}

// Project is one tracked Jira project, loaded from a single YAML file
// under the conf directory.
type Project struct {
	Key      string   `yaml:"key"`
	URL      string   `yaml:"url"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	Manager  []string `yaml:"manager"`
	Timezone string   `yaml:"timezone"`
	Enabled  bool     `yaml:"enabled"`
	Source   *Source  `yaml:"source,omitempty"`
}

// Location resolves the project's IANA timezone.
func (p Project) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

// Identity is the uniqueness key for de-duplication: the same project key
// on two different servers is two different projects.
func (p Project) Identity() string {
	return p.Key + "|" + p.URL
}

func (p Project) Validate() error {
	if !p.Enabled {
		return ErrDisabled
	}
	if p.Key == "" {
		return fmt.Errorf("key is required")
	}
	if p.URL == "" {
		return fmt.Errorf("url is required")
	}
	if p.User == "" {
		return fmt.Errorf("user is required")
	}
	if len(p.Manager) == 0 {
		return fmt.Errorf("at least one manager email is required")
	}
	for _, m := range p.Manager {
		if !strings.Contains(m, "@") {
			return fmt.Errorf("manager address %q is not an email address", m)
		}
	}
	if _, err := p.Location(); err != nil {
		return err
	}
	if p.Source != nil {
		switch strings.ToUpper(p.Source.Type) {
		case "FISHEYE", "STASH":
		default:
			return fmt.Errorf("source type %q is not supported (want fisheye or stash)", p.Source.Type)
		}
		if p.Source.URL == "" || p.Source.Repo == "" {
			return fmt.Errorf("source url and repo are required when a source block is present")
		}
	}
	return nil
}

// Invalid pairs a config file with the reason it was rejected.
type Invalid struct {
	File string
	Err  error
}

// Skipped pairs a config file with the earlier file it duplicates.
type Skipped struct {
	File      string
	Key       string
	URL       string
	FirstSeen string
}

// LoadResult is everything LoadDir found: usable projects in file order,
// duplicates that were skipped, and files that failed validation.
type LoadResult struct {
	Projects []Project
	Skipped  []Skipped
	Invalid  []Invalid
}

// Load parses and validates a single project config file.
func Load(path string) (Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return Project{}, fmt.Errorf("reading config: %w", err)
	}
	defer f.Close()

	var p Project
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Project{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if err := p.Validate(); err != nil {
		return Project{}, err
	}
	return p, nil
}

// LoadDir loads every *.yaml / *.yml file in dir. One bad file never stops
// the rest from loading; duplicates on (key, url) keep the first occurrence
// only. Files are processed in lexical order so a run is reproducible.
func LoadDir(dir string) (*LoadResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading config directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	res := &LoadResult{}
	seen := make(map[string]string) // identity -> file that claimed it
	for _, f := range files {
		p, err := Load(f)
		if err != nil {
			res.Invalid = append(res.Invalid, Invalid{File: f, Err: err})
			continue
		}
		if first, dup := seen[p.Identity()]; dup {
			res.Skipped = append(res.Skipped, Skipped{File: f, Key: p.Key, URL: p.URL, FirstSeen: first})
			continue
		}
		seen[p.Identity()] = f
		res.Projects = append(res.Projects, p)
	}
	return res, nil
}
