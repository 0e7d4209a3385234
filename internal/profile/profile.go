// Package profile loads dashboard profiles: the dataset locations, segment
// description lookup, narrative text and optional donation-level pivot that
// parameterize one dashboard.
package profile

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/rfm-dashboard/internal/analysis"
	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var builtin embed.FS

// DefaultName is the profile used when none is configured.
const DefaultName = "donations"

// ErrNotFound is returned when no profile with the requested name exists.
var ErrNotFound = errors.New("profile not found")

// Profile is one dashboard definition. Segments is the authored lookup; its
// customer counts are displayed as-is and compared against live data.
type Profile struct {
	Name          string             `yaml:"name"`
	LookupVersion string             `yaml:"lookup_version"`
	Title         string             `yaml:"title"`
	Subheader     string             `yaml:"subheader"`
	Intro         string             `yaml:"intro"`
	TogglePrompt  string             `yaml:"toggle_prompt"`
	DonorsURL     string             `yaml:"donors_url"`
	SubsegmentURL string             `yaml:"subsegments_url"`
	Pivot         bool               `yaml:"pivot"`
	PivotTitle    string             `yaml:"pivot_title"`
	Segments      []analysis.Segment `yaml:"segments"`
	ChannelNotes  string             `yaml:"channel_notes"`
	NextActions   []string           `yaml:"next_actions"`
	Palette       []string           `yaml:"palette"`
}

// Load resolves a profile by name. Files in dir (named <name>.yaml or
// <name>.yml) take precedence over the built-in profiles. dir may be empty.
func Load(name, dir string) (*Profile, error) {
	if name == "" {
		name = DefaultName
	}
	if dir != "" {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, name+ext)
			b, err := os.ReadFile(path)
			if err == nil {
				return parse(b, path)
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read profile: %w", err)
			}
		}
	}
	b, err := builtin.ReadFile("profiles/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return parse(b, "builtin:"+name)
}

// Parse decodes a profile document.
func Parse(data []byte) (*Profile, error) { return parse(data, "") }

func parse(data []byte, origin string) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		if origin != "" {
			return nil, fmt.Errorf("parse profile %s: %w", origin, err)
		}
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	sort.SliceStable(p.Segments, func(i, j int) bool { return p.Segments[i].Code < p.Segments[j].Code })
	return &p, nil
}

// List returns the names of all available profiles, built-in and in dir.
func List(dir string) ([]string, error) {
	seen := map[string]bool{}
	entries, err := fs.ReadDir(builtin, "profiles")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		seen[strings.TrimSuffix(e.Name(), ".yaml")] = true
	}
	if dir != "" {
		local, err := os.ReadDir(dir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read profiles dir: %w", err)
		}
		for _, e := range local {
			if e.IsDir() {
				continue
			}
			n := e.Name()
			switch filepath.Ext(n) {
			case ".yaml", ".yml":
				seen[strings.TrimSuffix(n, filepath.Ext(n))] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// Override replaces dataset locations when the given values are non-empty.
func (p *Profile) Override(donorsURL, subsegmentsURL string) {
	if donorsURL != "" {
		p.DonorsURL = donorsURL
	}
	if subsegmentsURL != "" {
		p.SubsegmentURL = subsegmentsURL
	}
}

// HasPivot reports whether the donation-level table is part of this dashboard.
func (p *Profile) HasPivot() bool { return p.Pivot }

// Labels maps segment codes to display labels.
func (p *Profile) Labels() map[analysis.Code]string { return analysis.Labels(p.Segments) }

// Validate checks the profile is usable for rendering.
func (p *Profile) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(p.DonorsURL) == "" {
		problems = append(problems, "donors_url is required")
	}
	if p.Pivot && strings.TrimSpace(p.SubsegmentURL) == "" {
		problems = append(problems, "subsegments_url is required when pivot is enabled")
	}
	seen := map[analysis.Code]bool{}
	for _, s := range p.Segments {
		if s.Code == analysis.UnclassifiedCode {
			problems = append(problems, fmt.Sprintf("segment code %d is reserved", s.Code))
		}
		if seen[s.Code] {
			problems = append(problems, fmt.Sprintf("duplicate segment code %d", s.Code))
		}
		seen[s.Code] = true
		if s.CustomerCount < 0 {
			problems = append(problems, fmt.Sprintf("segment %d has a negative customer_count", s.Code))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid profile %q: %s", p.Name, strings.Join(problems, "; "))
	}
	return nil
}
