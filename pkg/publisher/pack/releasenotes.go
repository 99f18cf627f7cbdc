package pack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
)

// ChangelogEntry is one version in changelog.json.
type ChangelogEntry struct {
	ReleaseNotes string `json:"releaseNotes"`
	DisplayName  string `json:"displayName"`
	Released     string `json:"released"`
}

type Changelog map[string]ChangelogEntry

// LatestVersion returns the highest version in the changelog.
func (c Changelog) LatestVersion() string {
	latest := ""
	for v := range c {
		if latest == "" || compareVersions(v, latest) > 0 {
			latest = v
		}
	}
	return latest
}

func compareVersions(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

// PrepareReleaseNotes extends the published changelog with the release
// notes of this build and writes changelog.json into the working copy.
// Several new release notes are aggregated into one entry at the highest
// version. notUpdated is true when the index already holds a newer version
// than this build of the pack; nothing is written then.
func (p *Pack) PrepareReleaseNotes(tree *index.Tree, buildNumber string, now time.Time) (notUpdated bool, err error) {
	changelog := Changelog{}
	if data, ok := tree.File(p.Name, ChangelogFile); ok {
		if err := json.Unmarshal(data, &changelog); err != nil {
			return false, apperrors.WrapMetadata(err, "decode index changelog of "+p.Name)
		}
	}

	latest := changelog.LatestVersion()
	if latest != "" && compareVersions(latest, p.Version) > 0 {
		p.logger.Info("index holds a newer version than this build", "indexVersion", latest, "version", p.Version)
		return true, nil
	}

	notes, err := p.readReleaseNotes()
	if err != nil {
		return false, err
	}

	var fresh []string
	for v := range notes {
		if latest == "" || compareVersions(v, latest) > 0 {
			fresh = append(fresh, v)
		}
	}
	sort.Slice(fresh, func(i, j int) bool { return compareVersions(fresh[i], fresh[j]) < 0 })

	released := now.UTC().Format(index.ModifiedLayout)
	p.Aggregated = false
	p.AggregationString = ""

	switch {
	case len(fresh) > 1:
		top := fresh[len(fresh)-1]
		var parts []string
		for _, v := range fresh {
			parts = append(parts, strings.TrimSpace(notes[v]))
		}
		changelog[top] = ChangelogEntry{
			ReleaseNotes: strings.Join(parts, "\n"),
			DisplayName:  displayName(top, buildNumber),
			Released:     released,
		}
		p.Aggregated = true
		p.AggregationString = fmt.Sprintf("[%s] => %s", strings.Join(fresh, ", "), top)
	case len(fresh) == 1:
		v := fresh[0]
		changelog[v] = ChangelogEntry{
			ReleaseNotes: strings.TrimSpace(notes[v]),
			DisplayName:  displayName(v, buildNumber),
			Released:     released,
		}
	case len(changelog) == 0:
		changelog[p.Version] = ChangelogEntry{
			ReleaseNotes: "Initial release",
			DisplayName:  displayName(p.Version, buildNumber),
			Released:     released,
		}
	}

	data, err := json.MarshalIndent(changelog, "", "    ")
	if err != nil {
		return false, apperrors.WrapMetadata(err, "encode changelog of "+p.Name)
	}
	if err := os.WriteFile(filepath.Join(p.Path, ChangelogFile), data, 0644); err != nil {
		return false, apperrors.WrapMetadata(err, "write changelog of "+p.Name)
	}
	return false, nil
}

// readReleaseNotes maps versions to release note text. Files are named
// after the version with underscores, e.g. 1_0_2.md.
func (p *Pack) readReleaseNotes() (map[string]string, error) {
	dir := filepath.Join(p.Path, ReleaseNotesDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, apperrors.WrapMetadata(err, "read "+dir)
	}

	notes := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		v := strings.ReplaceAll(strings.TrimSuffix(e.Name(), ".md"), "_", ".")
		if !semver.IsValid("v" + v) {
			return nil, fmt.Errorf("%w: release notes file %s has no valid version", apperrors.ErrInvalid, e.Name())
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, apperrors.WrapMetadata(err, "read release notes "+e.Name())
		}
		notes[v] = string(data)
	}
	return notes, nil
}

func displayName(version, buildNumber string) string {
	return version + " - " + buildNumber
}
