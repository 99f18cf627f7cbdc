package pack

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/garunski/marketplace-publisher/pkg/publisher/deps"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
)

// DependencyInfo is a dependency as published in metadata.json.
type DependencyInfo struct {
	Mandatory     bool   `json:"mandatory"`
	MinVersion    string `json:"minVersion"`
	Name          string `json:"name,omitempty"`
	Author        string `json:"author,omitempty"`
	Certification string `json:"certification,omitempty"`
}

// Metadata is the index facing metadata.json of a pack.
type Metadata struct {
	ID                    string                    `json:"id"`
	Name                  string                    `json:"name"`
	Description           string                    `json:"description"`
	Created               string                    `json:"created"`
	Updated               string                    `json:"updated"`
	Support               string                    `json:"support"`
	Author                string                    `json:"author"`
	AuthorImage           string                    `json:"authorImage,omitempty"`
	Certification         string                    `json:"certification"`
	Price                 int                       `json:"price"`
	Premium               bool                      `json:"premium"`
	VendorID              string                    `json:"vendorId,omitempty"`
	PartnerID             string                    `json:"partnerId,omitempty"`
	PartnerName           string                    `json:"partnerName,omitempty"`
	ContentCommitHash     string                    `json:"contentCommitHash,omitempty"`
	CurrentVersion        string                    `json:"currentVersion"`
	VersionInfo           string                    `json:"versionInfo"`
	Commit                string                    `json:"commit"`
	Tags                  []string                  `json:"tags"`
	Categories            []string                  `json:"categories"`
	UseCases              []string                  `json:"useCases"`
	Keywords              []string                  `json:"keywords"`
	Marketplaces          []string                  `json:"marketplaces"`
	Hidden                bool                      `json:"hidden"`
	Dependencies          map[string]DependencyInfo `json:"dependencies"`
	AllLevelsDependencies []string                  `json:"allLevelsDependencies"`
	ContentItems          map[string][]ContentItem  `json:"contentItems"`
	IntegrationImages     []ImageRecord             `json:"integrations,omitempty"`
}

// FormatOptions carries what metadata formatting reads besides the pack.
type FormatOptions struct {
	Tree        *index.Tree
	Graph       *deps.Graph
	Mapping     deps.Mapping
	BuildNumber string
	Commit      string
	Now         time.Time
}

// PublishedMetadata decodes the metadata.json of name in tree.
func PublishedMetadata(tree *index.Tree, name string) (Metadata, bool, error) {
	data, ok := tree.File(name, MetadataFile)
	if !ok {
		return Metadata{}, false, nil
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return Metadata{}, true, apperrors.WrapMetadata(err, "decode index metadata of "+name)
	}
	return md, true, nil
}

// DetectModified marks the pack modified when it is new to the index or
// any of its files changed in diff, and records changed release notes.
func (p *Pack) DetectModified(tree *index.Tree, packsFolder string, diff []string) error {
	published, found, err := PublishedMetadata(tree, p.Name)
	if err != nil {
		return err
	}
	p.PublishedVersion = published.CurrentVersion

	prefix := p.RepoPrefix(packsFolder)
	notesPrefix := prefix + ReleaseNotesDir + "/"
	p.Modified = !found
	p.ModifiedReleaseNotes = nil
	for _, changed := range diff {
		if !strings.HasPrefix(changed, prefix) {
			continue
		}
		p.Modified = true
		if strings.HasPrefix(changed, notesPrefix) && strings.HasSuffix(changed, ".md") {
			p.ModifiedReleaseNotes = append(p.ModifiedReleaseNotes, changed)
		}
	}

	p.logger.V(1).Info("detected modified files", "modified", p.Modified, "releaseNotes", len(p.ModifiedReleaseNotes))
	return nil
}

// FormatMetadata writes metadata.json into the working copy. With
// dependenciesOnly set it rewrites only the dependency fields of the file
// written by an earlier call. It flags the pack when a dependency has no
// index entry yet.
func (p *Pack) FormatMetadata(opts FormatOptions, dependenciesOnly bool) error {
	path := filepath.Join(p.Path, MetadataFile)

	var md Metadata
	if dependenciesOnly {
		data, err := os.ReadFile(path)
		if err != nil {
			return apperrors.WrapMetadata(err, "read "+path)
		}
		if err := json.Unmarshal(data, &md); err != nil {
			return apperrors.WrapMetadata(err, "decode "+path)
		}
	} else {
		built, err := p.buildMetadata(opts)
		if err != nil {
			return err
		}
		md = built
	}

	if err := p.resolveDependencies(opts, &md); err != nil {
		return err
	}

	data, err := json.MarshalIndent(md, "", "    ")
	if err != nil {
		return apperrors.WrapMetadata(err, "encode "+path)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.WrapMetadata(err, "write "+path)
	}
	return nil
}

func (p *Pack) buildMetadata(opts FormatOptions) (Metadata, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	stamp := now.UTC().Format(index.ModifiedLayout)

	published, _, err := PublishedMetadata(opts.Tree, p.Name)
	if err != nil {
		return Metadata{}, err
	}
	created := p.User.Created
	if created == "" {
		created = published.Created
	}
	if created == "" {
		created = stamp
	}
	updated := published.Updated
	if p.Modified || updated == "" {
		updated = stamp
	}

	u := p.User
	md := Metadata{
		ID:                p.Name,
		Name:              u.Name,
		Description:       u.Description,
		Created:           created,
		Updated:           updated,
		Support:           u.Support,
		Author:            u.Author,
		Certification:     certification(u.Support),
		Price:             u.Price,
		Premium:           u.Price > 0,
		VendorID:          u.VendorID,
		PartnerID:         u.PartnerID,
		PartnerName:       u.PartnerName,
		ContentCommitHash: u.ContentCommitHash,
		CurrentVersion:    p.Version,
		VersionInfo:       opts.BuildNumber,
		Commit:            opts.Commit,
		Tags:              nonNil(u.Tags),
		Categories:        nonNil(u.Categories),
		UseCases:          nonNil(u.UseCases),
		Keywords:          nonNil(u.Keywords),
		Marketplaces:      nonNil(p.Marketplaces),
		Hidden:            p.Hidden,
		ContentItems:      p.ContentItems,
		IntegrationImages: p.IntegrationImages,
	}
	if md.ContentItems == nil {
		md.ContentItems = map[string][]ContentItem{}
	}
	if p.AuthorImage != nil {
		md.AuthorImage = p.AuthorImage.URL
	}
	return md, nil
}

// resolveDependencies fills the dependency fields from the graph and the
// index entries of the dependencies.
func (p *Pack) resolveDependencies(opts FormatOptions, md *Metadata) error {
	declared := map[string]deps.Dependency{}
	for name, d := range p.User.Dependencies {
		declared[name] = d
	}
	if rec, ok := opts.Mapping[p.Name]; ok {
		for name, d := range rec.Dependencies {
			declared[name] = d
		}
	}

	direct := p.Dependencies
	allLevels := []string{}
	if opts.Graph != nil {
		direct = opts.Graph.Direct(p.Name)
		allLevels = opts.Graph.Closure(p.Name)
	}
	p.Dependencies = direct
	p.AllLevelsDependencies = allLevels

	infos := make(map[string]DependencyInfo, len(direct))
	for _, name := range direct {
		d := declared[name]
		info := DependencyInfo{Mandatory: d.Mandatory, MinVersion: d.MinVersion}
		published, found, err := PublishedMetadata(opts.Tree, name)
		if err != nil {
			return err
		}
		if found {
			info.Name = published.Name
			info.Author = published.Author
			info.Certification = published.Certification
			if info.MinVersion == "" {
				info.MinVersion = published.CurrentVersion
			}
		}
		infos[name] = info
	}
	md.Dependencies = infos
	md.AllLevelsDependencies = allLevels

	candidates := append(append([]string{}, direct...), allLevels...)
	missing := deps.Missing(unique(candidates), opts.Tree.Has)
	p.MissingDependencies = len(missing) > 0
	if p.MissingDependencies {
		p.logger.Info("pack depends on packs missing from the index", "missing", missing)
	}
	return nil
}

func certification(support string) string {
	switch support {
	case "xsoar", "partner":
		return "certified"
	default:
		return ""
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func unique(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
