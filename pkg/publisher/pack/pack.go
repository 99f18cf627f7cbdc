package pack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/go-logr/logr"
	"golang.org/x/mod/semver"

	"github.com/garunski/marketplace-publisher/pkg/publisher/config"
	"github.com/garunski/marketplace-publisher/pkg/publisher/deps"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

const (
	UserMetadataFile = "pack_metadata.json"
	MetadataFile     = "metadata.json"
	ChangelogFile    = "changelog.json"
	ReadmeFile       = "README.md"
	AuthorImageFile  = "Author_image.png"
	SignatureFile    = "signatures.sf"
	ReleaseNotesDir  = "ReleaseNotes"
	TestPlaybooksDir = "TestPlaybooks"
)

// DefaultMarketplaces applies to packs that do not declare any.
var DefaultMarketplaces = []string{config.MarketplaceXSOAR, config.MarketplaceV2}

// UserMetadata is the author supplied pack_metadata.json.
type UserMetadata struct {
	Name              string                     `json:"name"`
	ID                string                     `json:"id,omitempty"`
	Description       string                     `json:"description"`
	Support           string                     `json:"support"`
	CurrentVersion    string                     `json:"currentVersion"`
	Author            string                     `json:"author"`
	URL               string                     `json:"url,omitempty"`
	Email             string                     `json:"email,omitempty"`
	Created           string                     `json:"created,omitempty"`
	Categories        []string                   `json:"categories,omitempty"`
	Tags              []string                   `json:"tags,omitempty"`
	UseCases          []string                   `json:"useCases,omitempty"`
	Keywords          []string                   `json:"keywords,omitempty"`
	Price             int                        `json:"price,omitempty"`
	VendorID          string                     `json:"vendorId,omitempty"`
	PartnerID         string                     `json:"partnerId,omitempty"`
	PartnerName       string                     `json:"partnerName,omitempty"`
	DisableMonthly    bool                       `json:"disableMonthly,omitempty"`
	ContentCommitHash string                     `json:"contentCommitHash,omitempty"`
	Hidden            bool                       `json:"hidden,omitempty"`
	Marketplaces      []string                   `json:"marketplaces,omitempty"`
	Dependencies      map[string]deps.Dependency `json:"dependencies,omitempty"`
}

// ImageRecord is an image uploaded for a pack.
type ImageRecord struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Pack is one content pack of the run. A pack is owned by a single worker
// at a time; it is not safe for concurrent use.
type Pack struct {
	Name   string
	Path   string
	Status Status

	User                  UserMetadata
	Version               string
	PublishedVersion      string
	Marketplaces          []string
	Dependencies          []string
	AllLevelsDependencies []string
	Hidden                bool

	ArtifactPath      string
	PublicURL         string
	Aggregated        bool
	AggregationString string

	Modified             bool
	ModifiedReleaseNotes []string
	MissingDependencies  bool

	ContentItems      map[string][]ContentItem
	AuthorImage       *ImageRecord
	IntegrationImages []ImageRecord
	PreviewImages     []ImageRecord

	logger logr.Logger
}

func New(name, path string, logger logr.Logger) *Pack {
	return &Pack{
		Name:   name,
		Path:   path,
		Status: StatusNew,
		logger: logger.WithValues("pack", name),
	}
}

// LoadMetadata reads pack_metadata.json from the working copy.
func (p *Pack) LoadMetadata() error {
	path := filepath.Join(p.Path, UserMetadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.WrapMetadata(err, "read "+path)
	}

	var user UserMetadata
	if err := json.Unmarshal(data, &user); err != nil {
		return apperrors.WrapMetadata(err, "decode "+path)
	}
	if user.CurrentVersion == "" {
		user.CurrentVersion = "1.0.0"
	}
	if !semver.IsValid("v" + user.CurrentVersion) {
		return fmt.Errorf("%w: pack %s has invalid version %q", apperrors.ErrInvalid, p.Name, user.CurrentVersion)
	}

	p.User = user
	p.Version = user.CurrentVersion
	p.Hidden = user.Hidden
	p.Marketplaces = user.Marketplaces
	if len(p.Marketplaces) == 0 {
		p.Marketplaces = slices.Clone(DefaultMarketplaces)
	}
	p.Dependencies = make([]string, 0, len(user.Dependencies))
	for name := range user.Dependencies {
		p.Dependencies = append(p.Dependencies, name)
	}
	slices.Sort(p.Dependencies)

	p.logger.V(1).Info("loaded user metadata", "version", p.Version, "marketplaces", p.Marketplaces)
	return nil
}

// IsRelevantFor reports whether the pack targets marketplace.
func (p *Pack) IsRelevantFor(marketplace string) bool {
	return slices.Contains(p.Marketplaces, marketplace)
}

// ZipPath is where the signed artifact is written.
func (p *Pack) ZipPath() string {
	return filepath.Clean(p.Path) + ".zip"
}

// StoragePath is the object name of the pack artifact.
func (p *Pack) StoragePath(basePath string) string {
	return filepath.ToSlash(filepath.Join(basePath, p.Name, p.Version, p.Name+".zip"))
}

// Cleanup removes the working copy and artifact of the pack.
func (p *Pack) Cleanup() {
	if err := os.RemoveAll(p.Path); err != nil {
		p.logger.Error(err, "failed to remove pack working directory", "path", p.Path)
	}
	if p.ArtifactPath != "" {
		if err := os.Remove(p.ArtifactPath); err != nil && !os.IsNotExist(err) {
			p.logger.Error(err, "failed to remove pack artifact", "path", p.ArtifactPath)
		}
	}
}

// Fail moves the pack to a failure status and cleans up its working files.
func (p *Pack) Fail(status Status, err error) {
	p.Status = status
	p.logger.Error(err, "pack failed", "status", status.String())
	p.Cleanup()
}

func (p *Pack) Logger() logr.Logger {
	return p.logger
}
