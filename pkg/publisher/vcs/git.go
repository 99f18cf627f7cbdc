package vcs

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

// Commit is the subset of commit data the publisher relies on.
type Commit struct {
	Hash        string
	CommittedAt time.Time
}

// Repository reads commit history of the content repository.
type Repository interface {
	// Commit resolves rev (hash, branch or tag) to a commit
	Commit(ctx context.Context, rev string) (Commit, error)

	// Diff lists the paths changed between two revisions, limited to the
	// given path prefixes when any are supplied
	Diff(ctx context.Context, from, to string, prefixes ...string) ([]string, error)
}

// Ensure *Git implements Repository interface
var _ Repository = (*Git)(nil)

// Git is a Repository backed by a local clone opened with go-git.
type Git struct {
	repo *git.Repository
}

// Open opens the repository at path.
func Open(path string) (*Git, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, apperrors.WrapVCS(err, "open repository "+path)
	}
	return &Git{repo: repo}, nil
}

// New wraps an already opened repository.
func New(repo *git.Repository) *Git {
	return &Git{repo: repo}
}

func (g *Git) commitObject(rev string) (*object.Commit, error) {
	hash, err := g.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, apperrors.WrapVCS(err, "resolve revision "+rev)
	}
	c, err := g.repo.CommitObject(*hash)
	if err != nil {
		return nil, apperrors.WrapVCS(err, "read commit "+rev)
	}
	return c, nil
}

func (g *Git) Commit(ctx context.Context, rev string) (Commit, error) {
	if err := ctx.Err(); err != nil {
		return Commit{}, err
	}
	c, err := g.commitObject(rev)
	if err != nil {
		return Commit{}, err
	}
	return Commit{Hash: c.Hash.String(), CommittedAt: c.Committer.When.UTC()}, nil
}

func (g *Git) Diff(ctx context.Context, from, to string, prefixes ...string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fromCommit, err := g.commitObject(from)
	if err != nil {
		return nil, err
	}
	toCommit, err := g.commitObject(to)
	if err != nil {
		return nil, err
	}
	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, apperrors.WrapVCS(err, "read tree of "+from)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, apperrors.WrapVCS(err, "read tree of "+to)
	}

	changes, err := object.DiffTreeWithOptions(ctx, fromTree, toTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, apperrors.WrapVCS(err, "diff "+from+".."+to)
	}

	seen := make(map[string]struct{})
	for _, change := range changes {
		for _, name := range []string{change.From.Name, change.To.Name} {
			if name == "" || !hasAnyPrefix(name, prefixes) {
				continue
			}
			seen[name] = struct{}{}
		}
	}

	paths := make([]string, 0, len(seen))
	for name := range seen {
		paths = append(paths, name)
	}
	sort.Strings(paths)
	return paths, nil
}

func hasAnyPrefix(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
