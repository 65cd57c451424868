// Package git keeps a history of popup snapshots in a git repository using
// go-git, so no git binary is needed for local commits.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DefaultRemote is the remote name used for push and pull.
const DefaultRemote = "origin"

// ErrNoRemote is returned by push and pull when no remote is configured.
var ErrNoRemote = errors.New("git remote not configured")

// Status represents Git state following a commit attempt.
type Status struct {
	Committed bool   `json:"committed"`
	Hash      string `json:"hash,omitempty"`
}

// Repo describes the operations needed by the daemon.
type Repo interface {
	Commit(ctx context.Context, message string, files []string) (Status, error)
	Push(ctx context.Context) error
	Pull(ctx context.Context) error
}

// FilesystemRepo is a working-tree repository rooted at Path.
type FilesystemRepo struct {
	Path   string
	Branch string
	Author string
	Email  string

	repo *gogit.Repository
}

// Open opens the repository at path, initializing it on branch when absent.
func Open(path, branch string) (*FilesystemRepo, error) {
	if branch == "" {
		branch = "main"
	}
	r := &FilesystemRepo{Path: path, Branch: branch, Author: "popd", Email: "popd@localhost"}
	repo, err := gogit.PlainOpen(path)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		repo, err = gogit.PlainInitWithOptions(path, &gogit.PlainInitOptions{
			InitOptions: gogit.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(branch)},
		})
		if err == nil {
			err = writeIgnore(path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open git repo %s: %w", path, err)
	}
	r.repo = repo
	return r, nil
}

// Commit stages files and records a commit. A commit is skipped when the
// staged files carry no changes.
func (r *FilesystemRepo) Commit(ctx context.Context, message string, files []string) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return Status{}, err
	}
	for _, f := range files {
		rel, err := r.relative(f)
		if err != nil {
			return Status{}, err
		}
		if _, err := wt.Add(rel); err != nil {
			return Status{}, fmt.Errorf("stage %s: %w", rel, err)
		}
	}
	st, err := wt.Status()
	if err != nil {
		return Status{}, err
	}
	if !hasStaged(st) {
		return Status{}, nil
	}
	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: r.Author, Email: r.Email, When: time.Now()},
	})
	if err != nil {
		return Status{}, fmt.Errorf("commit: %w", err)
	}
	return Status{Committed: true, Hash: hash.String()}, nil
}

// Only JSON snapshots are tracked; runtime files share the profile directory.
const ignoreRules = "*\n!*.json\n!.gitignore\n"

func writeIgnore(dir string) error {
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(ignoreRules), 0o600)
}

func hasStaged(st gogit.Status) bool {
	for _, fs := range st {
		if fs.Staging != gogit.Unmodified && fs.Staging != gogit.Untracked {
			return true
		}
	}
	return false
}

func (r *FilesystemRepo) relative(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(path), nil
	}
	rel, err := filepath.Rel(r.Path, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Push pushes the current branch to origin.
func (r *FilesystemRepo) Push(ctx context.Context) error {
	if _, err := r.RemoteURL(); err != nil {
		return err
	}
	err := r.repo.PushContext(ctx, &gogit.PushOptions{RemoteName: DefaultRemote})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push: %w", err)
	}
	return nil
}

// Pull fetches origin and fast-forwards the branch.
func (r *FilesystemRepo) Pull(ctx context.Context) error {
	if _, err := r.RemoteURL(); err != nil {
		return err
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	err = wt.PullContext(ctx, &gogit.PullOptions{
		RemoteName:    DefaultRemote,
		ReferenceName: plumbing.NewBranchReferenceName(r.Branch),
		SingleBranch:  true,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pull: %w", err)
	}
	return nil
}

// SetRemote points origin at url, replacing any existing origin.
func (r *FilesystemRepo) SetRemote(url string) error {
	if err := r.repo.DeleteRemote(DefaultRemote); err != nil && !errors.Is(err, gogit.ErrRemoteNotFound) {
		return err
	}
	if url == "" {
		return nil
	}
	_, err := r.repo.CreateRemote(&gitconfig.RemoteConfig{Name: DefaultRemote, URLs: []string{url}})
	return err
}

// RemoteURL returns the url of origin.
func (r *FilesystemRepo) RemoteURL() (string, error) {
	remote, err := r.repo.Remote(DefaultRemote)
	if errors.Is(err, gogit.ErrRemoteNotFound) {
		return "", ErrNoRemote
	}
	if err != nil {
		return "", err
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", ErrNoRemote
	}
	return urls[0], nil
}

// Head returns the hash of the current commit, or "" on an unborn branch.
func (r *FilesystemRepo) Head() string {
	ref, err := r.repo.Head()
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}
