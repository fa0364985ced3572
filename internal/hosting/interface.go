// Package hosting abstracts the git hosting platforms remediation runs
// against. Providers expose just the operations a fix branch and pull
// request need; everything else the platforms offer is out of scope.
package hosting

import (
	"context"
	"fmt"

	"github.com/kev765740/dependencywarden/internal/config"
	"github.com/kev765740/dependencywarden/models"
)

// Provider abstracts operations against a git hosting platform.
// Implementations: GitHub, GitLab.
type Provider interface {
	// Name identifies the provider ("github" or "gitlab").
	Name() string

	// Host returns the API host the provider talks to, used as the circuit
	// breaker key prefix.
	Host() string

	// GetRepo returns a single repository.
	GetRepo(ctx context.Context, owner, name string) (*models.Repo, error)

	// GetBranchHead returns the commit SHA a branch points at.
	GetBranchHead(ctx context.Context, repo *models.Repo, branch string) (string, error)

	// CreateBranch creates a new branch at the given commit SHA.
	CreateBranch(ctx context.Context, repo *models.Repo, branch, sha string) error

	// GetFile returns a file's content at a ref plus its revision marker.
	GetFile(ctx context.Context, repo *models.Repo, ref, path string) ([]byte, string, error)

	// PutFile writes a file on a branch. A non-empty baseSHA makes the write
	// a compare-and-swap against that revision; empty creates the file.
	PutFile(ctx context.Context, repo *models.Repo, opts PutFileOptions) error

	// CreatePR opens a pull request (merge request on GitLab).
	CreatePR(ctx context.Context, repo *models.Repo, opts CreatePROptions) (*models.PullRequest, error)
}

// PutFileOptions describes one file write on a fix branch.
type PutFileOptions struct {
	Path    string
	Content []byte
	Message string // commit message
	Branch  string
	BaseSHA string // prior file revision; empty = create
}

// CreatePROptions contains all fields needed to open a pull request.
type CreatePROptions struct {
	Title      string
	Body       string
	HeadBranch string // branch containing the fix
	BaseBranch string // target branch, usually the default branch
	Draft      bool
}

// New returns the Provider for the given platform using the first configured
// credential.
func New(provider string, cfg *config.Config) (Provider, error) {
	switch provider {
	case "github":
		if len(cfg.Git.GitHub) == 0 || cfg.Git.GitHub[0].Token == "" {
			return nil, fmt.Errorf("no GitHub token configured; run 'depwarden doctor'")
		}
		return NewGitHub(cfg.Git.GitHub[0])
	case "gitlab":
		if len(cfg.Git.GitLab) == 0 || cfg.Git.GitLab[0].Token == "" {
			return nil, fmt.Errorf("no GitLab token configured; run 'depwarden doctor'")
		}
		return NewGitLab(cfg.Git.GitLab[0])
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}
