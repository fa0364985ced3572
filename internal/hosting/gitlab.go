package hosting

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/kev765740/dependencywarden/internal/config"
	"github.com/kev765740/dependencywarden/internal/resilience"
	"github.com/kev765740/dependencywarden/models"
)

// GitLabProvider implements Provider for GitLab (cloud and self-hosted).
type GitLabProvider struct {
	client *gitlab.Client
	host   string
}

// NewGitLab creates a GitLabProvider from the given configuration.
func NewGitLab(cfg config.GitLabConfig) (*GitLabProvider, error) {
	host := cfg.Host
	if host == "" {
		host = "gitlab.com"
	}

	opts := []gitlab.ClientOptionFunc{}
	if host != "gitlab.com" {
		base := fmt.Sprintf("https://%s/api/v4/", host)
		opts = append(opts, gitlab.WithBaseURL(base))
	}

	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}

	return &GitLabProvider{client: client, host: host}, nil
}

func (g *GitLabProvider) Name() string { return "gitlab" }
func (g *GitLabProvider) Host() string { return g.host }

func (g *GitLabProvider) GetRepo(ctx context.Context, owner, name string) (*models.Repo, error) {
	nameWithNS := owner + "/" + name
	proj, resp, err := g.client.Projects.GetProject(nameWithNS, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapGitLabErr(fmt.Sprintf("getting GitLab project %s", nameWithNS), resp, err)
	}
	parts := strings.SplitN(proj.PathWithNamespace, "/", 2)
	repoOwner, repoName := owner, name
	if len(parts) == 2 {
		repoOwner = parts[0]
		repoName = parts[1]
	}
	return &models.Repo{
		ID:            fmt.Sprintf("%d", proj.ID),
		Provider:      "gitlab",
		Host:          g.host,
		Owner:         repoOwner,
		Name:          repoName,
		FullName:      proj.PathWithNamespace,
		HTMLURL:       proj.WebURL,
		DefaultBranch: proj.DefaultBranch,
		Private:       proj.Visibility == gitlab.PrivateVisibility,
	}, nil
}

func (g *GitLabProvider) GetBranchHead(ctx context.Context, repo *models.Repo, branch string) (string, error) {
	b, resp, err := g.client.Branches.GetBranch(repo.FullName, branch, gitlab.WithContext(ctx))
	if err != nil {
		return "", wrapGitLabErr(fmt.Sprintf("resolving %s head of %s", branch, repo.FullName), resp, err)
	}
	return b.Commit.ID, nil
}

func (g *GitLabProvider) CreateBranch(ctx context.Context, repo *models.Repo, branch, sha string) error {
	_, resp, err := g.client.Branches.CreateBranch(repo.FullName, &gitlab.CreateBranchOptions{
		Branch: &branch,
		Ref:    &sha,
	}, gitlab.WithContext(ctx))
	if err != nil {
		return wrapGitLabErr(fmt.Sprintf("creating branch %s on %s", branch, repo.FullName), resp, err)
	}
	return nil
}

func (g *GitLabProvider) GetFile(ctx context.Context, repo *models.Repo, ref, path string) ([]byte, string, error) {
	file, resp, err := g.client.RepositoryFiles.GetFile(repo.FullName, path,
		&gitlab.GetFileOptions{Ref: &ref}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, "", wrapGitLabErr(fmt.Sprintf("reading %s from %s@%s", path, repo.FullName, ref), resp, err)
	}
	content, err := base64.StdEncoding.DecodeString(file.Content)
	if err != nil {
		return nil, "", fmt.Errorf("decoding %s from %s: %w", path, repo.FullName, err)
	}
	return content, file.LastCommitID, nil
}

func (g *GitLabProvider) PutFile(ctx context.Context, repo *models.Repo, opts PutFileOptions) error {
	content := string(opts.Content)
	var resp *gitlab.Response
	var err error
	if opts.BaseSHA != "" {
		_, resp, err = g.client.RepositoryFiles.UpdateFile(repo.FullName, opts.Path,
			&gitlab.UpdateFileOptions{
				Branch:        &opts.Branch,
				Content:       &content,
				CommitMessage: &opts.Message,
				LastCommitID:  &opts.BaseSHA,
			}, gitlab.WithContext(ctx))
	} else {
		_, resp, err = g.client.RepositoryFiles.CreateFile(repo.FullName, opts.Path,
			&gitlab.CreateFileOptions{
				Branch:        &opts.Branch,
				Content:       &content,
				CommitMessage: &opts.Message,
			}, gitlab.WithContext(ctx))
	}
	if err != nil {
		return wrapGitLabErr(fmt.Sprintf("writing %s on %s@%s", opts.Path, repo.FullName, opts.Branch), resp, err)
	}
	return nil
}

func (g *GitLabProvider) CreatePR(ctx context.Context, repo *models.Repo, opts CreatePROptions) (*models.PullRequest, error) {
	mr, resp, err := g.client.MergeRequests.CreateMergeRequest(repo.FullName, &gitlab.CreateMergeRequestOptions{
		Title:        &opts.Title,
		Description:  &opts.Body,
		SourceBranch: &opts.HeadBranch,
		TargetBranch: &opts.BaseBranch,
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrapGitLabErr(fmt.Sprintf("creating MR on %s", repo.FullName), resp, err)
	}
	pr := &models.PullRequest{
		ID:         int64(mr.ID),
		Number:     int(mr.IID),
		Title:      mr.Title,
		Body:       mr.Description,
		URL:        fmt.Sprintf("https://%s/%s/-/merge_requests/%d", g.host, repo.FullName, mr.IID),
		State:      mr.State,
		HeadBranch: mr.SourceBranch,
		BaseBranch: mr.TargetBranch,
	}
	if mr.CreatedAt != nil {
		pr.CreatedAt = *mr.CreatedAt
	}
	return pr, nil
}

// wrapGitLabErr surfaces the upstream status code so the retry loop can
// classify the failure.
func wrapGitLabErr(op string, resp *gitlab.Response, err error) error {
	if resp != nil && resp.Response != nil && resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %w", op, &resilience.StatusError{
			Code: resp.StatusCode,
			Msg:  err.Error(),
		})
	}
	return fmt.Errorf("%s: %w", op, err)
}
