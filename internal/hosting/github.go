package hosting

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/kev765740/dependencywarden/internal/config"
	"github.com/kev765740/dependencywarden/internal/resilience"
	"github.com/kev765740/dependencywarden/models"
)

// GitHubProvider implements Provider for GitHub and GitHub Enterprise.
type GitHubProvider struct {
	client *gogithub.Client
	host   string
}

// NewGitHub creates a GitHubProvider from the given configuration.
func NewGitHub(cfg config.GitHubConfig) (*GitHubProvider, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	host := cfg.Host
	if host == "" {
		host = "github.com"
	}

	// Support GitHub Enterprise by overriding the base URL.
	if host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", host)
		upload := fmt.Sprintf("https://%s/api/uploads/", host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}

	return &GitHubProvider{client: client, host: host}, nil
}

func (g *GitHubProvider) Name() string { return "github" }
func (g *GitHubProvider) Host() string { return g.host }

func (g *GitHubProvider) GetRepo(ctx context.Context, owner, name string) (*models.Repo, error) {
	r, _, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, wrapGitHubErr(fmt.Sprintf("getting GitHub repo %s/%s", owner, name), err)
	}
	host := g.host
	if u, perr := url.Parse(r.GetHTMLURL()); perr == nil && u.Host != "" {
		host = u.Host
	}
	return &models.Repo{
		ID:            fmt.Sprintf("%d", r.GetID()),
		Provider:      "github",
		Host:          host,
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		HTMLURL:       r.GetHTMLURL(),
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
	}, nil
}

func (g *GitHubProvider) GetBranchHead(ctx context.Context, repo *models.Repo, branch string) (string, error) {
	ref, _, err := g.client.Git.GetRef(ctx, repo.Owner, repo.Name, "refs/heads/"+branch)
	if err != nil {
		return "", wrapGitHubErr(fmt.Sprintf("resolving %s head of %s", branch, repo.FullName), err)
	}
	return ref.GetObject().GetSHA(), nil
}

func (g *GitHubProvider) CreateBranch(ctx context.Context, repo *models.Repo, branch, sha string) error {
	_, _, err := g.client.Git.CreateRef(ctx, repo.Owner, repo.Name, &gogithub.Reference{
		Ref:    gogithub.Ptr("refs/heads/" + branch),
		Object: &gogithub.GitObject{SHA: gogithub.Ptr(sha)},
	})
	if err != nil {
		return wrapGitHubErr(fmt.Sprintf("creating branch %s on %s", branch, repo.FullName), err)
	}
	return nil
}

func (g *GitHubProvider) GetFile(ctx context.Context, repo *models.Repo, ref, path string) ([]byte, string, error) {
	file, _, _, err := g.client.Repositories.GetContents(ctx, repo.Owner, repo.Name, path,
		&gogithub.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, "", wrapGitHubErr(fmt.Sprintf("reading %s from %s@%s", path, repo.FullName, ref), err)
	}
	if file == nil {
		return nil, "", fmt.Errorf("%s on %s is a directory, not a file", path, repo.FullName)
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, "", fmt.Errorf("decoding %s from %s: %w", path, repo.FullName, err)
	}
	return []byte(content), file.GetSHA(), nil
}

func (g *GitHubProvider) PutFile(ctx context.Context, repo *models.Repo, opts PutFileOptions) error {
	fileOpts := &gogithub.RepositoryContentFileOptions{
		Message: gogithub.Ptr(opts.Message),
		Content: opts.Content,
		Branch:  gogithub.Ptr(opts.Branch),
	}
	var err error
	if opts.BaseSHA != "" {
		fileOpts.SHA = gogithub.Ptr(opts.BaseSHA)
		_, _, err = g.client.Repositories.UpdateFile(ctx, repo.Owner, repo.Name, opts.Path, fileOpts)
	} else {
		_, _, err = g.client.Repositories.CreateFile(ctx, repo.Owner, repo.Name, opts.Path, fileOpts)
	}
	if err != nil {
		return wrapGitHubErr(fmt.Sprintf("writing %s on %s@%s", opts.Path, repo.FullName, opts.Branch), err)
	}
	return nil
}

func (g *GitHubProvider) CreatePR(ctx context.Context, repo *models.Repo, opts CreatePROptions) (*models.PullRequest, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, repo.Owner, repo.Name, &gogithub.NewPullRequest{
		Title:               gogithub.Ptr(opts.Title),
		Body:                gogithub.Ptr(opts.Body),
		Head:                gogithub.Ptr(opts.HeadBranch),
		Base:                gogithub.Ptr(opts.BaseBranch),
		Draft:               gogithub.Ptr(opts.Draft),
		MaintainerCanModify: gogithub.Ptr(true),
	})
	if err != nil {
		return nil, wrapGitHubErr(fmt.Sprintf("creating PR on %s", repo.FullName), err)
	}
	return &models.PullRequest{
		ID:         pr.GetID(),
		Number:     pr.GetNumber(),
		Title:      pr.GetTitle(),
		Body:       pr.GetBody(),
		URL:        pr.GetHTMLURL(),
		State:      pr.GetState(),
		HeadBranch: pr.GetHead().GetRef(),
		BaseBranch: pr.GetBase().GetRef(),
		CreatedAt:  pr.GetCreatedAt().Time,
	}, nil
}

// wrapGitHubErr surfaces the upstream status code so the retry loop can
// classify the failure.
func wrapGitHubErr(op string, err error) error {
	var ger *gogithub.ErrorResponse
	if errors.As(err, &ger) && ger.Response != nil {
		return fmt.Errorf("%s: %w", op, &resilience.StatusError{
			Code: ger.Response.StatusCode,
			Msg:  ger.Message,
		})
	}
	var rle *gogithub.RateLimitError
	if errors.As(err, &rle) {
		return fmt.Errorf("%s: %w", op, &resilience.StatusError{Code: 429, Msg: rle.Message})
	}
	return fmt.Errorf("%s: %w", op, err)
}
