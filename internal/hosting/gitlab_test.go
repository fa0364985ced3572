package hosting

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/kev765740/dependencywarden/models"
)

// A merge request response may omit created_at; mapping it must not panic.
func TestGitLabCreatePRWithoutCreatedAt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 5, "iid": 2, "title": "fix(deps): bump leftpad to 1.2.3",
			"state": "opened", "source_branch": "depwarden/fix/leftpad-1",
			"target_branch": "main"}`)
	}))
	defer srv.Close()

	client, err := gitlab.NewClient("token", gitlab.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	g := &GitLabProvider{client: client, host: "gitlab.example.com"}

	repo := &models.Repo{FullName: "acme/web", DefaultBranch: "main"}
	pr, err := g.CreatePR(context.Background(), repo, CreatePROptions{
		Title:      "fix(deps): bump leftpad to 1.2.3",
		HeadBranch: "depwarden/fix/leftpad-1",
		BaseBranch: "main",
	})
	if err != nil {
		t.Fatalf("creating MR: %v", err)
	}
	if pr.Number != 2 || pr.HeadBranch != "depwarden/fix/leftpad-1" {
		t.Fatalf("mapped MR: %+v", pr)
	}
	if !pr.CreatedAt.IsZero() {
		t.Fatalf("created_at missing upstream should map to zero time, got %v", pr.CreatedAt)
	}
}
