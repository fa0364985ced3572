package hosting

import (
	"errors"
	"testing"
)

func TestParseRepoURL(t *testing.T) {
	cases := []struct {
		in    string
		host  string
		owner string
		name  string
	}{
		{"https://github.com/acme/web-frontend", "github.com", "acme", "web-frontend"},
		{"https://github.com/acme/web-frontend.git", "github.com", "acme", "web-frontend"},
		{"git@github.com:acme/web-frontend.git", "github.com", "acme", "web-frontend"},
		{"https://gitlab.com/group/subgroup/app", "gitlab.com", "group/subgroup", "app"},
		{"https://github.mycompany.com/platform/api/", "github.mycompany.com", "platform", "api"},
	}
	for _, tc := range cases {
		host, owner, name, err := ParseRepoURL(tc.in)
		if err != nil {
			t.Errorf("ParseRepoURL(%q): %v", tc.in, err)
			continue
		}
		if host != tc.host || owner != tc.owner || name != tc.name {
			t.Errorf("ParseRepoURL(%q) = %s, %s, %s", tc.in, host, owner, name)
		}
	}
}

func TestParseRepoURLMalformed(t *testing.T) {
	for _, in := range []string{"", "   ", "not a url", "https://github.com/", "https://github.com/only-owner", "git@github.com"} {
		_, _, _, err := ParseRepoURL(in)
		if !errors.Is(err, ErrMalformedRepoURL) {
			t.Errorf("ParseRepoURL(%q) should be malformed, got %v", in, err)
		}
	}
}

func TestDetectProvider(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://github.com/acme/web", "github"},
		{"https://github.mycompany.com/acme/web", "github"},
		{"https://gitlab.com/group/app", "gitlab"},
		{"git@gitlab.mycompany.com:group/app.git", "gitlab"},
	}
	for _, tc := range cases {
		got, err := DetectProvider(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("DetectProvider(%q) = %q, %v", tc.in, got, err)
		}
	}
	if _, err := DetectProvider("https://bitbucket.org/acme/web"); err == nil {
		t.Error("unknown host should error")
	}
}
