package hosting

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMalformedRepoURL marks a stored repository URL that cannot be resolved
// to owner/name. It is a data error: retrying cannot fix it.
var ErrMalformedRepoURL = errors.New("malformed repository URL")

// ParseRepoURL extracts host, owner and name from a repository URL. Both
// https and ssh (git@host:owner/name.git) forms are accepted; GitLab
// subgroups fold into the owner segment.
func ParseRepoURL(raw string) (host, owner, name string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", "", fmt.Errorf("%w: empty", ErrMalformedRepoURL)
	}

	var path string
	if strings.HasPrefix(raw, "git@") {
		rest := strings.TrimPrefix(raw, "git@")
		host, path, _ = strings.Cut(rest, ":")
		if host == "" || path == "" {
			return "", "", "", fmt.Errorf("%w: %q", ErrMalformedRepoURL, raw)
		}
	} else {
		u, perr := url.Parse(raw)
		if perr != nil || u.Host == "" {
			return "", "", "", fmt.Errorf("%w: %q", ErrMalformedRepoURL, raw)
		}
		host = u.Host
		path = u.Path
	}

	segs := splitPath(path)
	if len(segs) < 2 {
		return "", "", "", fmt.Errorf("%w: %q has no owner/name path", ErrMalformedRepoURL, raw)
	}
	name = strings.TrimSuffix(segs[len(segs)-1], ".git")
	owner = strings.Join(segs[:len(segs)-1], "/")
	if owner == "" || name == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrMalformedRepoURL, raw)
	}
	return host, owner, name, nil
}

// DetectProvider infers the hosting platform from a repository URL.
func DetectProvider(repoURL string) (string, error) {
	lower := strings.ToLower(repoURL)
	switch {
	case strings.Contains(lower, "github.com"), strings.Contains(lower, "github."):
		return "github", nil
	case strings.Contains(lower, "gitlab.com"), strings.Contains(lower, "gitlab."):
		return "gitlab", nil
	default:
		return "", fmt.Errorf("cannot detect provider from URL %q", repoURL)
	}
}

func splitPath(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
