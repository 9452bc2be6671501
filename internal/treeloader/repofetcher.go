package treeloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/oauth2"
	"golang.org/x/xerrors"

	"github.com/google/go-github/v27/github"
)

// RepoFetcher abstracts fetching file content and locale-directory listings
// from a source repository host, so the recursive l10n.ini loader is
// backend-agnostic.
type RepoFetcher interface {
	// FetchFile retrieves path within branch's tip, relative to repo.
	FetchFile(ctx context.Context, repo, branch, path string) ([]byte, error)
	// ListLocaleDirs lists the one-level-deep directory names at branch's
	// root, used as the all-locales discovery fallback.
	ListLocaleDirs(ctx context.Context, repo, branch string) ([]string, error)
}

// HgFetcher fetches files via the Mozilla hg raw-file convention:
// repo/<branch>/raw-file/default/<path>.
type HgFetcher struct {
	Client *http.Client
}

func (h *HgFetcher) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

func (h *HgFetcher) FetchFile(ctx context.Context, repo, branch, path string) ([]byte, error) {
	u := fmt.Sprintf("%s/%s/raw-file/default/%s", trimSlash(repo), branch, strings.TrimPrefix(path, "/"))
	return h.get(ctx, u)
}

// ListLocaleDirs fetches the hgweb directory listing at the branch root and
// extracts locale directory names. The listing may be plain text (one path
// per line) or an hgweb-style HTML page, whose subdirectory links are
// extracted by extractDirLinks.
func (h *HgFetcher) ListLocaleDirs(ctx context.Context, repo, branch string) ([]string, error) {
	u := fmt.Sprintf("%s/%s/file/default/", trimSlash(repo), branch)
	body, err := h.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if looksLikeHTML(body) {
		return extractDirLinks(u, body)
	}
	return splitLines(string(body)), nil
}

func (h *HgFetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, xerrors.Errorf("%s: HTTP %s", u, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

func looksLikeHTML(b []byte) bool {
	trimmed := bytes.TrimSpace(b)
	return bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<!doctype")) ||
		bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<html"))
}

// extractDirLinks parses an hgweb/cgit-style directory listing page and
// returns the last path segment of every anchor href that looks like a
// subdirectory entry (trailing slash).
func extractDirLinks(base string, body []byte) ([]string, error) {
	parent, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var names []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			var href string
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					href = attr.Val
					break
				}
			}
			if href != "" && strings.HasSuffix(href, "/") {
				if uri, err := url.Parse(href); err == nil {
					resolved := parent.ResolveReference(uri)
					if name := lastSegment(resolved.Path); name != "" {
						names = append(names, name)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return names, nil
}

func lastSegment(p string) string {
	p = strings.TrimSuffix(p, "/")
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func trimSlash(s string) string {
	return strings.TrimSuffix(s, "/")
}

// GitHubFetcher fetches files and directory listings via the GitHub contents
// API, for trees whose repo URL has a github.com host.
type GitHubFetcher struct {
	Client *github.Client
}

// NewGitHubFetcher builds a GitHubFetcher authenticated with accessToken.
func NewGitHubFetcher(ctx context.Context, accessToken string) *GitHubFetcher {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	tc := oauth2.NewClient(ctx, ts)
	return &GitHubFetcher{Client: github.NewClient(tc)}
}

func ownerRepo(repo string) (owner, name string, err error) {
	trimmed := strings.TrimPrefix(trimSlash(repo), "https://github.com/")
	trimmed = strings.TrimPrefix(trimmed, "http://github.com/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", xerrors.Errorf("%s: not a github.com repository URL", repo)
	}
	return parts[0], parts[1], nil
}

func (g *GitHubFetcher) FetchFile(ctx context.Context, repo, branch, path string) ([]byte, error) {
	owner, name, err := ownerRepo(repo)
	if err != nil {
		return nil, err
	}
	contents, _, _, err := g.Client.Repositories.GetContents(ctx, owner, name, path, &github.RepositoryContentGetOptions{
		Ref: branch,
	})
	if err != nil {
		return nil, xerrors.Errorf("fetching %s@%s/%s: %w", repo, branch, path, err)
	}
	if contents == nil {
		return nil, xerrors.Errorf("%s@%s/%s is a directory, not a file", repo, branch, path)
	}
	content, err := contents.GetContent()
	if err != nil {
		return nil, xerrors.Errorf("decoding %s@%s/%s: %w", repo, branch, path, err)
	}
	return []byte(content), nil
}

func (g *GitHubFetcher) ListLocaleDirs(ctx context.Context, repo, branch string) ([]string, error) {
	owner, name, err := ownerRepo(repo)
	if err != nil {
		return nil, err
	}
	_, dirEntries, _, err := g.Client.Repositories.GetContents(ctx, owner, name, "", &github.RepositoryContentGetOptions{
		Ref: branch,
	})
	if err != nil {
		return nil, xerrors.Errorf("listing %s@%s: %w", repo, branch, err)
	}
	var names []string
	for _, e := range dirEntries {
		if e.GetType() == "dir" {
			names = append(names, e.GetName())
		}
	}
	return names, nil
}

// FetcherFor picks the RepoFetcher backend for repo's URL: GitHub-
// hosted repos use GitHubFetcher when gh is non-nil; everything else (and
// GitHub repos when gh is nil) goes to hg, assumed to be an hg server
// speaking the raw-file convention.
func FetcherFor(repo string, gh *GitHubFetcher, hg RepoFetcher) RepoFetcher {
	if strings.Contains(repo, "github.com") && gh != nil {
		return gh
	}
	return hg
}
