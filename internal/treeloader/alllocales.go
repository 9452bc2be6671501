package treeloader

import (
	"context"

	"github.com/mozilla-l10n/l10nsched/internal/tree"
)

// AllLocalesService implements scheduler.AllLocalesFetcher: the async
// manifest re-fetch triggered when a change touches the all-locales
// manifest, as opposed to the eager fetch Driver.loadTree performs while
// assembling a Tree for the first time.
type AllLocalesService struct {
	GitHub    *GitHubFetcher
	HgDefault RepoFetcher
}

// FetchAllLocales fetches t's all-locales manifest, falling back to a
// directory listing if manifestPath yields nothing (the same policy
// Driver.resolveLocales applies at load time).
func (s *AllLocalesService) FetchAllLocales(ctx context.Context, t tree.Tree, manifestPath string) ([]string, error) {
	fetcher := FetcherFor(t.Repo, s.GitHub, s.HgDefault)
	if manifestPath != "" {
		data, err := fetcher.FetchFile(ctx, t.Repo, t.EnBranch(), manifestPath)
		if err == nil {
			if locales := splitLines(string(data)); len(locales) > 0 {
				return locales, nil
			}
		}
	}
	return fetcher.ListLocaleDirs(ctx, t.Repo, t.L10nBranch())
}
