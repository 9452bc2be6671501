package scheduler

import (
	"time"

	"github.com/mozilla-l10n/l10nsched/internal/buildset"
	"github.com/mozilla-l10n/l10nsched/internal/change"
	"github.com/mozilla-l10n/l10nsched/internal/pending"
	"github.com/mozilla-l10n/l10nsched/internal/revision"
)

// flush is the Pending Buffer's onFlush callback: it receives an
// already-snapshotted-and-cleared view of the buffer and needs no Dispatcher
// lock, since it only reads the (independently synchronized) tree registry
// and talks to the external resolver/submitter.
func (d *Dispatcher) flush(snapshot map[pending.Key][]change.Change) {
	for _, key := range pending.SortedKeys(snapshot) {
		d.submitCompare(key, snapshot[key])
	}
}

func (d *Dispatcher) submitCompare(key pending.Key, changes []change.Change) {
	t, ok := d.registry.Get(key.Tree)
	if !ok {
		// Tree was removed between scheduling and flush; drop silently.
		return
	}

	bs := buildset.BuildSet{
		SourceStamp: buildset.SourceStamp{
			Branch:  t.L10nBranch(),
			Changes: changes,
		},
		Reason: "l10n comparison",
	}
	bs.SetProperty("tree", key.Tree, "Scheduler")
	bs.SetProperty("locale", key.Locale, "Scheduler")
	bs.SetProperty("l10n.ini", t.FirstIni(t.EnBranch()), "Scheduler")

	when, haveWhen := change.LatestTimestamp(changes)

	for _, role := range revision.SortRoles(t.Branches) {
		b := t.Branches[role]
		rev := revision.Default
		if haveWhen {
			repoName := revision.BuildRepoName(role, b, key.Locale)
			resolved, err := d.resolve.LatestRevisionOnDefault(d.bg, repoName, time.Unix(int64(when), 0).UTC())
			if err != nil {
				d.log.Printf("scheduler: revision resolution for %s failed, using default: %v", repoName, err)
			} else {
				rev = resolved
			}
		}
		bs.SetProperty(role+"_branch", b, "Scheduler")
		bs.SetProperty(role+"_revision", rev, "Scheduler")
	}
	bs.SetProperty("revisions", joinRoles(revision.SortRoles(t.Branches)), "Scheduler")

	if err := d.submit.SubmitCompare(d.bg, bs); err != nil {
		d.log.Printf("scheduler: comparison submission for %s/%s failed: %v", key.Tree, key.Locale, err)
	}
}

func joinRoles(roles []string) string {
	out := ""
	for i, r := range roles {
		if i > 0 {
			out += " "
		}
		out += r
	}
	return out
}
