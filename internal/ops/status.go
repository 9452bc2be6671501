package ops

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"sort"
	"sync"
	"text/template"
	"time"

	"github.com/mozilla-l10n/l10nsched/internal/tree"
)

var statusTmpl = template.Must(template.New("").Funcs(template.FuncMap{
	"formatTimestamp": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.Format(time.RFC3339)
	},
	"join": func(sep string, items []string) string {
		var buf bytes.Buffer
		for i, it := range items {
			if i > 0 {
				buf.WriteString(sep)
			}
			buf.WriteString(it)
		}
		return buf.String()
	},
}).Parse(`<!DOCTYPE html>
<head>
<meta charset="utf-8">
<title>l10n scheduler status</title>
<style type="text/css">
td { padding: 0.5em; vertical-align: top; }
td.num { text-align: right; }
</style>
</head>
<body>
<h1>trees</h1>
<table width="100%" cellpadding=0 cellspacing=0>
<tr><th>name</th><th>en branch</th><th>l10n branch</th><th>locales</th></tr>
{{ range .Trees }}
<tr>
<td>{{ .Name }}</td>
<td>{{ .EnBranch }}</td>
<td>{{ .L10nBranch }}</td>
<td class="num">{{ len .Locales }}</td>
</tr>
{{ end }}
</table>
<h1>scheduler status</h1>
<p>
pending buffer depth: {{ .PendingDepth }}<br>
gate queue depth: {{ .GateQueueDepth }}<br>
last refreshed {{ formatTimestamp .Refreshed }}<br>
</p>
</body>
</html>`))

// StatusPage serves the scheduler's HTML status page, generalizing
// autobuilder.go's serveStatusPage to the tree registry and dispatcher
// stats instead of a single repository's recent commits.
type StatusPage struct {
	Registry *tree.Registry
	Stats    Stats
	Log      *log.Logger

	mu        sync.Mutex
	refreshed time.Time
}

func (p *StatusPage) logger() *log.Logger {
	if p.Log != nil {
		return p.Log
	}
	return log.Default()
}

func (p *StatusPage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.refreshed = time.Now()
	refreshed := p.refreshed
	p.mu.Unlock()

	trees := p.Registry.All()
	sort.Slice(trees, func(i, j int) bool { return trees[i].Name < trees[j].Name })

	var buf bytes.Buffer
	err := statusTmpl.Execute(&buf, struct {
		Trees          []tree.Tree
		PendingDepth   int
		GateQueueDepth int
		Refreshed      time.Time
	}{
		Trees:          trees,
		PendingDepth:   p.Stats.PendingDepth(),
		GateQueueDepth: p.Stats.QueueDepth(),
		Refreshed:      refreshed,
	})
	if err != nil {
		p.logger().Printf("ops: rendering status page: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	io.Copy(w, &buf)
}
