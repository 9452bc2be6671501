package treeloader

import (
	"strings"

	"golang.org/x/xerrors"
	"gopkg.in/ini.v1"
)

// L10nIni is the parsed shape of one l10n.ini file.
type L10nIni struct {
	Depth string
	All   string // general.all: path to the all-locales manifest
	Dirs  []string
	TLD   string
	Extra []string
	// Includes maps an include title to its declared path (the [includes]
	// section); IncludeRepos carries the matching [include_<title>] section,
	// present only for includes that pull from a foreign repo/branch.
	Includes     map[string]string
	IncludeRepos map[string]IncludeRepo
}

// IncludeRepo is an [include_<title>] section: an l10n.ini include that
// lives in a different repository/branch than its parent.
type IncludeRepo struct {
	Type    string
	Repo    string
	Mozilla string
	L10nIni string
}

// ParseL10nIni parses one l10n.ini file's bytes.
func ParseL10nIni(data []byte) (*L10nIni, error) {
	cfg, err := ini.Load(data)
	if err != nil {
		return nil, xerrors.Errorf("parsing l10n.ini: %w", err)
	}

	out := &L10nIni{
		Includes:     make(map[string]string),
		IncludeRepos: make(map[string]IncludeRepo),
	}

	if sec, err := cfg.GetSection("general"); err == nil {
		out.Depth = sec.Key("depth").String()
		out.All = sec.Key("all").String()
	}
	if sec, err := cfg.GetSection("compare"); err == nil {
		out.Dirs = fields(sec.Key("dirs").String())
		out.TLD = sec.Key("tld").String()
	}
	if sec, err := cfg.GetSection("extras"); err == nil {
		out.Extra = fields(sec.Key("dirs").String())
	}
	if sec, err := cfg.GetSection("includes"); err == nil {
		for _, key := range sec.Keys() {
			out.Includes[key.Name()] = key.String()
		}
	}

	for _, sec := range cfg.Sections() {
		title := strings.TrimPrefix(sec.Name(), "include_")
		if title == sec.Name() || title == "" {
			continue // not an [include_<title>] section
		}
		out.IncludeRepos[title] = IncludeRepo{
			Type:    sec.Key("type").String(),
			Repo:    sec.Key("repo").String(),
			Mozilla: sec.Key("mozilla").String(),
			L10nIni: sec.Key("l10n.ini").String(),
		}
	}

	return out, nil
}

func fields(s string) []string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return nil
	}
	return f
}
