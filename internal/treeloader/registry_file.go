// Package treeloader implements the Tree Loader Driver: it reads the
// tree-registry file, and on each reload fetches and parses the trees'
// l10n.ini family of files, assembling tree.Tree values and feeding them back
// into the tree registry.
package treeloader

import (
	"sort"
	"strings"

	"golang.org/x/xerrors"
	"gopkg.in/ini.v1"
)

// Entry is one [<tree-name>] section of the tree-registry file.
type Entry struct {
	Name       string
	Repo       string
	Mozilla    string // source (en-US) branch
	L10n       string // locale branch
	L10nIni    string // path to the root l10n.ini, within Mozilla
	Locales    []string
	AllLocales bool // Locales field was "all"
}

// LoadRegistryFile parses the tree-registry file at path.
func LoadRegistryFile(path string) ([]Entry, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, xerrors.Errorf("loading tree registry %s: %w", path, err)
	}
	return parseRegistry(cfg)
}

// ParseRegistry parses tree-registry content held in memory as bytes, the
// form tests use to avoid touching the filesystem.
func ParseRegistry(data []byte) ([]Entry, error) {
	cfg, err := ini.Load(data)
	if err != nil {
		return nil, xerrors.Errorf("parsing tree registry: %w", err)
	}
	return parseRegistry(cfg)
}

func parseRegistry(cfg *ini.File) ([]Entry, error) {
	var entries []Entry
	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		e := Entry{
			Name:    sec.Name(),
			Repo:    sec.Key("repo").String(),
			Mozilla: sec.Key("mozilla").String(),
			L10n:    sec.Key("l10n").String(),
			L10nIni: sec.Key("l10n.ini").String(),
		}
		locales := strings.TrimSpace(sec.Key("locales").String())
		if locales == "all" {
			e.AllLocales = true
		} else if locales != "" {
			e.Locales = strings.Fields(locales)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
