package index

import (
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	RootFolder   = "index"
	ManifestFile = "index.json"
	MetadataFile = "metadata.json"
)

// Entry is one pack's folder in the index: the per-version metadata history
// and the files of the latest merge.
type Entry struct {
	History map[string][]byte
	Files   map[string][]byte
}

func newEntry() *Entry {
	return &Entry{
		History: make(map[string][]byte),
		Files:   make(map[string][]byte),
	}
}

func copyBytes(src []byte) []byte {
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

func (e *Entry) clone() *Entry {
	c := newEntry()
	for v, data := range e.History {
		c.History[v] = copyBytes(data)
	}
	for name, data := range e.Files {
		c.Files[name] = copyBytes(data)
	}
	return c
}

// Versions returns the versions with a history file, lowest first.
func (e Entry) Versions() []string {
	versions := make([]string, 0, len(e.History))
	for v := range e.History {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return compareVersions(versions[i], versions[j]) < 0
	})
	return versions
}

// FileNames lists every file the entry would have on disk, history included.
func (e Entry) FileNames() []string {
	names := make([]string, 0, len(e.History)+len(e.Files))
	for name := range e.Files {
		names = append(names, name)
	}
	for v := range e.History {
		names = append(names, HistoryFileName(v))
	}
	sort.Strings(names)
	return names
}

// HistoryFileName is the name of the metadata history file for version.
func HistoryFileName(version string) string {
	return "metadata-" + version + ".json"
}

// historyVersion reports the version encoded in a history file name.
func historyVersion(name string) (string, bool) {
	if !strings.HasPrefix(name, "metadata-") || !strings.HasSuffix(name, ".json") {
		return "", false
	}
	v := strings.TrimSuffix(strings.TrimPrefix(name, "metadata-"), ".json")
	if v == "" {
		return "", false
	}
	return v, true
}

// compareVersions orders semantic versions, falling back to string order
// for anything semver rejects.
func compareVersions(a, b string) int {
	va, vb := "v"+a, "v"+b
	if semver.IsValid(va) && semver.IsValid(vb) {
		return semver.Compare(va, vb)
	}
	return strings.Compare(a, b)
}

// AllFiles returns every file of the entry keyed by its on-disk name.
func (e Entry) AllFiles() map[string][]byte {
	files := make(map[string][]byte, len(e.History)+len(e.Files))
	for name, data := range e.Files {
		files[name] = copyBytes(data)
	}
	for v, data := range e.History {
		files[HistoryFileName(v)] = copyBytes(data)
	}
	return files
}
