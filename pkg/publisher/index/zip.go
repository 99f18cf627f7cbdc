package index

import (
	"errors"
	"path"
	"strings"

	"github.com/garunski/marketplace-publisher/pkg/publisher/archive"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

// ErrMissingRoot is returned when an index archive has no index/ folder.
var ErrMissingRoot = errors.New("index archive has no " + RootFolder + " folder")

// Files flattens the tree into archive entry names under the index/ root.
func (t *Tree) Files() map[string][]byte {
	t.mu.RLock()
	defer t.mu.RUnlock()

	files := make(map[string][]byte)
	if t.manifest != nil {
		files[path.Join(RootFolder, ManifestFile)] = copyBytes(t.manifest)
	}
	for name, e := range t.entries {
		for fileName, data := range e.Files {
			files[path.Join(RootFolder, name, fileName)] = copyBytes(data)
		}
		for v, data := range e.History {
			files[path.Join(RootFolder, name, HistoryFileName(v))] = copyBytes(data)
		}
	}
	return files
}

// WriteZip serialises the tree to the zip file at dst.
func (t *Tree) WriteZip(dst string) error {
	return archive.WriteFiles(dst, t.Files())
}

// FromFiles builds a tree from archive entries laid out by Files.
func FromFiles(files map[string][]byte) (*Tree, error) {
	prefix := RootFolder + "/"
	t := NewTree()
	found := false

	for name, data := range files {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		found = true
		rel := strings.TrimPrefix(name, prefix)
		if rel == ManifestFile {
			t.manifest = copyBytes(data)
			continue
		}
		pack, fileName, ok := strings.Cut(rel, "/")
		if !ok || pack == "" || fileName == "" {
			continue
		}
		e, exists := t.entries[pack]
		if !exists {
			e = newEntry()
			t.entries[pack] = e
		}
		if v, isHistory := historyVersion(fileName); isHistory {
			e.History[v] = copyBytes(data)
		} else {
			e.Files[fileName] = copyBytes(data)
		}
	}

	if !found {
		return nil, ErrMissingRoot
	}
	return t, nil
}

// ReadZip loads a tree from the zip file at src.
func ReadZip(src string) (*Tree, error) {
	files, err := archive.ReadFiles(src)
	if err != nil {
		return nil, err
	}
	t, err := FromFiles(files)
	if err != nil {
		return nil, apperrors.WrapArchive(err, src)
	}
	return t, nil
}
