package index

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/zeebo/blake3"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

// Tree is the in-memory index: pack entries keyed by name plus the root
// manifest. All methods are safe for concurrent use.
type Tree struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	manifest []byte
}

func NewTree() *Tree {
	return &Tree{
		entries: make(map[string]*Entry),
	}
}

// MergePack applies the top-level files of sourceDir to the entry of name.
func (t *Tree) MergePack(name, sourceDir, version string, hidden bool) error {
	if hidden {
		t.Delete(name)
		return nil
	}

	files, err := readTopLevel(sourceDir)
	if err != nil {
		return apperrors.WrapIndexMerge(err, name)
	}
	return t.Merge(name, files, version, false)
}

// Merge applies files to the entry of name. A hidden pack loses its entry.
// Otherwise every history file except version's is kept, every other file
// is replaced by files, and a metadata.json in files is also recorded as the
// history of version when version is set. Merging the same input twice
// yields the same entry.
func (t *Tree) Merge(name string, files map[string][]byte, version string, hidden bool) error {
	if name == "" {
		return fmt.Errorf("%w: index merge: empty pack name", apperrors.ErrInvalid)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if hidden {
		delete(t.entries, name)
		return nil
	}

	next := newEntry()
	if current, ok := t.entries[name]; ok {
		next = current.clone()
		next.Files = make(map[string][]byte)
	}
	if version != "" {
		delete(next.History, version)
	}

	for fileName, data := range files {
		if v, ok := historyVersion(fileName); ok {
			next.History[v] = copyBytes(data)
			continue
		}
		next.Files[fileName] = copyBytes(data)
		if version != "" && fileName == MetadataFile {
			next.History[version] = copyBytes(data)
		}
	}

	t.entries[name] = next
	return nil
}

func readTopLevel(dir string) (map[string][]byte, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make(map[string][]byte, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, de.Name()))
		if err != nil {
			return nil, err
		}
		files[de.Name()] = data
	}
	return files, nil
}

// Delete removes the entry of name and reports whether it existed.
func (t *Tree) Delete(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[name]
	delete(t.entries, name)
	return ok
}

func (t *Tree) Has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[name]
	return ok
}

// Entry returns a copy of the entry of name.
func (t *Tree) Entry(name string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *e.clone(), true
}

// File returns a copy of one content file of the entry of name.
func (t *Tree) File(name, fileName string) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[name]
	if !ok {
		return nil, false
	}
	data, ok := e.Files[fileName]
	if !ok {
		return nil, false
	}
	return copyBytes(data), true
}

// Names returns the entry names in order.
func (t *Tree) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.namesLocked()
}

func (t *Tree) namesLocked() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Prune removes every entry for which keep returns false. The tree stays
// write-locked for the whole scan, so no merge interleaves with it. remove
// is called before an entry is dropped; an error stops the scan and leaves
// that entry in place.
func (t *Tree) Prune(keep func(name string) bool, remove func(name string) error) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []string
	for _, name := range t.namesLocked() {
		if keep(name) {
			continue
		}
		if remove != nil {
			if err := remove(name); err != nil {
				return removed, err
			}
		}
		delete(t.entries, name)
		removed = append(removed, name)
	}
	return removed, nil
}

// Manifest decodes the root index.json.
func (t *Tree) Manifest() (Manifest, error) {
	t.mu.RLock()
	data := t.manifest
	t.mu.RUnlock()

	m, err := ParseManifest(data)
	if err != nil {
		return Manifest{}, apperrors.WrapMetadata(err, "decode "+ManifestFile)
	}
	return m, nil
}

func (t *Tree) SetManifest(m Manifest) error {
	data, err := m.Marshal()
	if err != nil {
		return apperrors.WrapMetadata(err, "encode "+ManifestFile)
	}
	t.mu.Lock()
	t.manifest = data
	t.mu.Unlock()
	return nil
}

// ManifestBytes returns the raw index.json, nil when none was set.
func (t *Tree) ManifestBytes() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.manifest == nil {
		return nil
	}
	return copyBytes(t.manifest)
}

// Reset drops every entry and the manifest.
func (t *Tree) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*Entry)
	t.manifest = nil
}

// Fingerprint is a keyed BLAKE3 digest over every entry file, independent
// of the manifest. Two trees with equal fingerprints publish the same packs.
func (t *Tree) Fingerprint() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("index: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	for _, name := range t.namesLocked() {
		e := t.entries[name]
		for _, fileName := range e.FileNames() {
			data, ok := e.Files[fileName]
			if !ok {
				v, _ := historyVersion(fileName)
				data = e.History[v]
			}
			fmt.Fprintf(hasher, "%s/%s\x00%d\x00", name, fileName, len(data))
			hasher.Write(data)
		}
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

var fingerprintKey = [32]byte{
	'm', 'a', 'r', 'k', 'e', 't', 'p', 'l', 'a', 'c', 'e', '.', 'i', 'n', 'd', 'e',
	'x', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}
