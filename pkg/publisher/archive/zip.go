// Package archive reads and writes the zip files that move packs and the
// index between the local working directory and the object store.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

// WriteDir zips every regular file under srcDir into dst. Entry names are
// slash separated, relative to srcDir and prefixed with root when root is
// not empty.
func WriteDir(dst, srcDir, root string) error {
	files := make(map[string][]byte)
	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[path.Join(root, filepath.ToSlash(rel))] = data
		return nil
	})
	if err != nil {
		return apperrors.WrapArchive(err, "walk "+srcDir)
	}
	return WriteFiles(dst, files)
}

// WriteFiles zips the in-memory files into dst in name order.
func WriteFiles(dst string, files map[string][]byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return apperrors.WrapArchive(err, "create directory for "+dst)
	}
	f, err := os.Create(dst)
	if err != nil {
		return apperrors.WrapArchive(err, "create "+dst)
	}
	defer f.Close()

	if err := Encode(f, files); err != nil {
		return apperrors.WrapArchive(err, "write "+dst)
	}
	return f.Close()
}

// Encode writes files as a zip stream to w.
func Encode(w io.Writer, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	zw := zip.NewWriter(w)
	for _, name := range names {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return err
		}
		if _, err := fw.Write(files[name]); err != nil {
			return err
		}
	}
	return zw.Close()
}

// ReadFiles loads every file entry of the zip at src into memory.
func ReadFiles(src string) (map[string][]byte, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, apperrors.WrapArchive(err, "read "+src)
	}
	files, err := Decode(data)
	if err != nil {
		return nil, apperrors.WrapArchive(err, "decode "+src)
	}
	return files, nil
}

// Decode reads every file entry of an in-memory zip.
func Decode(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	files := make(map[string][]byte, len(zr.File))
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		name, err := cleanName(zf.Name)
		if err != nil {
			return nil, err
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		files[name] = content
	}
	return files, nil
}

// Extract unpacks the zip at src below dstDir.
func Extract(src, dstDir string) error {
	files, err := ReadFiles(src)
	if err != nil {
		return err
	}
	for name, content := range files {
		target := filepath.Join(dstDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return apperrors.WrapArchive(err, "create directory for "+name)
		}
		if err := os.WriteFile(target, content, 0644); err != nil {
			return apperrors.WrapArchive(err, "extract "+name)
		}
	}
	return nil
}

// cleanName rejects entries that would escape the extraction root.
func cleanName(name string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: illegal entry name %q", apperrors.ErrInvalid, name)
	}
	return cleaned, nil
}
