package pack

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

// Signer signs the working copy of a pack before it is zipped.
type Signer interface {
	Sign(dir string) error
}

// NopSigner leaves packs unsigned.
type NopSigner struct{}

func (NopSigner) Sign(string) error { return nil }

// DigestSigner writes a keyed BLAKE3 digest of every pack file into
// signatures.sf at the pack root.
type DigestSigner struct {
	key [32]byte
}

const signatureKeyContext = "marketplace-publisher 2024 pack signature key"

// NewSigner derives a signing key from the base64 encoded secret. An empty
// secret yields a NopSigner.
func NewSigner(encodedKey string) (Signer, error) {
	if encodedKey == "" {
		return NopSigner{}, nil
	}
	material, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: signature key is not valid base64: %w", apperrors.ErrInvalid, err)
	}
	s := &DigestSigner{}
	blake3.DeriveKey(signatureKeyContext, material, s.key[:])
	return s, nil
}

// Digest computes the signature of dir without writing it.
func (s *DigestSigner) Digest(dir string) (string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && d.Name() != SignatureFile {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(files)

	hasher, err := blake3.NewKeyed(s.key[:])
	if err != nil {
		return "", err
	}
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(hasher, "%s\x00%d\x00", rel, len(data))
		hasher.Write(data)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *DigestSigner) Sign(dir string) error {
	digest, err := s.Digest(dir)
	if err != nil {
		return apperrors.WrapStorage(err, "sign "+dir)
	}
	if err := os.WriteFile(filepath.Join(dir, SignatureFile), []byte(digest), 0644); err != nil {
		return apperrors.WrapStorage(err, "write signature of "+dir)
	}
	return nil
}
