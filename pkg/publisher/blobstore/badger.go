package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/garunski/marketplace-publisher/pkg/publisher/database"
	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

type attrs struct {
	Size         int64     `json:"size"`
	Updated      time.Time `json:"updated"`
	CacheControl string    `json:"cacheControl,omitempty"`
}

// Badger is an object store kept in a local badger database. Each bucket is
// a key namespace; an object's generation is the commit version of the
// transaction that last wrote it.
type Badger struct {
	db      *database.DB
	bucket  string
	baseURL string
	logger  logr.Logger
}

// NewBadger opens bucket inside db. baseURL prefixes the public URL of
// every object.
func NewBadger(db *database.DB, bucket, baseURL string, logger logr.Logger) *Badger {
	return &Badger{
		db:      db,
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

func (s *Badger) Bucket() string {
	return s.bucket
}

func (s *Badger) dataKey(path string) string {
	return fmt.Sprintf("blobs/%s/%s", s.bucket, path)
}

func (s *Badger) attrsKey(path string) string {
	return fmt.Sprintf("attrs/%s/%s", s.bucket, path)
}

func (s *Badger) publicURL(path string) string {
	u, err := url.JoinPath(s.baseURL, s.bucket, path)
	if err != nil {
		return s.baseURL + "/" + s.bucket + "/" + path
	}
	return u
}

func (s *Badger) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.Stat(ctx, path)
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Badger) Stat(ctx context.Context, path string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	item, err := s.db.GetItem(s.attrsKey(path))
	if errors.Is(err, database.ErrNotFound) {
		return Blob{}, fmt.Errorf("%s/%s: %w", s.bucket, path, ErrObjectNotFound)
	}
	if err != nil {
		return Blob{}, apperrors.WrapBlobStore(err, "stat "+path)
	}
	return s.blob(path, item)
}

func (s *Badger) blob(path string, item database.Item) (Blob, error) {
	var a attrs
	if err := json.Unmarshal(item.Value, &a); err != nil {
		return Blob{}, apperrors.WrapBlobStore(err, "decode attributes of "+path)
	}
	return Blob{
		Bucket:       s.bucket,
		Name:         path,
		Generation:   Generation(item.Version),
		Size:         a.Size,
		Updated:      a.Updated,
		CacheControl: a.CacheControl,
		PublicURL:    s.publicURL(path),
	}, nil
}

func (s *Badger) Download(ctx context.Context, path, dst string, opts ...Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o := applyOptions(opts)

	item, err := s.db.GetItem(s.dataKey(path))
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%s/%s: %w", s.bucket, path, ErrObjectNotFound)
	}
	if err != nil {
		return apperrors.WrapBlobStore(err, "download "+path)
	}

	if o.IfGenerationMatch != nil && Generation(item.Version) != *o.IfGenerationMatch {
		return fmt.Errorf("%s/%s at generation %d, expected %d: %w", s.bucket, path, item.Version, *o.IfGenerationMatch, ErrPreconditionFailed)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return apperrors.WrapStorage(err, "create download directory")
	}
	if err := os.WriteFile(dst, item.Value, 0644); err != nil {
		return apperrors.WrapStorage(err, "write "+dst)
	}
	return nil
}

func (s *Badger) Upload(ctx context.Context, path, src string, opts ...Option) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	o := applyOptions(opts)

	data, err := os.ReadFile(src)
	if err != nil {
		return Blob{}, apperrors.WrapStorage(err, "read "+src)
	}

	meta, err := json.Marshal(attrs{Size: int64(len(data)), Updated: time.Now().UTC(), CacheControl: o.CacheControl})
	if err != nil {
		return Blob{}, apperrors.WrapBlobStore(err, "encode attributes of "+path)
	}

	items := map[string][]byte{
		s.dataKey(path):  data,
		s.attrsKey(path): meta,
	}

	if o.IfGenerationMatch != nil {
		err = s.db.CompareAndSet(s.dataKey(path), uint64(*o.IfGenerationMatch), items)
		if errors.Is(err, database.ErrVersionMismatch) || errors.Is(err, apperrors.ErrConflict) {
			return Blob{}, fmt.Errorf("%s/%s: %w", s.bucket, path, ErrPreconditionFailed)
		}
	} else {
		err = s.db.SetAll(items)
	}
	if err != nil {
		return Blob{}, apperrors.WrapBlobStore(err, "upload "+path)
	}

	s.logger.V(1).Info("uploaded object", "bucket", s.bucket, "path", path, "size", len(data))
	return s.Stat(ctx, path)
}

func (s *Badger) List(ctx context.Context, prefix string) ([]Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keyPrefix := s.attrsKey(prefix)
	items, err := s.db.ListItems(keyPrefix)
	if err != nil {
		return nil, apperrors.WrapBlobStore(err, "list "+prefix)
	}

	blobs := make([]Blob, 0, len(items))
	for key, item := range items {
		path := strings.TrimPrefix(key, s.attrsKey(""))
		b, err := s.blob(path, item)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, b)
	}

	sort.Slice(blobs, func(i, j int) bool {
		return blobs[i].Name < blobs[j].Name
	})
	return blobs, nil
}

func (s *Badger) Delete(ctx context.Context, blob Blob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.BatchDelete([]string{s.dataKey(blob.Name), s.attrsKey(blob.Name)}); err != nil {
		return apperrors.WrapBlobStore(err, "delete "+blob.Name)
	}
	return nil
}
