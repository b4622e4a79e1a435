package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	domain "github.com/bryanwahyu/docgen/internal/domain/documents"
)

// MinioOptions for NewMinio.
type MinioOptions struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Prefix is prepended to every object key, e.g. "documents/".
	Prefix string
}

// MinioStore keeps artifacts as objects in one bucket, using the same
// naming scheme as DiskStore. Object LastModified is the creation time, so
// the createdAt passed to Put is only informational here.
type MinioStore struct {
	client *minio.Client
	bucket string
	region string
	prefix string
	log    *slog.Logger
}

// NewMinio buat koneksi MinIO dan pastikan bucket ada
func NewMinio(ctx context.Context, opts MinioOptions, log *slog.Logger) (*MinioStore, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	s := &MinioStore{
		client: cli,
		bucket: opts.Bucket,
		region: opts.Region,
		prefix: strings.TrimLeft(opts.Prefix, "/"),
		log:    log.With("component", "minio_store"),
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	}
	return nil
}

func (s *MinioStore) key(storedName string) string {
	return s.prefix + storedName
}

// Put uploads data. S3 PUT is atomic, so no temp object is needed.
func (s *MinioStore) Put(ctx context.Context, name domain.Name, data []byte, createdAt time.Time) (domain.Artifact, error) {
	if !domain.ValidID(name.ID) || !domain.MatchesID(name.StoredName, name.ID) {
		return domain.Artifact{}, fmt.Errorf("%w: %q", domain.ErrInvalidID, name.StoredName)
	}

	upload := func() (minio.UploadInfo, error) {
		return s.client.PutObject(ctx, s.bucket, s.key(name.StoredName), bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{
				ContentType:  domain.ContentTypeDOCX,
				UserMetadata: map[string]string{"filename": name.DisplayName + domain.Extension},
			})
	}

	info, err := upload()
	if err != nil {
		s.log.Warn("artifact upload failed, retrying", "key", s.key(name.StoredName), "err", err)
		if bErr := s.ensureBucket(ctx); bErr != nil {
			s.log.Warn("ensure bucket failed", "bucket", s.bucket, "err", bErr)
		}
		info, err = upload()
	}
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
	}

	created := info.LastModified
	if created.IsZero() {
		created = createdAt
	}
	return domain.Artifact{
		ID:          name.ID,
		DisplayName: name.DisplayName,
		StoredName:  name.StoredName,
		CreatedAt:   created,
		Size:        int64(len(data)),
	}, nil
}

// list returns every object under the prefix, sorted by key.
func (s *MinioStore) list(ctx context.Context) ([]minio.ObjectInfo, error) {
	var out []minio.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MinioStore) storedName(key string) string {
	return path.Base(strings.TrimPrefix(key, s.prefix))
}

// Resolve scans the bucket listing for the identifier.
func (s *MinioStore) Resolve(ctx context.Context, id string) (domain.Artifact, error) {
	if !domain.ValidID(id) {
		return domain.Artifact{}, domain.ErrInvalidID
	}
	objs, err := s.list(ctx)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("list bucket: %w", err)
	}

	matches := s.matching(objs, id)
	if len(matches) == 0 {
		return domain.Artifact{}, domain.ErrNotFound
	}
	if len(matches) > 1 {
		s.log.Error("identifier matches several artifacts, using first",
			"id", id, "count", len(matches), "err", domain.ErrAmbiguousMatch)
	}
	return s.artifact(matches[0])
}

// matching keeps the objects whose stored name belongs to id, in listing order.
func (s *MinioStore) matching(objs []minio.ObjectInfo, id string) []minio.ObjectInfo {
	var out []minio.ObjectInfo
	for _, o := range objs {
		if domain.MatchesID(s.storedName(o.Key), id) {
			out = append(out, o)
		}
	}
	return out
}

func (s *MinioStore) artifact(o minio.ObjectInfo) (domain.Artifact, error) {
	name := s.storedName(o.Key)
	display, id, ok := domain.ParseStoredName(name)
	if !ok {
		return domain.Artifact{}, domain.ErrNotFound
	}
	return domain.Artifact{
		ID:          id,
		DisplayName: display,
		StoredName:  name,
		CreatedAt:   o.LastModified,
		Size:        o.Size,
	}, nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

// Stat loads metadata for one stored name.
func (s *MinioStore) Stat(ctx context.Context, storedName string) (domain.Artifact, error) {
	if _, _, ok := domain.ParseStoredName(storedName); !ok {
		return domain.Artifact{}, domain.ErrNotFound
	}
	info, err := s.client.StatObject(ctx, s.bucket, s.key(storedName), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return domain.Artifact{}, domain.ErrNotFound
		}
		return domain.Artifact{}, err
	}
	return s.artifact(info)
}

// Open streams the object; a vanished object is ErrNotFound.
func (s *MinioStore) Open(ctx context.Context, a domain.Artifact) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(a.StoredName), minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	// GetObject is lazy; Stat surfaces a missing key.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if isNoSuchKey(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return obj, nil
}

// Evict removes every object for id. S3 deletes are idempotent.
func (s *MinioStore) Evict(ctx context.Context, id string) error {
	if !domain.ValidID(id) {
		return domain.ErrInvalidID
	}
	objs, err := s.list(ctx)
	if err != nil {
		return err
	}
	for _, o := range s.matching(objs, id) {
		if err := s.client.RemoveObject(ctx, s.bucket, o.Key, minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
			return err
		}
	}
	return nil
}

// Sweep removes objects under the prefix older than ttl.
func (s *MinioStore) Sweep(ctx context.Context, now time.Time, ttl time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	objs, err := s.list(ctx)
	if err != nil {
		return 0, fmt.Errorf("list bucket: %w", err)
	}
	removed := 0
	for _, key := range expiredKeys(objs, now, ttl) {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
			s.log.Warn("sweep: remove failed", "key", key, "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// expiredKeys picks every object older than ttl, whatever its name.
func expiredKeys(objs []minio.ObjectInfo, now time.Time, ttl time.Duration) []string {
	var keys []string
	for _, o := range objs {
		if domain.Expired(o.LastModified, now, ttl) {
			keys = append(keys, o.Key)
		}
	}
	return keys
}

// Writable reports whether the bucket is reachable.
func (s *MinioStore) Writable(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("bucket " + s.bucket + " does not exist")
	}
	return nil
}
