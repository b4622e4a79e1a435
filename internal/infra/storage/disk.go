package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	domain "github.com/bryanwahyu/docgen/internal/domain/documents"
)

const tempPrefix = ".tmp-"

// DiskStore keeps artifacts as files in a single ephemeral directory.
// The directory listing is the only index: file name encodes the identifier
// and the modification time is the creation time.
type DiskStore struct {
	dir string
	log *slog.Logger
}

// NewDiskStore buat direktori output kalau belum ada
func NewDiskStore(dir string, log *slog.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &DiskStore{dir: dir, log: log.With("component", "disk_store")}, nil
}

// Dir returns the storage directory.
func (s *DiskStore) Dir() string { return s.dir }

// Put publishes data under name.StoredName. The write goes to a temp file
// which is renamed into place, so a partial write is never resolvable.
// One retry follows a best-effort directory re-creation.
func (s *DiskStore) Put(ctx context.Context, name domain.Name, data []byte, createdAt time.Time) (domain.Artifact, error) {
	if !domain.ValidID(name.ID) || !domain.MatchesID(name.StoredName, name.ID) {
		return domain.Artifact{}, fmt.Errorf("%w: %q", domain.ErrInvalidID, name.StoredName)
	}

	err := s.publish(name.StoredName, data, createdAt)
	if err != nil {
		s.log.Warn("artifact write failed, retrying", "stored_name", name.StoredName, "err", err)
		if mkErr := os.MkdirAll(s.dir, 0o755); mkErr != nil {
			s.log.Warn("recreate storage dir failed", "dir", s.dir, "err", mkErr)
		}
		err = s.publish(name.StoredName, data, createdAt)
	}
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: %v", domain.ErrStorageWrite, err)
	}

	return domain.Artifact{
		ID:          name.ID,
		DisplayName: name.DisplayName,
		StoredName:  name.StoredName,
		CreatedAt:   createdAt,
		Size:        int64(len(data)),
	}, nil
}

func (s *DiskStore) publish(storedName string, data []byte, createdAt time.Time) (err error) {
	f, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp, 0o644); err != nil {
		return err
	}
	if err = os.Chtimes(tmp, createdAt, createdAt); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(s.dir, storedName))
}

// Resolve finds the artifact for id from the directory listing alone.
func (s *DiskStore) Resolve(ctx context.Context, id string) (domain.Artifact, error) {
	if !domain.ValidID(id) {
		return domain.Artifact{}, domain.ErrInvalidID
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Artifact{}, domain.ErrNotFound
		}
		return domain.Artifact{}, fmt.Errorf("list storage dir: %w", err)
	}

	// ReadDir is sorted by name, so the first match is the lexicographically first.
	var matches []string
	for _, e := range entries {
		if e.Type().IsRegular() && domain.MatchesID(e.Name(), id) {
			matches = append(matches, e.Name())
		}
	}
	if len(matches) == 0 {
		return domain.Artifact{}, domain.ErrNotFound
	}
	if len(matches) > 1 {
		s.log.Error("identifier matches several artifacts, using first",
			"id", id, "matches", matches, "err", domain.ErrAmbiguousMatch)
	}
	return s.Stat(ctx, matches[0])
}

// Stat loads metadata for a stored name. A missing file is ErrNotFound.
func (s *DiskStore) Stat(ctx context.Context, storedName string) (domain.Artifact, error) {
	display, id, ok := domain.ParseStoredName(storedName)
	if !ok || filepath.Base(storedName) != storedName {
		return domain.Artifact{}, domain.ErrNotFound
	}
	info, err := os.Stat(filepath.Join(s.dir, storedName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Artifact{}, domain.ErrNotFound
		}
		return domain.Artifact{}, err
	}
	return domain.Artifact{
		ID:          id,
		DisplayName: display,
		StoredName:  storedName,
		CreatedAt:   info.ModTime(),
		Size:        info.Size(),
	}, nil
}

// Open returns the artifact bytes. The file may be swept between Resolve and
// Open; that race is reported as ErrNotFound.
func (s *DiskStore) Open(ctx context.Context, a domain.Artifact) (io.ReadCloser, error) {
	if filepath.Base(a.StoredName) != a.StoredName || a.StoredName == "" {
		return nil, domain.ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, a.StoredName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Evict removes every file stored for id. Missing files are not an error.
func (s *DiskStore) Evict(ctx context.Context, id string) error {
	if !domain.ValidID(id) {
		return domain.ErrInvalidID
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !domain.MatchesID(e.Name(), id) {
			continue
		}
		if err := s.remove(e.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (s *DiskStore) remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Sweep deletes every regular file in the directory older than ttl, whatever
// its naming convention, including abandoned temp files. Per-file failures
// are logged and skipped.
func (s *DiskStore) Sweep(ctx context.Context, now time.Time, ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("list storage dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// deleted concurrently
			continue
		}
		if !domain.Expired(info.ModTime(), now, ttl) {
			continue
		}
		if err := s.remove(e.Name()); err != nil {
			s.log.Warn("sweep: remove failed", "file", e.Name(), "err", err)
			continue
		}
		if !strings.HasPrefix(e.Name(), tempPrefix) {
			s.log.Debug("sweep: expired artifact removed", "file", e.Name(), "age", now.Sub(info.ModTime()))
		}
		removed++
	}
	return removed, nil
}

// Writable checks the directory accepts new files.
func (s *DiskStore) Writable(ctx context.Context) error {
	f, err := os.CreateTemp(s.dir, tempPrefix+"health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
