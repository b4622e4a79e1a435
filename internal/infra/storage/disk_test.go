package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/bryanwahyu/docgen/internal/domain/documents"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	s, err := NewDiskStore(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func readAll(t *testing.T, s *DiskStore, a domain.Artifact) []byte {
	t.Helper()
	rc, err := s.Open(context.Background(), a)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return b
}

func TestPutResolveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	name := domain.Mint("Cover Letter")
	data := []byte("docx bytes")

	put, err := s.Put(ctx, name, data, t0)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if put.Size != int64(len(data)) || !put.CreatedAt.Equal(t0) {
		t.Fatalf("unexpected artifact %+v", put)
	}

	got, err := s.Resolve(ctx, name.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != name.ID || got.DisplayName != "Cover_Letter" || got.StoredName != name.StoredName {
		t.Fatalf("unexpected resolved artifact %+v", got)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Fatalf("created at not taken from mtime: %v", got.CreatedAt)
	}
	if !bytes.Equal(readAll(t, s, got), data) {
		t.Fatalf("bytes differ after round trip")
	}
}

func TestPutLongMultibyteTitle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	name := domain.Mint(strings.Repeat("履", 200))

	if _, err := s.Put(ctx, name, []byte("cv"), t0); err != nil {
		t.Fatalf("put with a long CJK title: %v", err)
	}
	got, err := s.Resolve(ctx, name.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.StoredName != name.StoredName || len(got.StoredName) > 255 {
		t.Fatalf("unexpected stored name (%d bytes) %q", len(got.StoredName), got.StoredName)
	}
}

func TestResolveSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	name := domain.Mint("CV")
	if _, err := s.Put(ctx, name, []byte("x"), t0); err != nil {
		t.Fatalf("put: %v", err)
	}

	// nothing but the directory carries over
	restarted, err := NewDiskStore(s.Dir(), nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := restarted.Resolve(ctx, name.ID)
	if err != nil {
		t.Fatalf("resolve after restart: %v", err)
	}
	if got.StoredName != name.StoredName {
		t.Fatalf("resolved wrong file %q", got.StoredName)
	}
}

func TestResolveUnknownAndInvalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.Resolve(ctx, strings.Repeat("a", 32)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Resolve(ctx, "../secret"); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestResolveAmbiguousPicksFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := strings.Repeat("c", 32)
	for _, n := range []string{"b_" + id + ".docx", "a_" + id + ".docx"} {
		if err := os.WriteFile(filepath.Join(s.Dir(), n), []byte(n), 0o644); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	got, err := s.Resolve(ctx, id)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.StoredName != "a_"+id+".docx" {
		t.Fatalf("expected lexicographically first match, got %q", got.StoredName)
	}
}

func TestResolveIgnoresNonTerminalID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := strings.Repeat("d", 32)
	other := strings.Repeat("e", 32)
	// id appears in the display part of another artifact's name
	if err := os.WriteFile(filepath.Join(s.Dir(), "x_"+id+"_"+other+".docx"), nil, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Resolve(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEvictIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	name := domain.Mint("Scorecard")
	if _, err := s.Put(ctx, name, []byte("x"), t0); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Evict(ctx, name.ID); err != nil {
		t.Fatalf("first evict: %v", err)
	}
	if err := s.Evict(ctx, name.ID); err != nil {
		t.Fatalf("second evict: %v", err)
	}
	if _, err := s.Resolve(ctx, name.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after evict, got %v", err)
	}
}

func TestOpenAfterConcurrentDeleteIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	name := domain.Mint("Gone")
	a, err := s.Put(ctx, name, []byte("x"), t0)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.Remove(filepath.Join(s.Dir(), a.StoredName)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Open(ctx, a); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Stat(ctx, a.StoredName); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from stat, got %v", err)
	}
}

func TestSweepExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	ttl := 24 * time.Hour
	s := newTestStore(t)
	name := domain.Mint("Boundary")
	if _, err := s.Put(ctx, name, []byte("x"), t0); err != nil {
		t.Fatalf("put: %v", err)
	}

	n, err := s.Sweep(ctx, t0.Add(ttl-time.Second), ttl)
	if err != nil || n != 0 {
		t.Fatalf("sweep before ttl removed %d (err %v)", n, err)
	}
	if _, err := s.Resolve(ctx, name.ID); err != nil {
		t.Fatalf("resolve at T+ttl-1: %v", err)
	}

	n, err = s.Sweep(ctx, t0.Add(ttl+time.Second), ttl)
	if err != nil || n != 1 {
		t.Fatalf("sweep after ttl removed %d (err %v)", n, err)
	}
	if _, err := s.Resolve(ctx, name.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound at T+ttl+1, got %v", err)
	}
}

func TestSweepRemovesLegacyAndTempFiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	old := t0.Add(-48 * time.Hour)
	for _, n := range []string{"Cover_Letter_1a2b3c4d.docx", tempPrefix + "123"} {
		p := filepath.Join(s.Dir(), n)
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	fresh := domain.Mint("Fresh")
	if _, err := s.Put(ctx, fresh, []byte("x"), t0); err != nil {
		t.Fatalf("put: %v", err)
	}

	n, err := s.Sweep(ctx, t0, 24*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 removals, got %d", n)
	}
	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 1 || entries[0].Name() != fresh.StoredName {
		t.Fatalf("unexpected leftovers: %v", entries)
	}
}

func TestSweepKeepsFutureStampedFiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	name := domain.Mint("Skewed")
	if _, err := s.Put(ctx, name, []byte("x"), t0.Add(time.Hour)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if n, _ := s.Sweep(ctx, t0, time.Minute); n != 0 {
		t.Fatalf("future-stamped artifact swept")
	}
}

func TestPutRecreatesMissingDir(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := os.RemoveAll(s.Dir()); err != nil {
		t.Fatalf("remove dir: %v", err)
	}
	name := domain.Mint("Retry")
	if _, err := s.Put(ctx, name, []byte("x"), t0); err != nil {
		t.Fatalf("put after dir wipe: %v", err)
	}
	if _, err := s.Resolve(ctx, name.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
}

func TestPutFailsWithStorageWriteError(t *testing.T) {
	ctx := context.Background()
	parent := t.TempDir()
	blocker := filepath.Join(parent, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// a directory underneath a regular file can never be created
	s := &DiskStore{dir: filepath.Join(blocker, "out"), log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	_, err := s.Put(ctx, domain.Mint("Nope"), []byte("x"), t0)
	if !errors.Is(err, domain.ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}
}

func TestPutRejectsMismatchedName(t *testing.T) {
	s := newTestStore(t)
	name := domain.Mint("A")
	name.StoredName = "../escape.docx"
	if _, err := s.Put(context.Background(), name, nil, t0); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestConcurrentPutsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	const n = 50
	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := domain.Mint("Same Title")
			if _, err := s.Put(ctx, name, []byte(name.ID), t0); err != nil {
				t.Errorf("put: %v", err)
				return
			}
			ids[i] = name.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		a, err := s.Resolve(ctx, id)
		if err != nil {
			t.Fatalf("resolve %s: %v", id, err)
		}
		if got := string(readAll(t, s, a)); got != id {
			t.Fatalf("artifact %s holds %q", id, got)
		}
	}
}

func TestWritable(t *testing.T) {
	s := newTestStore(t)
	if err := s.Writable(context.Background()); err != nil {
		t.Fatalf("writable: %v", err)
	}
	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 0 {
		t.Fatalf("health probe left files behind: %v", entries)
	}
}
