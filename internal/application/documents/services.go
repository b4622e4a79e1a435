package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/bryanwahyu/docgen/internal/application"
	domain "github.com/bryanwahyu/docgen/internal/domain/documents"
)

// DefaultTTL is how long an artifact stays downloadable.
const DefaultTTL = 24 * time.Hour

// Metrics the service reports to. Implemented by middleware.PromMetrics.
type Metrics interface {
	IncDocumentsCreated(docType string)
	IncDownloads(result string)
	AddSwept(n int)
	IncStorageErrors(op string)
}

type noopMetrics struct{}

func (noopMetrics) IncDocumentsCreated(string) {}
func (noopMetrics) IncDownloads(string)        {}
func (noopMetrics) AddSwept(int)               {}
func (noopMetrics) IncStorageErrors(string)    {}

// Service implements the document use-cases.
// It holds no per-artifact state and is safe for concurrent use.
type Service struct {
	Store   domain.ArtifactStore
	Encoder domain.Encoder
	Clock   application.Clock
	// Index is optional; nil means every retrieve resolves from the store.
	Index domain.Index
	// TTL defaults to DefaultTTL when zero.
	TTL time.Duration
	// PublicBaseURL makes download references absolute when set.
	PublicBaseURL string
	Metrics       Metrics
	Log           *slog.Logger
}

// CreateResult is returned by Create.
type CreateResult struct {
	Artifact          domain.Artifact
	DownloadReference string
	ExpiresAt         time.Time
	// Data is set only for inline delivery.
	Data []byte
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultTTL
	}
	return s.TTL
}

func (s *Service) metrics() Metrics {
	if s.Metrics == nil {
		return noopMetrics{}
	}
	return s.Metrics
}

func (s *Service) log() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// DownloadReference formats the download link for id.
func (s *Service) DownloadReference(id string) string {
	return strings.TrimRight(s.PublicBaseURL, "/") + "/v1/download/" + id
}

// Create renders, mints a name and persists. The sweep runs first, so the new artifact
// can never be removed by the pass its own request triggered.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (CreateResult, error) {
	now := s.Clock.Now()
	s.Sweep(ctx, now)

	data, err := s.Encoder.Encode(domain.Render(req, now))
	if err != nil {
		return CreateResult{}, fmt.Errorf("encode document: %w", err)
	}

	name := domain.Mint(req.Title)
	a, err := s.Store.Put(ctx, name, data, now)
	if err != nil {
		s.metrics().IncStorageErrors("put")
		return CreateResult{}, err
	}

	if s.Index != nil {
		if err := s.Index.Remember(ctx, a.ID, a.StoredName, s.ttl()); err != nil {
			s.log().Warn("index remember failed", "id", a.ID, "err", err)
		}
	}
	s.metrics().IncDocumentsCreated(string(req.DocumentType))
	s.log().Info("document created",
		"id", a.ID, "type", req.DocumentType, "stored_name", a.StoredName, "bytes", a.Size)

	res := CreateResult{
		Artifact:          a,
		DownloadReference: s.DownloadReference(a.ID),
		ExpiresAt:         a.ExpiresAt(s.ttl()),
	}
	if req.Delivery == domain.DeliveryInline {
		res.Data = data
	}
	return res, nil
}

// Retrieve sweeps, resolves id and opens the bytes. Every way of not having
// a live artifact comes back as domain.ErrNotFound.
func (s *Service) Retrieve(ctx context.Context, id string) (domain.Artifact, io.ReadCloser, error) {
	if !domain.ValidID(id) {
		s.metrics().IncDownloads("not_found")
		return domain.Artifact{}, nil, domain.ErrNotFound
	}

	now := s.Clock.Now()
	s.Sweep(ctx, now)

	a, err := s.resolve(ctx, id)
	if err == nil && domain.Expired(a.CreatedAt, now, s.ttl()) {
		// sweep could not remove it; it is still dead
		_ = s.Evict(ctx, id)
		err = domain.ErrNotFound
	}
	if err != nil {
		return domain.Artifact{}, nil, s.retrieveFailed(err)
	}

	rc, err := s.Store.Open(ctx, a)
	if err != nil {
		return domain.Artifact{}, nil, s.retrieveFailed(err)
	}
	s.metrics().IncDownloads("ok")
	return a, rc, nil
}

func (s *Service) retrieveFailed(err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidID) {
		s.metrics().IncDownloads("not_found")
		return domain.ErrNotFound
	}
	s.metrics().IncDownloads("error")
	s.metrics().IncStorageErrors("resolve")
	return err
}

// resolve tries the index first and always confirms against the store.
func (s *Service) resolve(ctx context.Context, id string) (domain.Artifact, error) {
	if s.Index != nil {
		if storedName, ok := s.Index.Lookup(ctx, id); ok {
			a, err := s.Store.Stat(ctx, storedName)
			if err == nil && a.ID == id {
				return a, nil
			}
			_ = s.Index.Forget(ctx, id)
		}
	}

	a, err := s.Store.Resolve(ctx, id)
	if err != nil {
		return domain.Artifact{}, err
	}
	if s.Index != nil {
		remaining := a.ExpiresAt(s.ttl()).Sub(s.Clock.Now())
		if remaining > 0 {
			_ = s.Index.Remember(ctx, id, a.StoredName, remaining)
		}
	}
	return a, nil
}

// Evict removes an artifact. Idempotent.
func (s *Service) Evict(ctx context.Context, id string) error {
	if !domain.ValidID(id) {
		return nil
	}
	if s.Index != nil {
		if err := s.Index.Forget(ctx, id); err != nil {
			s.log().Warn("index forget failed", "id", id, "err", err)
		}
	}
	if err := s.Store.Evict(ctx, id); err != nil {
		s.metrics().IncStorageErrors("evict")
		return err
	}
	return nil
}

// Sweep evicts artifacts older than the TTL. Failures are logged, never
// returned: a sweep must not fail the request that triggered it.
func (s *Service) Sweep(ctx context.Context, now time.Time) int {
	n, err := s.Store.Sweep(ctx, now, s.ttl())
	if err != nil {
		s.metrics().IncStorageErrors("sweep")
		s.log().Warn("sweep failed", "removed", n, "err", err)
	}
	if n > 0 {
		s.metrics().AddSwept(n)
		s.log().Info("expired documents swept", "removed", n)
	}
	return n
}

// RunSweeper sweeps every interval until ctx is done. Only useful for
// deployments that can sit idle for long periods.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx, s.Clock.Now())
		}
	}
}
