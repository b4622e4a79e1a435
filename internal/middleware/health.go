package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// HealthChecker is one named dependency probe.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// StorageWriter is the part of the artifact store the health check needs.
type StorageWriter interface {
	Writable(ctx context.Context) error
}

// StorageHealthChecker reports whether new artifacts can be written.
type StorageHealthChecker struct {
	Store StorageWriter
}

func (s *StorageHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Store.Writable(ctx)
}

type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

type CheckStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthHandler runs every checker concurrently and answers 503 when any
// of them fails.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var (
			mu     sync.Mutex
			wg     sync.WaitGroup
			checks = make(map[string]CheckStatus, len(checkers))
		)
		for name, c := range checkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				start := time.Now()
				st := CheckStatus{Status: "healthy"}
				if err := c.Check(ctx); err != nil {
					st = CheckStatus{Status: "unhealthy", Message: err.Error()}
				}
				st.LatencyMS = time.Since(start).Milliseconds()
				mu.Lock()
				checks[name] = st
				mu.Unlock()
			}()
		}
		wg.Wait()

		health := HealthStatus{Status: "ok", Timestamp: time.Now().UTC(), Checks: checks}
		code := http.StatusOK
		for _, st := range checks {
			if st.Status != "healthy" {
				health.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		WriteJSON(w, code, health)
	}
}

// LivenessHandler only proves the process is serving.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
