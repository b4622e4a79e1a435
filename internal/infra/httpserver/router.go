package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appdocs "github.com/bryanwahyu/docgen/internal/application/documents"
	domain "github.com/bryanwahyu/docgen/internal/domain/documents"
	"github.com/bryanwahyu/docgen/internal/middleware"
)

// DefaultMaxBodyBytes caps the create payload when Deps.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 5 << 20

const notFoundMessage = "document not found or expired; regenerate it"

// Deps is everything the router needs. Metrics, Limiter and Health are optional.
type Deps struct {
	Service        *appdocs.Service
	Metrics        *middleware.PromMetrics
	Health         map[string]middleware.HealthChecker
	Limiter        *middleware.RateLimiter
	Token          string
	AllowedOrigins []string
	MaxBodyBytes   int64
	Log            *slog.Logger
}

type Router struct {
	svc     *appdocs.Service
	log     *slog.Logger
	maxBody int64
}

func NewRouter(d Deps) http.Handler {
	r := &Router{svc: d.Service, log: d.Log, maxBody: d.MaxBodyBytes}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.maxBody <= 0 {
		r.maxBody = DefaultMaxBodyBytes
	}

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	if d.Metrics != nil {
		mux.Use(d.Metrics.Middleware)
	}
	mux.Use(middleware.Logging(r.log))
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/health/live", middleware.LivenessHandler)
	if d.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	mux.Route("/v1", func(rt chi.Router) {
		// the identifier is the capability, so downloads need no token
		rt.Get("/download/{identifier}", r.wrap(r.handleDownload))

		rt.Group(func(auth chi.Router) {
			auth.Use(middleware.BearerAuth(d.Token))
			if d.Limiter != nil {
				auth.Use(middleware.RateLimit(d.Limiter))
			}
			auth.Post("/documents", r.wrap(r.handleCreate))
			auth.Delete("/documents/{identifier}", r.wrap(r.handleDelete))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// requestError is a client mistake caught before the service is called.
type requestError struct {
	status int
	code   string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

type validationBody struct {
	Error   string                  `json:"error"`
	Message string                  `json:"message"`
	Fields  []middleware.FieldError `json:"fields,omitempty"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var rerr *requestError
		var verr *middleware.ValidationError
		switch {
		case errors.As(err, &rerr):
			middleware.WriteError(w, rerr.status, rerr.code, rerr.msg)
		case errors.As(err, &verr):
			middleware.WriteJSON(w, http.StatusUnprocessableEntity, validationBody{
				Error:   "validation_failed",
				Message: verr.Error(),
				Fields:  verr.Fields,
			})
		case errors.Is(err, domain.ErrValidation):
			middleware.WriteError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		case errors.Is(err, domain.ErrNotFound):
			middleware.WriteError(w, http.StatusNotFound, "not_found", notFoundMessage)
		case errors.Is(err, domain.ErrStorageWrite):
			r.log.Error("storage failure", "path", req.URL.Path, "err", err)
			middleware.WriteError(w, http.StatusInternalServerError, "storage_unavailable", "document storage is unavailable")
		default:
			r.log.Error("request failed", "path", req.URL.Path, "err", err)
			middleware.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
		}
	}
}

type createResponse struct {
	Identifier        string    `json:"identifier"`
	DisplayName       string    `json:"display_name"`
	FileName          string    `json:"file_name"`
	ContentType       string    `json:"content_type"`
	DownloadReference string    `json:"download_reference"`
	ExpiresAt         time.Time `json:"expires_at"`
	FileBase64        string    `json:"file_base64,omitempty"`
}

// POST /v1/documents
func (r *Router) handleCreate(w http.ResponseWriter, req *http.Request) error {
	var body domain.CreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, r.maxBody)).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &requestError{http.StatusRequestEntityTooLarge, "payload_too_large",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)}
		}
		return &requestError{http.StatusBadRequest, "invalid_json", "request body must be a JSON object"}
	}
	if err := middleware.ValidateCreateRequest(&body); err != nil {
		return err
	}

	res, err := r.svc.Create(req.Context(), body)
	if err != nil {
		return err
	}

	resp := createResponse{
		Identifier:        res.Artifact.ID,
		DisplayName:       res.Artifact.DisplayName,
		FileName:          res.Artifact.FileName(),
		ContentType:       domain.ContentTypeDOCX,
		DownloadReference: res.DownloadReference,
		ExpiresAt:         res.ExpiresAt,
	}
	if res.Data != nil {
		resp.FileBase64 = base64.StdEncoding.EncodeToString(res.Data)
	}
	middleware.WriteJSON(w, http.StatusCreated, resp)
	return nil
}

// GET /v1/download/{identifier}
func (r *Router) handleDownload(w http.ResponseWriter, req *http.Request) error {
	a, rc, err := r.svc.Retrieve(req.Context(), chi.URLParam(req, "identifier"))
	if err != nil {
		return err
	}
	defer rc.Close()

	h := w.Header()
	h.Set("Content-Type", domain.ContentTypeDOCX)
	h.Set("Content-Disposition", contentDisposition(a.FileName()))
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	if a.Size > 0 {
		h.Set("Content-Length", strconv.FormatInt(a.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	// headers are gone; a broken copy can only be logged
	if _, err := io.Copy(w, rc); err != nil {
		r.log.Warn("download interrupted", "id", a.ID, "err", err)
	}
	return nil
}

// DELETE /v1/documents/{identifier}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	if err := r.svc.Evict(req.Context(), chi.URLParam(req, "identifier")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// contentDisposition quotes ASCII names directly and adds an RFC 5987
// filename* for anything else.
func contentDisposition(name string) string {
	for _, c := range name {
		if c > 0x7e || c < 0x20 {
			return fmt.Sprintf(`attachment; filename="document.docx"; filename*=UTF-8''%s`, url.PathEscape(name))
		}
	}
	return fmt.Sprintf(`attachment; filename="%s"`, name)
}
