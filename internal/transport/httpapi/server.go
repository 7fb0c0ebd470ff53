// Package httpapi exposes the ingestion, query, and evaluation pipelines over
// a chi-routed JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cvlens/cvlens/internal/domain"
	"github.com/cvlens/cvlens/internal/extract"
	logpkg "github.com/cvlens/cvlens/internal/logger"
	"github.com/cvlens/cvlens/internal/metrics"
	answeruc "github.com/cvlens/cvlens/internal/usecase/answer"
	ingestuc "github.com/cvlens/cvlens/internal/usecase/ingest"
	queryuc "github.com/cvlens/cvlens/internal/usecase/query"
)

// defaultMaxUploadBytes bounds one multipart upload request when no limit is
// configured.
const defaultMaxUploadBytes = 32 << 20

// StatusClientClosedRequest mirrors nginx's non-standard 499: the client
// cancelled before a response was produced.
const StatusClientClosedRequest = 499

// Error codes returned in JSON error bodies.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeExtractionFailed = "extraction_failed"
	codeIndexingFailed   = "indexing_failed"
	codeSynthesisFailed  = "synthesis_failed"
	codeScoreInvalid     = "score_invalid"
	codeProviderError    = "provider_error"
	codeNotFound         = "not_found"
	codeCancelled        = "cancelled"
	codeInternalError    = "internal_error"
)

// SessionRegistry is the transport's view of session lifecycle.
type SessionRegistry interface {
	End(sessionID string)
	Remove(sessionID, contentHash string) (removed, orphaned bool)
}

// SectionDeleter reclaims a removed document's stored vectors.
type SectionDeleter interface {
	DeleteSections(ctx context.Context, contentHash string) (int, error)
}

// Pinger checks store connectivity for health reporting.
type Pinger interface {
	Ping(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server wires the usecases to HTTP handlers.
type Server struct {
	ingest        *ingestuc.Service
	query         *queryuc.Service
	answer        *answeruc.Service
	extractor     extract.Extractor
	sessions      SessionRegistry
	docs          SectionDeleter
	store         Pinger
	maxUpload     int64
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. A non-positive maxUploadBytes falls
// back to the default limit.
func NewServer(
	ingest *ingestuc.Service,
	query *queryuc.Service,
	answer *answeruc.Service,
	extractor extract.Extractor,
	sessions SessionRegistry,
	docs SectionDeleter,
	store Pinger,
	maxUploadBytes int64,
	logger *zap.Logger,
) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		ingest:    ingest,
		query:     query,
		answer:    answer,
		extractor: extractor,
		sessions:  sessions,
		docs:      docs,
		store:     store,
		maxUpload: maxUploadBytes,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		cancelledHandler,
		scoreInvalidHandler,
		sentinelHandler(domain.ErrExtractionFailed, http.StatusBadRequest, codeExtractionFailed),
		sentinelHandler(domain.ErrEmptyDocument, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrSynthesisFailed, http.StatusBadGateway, codeSynthesisFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrModelProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrIndexingFailed, http.StatusInternalServerError, codeIndexingFailed),
	}
	return s
}

// Router builds the route tree with recovery and request metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions/{sessionID}/documents", s.UploadDocuments)
		r.Delete("/sessions/{sessionID}/documents/{contentHash}", s.RemoveDocument)
		r.Post("/sessions/{sessionID}/query", s.Query)
		r.Delete("/sessions/{sessionID}", s.EndSession)
		r.Post("/evaluations", s.Evaluate)
	})

	return r
}

// requestLogger attaches a request-scoped logger to the context so deeper
// log lines carry the request id.
func requestLogger(base *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				l = base.With(zap.String("request_id", reqID))
			}
			next.ServeHTTP(w, r.WithContext(logpkg.ContextWithLogger(r.Context(), l)))
		})
	}
}

// fileResult is the per-file outcome of a batch upload.
type fileResult struct {
	Filename      string         `json:"filename"`
	Status        string         `json:"status"`
	ContentHash   string         `json:"content_hash,omitempty"`
	CandidateName string         `json:"candidate_name,omitempty"`
	Sections      int            `json:"sections,omitempty"`
	Degraded      bool           `json:"degraded,omitempty"`
	Error         *errorResponse `json:"error,omitempty"`
}

// UploadDocuments handles POST /v1/sessions/{sessionID}/documents.
// Files are processed independently: one unreadable file does not abort the
// rest of the batch.
func (s *Server) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "At least one file is required in the 'files' field")
		return
	}

	results := make([]fileResult, 0, len(files))
	succeeded, failed := 0, 0

	for _, fh := range files {
		res := s.ingestFile(r.Context(), sessionID, fh)
		if res.Error == nil {
			succeeded++
		} else {
			failed++
		}
		results = append(results, res)

		// Client cancellation aborts the whole batch; remaining files would
		// fail with the same cancelled outcome anyway.
		if r.Context().Err() != nil {
			s.handleDomainError(w, r.Context().Err())
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results":   results,
		"succeeded": succeeded,
		"failed":    failed,
	})
}

func (s *Server) ingestFile(ctx context.Context, sessionID string, fh *multipart.FileHeader) fileResult {
	data, err := s.readUpload(fh)
	if err != nil {
		return fileResult{
			Filename: fh.Filename,
			Status:   "error",
			Error:    &errorResponse{Code: codeBadRequest, Message: "Unreadable file: " + err.Error()},
		}
	}

	out, err := s.ingest.Ingest(ctx, sessionID, fh.Filename, data)
	if err != nil {
		logpkg.FromContext(ctx).Warn("File ingestion failed",
			zap.String("filename", fh.Filename),
			zap.Error(err))
		return fileResult{
			Filename: fh.Filename,
			Status:   "error",
			Error:    fileError(err),
		}
	}

	return fileResult{
		Filename:      fh.Filename,
		Status:        string(out.Status),
		ContentHash:   out.ContentHash,
		CandidateName: out.CandidateName,
		Sections:      out.SectionCount,
		Degraded:      out.Degraded,
	}
}

func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return data, nil
}

type queryRequest struct {
	Question string `json:"question"`
}

// Query handles POST /v1/sessions/{sessionID}/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Question is required")
		return
	}

	retrieval, err := s.query.Retrieve(r.Context(), sessionID, req.Question)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp, err := s.answer.Generate(r.Context(), req.Question, retrieval)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"answer":             resp.Text,
		"sources":            resp.Sources,
		"matched_candidates": retrieval.MatchedCandidates,
		"no_data":            resp.NoData,
	})
}

// RemoveDocument handles DELETE /v1/sessions/{sessionID}/documents/{contentHash}.
// The document leaves the session; its stored vectors are destroyed only once
// no active session references the content hash anymore.
func (s *Server) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	contentHash := chi.URLParam(r, "contentHash")

	removed, orphaned := s.sessions.Remove(sessionID, contentHash)
	if !removed {
		writeError(w, http.StatusNotFound, codeNotFound, "Document is not active in this session")
		return
	}

	if orphaned {
		n, err := s.docs.DeleteSections(r.Context(), contentHash)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		logpkg.FromContext(r.Context()).Info("Orphaned document reclaimed",
			zap.String("content_hash", contentHash),
			zap.Int("sections_deleted", n))
	}

	w.WriteHeader(http.StatusNoContent)
}

// EndSession handles DELETE /v1/sessions/{sessionID}. Ending an unknown
// session is a no-op: the observable state is the same either way.
func (s *Server) EndSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.End(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

// Evaluate handles POST /v1/evaluations: multipart 'cv' file plus a
// 'job_description' field.
func (s *Server) Evaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}

	jobDescription := strings.TrimSpace(r.FormValue("job_description"))
	if jobDescription == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Field 'job_description' is required")
		return
	}

	cvFiles := r.MultipartForm.File["cv"]
	if len(cvFiles) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "A CV file is required in the 'cv' field")
		return
	}

	data, err := s.readUpload(cvFiles[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Unreadable CV file: "+err.Error())
		return
	}

	cvText, err := s.extractor.Extract(r.Context(), cvFiles[0].Filename, data)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	report, err := s.answer.Evaluate(r.Context(), cvText, jobDescription)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "ok"}
	status, httpStatus := "healthy", http.StatusOK

	if err := s.store.Ping(r.Context()); err != nil {
		checks["store"] = "error"
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrExtractionFailed,
		domain.ErrEmptyDocument,
		domain.ErrDocumentNotFound,
		domain.ErrSynthesisFailed,
		domain.ErrEmbeddingProviderError,
		domain.ErrModelProviderError,
		domain.ErrIndexingFailed,
		domain.ErrVectorDimMismatch,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// fileError maps one file's ingestion error to a response item.
func fileError(err error) *errorResponse {
	code := codeInternalError
	switch {
	case errors.Is(err, domain.ErrExtractionFailed), errors.Is(err, domain.ErrEmptyDocument):
		code = codeExtractionFailed
	case errors.Is(err, domain.ErrEmbeddingProviderError), errors.Is(err, domain.ErrModelProviderError):
		code = codeProviderError
	case errors.Is(err, domain.ErrIndexingFailed), errors.Is(err, domain.ErrVectorDimMismatch):
		code = codeIndexingFailed
	}
	return &errorResponse{Code: code, Message: safeDomainMessage(err)}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// cancelledHandler maps client cancellation to a distinct outcome instead of
// letting it surface as a provider or synthesis failure.
func cancelledHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, context.Canceled) {
		return false
	}
	writeError(w, StatusClientClosedRequest, codeCancelled, "request cancelled by client")
	return true
}

// scoreInvalidHandler reports the raw rejected score alongside the error.
func scoreInvalidHandler(w http.ResponseWriter, err error, msg string) bool {
	var sie *domain.ScoreInvalidError
	if !errors.As(err, &sie) {
		return false
	}
	writeJSON(w, http.StatusBadGateway, map[string]any{
		"code":      codeScoreInvalid,
		"message":   msg,
		"raw_score": sie.Raw,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			s.logger.Warn("Request failed", zap.Error(err))
			return
		}
	}
	s.logger.Error("Unhandled domain error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
