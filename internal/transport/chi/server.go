// Package chi serves the tool endpoints over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/digestsearch/internal/domain"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/digestsearch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/digestsearch/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/digestsearch/internal/usecase/search"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 8 << 20

// Error codes returned in error bodies.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeRateLimited      = "rate_limited"
	codeQuotaExceeded    = "embedding_quota_exceeded"
	codeProviderError    = "embedding_provider_error"
	codeStoreUnavailable = "store_unavailable"
	codeInternal         = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	ingest        *ingestuc.Service
	search        *searchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ingest *ingestuc.Service,
	search *searchuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingest: ingest,
		search: search,
		health: health,
		logger: logger,
		errorHandlers: []errorHandler{
			validationHandler,
			sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
			sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
			sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
			sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable),
		},
	}
}

// Register mounts the routes on r.
func (s *Server) Register(r chi.Router) {
	r.Route("/tools", func(r chi.Router) {
		r.Post("/embed_and_upsert", s.EmbedAndUpsert)
		r.Post("/search_similar", s.SearchSimilar)
		r.Post("/fetch_relevant_messages", s.SearchSimilar)
		r.Get("/sample_messages", s.SampleMessages)
	})
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// EmbedAndUpsert handles POST /tools/embed_and_upsert.
func (s *Server) EmbedAndUpsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if !decodeBody(w, r, &req) {
		return
	}

	records := make([]ingestuc.Record, len(req.Messages))
	for i := range req.Messages {
		records[i] = recordFromWire(&req.Messages[i])
	}

	report, err := s.ingest.UpsertBatch(r.Context(), records)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := upsertResponse{UpsertedCount: report.Upserted}
	for _, res := range report.Results {
		if res.Err() == nil {
			continue
		}
		code, msg := failureDetail(res.Err())
		resp.Failed = append(resp.Failed, upsertFailure{MessageID: res.ID(), Code: code, Message: msg})
	}
	writeJSON(w, http.StatusOK, resp)
}

// SearchSimilar handles POST /tools/search_similar and its
// fetch_relevant_messages alias.
func (s *Server) SearchSimilar(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if !decodeBody(w, r, &body) {
		return
	}

	req, err := request.New(body.params())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	hits, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := searchResponse{Results: make([]scoredHit, len(hits))}
	for i := range hits {
		resp.Results[i] = hitToWire(&hits[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// SampleMessages handles GET /tools/sample_messages.
func (s *Server) SampleMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be a positive integer")
			return
		}
		limit = n
	}

	msgs, err := s.search.Sample(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := sampleResponse{Results: make([]messageRecord, len(msgs))}
	for i := range msgs {
		resp.Results[i] = messageToWire(&msgs[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrRateLimited,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
		domain.ErrStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// validationHandler passes validation detail through; it never carries
// store or provider text.
func validationHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrInvalidRequest) {
		return false
	}
	writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
	return true
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := loggerFor(r, s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("unhandled error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

func failureDetail(err error) (code, message string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return codeValidationFailed, err.Error()
	case errors.Is(err, domain.ErrStoreUnavailable):
		return codeStoreUnavailable, safeDomainMessage(err)
	default:
		return codeInternal, safeDomainMessage(err)
	}
}
