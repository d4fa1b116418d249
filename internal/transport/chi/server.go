// Package chi exposes the search orchestrator over HTTP with a chi router.
package chi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/knowmaps/internal/domain"
	"github.com/kailas-cloud/knowmaps/internal/domain/intent"
	"github.com/kailas-cloud/knowmaps/internal/domain/item"
	"github.com/kailas-cloud/knowmaps/internal/domain/place"
	"github.com/kailas-cloud/knowmaps/internal/metrics"
	"github.com/kailas-cloud/knowmaps/internal/repository/interaction"
	healthuc "github.com/kailas-cloud/knowmaps/internal/usecase/health"
)

const maxBodyBytes = 1 << 20

// Searcher runs orchestrated searches and place selection.
type Searcher interface {
	Search(ctx context.Context, userID string, in *intent.Intent) error
	SelectPlace(ctx context.Context, in *intent.Intent, placeID string) (place.Details, error)
}

// IntentLookup returns a snapshot of a previously indexed intent.
type IntentLookup interface {
	Intent(id string) (*intent.Intent, bool)
}

// InteractionStore persists user signals.
type InteractionStore interface {
	Append(ctx context.Context, in item.Interaction) error
	SetPreferences(ctx context.Context, userID string, p interaction.Preferences) error
	Preferences(ctx context.Context, userID string) (interaction.Preferences, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the HTTP API.
type Server struct {
	search        Searcher
	intents       IntentLookup
	interactions  InteractionStore
	health        HealthChecker
	apiKeys       []string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAPIKeys enables bearer authentication for /v1 routes.
func WithAPIKeys(keys []string) ServerOption {
	return func(s *Server) { s.apiKeys = keys }
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	intents IntentLookup,
	interactions InteractionStore,
	health HealthChecker,
	logger *zap.Logger,
	opts ...ServerOption,
) *Server {
	s := &Server{
		search:       search,
		intents:      intents,
		interactions: interactions,
		health:       health,
		logger:       logger,
	}
	for _, o := range opts {
		o(s)
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(interaction.ErrUserRequired, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(interaction.ErrItemRequired, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrSearchInFlight, http.StatusConflict, codeSearchInFlight),
		sentinelHandler(domain.ErrSearchSuperseded, http.StatusConflict, codeSearchSuperseded),
		sentinelHandler(domain.ErrSelectionDebounced, http.StatusTooManyRequests, codeSelectionDebounced),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrProviderUnavailable, http.StatusBadGateway, codeProviderUnavailable),
	}
	return s
}

// Routes builds the chi router with the full middleware chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.apiKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.Search)
		r.Get("/search/{intentID}", s.GetIntent)
		r.Post("/search/{intentID}/places/{placeID}/select", s.SelectPlace)
		r.Post("/users/{userID}/interactions", s.AppendInteraction)
		r.Put("/users/{userID}/preferences", s.PutPreferences)
		r.Get("/users/{userID}/preferences", s.GetPreferences)
	})
	return r
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	in, err := req.toIntent()
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			s.handleDomainError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	if err := s.search.Search(r.Context(), req.UserID, in); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intentToResponse(in))
}

// GetIntent handles GET /v1/search/{intentID}.
func (s *Server) GetIntent(w http.ResponseWriter, r *http.Request) {
	in, ok := s.intents.Intent(chi.URLParam(r, "intentID"))
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "search not found")
		return
	}
	writeJSON(w, http.StatusOK, intentToResponse(in))
}

// SelectPlace handles POST /v1/search/{intentID}/places/{placeID}/select.
func (s *Server) SelectPlace(w http.ResponseWriter, r *http.Request) {
	in, ok := s.intents.Intent(chi.URLParam(r, "intentID"))
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "search not found")
		return
	}
	d, err := s.search.SelectPlace(r.Context(), in, chi.URLParam(r, "placeID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// AppendInteraction handles POST /v1/users/{userID}/interactions.
func (s *Server) AppendInteraction(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec := req.toInteraction(chi.URLParam(r, "userID"))
	if err := s.interactions.Append(r.Context(), rec); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// PutPreferences handles PUT /v1/users/{userID}/preferences.
func (s *Server) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var req interaction.Preferences
	if !s.decode(w, r, &req) {
		return
	}
	if err := validatePreferences(req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}
	if err := s.interactions.SetPreferences(r.Context(), chi.URLParam(r, "userID"), req); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPreferences handles GET /v1/users/{userID}/preferences.
func (s *Server) GetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := s.interactions.Preferences(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			s.logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// --- Error envelope ---

const (
	codeBadRequest          = "bad_request"
	codeValidationFailed    = "validation_failed"
	codeUnauthorized        = "unauthorized"
	codeNotFound            = "not_found"
	codeSearchInFlight      = "search_in_flight"
	codeSearchSuperseded    = "search_superseded"
	codeSelectionDebounced  = "selection_debounced"
	codeRateLimited         = "rate_limited"
	codeProviderUnavailable = "provider_unavailable"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// validationHandler reports the offending field of an intent validation failure.
func validationHandler(w http.ResponseWriter, err error) bool {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Code:    codeValidationFailed,
		Message: ve.Error(),
		Field:   ve.Field,
	})
	return true
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// Only the sentinel text reaches the client.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func validatePreferences(p interaction.Preferences) error {
	for _, c := range p.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return errors.New("category name is required")
		}
	}
	for _, e := range p.Events {
		if strings.TrimSpace(e.Style) == "" {
			return errors.New("event style is required")
		}
	}
	return nil
}
