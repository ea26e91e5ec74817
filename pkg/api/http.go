// Package api exposes the chat store over HTTP. Handlers are a thin JSON
// shell over the chat service; error codes map onto HTTP statuses and all
// responses are JSON.
package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"chatstore/internal/sweeper"
	"chatstore/pkg/chat"
	"chatstore/pkg/config"
	"chatstore/pkg/errs"
	"chatstore/pkg/logger"
	"chatstore/pkg/store"
	"chatstore/pkg/utils"
)

// Server bundles the service, the sweeper (for the admin trigger), and the
// request-level middleware state.
type Server struct {
	svc      *chat.Service
	sw       *sweeper.Sweeper
	st       *store.Store
	cfg      config.Config
	limiters sync.Map // caller key -> *rate.Limiter
}

// NewServer builds the HTTP layer over an assembled service.
func NewServer(svc *chat.Service, sw *sweeper.Sweeper, st *store.Store, cfg config.Config) *Server {
	return &Server{svc: svc, sw: sw, st: st, cfg: cfg}
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID, s.requestLog, s.rateLimit)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/docs/openapi.json"),
	)).Methods(http.MethodGet)
	r.HandleFunc("/docs/openapi.json", serveOpenAPI).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	s.registerChats(v1)
	s.registerMessages(v1)
	s.registerSettings(v1)
	s.registerAdmin(v1)
	return r
}

// requestID tags every request with an id for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", w.Header().Get("X-Request-ID"),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// rateLimit applies a token bucket per caller key. The key is the API key
// header when present, else the remote address.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.RemoteAddr
		}
		v, _ := s.limiters.LoadOrStore(key, rate.NewLimiter(rate.Limit(s.cfg.RateLimit.RPS), s.cfg.RateLimit.Burst))
		if !v.(*rate.Limiter).Allow() {
			utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeErr maps the error taxonomy onto HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errs.IsValidation(err):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	case errs.IsNotFound(err):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrConflict):
		utils.JSONError(w, http.StatusConflict, err.Error())
	case errs.IsTransient(err):
		utils.JSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}
