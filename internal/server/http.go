package server

import (
	"SherPool/internal/observability"
	"SherPool/internal/query"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the read API over the projection tables plus
// health and metrics endpoints.
type HTTPServer struct {
	httpServer    *http.Server
	addr          string
	healthChecker *observability.HealthChecker
}

// ServerDeps holds the dependencies wired into the HTTP handlers.
type ServerDeps struct {
	QueryService  *query.QueryService
	HealthChecker *observability.HealthChecker
	StartTime     time.Time
}

// NewHTTPServer builds the chi router and registers all routes.
func NewHTTPServer(addr string, deps *ServerDeps) *HTTPServer {
	h := &handlers{qs: deps.QueryService, startTime: deps.StartTime}

	logger := observability.NewLogger("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(requestLogger(logger))

	r.Get("/healthz", deps.HealthChecker.LivenessHandler)
	r.Get("/readyz", deps.HealthChecker.ReadinessHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/pools", h.listPools)
		r.Get("/pools/{asset}", h.getPool)
		r.Get("/pools/{asset}/exchange-rate", h.getExchangeRate)
		r.Get("/pools/{asset}/stakers/{account}", h.getStakerPosition)
		r.Get("/balances/{asset}", h.getAccountBalance)
		r.Get("/sherx/supply", h.getSherXSupply)
		r.Get("/sherx/balances/{account}", h.getSherXBalance)
		r.Get("/sherx/weights", h.listWeights)
		r.Get("/protocols/{protocolID}/balance/{asset}", h.getProtocolBalance)
		r.Get("/protocols/{protocolID}/coverage", h.getProtocolCoverage)
		r.Get("/protocols/{protocolID}/settlements", h.getSettlementHistory)
		r.Get("/journal", h.getJournalHistory)
		r.Get("/integrity", h.verifyIntegrity)
		r.Get("/status", h.status)
	})

	return &HTTPServer{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 20 * time.Second,
		},
		addr:          addr,
		healthChecker: deps.HealthChecker,
	}
}

// Start begins serving. Blocks until the listener fails or Stop is called.
func (s *HTTPServer) Start() error {
	log.Printf("INFO: HTTP server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.healthChecker.SetReady(false)
	return s.httpServer.Shutdown(ctx)
}

// requestLogger emits one structured line per request. Health and metrics
// probes are skipped to keep the log readable.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

type handlers struct {
	qs        *query.QueryService
	startTime time.Time
}

func (h *handlers) listPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.qs.ListPools(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, pools)
}

func (h *handlers) getPool(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	pool, err := h.qs.GetPool(r.Context(), asset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if pool == nil {
		writeErrorMsg(w, http.StatusNotFound, "pool not found")
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// getExchangeRate reports the wad-scaled underlying value of one share.
// 404 while the pool has no shares: the rate is undefined, not zero.
func (h *handlers) getExchangeRate(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	resp, err := h.qs.GetExchangeRate(r.Context(), asset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if resp == nil {
		writeErrorMsg(w, http.StatusNotFound, "no exchange rate for pool")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getStakerPosition(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	account, err := uuid.Parse(chi.URLParam(r, "account"))
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid account id")
		return
	}
	resp, err := h.qs.GetStakerPosition(r.Context(), asset, account.String())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if resp == nil {
		writeErrorMsg(w, http.StatusNotFound, "staker position not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getSherXSupply(w http.ResponseWriter, r *http.Request) {
	resp, err := h.qs.GetSherXSupply(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getSherXBalance(w http.ResponseWriter, r *http.Request) {
	account, err := uuid.Parse(chi.URLParam(r, "account"))
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid account id")
		return
	}
	resp, err := h.qs.GetSherXBalance(r.Context(), account.String())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) listWeights(w http.ResponseWriter, r *http.Request) {
	resp, err := h.qs.ListWeights(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getProtocolCoverage(w http.ResponseWriter, r *http.Request) {
	protocolID, err := uuid.Parse(chi.URLParam(r, "protocolID"))
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid protocol id")
		return
	}
	rows, err := h.qs.GetProtocolCoverage(r.Context(), protocolID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// getAccountBalance reads a single projected account balance. The account
// path is passed as the "path" query parameter since paths contain colons.
func (h *handlers) getAccountBalance(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	path := r.URL.Query().Get("path")
	if path == "" {
		writeErrorMsg(w, http.StatusBadRequest, "missing path query parameter")
		return
	}
	resp, err := h.qs.GetAccountBalance(r.Context(), path, asset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getProtocolBalance(w http.ResponseWriter, r *http.Request) {
	protocolID, err := uuid.Parse(chi.URLParam(r, "protocolID"))
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid protocol id")
		return
	}
	asset := chi.URLParam(r, "asset")
	resp, err := h.qs.GetProtocolBalance(r.Context(), protocolID, asset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getSettlementHistory(w http.ResponseWriter, r *http.Request) {
	protocolID, err := uuid.Parse(chi.URLParam(r, "protocolID"))
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid protocol id")
		return
	}
	var asset *string
	if a := r.URL.Query().Get("asset"); a != "" {
		asset = &a
	}
	limit := parseLimit(r, 100)
	after := parseAfterSequence(r)
	rows, err := h.qs.GetSettlementHistory(r.Context(), protocolID, asset, limit, after)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handlers) getJournalHistory(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("account_prefix")
	if prefix == "" {
		writeErrorMsg(w, http.StatusBadRequest, "missing account_prefix query parameter")
		return
	}
	limit := parseLimit(r, 100)
	after := parseAfterSequence(r)
	rows, err := h.qs.GetJournalHistory(r.Context(), prefix, limit, after)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handlers) verifyIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.qs.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 1000 {
		return def
	}
	return n
}

func parseAfterSequence(r *http.Request) *int64 {
	raw := r.URL.Query().Get("after_sequence")
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("WARN: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
