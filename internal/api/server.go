// Package api is the JSON HTTP surface of the daemon: market data, forecasts,
// prediction history, price alerts and a websocket ticker stream.
//
// Authentication lives upstream. Handlers trust the X-User-ID header injected
// by the fronting proxy and reject requests without it.
package api

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/cryptoknight/knightd/internal/adapters/config"
	"github.com/cryptoknight/knightd/internal/forecast"
	"github.com/cryptoknight/knightd/pkg/logger"
	"github.com/cryptoknight/knightd/pkg/models"
)

// MarketSource is the market gateway surface the API reads from.
type MarketSource interface {
	Snapshot(ctx context.Context, forceRefresh bool) models.Snapshot
	GlobalMetrics(ctx context.Context) models.GlobalMetrics
}

// PredictionStore persists and lists forecasts.
type PredictionStore interface {
	Save(ctx context.Context, prediction *models.Prediction) error
	History(ctx context.Context, userID int64, limit int) ([]models.Prediction, error)
}

// AlertStore creates and lists price alerts.
type AlertStore interface {
	Create(ctx context.Context, alert *models.Alert) error
	ListByUser(ctx context.Context, userID int64) ([]models.Alert, error)
}

// Server is the public API server
type Server struct {
	router         *mux.Router
	server         *http.Server
	market         MarketSource
	forecaster     forecast.Forecaster
	predictions    PredictionStore
	alerts         AlertStore
	defaultSymbol  string
	streamInterval time.Duration
}

// NewServer creates the API server and wires its routes.
func NewServer(
	cfg *config.APIConfig,
	market MarketSource,
	forecaster forecast.Forecaster,
	predictions PredictionStore,
	alerts AlertStore,
	defaultSymbol string,
) *Server {
	s := &Server{
		router:         mux.NewRouter(),
		market:         market,
		forecaster:     forecaster,
		predictions:    predictions,
		alerts:         alerts,
		defaultSymbol:  defaultSymbol,
		streamInterval: cfg.StreamInterval,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/market-data", s.handleMarketData).Methods(http.MethodGet)
	api.HandleFunc("/analytics", s.handleAnalytics).Methods(http.MethodGet)
	api.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	api.HandleFunc("/predictions/history", s.handlePredictionHistory).Methods(http.MethodGet)
	api.HandleFunc("/predict/retrain", s.handleRetrain).Methods(http.MethodPost)
	api.HandleFunc("/alerts", s.handleListAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts", s.handleCreateAlert).Methods(http.MethodPost)
	api.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server
func (s *Server) Start() error {
	logger.Info("API server starting",
		zap.String("addr", s.server.Addr),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("stopping API server...")
	return s.server.Shutdown(ctx)
}

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyUserID
)

// requestIDMiddleware tags each request with a short unique ID
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs every request with its status and latency
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		logger.Info("http request",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapper.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

// authMiddleware requires a positive integer X-User-ID header
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return id
	}
	return ""
}

func userIDFrom(ctx context.Context) int64 {
	if id, ok := ctx.Value(ctxKeyUserID).(int64); ok {
		return id
	}
	return 0
}

// responseWrapper captures the status code for logging
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade reach the underlying connection through
// the logging wrapper.
func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}
