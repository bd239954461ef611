package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cryptoknight/knightd/internal/forecast"
	"github.com/cryptoknight/knightd/pkg/logger"
	"github.com/cryptoknight/knightd/pkg/models"
)

// historyLimit caps the prediction history response; the dashboard shows the
// five most recent forecasts.
const historyLimit = 5

type marketDataResponse struct {
	Tickers []models.Ticker               `json:"tickers"`
	Charts  map[string]models.ChartSeries `json:"chart_data"`
}

type predictRequest struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Notes     string `json:"notes"`
}

type historyItem struct {
	Symbol     string                `json:"symbol"`
	Timeframe  string                `json:"timeframe"`
	Prediction models.Label          `json:"prediction"`
	Confidence float64               `json:"confidence"`
	Metrics    models.QualityMetrics `json:"metrics"`
	CreatedAt  string                `json:"created_at"`
}

type retrainResponse struct {
	Status    string                `json:"status"`
	Metrics   models.QualityMetrics `json:"metrics"`
	UpdatedAt string                `json:"updated_at"`
}

type alertItem struct {
	Symbol    string           `json:"symbol"`
	Direction models.Direction `json:"direction"`
	Threshold float64          `json:"threshold"`
	IsActive  bool             `json:"is_active"`
}

type alertListResponse struct {
	Status string      `json:"status"`
	Alerts []alertItem `json:"alerts"`
}

type createAlertRequest struct {
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Threshold float64 `json:"threshold"`
}

type createAlertResponse struct {
	Status string    `json:"status"`
	Alert  alertItem `json:"alert"`
}

// handleMarketData serves the normalized snapshot: tickers plus chart series.
func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request) {
	snap := s.market.Snapshot(r.Context(), false)
	writeJSON(w, http.StatusOK, marketDataResponse{
		Tickers: snap.Tickers,
		Charts:  snap.Charts,
	})
}

// handleAnalytics serves the market-wide aggregates.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.market.GlobalMetrics(r.Context()))
}

// handlePredict runs a forecast and persists the result for the caller.
// A malformed body falls back to defaults rather than erroring.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		symbol = s.defaultSymbol
	}

	ctx := r.Context()
	snap := s.market.Snapshot(ctx, false)

	result, err := s.forecaster.Predict(ctx, snap, symbol, req.Timeframe)
	if err != nil {
		if errors.Is(err, forecast.ErrSymbolNotFound) || errors.Is(err, forecast.ErrMalformedResponse) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("prediction failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}

	record := &models.Prediction{
		UserID:     userIDFrom(ctx),
		Symbol:     result.Symbol,
		Timeframe:  result.Timeframe,
		Label:      result.Label,
		Confidence: result.Confidence,
		Metrics:    result.Metrics,
	}
	if req.Notes != "" {
		record.Notes = &req.Notes
	}

	if err := s.predictions.Save(ctx, record); err != nil {
		logger.Error("failed to save prediction",
			zap.String("symbol", result.Symbol),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to save prediction")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handlePredictionHistory lists the caller's most recent forecasts.
func (s *Server) handlePredictionHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.predictions.History(r.Context(), userIDFrom(r.Context()), historyLimit)
	if err != nil {
		logger.Error("failed to load prediction history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load prediction history")
		return
	}

	items := make([]historyItem, 0, len(records))
	for _, record := range records {
		items = append(items, historyItem{
			Symbol:     record.Symbol,
			Timeframe:  record.Timeframe,
			Prediction: record.Label,
			Confidence: record.Confidence,
			Metrics:    record.Metrics,
			CreatedAt:  record.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, items)
}

// handleRetrain reports the current forecaster quality metrics.
func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	metrics := s.forecaster.Retrain()
	writeJSON(w, http.StatusOK, retrainResponse{
		Status:    "ok",
		Metrics:   metrics,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListAlerts lists the caller's alerts, newest first.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.alerts.ListByUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		logger.Error("failed to load alerts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}

	items := make([]alertItem, 0, len(alerts))
	for _, alert := range alerts {
		items = append(items, alertItem{
			Symbol:    alert.Symbol,
			Direction: alert.Direction,
			Threshold: models.ToFloat64(alert.Threshold),
			IsActive:  alert.IsActive,
		})
	}

	writeJSON(w, http.StatusOK, alertListResponse{Status: "ok", Alerts: items})
}

// handleCreateAlert arms a new price alert for the caller.
func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	direction := models.Direction(strings.ToLower(strings.TrimSpace(req.Direction)))
	if !direction.Valid() {
		writeError(w, http.StatusBadRequest, "direction must be above or below")
		return
	}

	if req.Threshold < 0 {
		writeError(w, http.StatusBadRequest, "threshold must not be negative")
		return
	}

	alert := &models.Alert{
		UserID:    userIDFrom(r.Context()),
		Symbol:    symbol,
		Direction: direction,
		Threshold: decimal.NewFromFloat(req.Threshold),
	}
	if err := s.alerts.Create(r.Context(), alert); err != nil {
		logger.Error("failed to create alert",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to create alert")
		return
	}

	writeJSON(w, http.StatusCreated, createAlertResponse{
		Status: "ok",
		Alert: alertItem{
			Symbol:    alert.Symbol,
			Direction: alert.Direction,
			Threshold: models.ToFloat64(alert.Threshold),
			IsActive:  alert.IsActive,
		},
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
