package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/cryptoknight/knightd/pkg/metrics"
	"github.com/cryptoknight/knightd/pkg/models"
)

const delegateSystemPrompt = "You are an expert crypto trading assistant who communicates decisions as structured JSON without extra prose."

const delegateUserPrompt = "You are a senior cryptocurrency market analyst. " +
	"Evaluate the structured market snapshot provided below and forecast the short-term trend.\n" +
	"Focus on the supplied statistics—do not invent data.\n" +
	"Respond with a strict JSON object containing the keys: prediction (Bullish/Bearish/Neutral), confidence (0-1 float), " +
	"timeframe (string), and metrics (object with accuracy, precision, recall between 0 and 1 reflecting your expected reliability).\n" +
	"Avoid any explanatory text outside the JSON object.\n"

// Completer is the reasoning backend a Delegate consults.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Delegate hands the summarized market view to an external reasoning model
// and projects its JSON verdict onto a PredictionResult. Replies wrapped in
// code fences or surrounded by prose are tolerated; a reply with no
// recoverable JSON object surfaces ErrMalformedResponse.
type Delegate struct {
	completer Completer

	mu      sync.Mutex
	metrics models.QualityMetrics
}

// NewDelegate creates a forecaster backed by completer.
func NewDelegate(completer Completer) *Delegate {
	return &Delegate{completer: completer}
}

// Predict asks the reasoning backend for a verdict on symbol.
func (d *Delegate) Predict(ctx context.Context, snapshot models.Snapshot, symbol, timeframe string) (models.PredictionResult, error) {
	tf := NormalizeTimeframe(timeframe)

	summary, err := Summarize(snapshot, symbol, tf)
	if err != nil {
		metrics.Forecasts.WithLabelValues("delegate", "error").Inc()
		return models.PredictionResult{}, err
	}

	prompt, err := buildPrompt(summary)
	if err != nil {
		metrics.Forecasts.WithLabelValues("delegate", "error").Inc()
		return models.PredictionResult{}, err
	}

	content, err := d.completer.Complete(ctx, delegateSystemPrompt, prompt)
	if err != nil {
		metrics.Forecasts.WithLabelValues("delegate", "error").Inc()
		return models.PredictionResult{}, fmt.Errorf("delegate completion: %w", err)
	}

	payload, err := parseVerdict(content)
	if err != nil {
		metrics.Forecasts.WithLabelValues("delegate", "error").Inc()
		return models.PredictionResult{}, err
	}

	confidence := ratioFrom(payload["confidence"], 0)

	metricsPayload, _ := payload["metrics"].(map[string]interface{})
	quality := models.QualityMetrics{
		Accuracy:  ratioFrom(metricsPayload["accuracy"], confidence),
		Precision: ratioFrom(metricsPayload["precision"], confidence),
		Recall:    ratioFrom(metricsPayload["recall"], confidence),
	}

	label := models.LabelNeutral
	if raw, ok := payload["prediction"].(string); ok && strings.TrimSpace(raw) != "" {
		label = capitalizeLabel(raw)
	}

	// A recognized timeframe in the reply wins; anything else keeps the
	// requested horizon.
	resolved := tf
	if raw, ok := payload["timeframe"].(string); ok {
		candidate := strings.ToLower(strings.TrimSpace(raw))
		if _, supported := SupportedTimeframes[candidate]; supported {
			resolved = candidate
		}
	}

	d.mu.Lock()
	d.metrics = quality
	d.mu.Unlock()

	metrics.Forecasts.WithLabelValues("delegate", "ok").Inc()
	return models.PredictionResult{
		Symbol:     strings.ToUpper(symbol),
		Label:      label,
		Confidence: confidence,
		Metrics:    quality,
		Timeframe:  resolved,
	}, nil
}

// Retrain reports the metrics of the most recent forecast; the backing model
// is not trainable from here.
func (d *Delegate) Retrain() models.QualityMetrics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.metrics
}

// buildPrompt renders the analyst request with the summary attached as
// indented JSON.
func buildPrompt(summary Summary) (string, error) {
	encoded, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode market summary: %w", err)
	}
	return delegateUserPrompt + "\nMARKET DATA:\n" + string(encoded) + "\n", nil
}

var fenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// parseVerdict recovers the JSON object from a completion that may wrap it
// in markdown fences or surrounding prose.
func parseVerdict(content string) (map[string]interface{}, error) {
	cleaned := strings.TrimSpace(content)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty completion", ErrMalformedResponse)
	}

	if match := fenceRe.FindStringSubmatch(cleaned); len(match) > 1 {
		cleaned = strings.TrimSpace(match[1])
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &payload); err == nil {
		return payload, nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in completion", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return payload, nil
}

// capitalizeLabel folds a free-form verdict into canonical casing: first
// rune upper, the rest lower.
func capitalizeLabel(raw string) models.Label {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	r, size := utf8.DecodeRuneInString(lowered)
	return models.Label(strings.ToUpper(string(r)) + lowered[size:])
}
