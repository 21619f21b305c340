package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spacesedan/moodjournal/config"
	"github.com/spacesedan/moodjournal/internal/models"
	"golang.org/x/oauth2"
)

type retryState int

const (
	stateAttempting retryState = iota
	stateBackingOff
	stateExhausted
)

type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	outcomeRetryable
	outcomeFatal
)

// Sleeper waits out a backoff delay. It returns early with ctx.Err() when the
// context ends first.
type Sleeper func(ctx context.Context, d time.Duration) error

type HuggingFaceClient struct {
	Client    *http.Client
	baseURL   string
	token     string
	retries   int
	baseDelay time.Duration
	sleep     Sleeper
}

type HuggingFaceOption func(*HuggingFaceClient)

func WithSleeper(s Sleeper) HuggingFaceOption {
	return func(h *HuggingFaceClient) {
		h.sleep = s
	}
}

func NewHuggingFaceClient(cfg config.HuggingFaceSettings, opts ...HuggingFaceOption) *HuggingFaceClient {
	retries := cfg.Retries
	if retries <= 0 {
		retries = MAX_RETRIES
	}
	baseDelay := cfg.BaseDelay
	if baseDelay < 0 {
		baseDelay = INITIAL_BACKOFF
	}

	transport := http.DefaultTransport
	if cfg.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: cfg.Token,
				TokenType:   "Bearer",
			}),
			Base: http.DefaultTransport,
		}
	}

	h := &HuggingFaceClient{
		Client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		retries:   retries,
		baseDelay: baseDelay,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(h)
	}

	slog.Info("[HuggingFaceClient] Initializing Client",
		slog.Duration("timeout", cfg.Timeout),
		slog.Int("retries", retries),
		slog.Bool("token_configured", cfg.Token != ""))

	return h
}

// Configured reports whether an API token is available.
func (h *HuggingFaceClient) Configured() bool {
	return h.token != ""
}

// Classify runs text through modelID and returns the top prediction.
// Response shapes that cannot be read collapse to an unknown label.
func (h *HuggingFaceClient) Classify(ctx context.Context, modelID, text string, topK int) (models.ClassificationResult, error) {
	start := time.Now()
	raw, err := h.Invoke(ctx, modelID, text, topK)
	if err != nil {
		slog.Error("[HuggingFaceClient] Classification request failed",
			slog.String("model", modelID),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return models.UnknownClassification(), err
	}

	result, shape := ParseClassification(raw)
	slog.Info("[HuggingFaceClient] Classification request successful",
		slog.String("model", modelID),
		slog.String("shape", shape.String()),
		slog.String("label", result.Label),
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}

// Invoke posts text to the inference endpoint of modelID and returns the raw
// JSON predictions. topK <= 0 omits the parameter.
func (h *HuggingFaceClient) Invoke(ctx context.Context, modelID, text string, topK int) (json.RawMessage, error) {
	if !h.Configured() {
		return nil, &ConfigurationError{Setting: "HF_API_TOKEN"}
	}

	payload := models.ClassificationRequest{Inputs: text}
	if topK > 0 {
		payload.Parameters = &models.ClassificationParameters{TopK: topK}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}
	endpoint := h.baseURL + "/" + modelID

	attempt := 1
	state := stateAttempting
	var lastErr error
	for {
		switch state {
		case stateAttempting:
			raw, outcome, err := h.attempt(ctx, modelID, endpoint, body)
			switch outcome {
			case outcomeSuccess:
				return raw, nil
			case outcomeFatal:
				return nil, err
			}

			lastErr = err
			slog.Warn("[HuggingFaceClient] Request failed, will retry",
				slog.String("model", modelID),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", h.retries),
				slog.String("error", err.Error()))

			if attempt >= h.retries {
				state = stateExhausted
			} else {
				state = stateBackingOff
			}

		case stateBackingOff:
			delay := time.Duration(attempt) * h.baseDelay
			if err := h.sleep(ctx, delay); err != nil {
				return nil, &RemoteServiceError{Model: modelID, Err: err}
			}
			attempt++
			state = stateAttempting

		case stateExhausted:
			return nil, exhausted(modelID, attempt, lastErr)
		}
	}
}

// Healthy probes the model endpoint without running inference. Rate
// limiting counts as healthy; other 4xx and 5xx responses do not.
func (h *HuggingFaceClient) Healthy(ctx context.Context, modelID string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/"+modelID, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := h.Client.Do(req)
	if err != nil {
		slog.Warn("[HuggingFaceClient] Health check failed",
			slog.String("model", modelID),
			slog.String("error", err.Error()))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return healthyStatus(resp.StatusCode)
}

// healthyStatus treats rate limiting as healthy but any other client error
// as misconfiguration, such as a bad token or an unknown model id.
func healthyStatus(code int) bool {
	switch {
	case code == http.StatusTooManyRequests:
		return true
	case code >= http.StatusBadRequest:
		return false
	default:
		return true
	}
}

func (h *HuggingFaceClient) attempt(ctx context.Context, modelID, endpoint string, body []byte) (json.RawMessage, attemptOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, outcomeFatal, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, outcomeRetryable, &RemoteServiceError{Model: modelID, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, outcomeRetryable, &RemoteServiceError{Model: modelID, StatusCode: resp.StatusCode, Err: err}
	}

	if msg, ok := inferenceError(respBody); ok {
		if strings.Contains(strings.ToLower(msg), "loading") {
			return nil, outcomeRetryable, &ModelUnavailableError{Model: modelID, Message: msg}
		}
		if !isRetryableStatus(resp.StatusCode) {
			return nil, outcomeFatal, &RemoteServiceError{Model: modelID, StatusCode: resp.StatusCode, Message: msg}
		}
	}

	switch {
	case isRetryableStatus(resp.StatusCode):
		return nil, outcomeRetryable, &RemoteServiceError{
			Model:      modelID,
			StatusCode: resp.StatusCode,
			Message:    preview(respBody),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, outcomeFatal, &RemoteServiceError{
			Model:      modelID,
			StatusCode: resp.StatusCode,
			Message:    preview(respBody),
		}
	}

	if !json.Valid(respBody) {
		slog.Error("[HuggingFaceClient] Failed to unmarshal response",
			slog.String("model", modelID),
			slog.String("raw_response", preview(respBody)),
			slog.Int("raw_response_length", len(respBody)))
		return nil, outcomeFatal, &RemoteServiceError{
			Model:      modelID,
			StatusCode: resp.StatusCode,
			Message:    "response is not valid JSON",
		}
	}

	return json.RawMessage(respBody), outcomeSuccess, nil
}

func exhausted(modelID string, attempts int, lastErr error) error {
	if mu, ok := lastErr.(*ModelUnavailableError); ok {
		return &ModelUnavailableError{Model: modelID, Attempts: attempts, Message: mu.Message}
	}
	return &RemoteServiceError{
		Model: modelID,
		Err:   fmt.Errorf("max retries exceeded after %d attempts: %w", attempts, lastErr),
	}
}

// inferenceError extracts the message of an {"error": ...} body.
func inferenceError(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var e models.InferenceError
	if err := json.Unmarshal(trimmed, &e); err != nil || e.Error == "" {
		return "", false
	}
	return e.Error, true
}

func isRetryableStatus(code int) bool {
	return code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func preview(body []byte) string {
	raw := string(body)
	if len(raw) > PREVIEW_LENGTH {
		raw = raw[:PREVIEW_LENGTH]
	}
	return raw
}
