package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spacesedan/moodjournal/config"
	"github.com/spacesedan/moodjournal/internal/models"
)

const DEEPL_TARGET_LANG = "EN"

type DeepLClient struct {
	Client   *http.Client
	endpoint string
	apiKey   string
}

func NewDeepLClient(cfg config.TranslatorSettings) *DeepLClient {
	slog.Info("[DeepLClient] Initializing Client",
		slog.Duration("timeout", cfg.Timeout),
		slog.Bool("key_configured", cfg.APIKey != ""))

	return &DeepLClient{
		Client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: cfg.URL,
		apiKey:   cfg.APIKey,
	}
}

// TranslateToEnglish never fails: when translation is skipped or breaks the
// input comes back untouched with an unknown language.
func (d *DeepLClient) TranslateToEnglish(ctx context.Context, text string) models.TranslationResult {
	fallback := models.TranslationResult{Text: text, DetectedLanguage: models.LABEL_UNKNOWN}

	if text == "" {
		return fallback
	}
	if d.apiKey == "" {
		slog.Warn("[DeepLClient] TRANSLATE_API_KEY not set, skipping translation")
		return fallback
	}

	slog.Debug("[DeepLClient] Sending text for translation",
		slog.String("text", preview([]byte(text))))

	start := time.Now()
	result, err := d.translate(ctx, text)
	if err != nil {
		slog.Warn("[DeepLClient] Translation failed",
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return fallback
	}

	slog.Info("[DeepLClient] Translation successful",
		slog.String("detected_language", result.DetectedLanguage),
		slog.Duration("elapsed", time.Since(start)))
	return result
}

func (d *DeepLClient) translate(ctx context.Context, text string) (models.TranslationResult, error) {
	form := url.Values{}
	form.Set("auth_key", d.apiKey)
	form.Set("text", text)
	form.Set("target_lang", DEEPL_TARGET_LANG)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return models.TranslationResult{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := d.Client.Do(req)
	if err != nil {
		return models.TranslationResult{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.TranslationResult{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.TranslationResult{}, fmt.Errorf("status code %d: %s", resp.StatusCode, preview(body))
	}

	var decoded models.DeepLTranslateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return models.TranslationResult{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(decoded.Translations) == 0 {
		return models.TranslationResult{}, fmt.Errorf("unexpected response shape: %s", preview(body))
	}

	first := decoded.Translations[0]
	detected := first.DetectedSourceLanguage
	if detected == "" {
		detected = models.LABEL_UNKNOWN
	}
	return models.TranslationResult{Text: first.Text, DetectedLanguage: detected}, nil
}
