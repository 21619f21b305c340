package analysis

import (
	"context"
	"log/slog"

	"github.com/spacesedan/moodjournal/config"
	"github.com/spacesedan/moodjournal/internal/clients"
	"github.com/spacesedan/moodjournal/internal/sentiment"
)

// NewFromSettings builds an analyzer backed by DeepL and the Hugging Face
// Inference API. The returned cleanup closes the optional valkey cache.
func NewFromSettings(ctx context.Context, cfg config.Settings) (*Analyzer, *clients.HuggingFaceClient, func()) {
	translator := clients.NewDeepLClient(cfg.Translator)
	classifier := clients.NewHuggingFaceClient(cfg.HuggingFace)

	var opts []Option
	cleanup := func() {}

	if cfg.Valkey.Enabled() {
		cache, err := clients.NewValkeyClient(ctx, cfg.Valkey)
		if err != nil {
			slog.Warn("[MoodAnalyzer] Cache unavailable, continuing without it",
				slog.String("error", err.Error()))
		} else {
			opts = append(opts, WithCache(cache))
			cleanup = cache.Close
		}
	}

	if cfg.Analysis.VADERFallback {
		opts = append(opts, WithLocalSentiment(sentiment.ClassifyWithVADER))
	}

	return NewAnalyzer(cfg, translator, classifier, opts...), classifier, cleanup
}
