package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/spacesedan/moodjournal/config"
	"github.com/spacesedan/moodjournal/internal/models"
	"github.com/spacesedan/moodjournal/internal/sentiment"
)

const (
	DEFAULT_RECOMMENDATION = "No analysis available right now."
	EMOTION_TOP_K          = 1
	CACHE_KEY_PREFIX       = "mood:outcome:"
)

type Translator interface {
	TranslateToEnglish(ctx context.Context, text string) models.TranslationResult
}

type Classifier interface {
	Configured() bool
	Classify(ctx context.Context, modelID, text string, topK int) (models.ClassificationResult, error)
}

// Cache stores finished outcomes keyed by classifier input.
type Cache interface {
	GetOutcome(ctx context.Context, key string) (models.AnalysisOutcome, bool)
	StoreOutcome(ctx context.Context, key string, outcome models.AnalysisOutcome, ttl time.Duration) error
}

// LocalSentiment classifies text without a network call.
type LocalSentiment func(text string) models.ClassificationResult

type Analyzer struct {
	translator     Translator
	classifier     Classifier
	cache          Cache
	local          LocalSentiment
	sentimentModel string
	emotionModel   string
	maxInputChars  int
	cacheTTL       time.Duration
}

type Option func(*Analyzer)

func WithCache(c Cache) Option {
	return func(a *Analyzer) {
		a.cache = c
	}
}

func WithLocalSentiment(fn LocalSentiment) Option {
	return func(a *Analyzer) {
		a.local = fn
	}
}

func NewAnalyzer(cfg config.Settings, translator Translator, classifier Classifier, opts ...Option) *Analyzer {
	maxChars := cfg.Analysis.MaxInputChars
	if maxChars <= 0 {
		maxChars = config.DEFAULT_MAX_INPUT_CHARS
	}

	a := &Analyzer{
		translator:     translator,
		classifier:     classifier,
		sentimentModel: cfg.HuggingFace.SentimentModel,
		emotionModel:   cfg.HuggingFace.EmotionModel,
		maxInputChars:  maxChars,
		cacheTTL:       cfg.Analysis.CacheTTL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DefaultOutcome is returned whenever nothing could be classified.
func DefaultOutcome() models.AnalysisOutcome {
	return models.AnalysisOutcome{
		Sentiment:        models.LABEL_UNKNOWN,
		Emotion:          models.LABEL_UNKNOWN,
		Recommendation:   DEFAULT_RECOMMENDATION,
		DetectedLanguage: models.LABEL_UNKNOWN,
	}
}

func (a *Analyzer) AnalyzeRequest(ctx context.Context, req models.AnalysisRequest) models.AnalysisOutcome {
	return a.Analyze(ctx, req.Text)
}

// Analyze always returns a complete outcome. Remote failures degrade fields
// to unknown and zero instead of surfacing as errors.
func (a *Analyzer) Analyze(ctx context.Context, text string) models.AnalysisOutcome {
	if strings.TrimSpace(text) == "" {
		return DefaultOutcome()
	}

	translation := a.translator.TranslateToEnglish(ctx, text)

	input := translation.Text
	if strings.TrimSpace(input) == "" {
		input = text
	}
	if cleaned := sentiment.CleanText(input); cleaned != "" {
		input = cleaned
	}
	input = Truncate(input, a.maxInputChars)

	slog.Debug("[MoodAnalyzer] Using text for classification",
		slog.String("detected_language", translation.DetectedLanguage),
		slog.Int("input_length", len([]rune(input))))

	if !a.classifier.Configured() {
		slog.Warn("[MoodAnalyzer] HF_API_TOKEN not set, returning default analysis")
		return a.degraded(input, translation)
	}

	key := a.cacheKey(input)
	if cached, ok := a.lookup(ctx, key); ok {
		return withTranslation(cached, translation)
	}

	sent, err := a.classifier.Classify(ctx, a.sentimentModel, input, 0)
	if err != nil {
		slog.Error("[MoodAnalyzer] Sentiment model call failed",
			slog.String("model", a.sentimentModel),
			slog.String("error", err.Error()))
		return a.degraded(input, translation)
	}

	emotionComplete := true
	emo, err := a.classifier.Classify(ctx, a.emotionModel, input, EMOTION_TOP_K)
	if err != nil {
		slog.Warn("[MoodAnalyzer] Emotion model call failed",
			slog.String("model", a.emotionModel),
			slog.String("error", err.Error()))
		emo = models.UnknownClassification()
		emotionComplete = false
	}

	outcome := assemble(sent, emo, translation)
	if emotionComplete {
		a.store(ctx, key, outcome)
	}

	slog.Info("[MoodAnalyzer] Analysis complete",
		slog.String("sentiment", outcome.Sentiment),
		slog.String("emotion", outcome.Emotion),
		slog.Float64("score", outcome.Score))
	return outcome
}

// Recommend re-derives the recommendation for an already stored analysis.
func (a *Analyzer) Recommend(sentiment, emotion string, score float64) string {
	return Recommend(sentiment, emotion, score)
}

func (a *Analyzer) degraded(input string, translation models.TranslationResult) models.AnalysisOutcome {
	if a.local == nil {
		return withTranslation(DefaultOutcome(), translation)
	}

	slog.Info("[MoodAnalyzer] Falling back to local sentiment")
	return assemble(a.local(input), models.UnknownClassification(), translation)
}

func assemble(sent, emo models.ClassificationResult, translation models.TranslationResult) models.AnalysisOutcome {
	sentimentLabel := NormalizeSentiment(sent.Label)
	emotionLabel := NormalizeEmotion(emo.Label)
	combined := CombineScores(sent.Score, emo.Score, emotionLabel)

	return withTranslation(models.AnalysisOutcome{
		Sentiment:      sentimentLabel,
		Emotion:        emotionLabel,
		SentimentScore: Round4(sent.Score),
		EmotionScore:   Round4(emo.Score),
		Score:          combined,
		Recommendation: Recommend(sentimentLabel, emotionLabel, combined),
	}, translation)
}

func withTranslation(o models.AnalysisOutcome, translation models.TranslationResult) models.AnalysisOutcome {
	o.TranslatedText = translation.Text
	o.DetectedLanguage = translation.DetectedLanguage
	if o.DetectedLanguage == "" {
		o.DetectedLanguage = models.LABEL_UNKNOWN
	}
	return o
}

func (a *Analyzer) cacheKey(input string) string {
	sum := sha256.Sum256([]byte(a.sentimentModel + "\x00" + a.emotionModel + "\x00" + input))
	return CACHE_KEY_PREFIX + hex.EncodeToString(sum[:])
}

func (a *Analyzer) lookup(ctx context.Context, key string) (models.AnalysisOutcome, bool) {
	if a.cache == nil {
		return models.AnalysisOutcome{}, false
	}
	outcome, ok := a.cache.GetOutcome(ctx, key)
	if ok {
		slog.Debug("[MoodAnalyzer] Cache hit", slog.String("key", key))
	}
	return outcome, ok
}

func (a *Analyzer) store(ctx context.Context, key string, outcome models.AnalysisOutcome) {
	if a.cache == nil {
		return
	}
	if err := a.cache.StoreOutcome(ctx, key, outcome, a.cacheTTL); err != nil {
		slog.Warn("[MoodAnalyzer] Failed to cache outcome",
			slog.String("error", err.Error()))
	}
}

// Truncate keeps at most limit characters of text.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
