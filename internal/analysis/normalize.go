package analysis

import (
	"math"
	"strings"

	"github.com/spacesedan/moodjournal/internal/models"
)

// NormalizeSentiment folds the various polarity labels classifiers emit
// (POSITIVE, LABEL_2, pos, ...) onto positive, negative or neutral.
func NormalizeSentiment(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, "pos"):
		return models.SENTIMENT_POSITIVE
	case strings.Contains(l, "neg"):
		return models.SENTIMENT_NEGATIVE
	case l == "", l == "neutral", l == "none":
		return models.SENTIMENT_NEUTRAL
	default:
		return l
	}
}

func NormalizeEmotion(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return models.LABEL_UNKNOWN
	}
	return l
}

// CombineScores averages both confidences unless the emotion is unknown, in
// which case the sentiment confidence stands alone.
func CombineScores(sentimentScore, emotionScore float64, emotion string) float64 {
	if emotion == models.LABEL_UNKNOWN {
		return Round4(sentimentScore)
	}
	return Round4((sentimentScore + emotionScore) / 2.0)
}

func Round4(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*10000) / 10000
}
