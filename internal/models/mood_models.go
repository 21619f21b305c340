package models

const (
	SENTIMENT_POSITIVE = "positive"
	SENTIMENT_NEGATIVE = "negative"
	SENTIMENT_NEUTRAL  = "neutral"
	LABEL_UNKNOWN      = "unknown"
)

type AnalysisRequest struct {
	Text string `json:"text"`
	// SourceLanguage is accepted for API symmetry; the language is always auto-detected.
	SourceLanguage string `json:"source_language,omitempty"`
}

type TranslationResult struct {
	Text             string `json:"translated_text"`
	DetectedLanguage string `json:"detected_language"`
}

type ClassificationResult struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// UnknownClassification is what an unusable classifier response collapses to.
func UnknownClassification() ClassificationResult {
	return ClassificationResult{Label: LABEL_UNKNOWN, Score: 0.0}
}

type AnalysisOutcome struct {
	Sentiment        string  `json:"sentiment" dynamodbav:"sentiment"`
	Emotion          string  `json:"emotion" dynamodbav:"emotion"`
	SentimentScore   float64 `json:"sentiment_score" dynamodbav:"sentiment_score"`
	EmotionScore     float64 `json:"emotion_score" dynamodbav:"emotion_score"`
	Score            float64 `json:"score" dynamodbav:"score"`
	Recommendation   string  `json:"recommendation" dynamodbav:"recommendation"`
	TranslatedText   string  `json:"translated_text" dynamodbav:"translated_text,omitempty"`
	DetectedLanguage string  `json:"detected_language" dynamodbav:"detected_language"`
}
