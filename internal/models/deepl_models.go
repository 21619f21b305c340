package models

type DeepLTranslateResponse struct {
	Translations []DeepLTranslation `json:"translations"`
}

type DeepLTranslation struct {
	Text                   string `json:"text"`
	DetectedSourceLanguage string `json:"detected_source_language"`
}
