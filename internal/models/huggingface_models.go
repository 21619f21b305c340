package models

type ClassificationRequest struct {
	Inputs     string                    `json:"inputs"`
	Parameters *ClassificationParameters `json:"parameters,omitempty"`
}

type ClassificationParameters struct {
	TopK int `json:"top_k,omitempty"`
}

// InferenceError is the body the inference API returns instead of
// predictions, e.g. while a model is still being loaded.
type InferenceError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}
