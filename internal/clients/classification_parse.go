package clients

import (
	"bytes"
	"encoding/json"

	"github.com/spacesedan/moodjournal/internal/models"
)

// ResponseShape tags which of the inference API's layouts a response used.
// Single-label calls return a flat list, top_k calls a nested one, and some
// pipelines a bare object.
type ResponseShape int

const (
	ShapeUnrecognized ResponseShape = iota
	ShapeNestedList
	ShapeFlatList
	ShapeSingleObject
)

func (s ResponseShape) String() string {
	switch s {
	case ShapeNestedList:
		return "nested_list"
	case ShapeFlatList:
		return "flat_list"
	case ShapeSingleObject:
		return "single_object"
	default:
		return "unrecognized"
	}
}

type labelScore struct {
	Label *string `json:"label"`
	Score float64 `json:"score"`
}

func (l labelScore) result() models.ClassificationResult {
	r := models.ClassificationResult{Score: l.Score}
	if l.Label != nil {
		r.Label = *l.Label
	}
	return r
}

// ParseClassification picks the top prediction out of raw. Only the first
// element of a list is decoded, so trailing entries cannot spoil the result.
// Anything it does not recognize yields an unknown label with a zero score.
func ParseClassification(raw json.RawMessage) (models.ClassificationResult, ResponseShape) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return models.UnknownClassification(), ShapeUnrecognized
	}

	switch trimmed[0] {
	case '[':
		first, ok := firstElement(trimmed)
		if !ok {
			break
		}
		if first[0] == '[' {
			inner, ok := firstElement(first)
			if !ok {
				break
			}
			if item, ok := decodeLabelScore(inner); ok {
				return item.result(), ShapeNestedList
			}
			break
		}
		if item, ok := decodeLabelScore(first); ok {
			return item.result(), ShapeFlatList
		}

	case '{':
		if single, ok := decodeLabelScore(trimmed); ok && single.Label != nil {
			return single.result(), ShapeSingleObject
		}
	}

	return models.UnknownClassification(), ShapeUnrecognized
}

func firstElement(list []byte) ([]byte, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(list, &items); err != nil || len(items) == 0 {
		return nil, false
	}
	first := bytes.TrimSpace(items[0])
	if len(first) == 0 {
		return nil, false
	}
	return first, true
}

func decodeLabelScore(raw []byte) (labelScore, bool) {
	var item labelScore
	if len(raw) == 0 || raw[0] != '{' {
		return item, false
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, false
	}
	return item, true
}
