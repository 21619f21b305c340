package utils

import (
	"time"

	"github.com/spacesedan/moodjournal/internal/models"
)

func EventToRecord(event models.JournalEntryEvent, outcome models.AnalysisOutcome, analyzedAt time.Time) models.MoodAnalysisRecord {
	return models.MoodAnalysisRecord{
		EntryID:         event.EntryID,
		UserID:          event.UserID,
		AnalysisOutcome: outcome,
		AnalyzedAt:      analyzedAt.UTC(),
	}
}

// LatestPerEntry keeps one record per entry id, the last one buffered, in
// the order the entries first appeared. A DynamoDB batch write rejects
// duplicate keys.
func LatestPerEntry(records []models.MoodAnalysisRecord) []models.MoodAnalysisRecord {
	index := make(map[string]int, len(records))
	out := make([]models.MoodAnalysisRecord, 0, len(records))
	for _, record := range records {
		if i, ok := index[record.EntryID]; ok {
			out[i] = record
			continue
		}
		index[record.EntryID] = len(out)
		out = append(out, record)
	}
	return out
}
