package models

import "time"

const (
	JOURNAL_ACTION_CREATED = "created"
	JOURNAL_ACTION_UPDATED = "updated"
)

// JournalEntryEvent is published by the journal API whenever an entry is
// created or its content changes.
type JournalEntryEvent struct {
	EntryID   string    `json:"entry_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// MoodAnalysisRecord replaces any earlier record for the same entry.
type MoodAnalysisRecord struct {
	EntryID string `json:"entry_id" dynamodbav:"entry_id"`
	UserID  string `json:"user_id" dynamodbav:"user_id"`
	AnalysisOutcome
	AnalyzedAt time.Time `json:"analyzed_at" dynamodbav:"analyzed_at,unixtime"`
}
