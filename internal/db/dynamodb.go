package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/moodjournal/internal/models"
	"github.com/spacesedan/moodjournal/internal/utils"
)

const (
	MAX_BATCH_WRITE_SIZE = 25
	BATCH_WRITE_RETRIES  = 3
	ENTRY_ID_KEY         = "entry_id"
)

var ErrNoEntryID = errors.New("[DynamoDB] record has no entry id")

// DynamoDBAPI is the part of *dynamodb.Client the store needs.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// MoodStore keeps one analysis per journal entry, keyed by entry_id. Writes
// overwrite whatever was stored before.
type MoodStore struct {
	client    DynamoDBAPI
	tableName string
	backoff   time.Duration
}

func NewMoodStore(client DynamoDBAPI, tableName string) *MoodStore {
	return &MoodStore{
		client:    client,
		tableName: tableName,
		backoff:   500 * time.Millisecond,
	}
}

func (s *MoodStore) GetRecord(ctx context.Context, entryID string) (models.MoodAnalysisRecord, bool, error) {
	var record models.MoodAnalysisRecord

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			ENTRY_ID_KEY: &types.AttributeValueMemberS{Value: entryID},
		},
	})
	if err != nil {
		return record, false, fmt.Errorf("[DynamoDB] Failed to get mood analysis: %w", err)
	}
	if len(out.Item) == 0 {
		return record, false, nil
	}

	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return record, false, fmt.Errorf("[DynamoDB] Failed to unmarshal mood analysis: %w", err)
	}
	return record, true, nil
}

// BatchPutRecords writes records in chunks of 25 and retries unprocessed
// items with doubling backoff. When an entry appears more than once only its
// last record is written.
func (s *MoodStore) BatchPutRecords(ctx context.Context, records []models.MoodAnalysisRecord) error {
	records = utils.LatestPerEntry(records)

	for i := 0; i < len(records); i += MAX_BATCH_WRITE_SIZE {
		if err := ctx.Err(); err != nil {
			slog.Warn("[DynamoDB] context canceled")
			return err
		}

		end := i + MAX_BATCH_WRITE_SIZE
		if end > len(records) {
			end = len(records)
		}

		writeRequests := make([]types.WriteRequest, 0, end-i)
		for _, record := range records[i:end] {
			item, err := recordToItem(record)
			if err != nil {
				return err
			}
			writeRequests = append(writeRequests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		if err := s.batchWrite(ctx, writeRequests); err != nil {
			return err
		}
	}

	slog.Info("[DynamoDB] Successfully stored mood analyses",
		slog.Int("count", len(records)))
	return nil
}

func (s *MoodStore) batchWrite(ctx context.Context, writeRequests []types.WriteRequest) error {
	out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			s.tableName: writeRequests,
		},
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to batch write mood analyses: %w", err)
	}

	retryCount := 0
	backoff := s.backoff
	for len(out.UnprocessedItems) > 0 && retryCount < BATCH_WRITE_RETRIES {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2

		slog.Warn("[DynamoDB] Retrying unprocessed mood analyses...",
			slog.Int("attempt", retryCount+1),
			slog.Int("remaining", len(out.UnprocessedItems[s.tableName])))

		out, err = s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: out.UnprocessedItems,
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] Retry error: %w", err)
		}
		retryCount++
	}

	if remaining := len(out.UnprocessedItems[s.tableName]); remaining > 0 {
		slog.Error("[DynamoDB] Some mood analyses failed after retries",
			slog.Int("remaining", remaining))
		return fmt.Errorf("[DynamoDB] %d mood analyses left unprocessed", remaining)
	}
	return nil
}

func recordToItem(record models.MoodAnalysisRecord) (map[string]types.AttributeValue, error) {
	if record.EntryID == "" {
		return nil, ErrNoEntryID
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("[DynamoDB] Failed to marshal mood analysis: %w", err)
	}
	return item, nil
}
