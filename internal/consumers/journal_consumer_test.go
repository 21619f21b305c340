package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/moodjournal/internal/models"
	"github.com/spacesedan/moodjournal/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	texts []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, text string) models.AnalysisOutcome {
	f.texts = append(f.texts, text)
	return models.AnalysisOutcome{
		Sentiment:      models.SENTIMENT_POSITIVE,
		Emotion:        "joy",
		SentimentScore: 0.9,
		EmotionScore:   0.8,
		Score:          0.85,
		Recommendation: "Let gratitude amplify your happiness.",
	}
}

type fakeStore struct {
	mu      sync.Mutex
	batches [][]models.MoodAnalysisRecord
	err     error
	fails   int
}

func (f *fakeStore) BatchPutRecords(_ context.Context, records []models.MoodAnalysisRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.fails > 0 {
		f.fails--
		return errors.New("ProvisionedThroughputExceededException")
	}
	f.batches = append(f.batches, records)
	return nil
}

func (f *fakeStore) storedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, batch := range f.batches {
		for _, record := range batch {
			ids = append(ids, record.EntryID)
		}
	}
	return ids
}

type fakePublisher struct {
	keys  []string
	fails int
}

func (f *fakePublisher) Publish(_ context.Context, _ string, key string, _ any) error {
	if f.fails > 0 {
		f.fails--
		return errors.New("broker unavailable")
	}
	f.keys = append(f.keys, key)
	return nil
}

type fakeCommitter struct {
	committed []*kafka.Message
}

func (f *fakeCommitter) Commit(msg *kafka.Message) error {
	f.committed = append(f.committed, msg)
	return nil
}

func eventMessage(t *testing.T, event models.JournalEntryEvent) *kafka.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return &kafka.Message{Value: data}
}

const testTopic = "journal.entries"

func at(msg *kafka.Message, partition int32, offset kafka.Offset) *kafka.Message {
	topic := testTopic
	msg.TopicPartition = kafka.TopicPartition{Topic: &topic, Partition: partition, Offset: offset}
	return msg
}

func offsets(msgs []*kafka.Message) []kafka.Offset {
	var out []kafka.Offset
	for _, msg := range msgs {
		out = append(out, msg.TopicPartition.Offset)
	}
	return out
}

func newTestConsumer(analyzer MoodAnalyzer, store RecordStore, publisher ResultPublisher) *JournalConsumer {
	jc := NewJournalConsumer(analyzer, store, publisher, "mood.analysis.results")
	jc.now = func() time.Time { return time.Unix(1700000000, 0) }
	jc.publishDelay = time.Millisecond
	return jc
}

func TestHandleMessageBuffersRecord(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	jc := newTestConsumer(analyzer, &fakeStore{}, nil)

	full, err := jc.HandleMessage(context.Background(), eventMessage(t, models.JournalEntryEvent{
		EntryID: "entry-1",
		UserID:  "user-1",
		Content: "Had a lovely walk",
		Action:  models.JOURNAL_ACTION_CREATED,
	}))

	require.NoError(t, err)
	assert.False(t, full)
	assert.Equal(t, []string{"Had a lovely walk"}, analyzer.texts)
	assert.Equal(t, 1, jc.buffer.Size())
}

func TestHandleMessageRejectsInvalidEvents(t *testing.T) {
	tests := []struct {
		name string
		msg  func(t *testing.T) *kafka.Message
		want error
	}{
		{
			name: "missing entry id",
			msg: func(t *testing.T) *kafka.Message {
				return eventMessage(t, models.JournalEntryEvent{Content: "hi"})
			},
			want: ErrMissingEntryID,
		},
		{
			name: "deleted entries are not analyzed",
			msg: func(t *testing.T) *kafka.Message {
				return eventMessage(t, models.JournalEntryEvent{EntryID: "entry-1", Action: "deleted"})
			},
			want: ErrUnsupportedAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &fakeAnalyzer{}
			jc := newTestConsumer(analyzer, &fakeStore{}, nil)

			_, err := jc.HandleMessage(context.Background(), tt.msg(t))

			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, analyzer.texts)
			assert.Equal(t, 0, jc.buffer.Size())
		})
	}
}

func TestHandleMessageRejectsMalformedJSON(t *testing.T) {
	jc := newTestConsumer(&fakeAnalyzer{}, &fakeStore{}, nil)

	_, err := jc.HandleMessage(context.Background(), &kafka.Message{Value: []byte("{not json")})

	require.Error(t, err)
}

func TestHandleMessageReportsFullBuffer(t *testing.T) {
	jc := newTestConsumer(&fakeAnalyzer{}, &fakeStore{}, nil)

	var full bool
	for i := 0; i < utils.DYNAMODB_BATCH_SIZE; i++ {
		var err error
		full, err = jc.HandleMessage(context.Background(), eventMessage(t, models.JournalEntryEvent{
			EntryID: "entry-" + string(rune('a'+i)),
			Content: "ok",
		}))
		require.NoError(t, err)
	}
	assert.True(t, full)
}

func TestFlushStoresPublishesAndCommits(t *testing.T) {
	store := &fakeStore{}
	publisher := &fakePublisher{fails: 1}
	committer := &fakeCommitter{}
	jc := newTestConsumer(&fakeAnalyzer{}, store, publisher)
	ctx := context.Background()

	first := at(eventMessage(t, models.JournalEntryEvent{EntryID: "entry-1", UserID: "user-1", Content: "good"}), 0, 4)
	second := at(eventMessage(t, models.JournalEntryEvent{EntryID: "entry-2", UserID: "user-1", Content: "fine"}), 0, 5)
	other := at(eventMessage(t, models.JournalEntryEvent{EntryID: "entry-3", UserID: "user-2", Content: "fine"}), 1, 9)
	_, err := jc.HandleMessage(ctx, first)
	require.NoError(t, err)
	_, err = jc.HandleMessage(ctx, second)
	require.NoError(t, err)
	_, err = jc.HandleMessage(ctx, other)
	require.NoError(t, err)

	require.NoError(t, jc.Flush(ctx, committer))

	require.Len(t, store.batches, 1)
	batch := store.batches[0]
	require.Len(t, batch, 3)
	assert.Equal(t, "entry-1", batch[0].EntryID)
	assert.Equal(t, "user-1", batch[0].UserID)
	assert.Equal(t, "joy", batch[0].Emotion)
	assert.True(t, batch[0].AnalyzedAt.Equal(time.Unix(1700000000, 0)))

	assert.Equal(t, []string{"entry-1", "entry-2", "entry-3"}, publisher.keys)
	assert.Equal(t, []*kafka.Message{second, other}, committer.committed)
	assert.Equal(t, 0, jc.buffer.Size())
	assert.Equal(t, 0, jc.tracker.Size())
}

func TestFlushDoesNotCommitWhenStoreFails(t *testing.T) {
	store := &fakeStore{err: errors.New("throttled")}
	publisher := &fakePublisher{}
	committer := &fakeCommitter{}
	jc := newTestConsumer(&fakeAnalyzer{}, store, publisher)
	ctx := context.Background()

	msg := at(eventMessage(t, models.JournalEntryEvent{EntryID: "entry-1", Content: "meh"}), 0, 10)
	_, err := jc.HandleMessage(ctx, msg)
	require.NoError(t, err)

	err = jc.Flush(ctx, committer)

	require.Error(t, err)
	assert.Empty(t, committer.committed)
	assert.Empty(t, publisher.keys)
	assert.Equal(t, 1, jc.buffer.Size())
	assert.Equal(t, []*kafka.Message{msg}, jc.tracker.Take("entry-1"))
}

func TestFlushRetriesFailedBatchBeforeLaterOffsets(t *testing.T) {
	store := &fakeStore{fails: 1}
	committer := &fakeCommitter{}
	jc := newTestConsumer(&fakeAnalyzer{}, store, nil)
	ctx := context.Background()

	_, err := jc.HandleMessage(ctx, at(eventMessage(t, models.JournalEntryEvent{EntryID: "a", Content: "rough day"}), 0, 10))
	require.NoError(t, err)
	require.Error(t, jc.Flush(ctx, committer))

	_, err = jc.HandleMessage(ctx, at(eventMessage(t, models.JournalEntryEvent{EntryID: "b", Content: "better now"}), 0, 11))
	require.NoError(t, err)
	require.NoError(t, jc.Flush(ctx, committer))

	assert.Equal(t, []string{"a", "b"}, store.storedIDs())
	assert.Equal(t, []kafka.Offset{11}, offsets(committer.committed))
	assert.Equal(t, 0, jc.buffer.Size())
	assert.Equal(t, 0, jc.tracker.Size())
}

func TestFlushStoresLatestRecordPerEntry(t *testing.T) {
	store := &fakeStore{}
	publisher := &fakePublisher{}
	committer := &fakeCommitter{}
	analyzer := &fakeAnalyzer{}
	jc := newTestConsumer(analyzer, store, publisher)
	ctx := context.Background()

	events := []models.JournalEntryEvent{
		{EntryID: "e1", Content: "first draft", Action: models.JOURNAL_ACTION_CREATED},
		{EntryID: "e2", Content: "unrelated", Action: models.JOURNAL_ACTION_CREATED},
		{EntryID: "e1", Content: "second draft", Action: models.JOURNAL_ACTION_UPDATED},
	}
	for i, event := range events {
		_, err := jc.HandleMessage(ctx, at(eventMessage(t, event), 0, kafka.Offset(20+i)))
		require.NoError(t, err)
	}

	require.NoError(t, jc.Flush(ctx, committer))

	require.Len(t, store.batches, 1)
	batch := store.batches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "e1", batch[0].EntryID)
	assert.Equal(t, "e2", batch[1].EntryID)
	assert.Equal(t, []string{"e1", "e2"}, publisher.keys)
	assert.Equal(t, []kafka.Offset{22}, offsets(committer.committed))
	assert.Equal(t, 0, jc.tracker.Size())
}

func TestFlushEmptyBufferIsNoop(t *testing.T) {
	store := &fakeStore{}
	jc := newTestConsumer(&fakeAnalyzer{}, store, nil)

	require.NoError(t, jc.Flush(context.Background(), &fakeCommitter{}))
	assert.Empty(t, store.batches)
}

func TestWaitForHealthyGivesUpAfterLimit(t *testing.T) {
	var unhealthy atomic.Bool
	jc := newTestConsumer(&fakeAnalyzer{}, &fakeStore{}, nil).WithHealthCheck(&unhealthy)
	jc.healthLimit = 10 * time.Millisecond

	start := time.Now()
	jc.waitForHealthy(context.Background())

	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitForHealthyReturnsImmediatelyWhenHealthy(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	jc := newTestConsumer(&fakeAnalyzer{}, &fakeStore{}, nil).WithHealthCheck(&healthy)
	jc.healthLimit = time.Hour

	done := make(chan struct{})
	go func() {
		jc.waitForHealthy(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitForHealthy blocked while healthy")
	}
}

type scriptedSource struct {
	mu        sync.Mutex
	pending   []*kafka.Message
	committed []kafka.Offset
	// storedAtCommit records which entries the store held at each commit.
	storedAtCommit [][]string
	store          *fakeStore
}

func (s *scriptedSource) ReadMessage(_ time.Duration) (*kafka.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		time.Sleep(time.Millisecond)
		return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	}
	msg := s.pending[0]
	s.pending = s.pending[1:]
	return msg, nil
}

func (s *scriptedSource) CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, m.TopicPartition.Offset)
	s.storedAtCommit = append(s.storedAtCommit, s.store.storedIDs())
	return []kafka.TopicPartition{m.TopicPartition}, nil
}

func (s *scriptedSource) commits() ([]kafka.Offset, [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]kafka.Offset(nil), s.committed...), append([][]string(nil), s.storedAtCommit...)
}

func TestRunCommitsOnlyAfterFailedBatchIsStored(t *testing.T) {
	store := &fakeStore{fails: 2}
	source := &scriptedSource{store: store}
	for i, id := range []string{"a", "b", "a"} {
		source.pending = append(source.pending,
			at(eventMessage(t, models.JournalEntryEvent{EntryID: id, Content: "entry " + id}), 0, kafka.Offset(30+i)))
	}

	jc := newTestConsumer(&fakeAnalyzer{}, store, nil)
	jc.flushInterval = 5 * time.Millisecond
	jc.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		jc.Run(ctx, source)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		committed, _ := source.commits()
		return len(committed) > 0 && committed[len(committed)-1] == 32
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	committed, storedAtCommit := source.commits()
	for i, offset := range committed {
		assert.Contains(t, storedAtCommit[i], "a", "offset %d committed before entry a was stored", offset)
		if offset >= 31 {
			assert.Contains(t, storedAtCommit[i], "b", "offset %d committed before entry b was stored", offset)
		}
	}
	assert.Equal(t, 0, jc.buffer.Size())
}
