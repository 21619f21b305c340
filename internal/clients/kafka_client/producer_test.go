package kafka_client

import (
	"context"
	"errors"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTxnProducer mimics librdkafka: a transaction left open blocks the next
// BeginTransaction, and a fatal error poisons the instance for good.
type fakeTxnProducer struct {
	open       bool
	fatal      bool
	commitErrs []error
	produced   []*kafka.Message
	commits    int
	aborts     int
	closed     bool
}

func (f *fakeTxnProducer) InitTransactions(context.Context) error { return nil }

func (f *fakeTxnProducer) BeginTransaction() error {
	if f.fatal {
		return kafka.NewError(kafka.ErrFatal, "producer fenced", true)
	}
	if f.open {
		return kafka.NewError(kafka.ErrState, "transaction already in progress", false)
	}
	f.open = true
	return nil
}

func (f *fakeTxnProducer) Produce(msg *kafka.Message, _ chan kafka.Event) error {
	f.produced = append(f.produced, msg)
	return nil
}

func (f *fakeTxnProducer) CommitTransaction(context.Context) error {
	if len(f.commitErrs) > 0 {
		err := f.commitErrs[0]
		f.commitErrs = f.commitErrs[1:]
		if fatal(err) {
			f.fatal = true
		}
		return err
	}
	f.open = false
	f.commits++
	return nil
}

func (f *fakeTxnProducer) AbortTransaction(context.Context) error {
	if f.fatal {
		return kafka.NewError(kafka.ErrFatal, "producer fenced", true)
	}
	f.open = false
	f.aborts++
	return nil
}

func (f *fakeTxnProducer) Flush(int) int { return 0 }
func (f *fakeTxnProducer) Close() { f.closed = true }

func newFakeProducer(t *testing.T, instances ...*fakeTxnProducer) (*KafkaProducer, *int) {
	t.Helper()
	built := 0
	kp, err := newKafkaProducer(func() (transactionalProducer, error) {
		if built >= len(instances) {
			return nil, errors.New("no more producers")
		}
		p := instances[built]
		built++
		return p, nil
	})
	require.NoError(t, err)
	return kp, &built
}

func TestPublishCommitsTransaction(t *testing.T) {
	fake := &fakeTxnProducer{}
	kp, _ := newFakeProducer(t, fake)

	require.NoError(t, kp.Publish(context.Background(), "mood.analysis.results", "entry-1", map[string]string{"emotion": "joy"}))

	require.Len(t, fake.produced, 1)
	assert.Equal(t, "entry-1", string(fake.produced[0].Key))
	assert.JSONEq(t, `{"emotion":"joy"}`, string(fake.produced[0].Value))
	assert.Equal(t, 1, fake.commits)
	assert.False(t, fake.open)
}

func TestPublishAbortsAfterFailedCommit(t *testing.T) {
	fake := &fakeTxnProducer{commitErrs: []error{
		kafka.NewError(kafka.ErrTimedOut, "commit timed out", false),
	}}
	kp, built := newFakeProducer(t, fake)
	ctx := context.Background()

	require.Error(t, kp.Publish(ctx, "mood.analysis.results", "entry-1", "first"))
	assert.Equal(t, 1, fake.aborts)
	assert.False(t, fake.open)

	require.NoError(t, kp.Publish(ctx, "mood.analysis.results", "entry-2", "second"))
	assert.Equal(t, 1, fake.commits)
	assert.Equal(t, 1, *built)
}

func TestPublishRebuildsAfterFatalCommit(t *testing.T) {
	poisoned := &fakeTxnProducer{commitErrs: []error{
		kafka.NewError(kafka.ErrFatal, "producer fenced", true),
	}}
	fresh := &fakeTxnProducer{}
	kp, built := newFakeProducer(t, poisoned, fresh)
	ctx := context.Background()

	require.Error(t, kp.Publish(ctx, "mood.analysis.results", "entry-1", "first"))
	assert.True(t, poisoned.closed)
	assert.Equal(t, 2, *built)

	require.NoError(t, kp.Publish(ctx, "mood.analysis.results", "entry-2", "second"))
	assert.Equal(t, 1, fresh.commits)
	assert.Equal(t, 0, poisoned.commits)
}

func TestCloseIsIdempotent(t *testing.T) {
	fake := &fakeTxnProducer{}
	kp, _ := newFakeProducer(t, fake)

	kp.Close()
	kp.Close()

	assert.True(t, fake.closed)
}
