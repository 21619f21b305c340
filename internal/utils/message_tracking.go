package utils

import (
	"sort"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// MessageTracker remembers which Kafka messages carried an entry so their
// offsets can be committed once the entry's analysis is stored. An entry
// edited twice in quick succession is tracked under both messages.
type MessageTracker struct {
	mu       sync.Mutex
	messages map[string][]*kafka.Message
}

func (mt *MessageTracker) Track(entryID string, msg *kafka.Message) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if mt.messages == nil {
		mt.messages = make(map[string][]*kafka.Message)
	}
	mt.messages[entryID] = append(mt.messages[entryID], msg)
}

// Take returns and forgets every message tracked for entryID.
func (mt *MessageTracker) Take(entryID string) []*kafka.Message {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	msgs := mt.messages[entryID]
	delete(mt.messages, entryID)
	return msgs
}

func (mt *MessageTracker) Size() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return len(mt.messages)
}

// LatestOffsets keeps the highest-offset message of every topic partition.
// Kafka commits are cumulative, so committing those covers the rest.
func LatestOffsets(msgs []*kafka.Message) []*kafka.Message {
	type partitionKey struct {
		topic     string
		partition int32
	}

	latest := make(map[partitionKey]*kafka.Message)
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		key := partitionKey{partition: msg.TopicPartition.Partition}
		if msg.TopicPartition.Topic != nil {
			key.topic = *msg.TopicPartition.Topic
		}
		if current, ok := latest[key]; !ok || msg.TopicPartition.Offset > current.TopicPartition.Offset {
			latest[key] = msg
		}
	}

	out := make([]*kafka.Message, 0, len(latest))
	for _, msg := range latest {
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].TopicPartition, out[j].TopicPartition
		if a.Topic != nil && b.Topic != nil && *a.Topic != *b.Topic {
			return *a.Topic < *b.Topic
		}
		return a.Partition < b.Partition
	})
	return out
}
