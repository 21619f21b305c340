package utils

import (
	"sync"
	"time"
)

const (
	DYNAMODB_BATCH_SIZE = 25
	BATCH_TIMEOUT       = 5 * time.Second
)

type BatchBuffer[T any] struct {
	buffer     []T
	capacity   int
	bufferLock sync.Mutex
}

func NewBatchBuffer[T any](capacity int) *BatchBuffer[T] {
	return &BatchBuffer[T]{
		buffer:   make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Add appends item and reports whether the buffer reached its capacity.
func (b *BatchBuffer[T]) Add(item T) bool {
	b.bufferLock.Lock()
	defer b.bufferLock.Unlock()

	b.buffer = append(b.buffer, item)
	return len(b.buffer) >= b.capacity
}

func (b *BatchBuffer[T]) GetAndClear() []T {
	b.bufferLock.Lock()
	defer b.bufferLock.Unlock()

	if len(b.buffer) == 0 {
		return nil
	}

	batch := b.buffer
	b.buffer = make([]T, 0, b.capacity)
	return batch
}

func (b *BatchBuffer[T]) Size() int {
	b.bufferLock.Lock()
	defer b.bufferLock.Unlock()
	return len(b.buffer)
}

// Restore puts items back in front of anything buffered since they were
// taken, so a failed flush can be retried in the original order.
func (b *BatchBuffer[T]) Restore(items []T) {
	if len(items) == 0 {
		return
	}

	b.bufferLock.Lock()
	defer b.bufferLock.Unlock()

	restored := make([]T, 0, len(items)+len(b.buffer))
	restored = append(restored, items...)
	b.buffer = append(restored, b.buffer...)
}
