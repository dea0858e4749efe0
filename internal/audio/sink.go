package audio

import (
	"context"
	"sync"
)

// BufferSink retains the most recently delivered clip so a polling
// client can fetch and play it. Each delivery replaces the previous
// one, which matches the coordinator's single-stream guarantee.
type BufferSink struct {
	mu    sync.Mutex
	label string
	data  []byte
	seq   uint64
}

func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

func (b *BufferSink) Play(_ context.Context, label string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.label = label
	b.data = append([]byte(nil), data...)
	b.seq++
	return nil
}

// Current returns the latest clip and a sequence number that changes
// on every delivery, so callers can skip clips they already played.
func (b *BufferSink) Current() (label string, data []byte, seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.label, append([]byte(nil), b.data...), b.seq
}
