package telemetry

import "sync"

// ringBuffer is a bounded, thread-safe buffer for finished span records.
// When full, the oldest records are dropped to make room for new ones:
// availability of the request path takes priority over telemetry
// completeness, so enqueue never blocks and never fails the caller.
type ringBuffer struct {
	mu       sync.Mutex
	records  []SpanRecord
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 2048 // default
	}
	return &ringBuffer{
		records:  make([]SpanRecord, capacity),
		capacity: capacity,
	}
}

// Enqueue adds a record, dropping the oldest if necessary.
func (b *ringBuffer) Enqueue(rec SpanRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
	}

	b.records[b.head] = rec
	b.head = (b.head + 1) % b.capacity
	b.count++
}

// DequeueBatch removes up to n records from the buffer.
func (b *ringBuffer) DequeueBatch(n int) []SpanRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	if n > b.count {
		n = b.count
	}

	result := make([]SpanRecord, n)
	for i := 0; i < n; i++ {
		result[i] = b.records[b.tail]
		b.records[b.tail] = SpanRecord{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n

	return result
}

// Len returns the current number of buffered records.
func (b *ringBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of dropped records.
func (b *ringBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
