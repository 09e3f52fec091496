package audio

// RingBuffer is a fixed-capacity circular sample buffer. When a write would
// overflow, the oldest samples are overwritten.
//
// RingBuffer is not safe for concurrent use; Recorder guards it.
type RingBuffer struct {
	buf      []float32
	writePos int
	count    int
}

// NewRingBuffer allocates a ring buffer holding capacity samples.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{buf: make([]float32, capacity)}
}

// Cap returns the buffer capacity in samples.
func (r *RingBuffer) Cap() int { return len(r.buf) }

// Len returns the number of valid samples.
func (r *RingBuffer) Len() int { return r.count }

// Reset zeroes the cursor, the count and the storage without reallocating.
func (r *RingBuffer) Reset() {
	clear(r.buf)
	r.writePos = 0
	r.count = 0
}

// Write appends samples. It never allocates.
func (r *RingBuffer) Write(p []float32) {
	n := len(p)
	if n == 0 {
		return
	}
	capacity := len(r.buf)

	if n >= capacity {
		// Only the newest capacity samples survive.
		copy(r.buf, p[n-capacity:])
		r.writePos = 0
		r.count = capacity
		return
	}

	first := copy(r.buf[r.writePos:], p)
	if first < n {
		copy(r.buf, p[first:])
	}

	r.writePos = (r.writePos + n) % capacity
	r.count = min(r.count+n, capacity)
}

// Snapshot returns a copy of the valid samples, oldest first.
func (r *RingBuffer) Snapshot() []float32 {
	if r.count == 0 {
		return nil
	}
	out := make([]float32, r.count)
	if r.count < len(r.buf) {
		copy(out, r.buf[:r.count])
		return out
	}
	n := copy(out, r.buf[r.writePos:])
	copy(out[n:], r.buf[:r.writePos])
	return out
}
