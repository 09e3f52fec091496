package audio

// Framer cuts a continuous sample stream into fixed-size frames. The frame
// passed to the handler is reused between calls; handlers that keep it must
// copy it.
type Framer struct {
	frame []float32
	fill  int
	emit  func(frame []float32)
}

// NewFramer returns a framer producing frames of size samples.
func NewFramer(size int, emit func(frame []float32)) *Framer {
	return &Framer{frame: make([]float32, size), emit: emit}
}

// Size returns the frame length.
func (f *Framer) Size() int { return len(f.frame) }

// Write appends samples, emitting every completed frame.
func (f *Framer) Write(p []float32) {
	for len(p) > 0 {
		n := copy(f.frame[f.fill:], p)
		f.fill += n
		p = p[n:]
		if f.fill == len(f.frame) {
			f.emit(f.frame)
			f.fill = 0
		}
	}
}

// Reset drops any partial frame.
func (f *Framer) Reset() { f.fill = 0 }
