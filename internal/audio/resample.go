package audio

import "math"

// kaiserBeta matches the window commonly used for polyphase resampling.
const kaiserBeta = 5.0

// Resampler converts between two fixed rates with a rational polyphase
// FIR filter. The ratio is reduced once at construction.
type Resampler struct {
	from, to int
	up, down int
	taps     []float32
	delay    int // half filter length, in upsampled samples
}

// NewResampler builds a resampler from one rate to another.
func NewResampler(from, to int) *Resampler {
	g := gcd(from, to)
	r := &Resampler{
		from: from,
		to:   to,
		up:   to / g,
		down: from / g,
	}
	if r.NeedsResample() {
		r.taps, r.delay = designFilter(r.up, r.down)
	}
	return r
}

// Factors returns the reduced up and down factors.
func (r *Resampler) Factors() (up, down int) { return r.up, r.down }

// NeedsResample reports whether the two rates differ.
func (r *Resampler) NeedsResample() bool { return r.from != r.to }

// OutputLen returns the number of samples Resample produces for n inputs.
func (r *Resampler) OutputLen(n int) int {
	if !r.NeedsResample() {
		return n
	}
	return (n*r.up + r.down - 1) / r.down
}

// Resample converts a complete buffer. Samples past either edge are
// treated as zero. Equal rates return x unchanged.
func (r *Resampler) Resample(x []float32) []float32 {
	if !r.NeedsResample() || len(x) == 0 {
		return x
	}
	out := make([]float32, r.OutputLen(len(x)))
	for m := range out {
		out[m] = r.point(m, func(i int) (float32, bool) {
			if i >= len(x) {
				return 0, true
			}
			return x[i], true
		})
	}
	return out
}

// point evaluates output sample m. at returns the input sample at index i,
// or false when i is no longer available.
func (r *Resampler) point(m int, at func(i int) (float32, bool)) float32 {
	n := m*r.down + r.delay
	var acc float32
	for k := n % r.up; k < len(r.taps); k += r.up {
		i := (n - k) / r.up
		if i < 0 {
			break
		}
		v, ok := at(i)
		if !ok {
			break
		}
		acc += r.taps[k] * v
	}
	return acc
}

// NewStream returns a stateful resampler for chunked input.
func (r *Resampler) NewStream() *ResampleStream {
	return &ResampleStream{r: r}
}

// ResampleStream resamples a continuous signal delivered in chunks,
// keeping enough history that chunk boundaries are seamless.
type ResampleStream struct {
	r       *Resampler
	hist    []float32
	base    int // absolute input index of hist[0]
	nextOut int
}

// Process consumes a chunk and appends every output sample that can be
// computed so far to dst.
func (s *ResampleStream) Process(dst, chunk []float32) []float32 {
	r := s.r
	if !r.NeedsResample() {
		return append(dst, chunk...)
	}
	s.hist = append(s.hist, chunk...)
	total := s.base + len(s.hist)

	at := func(i int) (float32, bool) {
		if i < s.base {
			return 0, false
		}
		return s.hist[i-s.base], true
	}

	for {
		n := s.nextOut*r.down + r.delay
		if n/r.up >= total {
			break
		}
		dst = append(dst, r.point(s.nextOut, at))
		s.nextOut++
	}

	// Drop history no future output can reach.
	keep := (s.nextOut*r.down + r.delay - (len(r.taps) - 1)) / r.up
	if drop := keep - s.base; drop > 0 {
		drop = min(drop, len(s.hist))
		n := copy(s.hist, s.hist[drop:])
		s.hist = s.hist[:n]
		s.base += drop
	}
	return dst
}

// Reset discards history so the next chunk starts a new signal.
func (s *ResampleStream) Reset() {
	s.hist = s.hist[:0]
	s.base = 0
	s.nextOut = 0
}

// designFilter returns a Kaiser-windowed sinc low-pass scaled by up,
// with cutoff at the narrower of the two Nyquist bands.
func designFilter(up, down int) ([]float32, int) {
	maxRate := max(up, down)
	half := 10 * maxRate
	length := 2*half + 1
	fc := 1.0 / float64(maxRate)

	taps := make([]float32, length)
	i0Beta := besselI0(kaiserBeta)
	for k := 0; k < length; k++ {
		t := float64(k - half)
		ratio := 2*float64(k)/float64(length-1) - 1
		w := besselI0(kaiserBeta*math.Sqrt(1-ratio*ratio)) / i0Beta
		taps[k] = float32(float64(up) * fc * sinc(fc*t) * w)
	}
	return taps, half
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

// besselI0 is the zeroth-order modified Bessel function of the first kind.
func besselI0(x float64) float64 {
	sum, term := 1.0, 1.0
	q := x * x / 4
	for k := 1; k < 64; k++ {
		term *= q / float64(k*k)
		sum += term
		if term < sum*1e-12 {
			break
		}
	}
	return sum
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}
