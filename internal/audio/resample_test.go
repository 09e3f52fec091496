package audio

import (
	"math"
	"testing"
)

func TestNewResampler_Factors(t *testing.T) {
	tests := []struct {
		from, to int
		up, down int
	}{
		{48000, 16000, 1, 3},
		{44100, 16000, 160, 441},
		{8000, 16000, 2, 1},
		{16000, 16000, 1, 1},
	}

	for _, tt := range tests {
		r := NewResampler(tt.from, tt.to)
		up, down := r.Factors()
		if up != tt.up || down != tt.down {
			t.Errorf("%d->%d: expected up=%d down=%d, got up=%d down=%d",
				tt.from, tt.to, tt.up, tt.down, up, down)
		}
	}
}

func TestResample_Length(t *testing.T) {
	tests := []struct {
		from, to int
		in       int
		want     int
	}{
		// 3 s at 48 kHz is 3 s at 16 kHz: one sample out per three in
		{48000, 16000, 3 * 48000, 3 * 16000},
		{44100, 16000, 44100, 16000},
		{8000, 16000, 8000, 16000},
	}

	for _, tt := range tests {
		r := NewResampler(tt.from, tt.to)
		out := r.Resample(make([]float32, tt.in))
		if d := len(out) - tt.want; d < -1 || d > 1 {
			t.Errorf("%d->%d: expected %d±1 samples, got %d", tt.from, tt.to, tt.want, len(out))
		}
		if len(out) != r.OutputLen(tt.in) {
			t.Errorf("%d->%d: OutputLen %d disagrees with Resample %d", tt.from, tt.to, r.OutputLen(tt.in), len(out))
		}
	}
}

func TestResample_SameRateSkips(t *testing.T) {
	r := NewResampler(16000, 16000)
	if r.NeedsResample() {
		t.Fatal("Expected NeedsResample to be false for equal rates")
	}

	in := seq(0, 10)
	out := r.Resample(in)
	if &out[0] != &in[0] {
		t.Error("Expected input to be returned unchanged")
	}
}

func TestResample_PreservesDC(t *testing.T) {
	r := NewResampler(48000, 16000)
	in := make([]float32, 4800)
	for i := range in {
		in[i] = 0.5
	}

	out := r.Resample(in)
	// Skip the filter edges.
	for i := 100; i < len(out)-100; i++ {
		if math.Abs(float64(out[i])-0.5) > 0.01 {
			t.Fatalf("Expected ~0.5 at %d, got %v", i, out[i])
		}
	}
}

func TestResample_TonePassband(t *testing.T) {
	// A 440 Hz tone survives 48k -> 16k with its amplitude intact.
	r := NewResampler(48000, 16000)
	in := make([]float32, 48000)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 48000))
	}

	out := r.Resample(in)
	var peak float64
	for _, v := range out[1000 : len(out)-1000] {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	if peak < 0.95 || peak > 1.05 {
		t.Errorf("Expected peak near 1.0, got %v", peak)
	}
}

func TestResampleStream_MatchesBatch(t *testing.T) {
	r := NewResampler(48000, 16000)
	in := make([]float32, 9600)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 300 * float64(i) / 48000))
	}

	batch := r.Resample(in)

	s := r.NewStream()
	var streamed []float32
	for off := 0; off < len(in); off += 1024 {
		end := min(off+1024, len(in))
		streamed = s.Process(streamed, in[off:end])
	}

	if len(streamed) == 0 || len(streamed) > len(batch) {
		t.Fatalf("Expected streamed output of at most %d samples, got %d", len(batch), len(streamed))
	}
	for i := range streamed {
		if math.Abs(float64(streamed[i]-batch[i])) > 1e-4 {
			t.Fatalf("Expected streamed sample %d to equal batch %v, got %v", i, batch[i], streamed[i])
		}
	}
}
