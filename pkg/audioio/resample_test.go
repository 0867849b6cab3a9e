package audioio

import (
	"math"
	"testing"
)

func TestResample_SameRate(t *testing.T) {
	samples := []int16{100, 200, 300, 400, 500}
	result := Resample(samples, 24000, 24000)

	if len(result) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(result))
	}
	for i, s := range samples {
		if result[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, result[i])
		}
	}
}

func TestResample_Lengths(t *testing.T) {
	tests := []struct {
		name     string
		in       int
		from, to int
		want     int
	}{
		{"downsample 2:1", 960, 48000, 24000, 480},
		{"upsample 2:3", 320, 16000, 24000, 480},
		{"empty", 0, 24000, 48000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := make([]int16, tt.in)
			for i := range samples {
				samples[i] = int16(i)
			}
			if got := len(Resample(samples, tt.from, tt.to)); got != tt.want {
				t.Errorf("Resample() length = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResample_PreservesLevel(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
	}{
		{"upsample", 16000, 24000},
		{"downsample", 48000, 16000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]int16, tt.from/5) // 200ms
			for i := range in {
				in[i] = int16(16384 * math.Sin(2*math.Pi*440*float64(i)/float64(tt.from)))
			}

			out := Resample(in, tt.from, tt.to)
			if want := tt.to / 5; len(out) != want {
				t.Fatalf("length = %d, want %d", len(out), want)
			}
			if got, want := Level(out), Level(in); math.Abs(got-want) > 0.05*want {
				t.Errorf("Level = %.4f, want about %.4f", got, want)
			}
		})
	}
}

func TestToPCM16_Clamps(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{0.5, 16384},
		{-1, -32768},
		{1.5, 32767},
		{-1.5, -32768},
	}
	for _, tt := range tests {
		if got := toPCM16(tt.in); got != tt.want {
			t.Errorf("toPCM16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLevel(t *testing.T) {
	if got := Level(nil); got != 0 {
		t.Errorf("Level(nil) = %v, want 0", got)
	}
	if got := Level(make([]int16, 64)); got != 0 {
		t.Errorf("Level(silence) = %v, want 0", got)
	}

	full := []int16{-32768, -32768, -32768}
	if got := Level(full); math.Abs(got-1) > 1e-9 {
		t.Errorf("Level(full scale) = %v, want 1", got)
	}
}
