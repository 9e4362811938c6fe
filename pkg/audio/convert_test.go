package audio

import (
	"math"
	"testing"
)

func TestInt16ToFloat32(t *testing.T) {
	t.Parallel()

	got := Int16ToFloat32([]int16{0, 16384, -16384, 32767, -32768})
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0, -1.0}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFloat32ToInt16_Clamps(t *testing.T) {
	t.Parallel()

	got := Float32ToInt16([]float32{0, 0.5, -0.5, 1.5, -1.5})
	want := []int16{0, 16384, -16384, 32767, -32768}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDownmixMono(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       []float32
		channels int
		want     []float32
	}{
		{"mono passthrough", []float32{0.1, 0.2}, 1, []float32{0.1, 0.2}},
		{"stereo average", []float32{0.2, 0.4, -0.2, -0.4}, 2, []float32{0.3, -0.3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := DownmixMono(tt.in, tt.channels)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if math.Abs(float64(got[i]-tt.want[i])) > 1e-6 {
					t.Errorf("sample %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
