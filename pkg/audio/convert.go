package audio

// Int16ToFloat32 converts signed 16-bit PCM samples to normalized float32
// samples in [-1, 1] using the 1/32768 convention. The result is a fresh
// slice; the input is not retained.
func Int16ToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Float32ToInt16 converts normalized float32 samples back to signed 16-bit
// PCM, clamping values outside [-1, 1]. Used when handing frames to engines
// that only accept integer PCM.
func Float32ToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		switch {
		case s >= 1.0:
			out[i] = 32767
		case s <= -1.0:
			out[i] = -32768
		default:
			out[i] = int16(s * 32768.0)
		}
	}
	return out
}

// DownmixMono averages interleaved multi-channel samples into a mono stream.
// With channels ≤ 1 the input is returned unchanged.
func DownmixMono(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	n := len(in) / channels
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += in[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
