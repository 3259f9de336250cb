package audio

// PCM16ToFloat32 converts little-endian 16-bit PCM bytes to normalized
// float32 samples in [-1, 1]. A trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := range n {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(s) / 32768.0
	}
	return out
}

// PCM16ToFloat32Mono converts little-endian 16-bit PCM with the given
// interleaved channel count to normalized mono float32 samples, averaging
// the channels of each frame. channels < 1 is treated as mono.
func PCM16ToFloat32Mono(pcm []byte, channels int) []float32 {
	if channels <= 1 {
		return PCM16ToFloat32(pcm)
	}
	frames := len(pcm) / (2 * channels)
	out := make([]float32, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			off := (i*channels + c) * 2
			s := int16(pcm[off]) | int16(pcm[off+1])<<8
			sum += float64(s)
		}
		out[i] = float32(sum/float64(channels)) / 32768.0
	}
	return out
}

// Float32ToPCM16 converts normalized float32 samples to little-endian
// 16-bit PCM bytes, clamping values outside [-1, 1].
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(v * 32767)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}
