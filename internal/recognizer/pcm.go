package recognizer

import (
	"encoding/binary"
	"math"
)

// bitsPerSample is fixed at 16 for the little-endian signed PCM audio the
// engines expect.
const bitsPerSample = 16

// pcmToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to the range [-1.0, 1.0]. Any trailing odd byte is
// silently ignored.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// computeRMS returns the root-mean-square energy of a 16-bit PCM chunk in
// raw sample units (0..32767). An empty chunk has zero energy.
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += sample * sample
	}
	return math.Sqrt(sum / float64(n))
}

// chunkDurationMs returns the playback duration of a mono PCM chunk in
// milliseconds at the given sample rate.
func chunkDurationMs(chunk []byte, sampleRate int) int {
	bytesPerMs := sampleRate * (bitsPerSample / 8) / 1000
	if bytesPerMs <= 0 {
		return 0
	}
	return len(chunk) / bytesPerMs
}
