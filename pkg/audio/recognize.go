package audio

import "fmt"

const (
	// RecognizeSampleRate is the sample rate AVS expects for Recognize audio.
	RecognizeSampleRate = 16000
)

// ToRecognizePCM converts a WAV file into 16 kHz mono little-endian PCM16.
func ToRecognizePCM(wav []byte) ([]byte, error) {
	pcm, err := DecodeWAV(wav)
	if err != nil {
		return nil, err
	}
	mono := Downmix(pcm.Samples, pcm.Channels)
	resampled, err := Resample(mono, pcm.SampleRate, RecognizeSampleRate)
	if err != nil {
		return nil, fmt.Errorf("resample %d->%d: %w", pcm.SampleRate, RecognizeSampleRate, err)
	}
	return Int16SliceToBytes(resampled), nil
}
