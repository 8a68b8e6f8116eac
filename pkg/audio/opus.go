package audio

import (
	"fmt"
	"sync"

	"github.com/godeps/opus"
)

const (
	// OpusFrameSamples is one 20 ms frame at 16 kHz.
	OpusFrameSamples = RecognizeSampleRate / 50
	// OpusBitrate is the constant bitrate AVS expects for OPUS Recognize audio.
	OpusBitrate = 32000

	opusMaxPacket = 4000
)

var opusEncoderPool sync.Pool

func acquireOpusEncoder() (*opus.Encoder, error) {
	if v := opusEncoderPool.Get(); v != nil {
		if enc, ok := v.(*opus.Encoder); ok && enc != nil {
			return enc, nil
		}
	}
	enc, err := opus.NewEncoder(RecognizeSampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	if err := enc.SetBitrate(OpusBitrate); err != nil {
		return nil, fmt.Errorf("set opus bitrate: %w", err)
	}
	if err := enc.SetVBR(false); err != nil {
		return nil, fmt.Errorf("set opus cbr: %w", err)
	}
	return enc, nil
}

func releaseOpusEncoder(enc *opus.Encoder) {
	if enc == nil {
		return
	}
	if err := enc.Reset(); err != nil {
		return
	}
	opusEncoderPool.Put(enc)
}

// EncodeRecognizeOpus encodes 16 kHz mono PCM16 into concatenated 20 ms CBR Opus
// packets. The last frame is zero padded.
func EncodeRecognizeOpus(pcm []byte) ([]byte, error) {
	samples := BytesToInt16Slice(pcm)
	if len(samples) == 0 {
		return nil, nil
	}
	enc, err := acquireOpusEncoder()
	if err != nil {
		return nil, err
	}
	defer releaseOpusEncoder(enc)

	frame := AcquireInt16(OpusFrameSamples)
	defer ReleaseInt16(frame)
	packet := make([]byte, opusMaxPacket)
	out := make([]byte, 0, (len(samples)/OpusFrameSamples+1)*OpusBitrate/8/50)

	for offset := 0; offset < len(samples); offset += OpusFrameSamples {
		n := copy(frame, samples[offset:])
		for i := n; i < OpusFrameSamples; i++ {
			frame[i] = 0
		}
		written, err := enc.Encode(frame, packet)
		if err != nil {
			return nil, fmt.Errorf("opus encode: %w", err)
		}
		out = append(out, packet[:written]...)
	}
	return out, nil
}
