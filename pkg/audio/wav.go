package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PCM is decoded 16-bit interleaved audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// DecodeWAV parses a RIFF/WAVE file carrying 16-bit integer PCM.
func DecodeWAV(data []byte) (PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, errors.New("invalid wav header")
	}

	sampleRate := 0
	channels := 0
	bitsPerSample := 0
	format := 0
	var payload []byte

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		offset += 8
		if chunkSize < 0 || offset+chunkSize > len(data) {
			chunkSize = len(data) - offset
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return PCM{}, errors.New("invalid wav fmt chunk")
			}
			format = int(binary.LittleEndian.Uint16(data[offset : offset+2]))
			channels = int(binary.LittleEndian.Uint16(data[offset+2 : offset+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[offset+14 : offset+16]))
		case "data":
			payload = data[offset : offset+chunkSize]
		}

		offset += chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if sampleRate <= 0 || channels <= 0 {
		return PCM{}, errors.New("wav fmt chunk missing")
	}
	// 0xFFFE is WAVE_FORMAT_EXTENSIBLE.
	if format != 1 && format != 0xFFFE {
		return PCM{}, fmt.Errorf("unsupported wav format %d", format)
	}
	if bitsPerSample != 16 {
		return PCM{}, fmt.Errorf("unsupported wav bits per sample %d", bitsPerSample)
	}
	if payload == nil {
		return PCM{}, errors.New("wav data chunk missing")
	}
	return PCM{
		Samples:    BytesToInt16Slice(payload),
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}

// EncodeWAV writes PCM as a canonical 44-byte header WAV file.
func EncodeWAV(pcm PCM) []byte {
	payload := Int16SliceToBytes(pcm.Samples)
	out := make([]byte, 44+len(payload))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(payload)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1)
	binary.LittleEndian.PutUint16(out[22:24], uint16(pcm.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(pcm.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(pcm.SampleRate*pcm.Channels*2))
	binary.LittleEndian.PutUint16(out[32:34], uint16(pcm.Channels*2))
	binary.LittleEndian.PutUint16(out[34:36], 16)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(payload)))
	copy(out[44:], payload)
	return out
}
