package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// headerSize is the length prefix in front of the metadata.
const headerSize = 4

var (
	// ErrShortFrame is returned when a frame is shorter than its header says.
	ErrShortFrame = errors.New("protocol: short frame")

	// ErrOddPayload is returned when the PCM payload is not whole samples.
	ErrOddPayload = errors.New("protocol: odd PCM payload length")
)

// FrameMeta is the JSON metadata carried by every outbound frame.
type FrameMeta struct {
	SampleRate int `json:"sampleRate"`
}

// Frame is a decoded client → service audio frame.
type Frame struct {
	SampleRate int
	Samples    []int16
}

// EncodeFrame builds one binary wire frame:
//
//	[4 bytes LE uint32 metadata length][metadata JSON][LE int16 samples]
func EncodeFrame(sampleRate int, samples []int16) ([]byte, error) {
	meta, err := json.Marshal(FrameMeta{SampleRate: sampleRate})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame metadata: %w", err)
	}

	buf := make([]byte, headerSize+len(meta)+len(samples)*2)
	binary.LittleEndian.PutUint32(buf, uint32(len(meta)))
	copy(buf[headerSize:], meta)

	pcm := buf[headerSize+len(meta):]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return buf, nil
}

// DecodeFrame parses a frame produced by EncodeFrame.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < headerSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}

	metaLen := int(binary.LittleEndian.Uint32(data))
	if metaLen > len(data)-headerSize {
		return Frame{}, fmt.Errorf("%w: metadata length %d exceeds %d bytes", ErrShortFrame, metaLen, len(data)-headerSize)
	}

	var meta FrameMeta
	if err := json.Unmarshal(data[headerSize:headerSize+metaLen], &meta); err != nil {
		return Frame{}, fmt.Errorf("failed to parse frame metadata: %w", err)
	}

	pcm := data[headerSize+metaLen:]
	if len(pcm)%2 != 0 {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrOddPayload, len(pcm))
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	return Frame{SampleRate: meta.SampleRate, Samples: samples}, nil
}
