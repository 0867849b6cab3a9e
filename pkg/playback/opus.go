package playback

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/faiface/beep"
	"gopkg.in/hraban/opus.v2"
)

const (
	opusRate = 48000

	// maxOpusFrame is 120ms at 48kHz, the longest Opus frame.
	maxOpusFrame = 5760

	oggHeaderSize = 27
)

var (
	oggMagic      = []byte("OggS")
	opusHeadMagic = []byte("OpusHead")
)

var errBadOgg = errors.New("malformed ogg stream")

// oggPackets splits an Ogg bitstream into its packets. Only a single
// logical stream is expected; page CRCs are not verified.
func oggPackets(data []byte) ([][]byte, error) {
	var (
		packets [][]byte
		partial []byte
	)

	for len(data) > 0 {
		if len(data) < oggHeaderSize || !bytes.Equal(data[:4], oggMagic) {
			return nil, fmt.Errorf("%w: bad page header", errBadOgg)
		}
		nsegs := int(data[26])
		if len(data) < oggHeaderSize+nsegs {
			return nil, fmt.Errorf("%w: truncated segment table", errBadOgg)
		}
		table := data[oggHeaderSize : oggHeaderSize+nsegs]
		body := data[oggHeaderSize+nsegs:]

		for _, seg := range table {
			n := int(seg)
			if len(body) < n {
				return nil, fmt.Errorf("%w: truncated page body", errBadOgg)
			}
			partial = append(partial, body[:n]...)
			body = body[n:]
			if n < 255 {
				packets = append(packets, partial)
				partial = nil
			}
		}
		data = body
	}

	if len(partial) > 0 {
		packets = append(packets, partial)
	}
	return packets, nil
}

// decodeOggOpus decodes a complete Ogg/Opus file into memory.
func decodeOggOpus(payload []byte) (beep.StreamSeekCloser, beep.Format, error) {
	packets, err := oggPackets(payload)
	if err != nil {
		return nil, beep.Format{}, err
	}
	if len(packets) < 2 {
		return nil, beep.Format{}, fmt.Errorf("%w: missing opus headers", errBadOgg)
	}

	head := packets[0]
	if len(head) < 19 || !bytes.Equal(head[:8], opusHeadMagic) {
		return nil, beep.Format{}, fmt.Errorf("%w: missing OpusHead", errBadOgg)
	}
	channels := int(head[9])
	preSkip := int(binary.LittleEndian.Uint16(head[10:12]))
	if channels < 1 || channels > 2 {
		return nil, beep.Format{}, fmt.Errorf("unsupported opus channel count %d", channels)
	}

	dec, err := opus.NewDecoder(opusRate, channels)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	frame := make([]float32, maxOpusFrame*channels)
	var pcm []float32
	for i, pkt := range packets[2:] {
		n, err := dec.DecodeFloat32(pkt, frame)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("opus packet %d: %w", i, err)
		}
		pcm = append(pcm, frame[:n*channels]...)
	}

	if skip := preSkip * channels; skip < len(pcm) {
		pcm = pcm[skip:]
	} else {
		pcm = nil
	}

	format := beep.Format{SampleRate: opusRate, NumChannels: channels, Precision: 2}
	return newPCMStreamer(pcm, channels), format, nil
}
