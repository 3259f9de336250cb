package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WAV holds the decoded contents of a RIFF/WAV file with 16-bit PCM data.
type WAV struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// DecodeWAV parses a RIFF/WAV byte slice and returns its 16-bit PCM payload
// and format. Only uncompressed 16-bit PCM is supported; other encodings
// return an error.
func DecodeWAV(data []byte) (WAV, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAV{}, errors.New("audio: not a RIFF/WAVE file")
	}

	var w WAV
	var haveFmt bool

	// Walk the chunk list; fmt and data may appear in any order and other
	// chunks (LIST, fact) may be interleaved.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return WAV{}, fmt.Errorf("audio: malformed %q chunk", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return WAV{}, errors.New("audio: fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 || bits != 16 {
				return WAV{}, fmt.Errorf("audio: unsupported WAV encoding (format %d, %d bits)", format, bits)
			}
			w.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			w.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			haveFmt = true
		case "data":
			w.PCM = data[body : body+size]
		}

		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt {
		return WAV{}, errors.New("audio: missing fmt chunk")
	}
	if w.PCM == nil {
		return WAV{}, errors.New("audio: missing data chunk")
	}
	if w.Channels < 1 || w.SampleRate <= 0 {
		return WAV{}, errors.New("audio: invalid WAV format fields")
	}
	return w, nil
}
