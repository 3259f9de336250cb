package coqui

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/iacademy-nexus/bearnard/pkg/audio"
)

// Player turns a WAV byte slice into audible output, returning once
// playback has drained.
type Player interface {
	Play(ctx context.Context, wav []byte) error
}

// playbackChunk is the number of mono samples written to the output stream
// per iteration. 1024 samples at 22.05 kHz is ~46 ms, small enough that
// cancellation is responsive.
const playbackChunk = 1024

// portAudioPlayer plays decoded WAV audio through the host's default
// output device.
type portAudioPlayer struct{}

func (portAudioPlayer) Play(ctx context.Context, wav []byte) error {
	decoded, err := audio.DecodeWAV(wav)
	if err != nil {
		return err
	}
	samples := audio.PCM16ToFloat32Mono(decoded.PCM, decoded.Channels)
	if len(samples) == 0 {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	buf := make([]float32, playbackChunk)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(decoded.SampleRate), playbackChunk, buf)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	defer stream.Stop()

	for off := 0; off < len(samples); off += playbackChunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buf, samples[off:])
		for i := n; i < playbackChunk; i++ {
			buf[i] = 0
		}
		if err := stream.Write(); err != nil {
			// Output underflow is recoverable; anything else ends playback.
			if err == portaudio.OutputUnderflowed {
				continue
			}
			return fmt.Errorf("write output stream: %w", err)
		}
	}
	return nil
}
