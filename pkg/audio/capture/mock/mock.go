// Package mock provides a scripted capture.Source for tests.
package mock

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/iacademy-nexus/bearnard/pkg/audio"
	"github.com/iacademy-nexus/bearnard/pkg/audio/capture"
)

// Ensure Source implements the capture.Source interface.
var _ capture.Source = (*Source)(nil)

// Source is a capture.Source that replays a scripted sequence of frames.
//
// By default all scripted frames are queued the moment Start is called and
// the channel then stays open until Stop (simulating a microphone that has
// gone quiet), which lets tests exercise frame-wait timeouts. Set Interval
// to pace delivery, or CloseAfterScript to close the channel as soon as the
// script is exhausted.
type Source struct {
	// Script is the sequence of frames to deliver.
	Script []audio.Frame

	// Interval paces delivery; zero delivers the whole script immediately.
	Interval time.Duration

	// CloseAfterScript closes the frame channel once the script has been
	// delivered.
	CloseAfterScript bool

	// StartErr, when set, is returned by Start.
	StartErr error

	mu         sync.Mutex
	ch         chan audio.Frame
	chClosed   bool
	started    bool
	stopped    bool
	done       chan struct{}
	wg         sync.WaitGroup
	StartCalls int
	StopCalls  int
}

// New constructs a Source that replays the given frames.
func New(script ...audio.Frame) *Source {
	return &Source{Script: script}
}

// SineFrame builds a test frame of dur length at rate Hz whose samples form
// a sine wave of the given amplitude. amplitude 0 yields pure silence.
func SineFrame(rate int, dur time.Duration, amplitude float64) audio.Frame {
	n := int(int64(rate) * int64(dur) / int64(time.Second))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(amplitude * math.Sin(float64(i)*0.25))
	}
	return audio.Frame{Samples: samples, SampleRate: rate, Timestamp: time.Now()}
}

// Start implements capture.Source.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCalls++
	if s.StartErr != nil {
		return s.StartErr
	}
	if s.started {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.started = true
	s.ch = make(chan audio.Frame, len(s.Script)+1)
	s.done = make(chan struct{})

	if s.Interval <= 0 {
		for _, f := range s.Script {
			s.ch <- f
		}
		if s.CloseAfterScript {
			close(s.ch)
			s.chClosed = true
		}
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for _, f := range s.Script {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				select {
				case s.ch <- f:
				case <-s.done:
					return
				}
			}
		}
		if s.CloseAfterScript {
			s.mu.Lock()
			if !s.chClosed {
				close(s.ch)
				s.chClosed = true
			}
			s.mu.Unlock()
		}
	}()
	return nil
}

// Stop implements capture.Source. Like the real device it closes the frame
// channel, after waiting out any in-flight paced delivery.
func (s *Source) Stop() error {
	s.mu.Lock()
	s.StopCalls++
	if !s.started || s.stopped {
		s.stopped = true
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	if s.ch != nil && !s.chClosed {
		close(s.ch)
		s.chClosed = true
	}
	s.mu.Unlock()
	return nil
}

// Frames implements capture.Source.
func (s *Source) Frames() <-chan audio.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}
