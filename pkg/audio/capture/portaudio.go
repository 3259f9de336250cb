package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/iacademy-nexus/bearnard/pkg/audio"
)

const (
	// DefaultSampleRate is the capture rate the pipeline expects.
	DefaultSampleRate = 16000

	// DefaultFrameDuration is the span of samples delivered per frame.
	DefaultFrameDuration = 50 * time.Millisecond

	// DefaultQueueSize bounds the number of frames buffered between the
	// capture goroutine and the consumer.
	DefaultQueueSize = 32
)

// Ensure Microphone implements the Source interface.
var _ Source = (*Microphone)(nil)

// Microphone is a PortAudio-backed [Source] reading mono float32 frames
// from an input device.
type Microphone struct {
	sampleRate int
	frameDur   time.Duration
	device     int
	queueSize  int
	logger     *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	stream  *portaudio.Stream
	frames  chan audio.Frame
	done    chan struct{}
	wg      sync.WaitGroup
}

// Option is a functional option for Microphone.
type Option func(*Microphone)

// WithSampleRate sets the capture sample rate in Hz.
func WithSampleRate(hz int) Option {
	return func(m *Microphone) {
		if hz > 0 {
			m.sampleRate = hz
		}
	}
}

// WithFrameDuration sets the span of audio delivered per frame.
func WithFrameDuration(d time.Duration) Option {
	return func(m *Microphone) {
		if d > 0 {
			m.frameDur = d
		}
	}
}

// WithDevice selects the input device by its index in the host device list.
// A negative index selects the host default input device.
func WithDevice(index int) Option {
	return func(m *Microphone) {
		m.device = index
	}
}

// WithQueueSize bounds the frame queue between capture and consumer.
func WithQueueSize(n int) Option {
	return func(m *Microphone) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// WithLogger sets the logger used for capture diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(m *Microphone) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMicrophone constructs a Microphone. Capture does not begin until
// [Microphone.Start] is called.
func NewMicrophone(opts ...Option) *Microphone {
	m := &Microphone{
		sampleRate: DefaultSampleRate,
		frameDur:   DefaultFrameDuration,
		device:     -1,
		queueSize:  DefaultQueueSize,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	m.frames = make(chan audio.Frame, m.queueSize)
	m.done = make(chan struct{})
	return m
}

// Start implements Source. It initializes PortAudio, opens the configured
// input device and launches the capture goroutine.
func (m *Microphone) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	if m.stopped {
		return fmt.Errorf("capture: source already stopped")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("capture: %w: initialize: %v", ErrDeviceUnavailable, err)
	}

	dev, err := m.resolveDevice()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	samplesPerFrame := int(int64(m.sampleRate) * int64(m.frameDur) / int64(time.Second))
	buf := make([]float32, samplesPerFrame)

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(m.sampleRate)
	params.FramesPerBuffer = samplesPerFrame

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("capture: %w: open stream on %q: %v", ErrDeviceUnavailable, dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("capture: %w: start stream: %v", ErrDeviceUnavailable, err)
	}

	m.stream = stream
	m.started = true
	m.logger.Info("microphone capture started",
		"device", dev.Name,
		"sampleRate", m.sampleRate,
		"frameDuration", m.frameDur,
	)

	m.wg.Add(1)
	go m.captureLoop(buf)
	return nil
}

// Stop implements Source. It ends capture, releases the device and closes
// the frame channel.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.stopped {
		m.stopped = true
		return nil
	}
	m.stopped = true

	close(m.done)
	m.stream.Abort()
	m.wg.Wait()
	m.stream.Close()
	portaudio.Terminate()
	close(m.frames)
	m.logger.Info("microphone capture stopped")
	return nil
}

// Frames implements Source.
func (m *Microphone) Frames() <-chan audio.Frame {
	return m.frames
}

func (m *Microphone) captureLoop(buf []float32) {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		default:
		}

		if err := m.stream.Read(); err != nil {
			select {
			case <-m.done:
				return
			default:
			}
			// Input overflow is routine on loaded hosts; keep reading.
			if err == portaudio.InputOverflowed {
				m.logger.Warn("capture input overflow, samples lost")
				continue
			}
			m.logger.Error("capture read failed", "error", err)
			return
		}

		samples := make([]float32, len(buf))
		copy(samples, buf)
		m.push(audio.Frame{
			Samples:    samples,
			SampleRate: m.sampleRate,
			Timestamp:  time.Now(),
		})
	}
}

// push enqueues frame, evicting the oldest queued frame when the consumer
// lags. Capture must never block on a slow consumer.
func (m *Microphone) push(frame audio.Frame) {
	select {
	case m.frames <- frame:
		return
	default:
	}
	select {
	case <-m.frames:
		m.logger.Debug("capture queue full, dropped oldest frame")
	default:
	}
	select {
	case m.frames <- frame:
	default:
	}
}

func (m *Microphone) resolveDevice() (*portaudio.DeviceInfo, error) {
	if m.device < 0 {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("capture: %w: no default input device: %v", ErrDeviceUnavailable, err)
		}
		return dev, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("capture: %w: list devices: %v", ErrDeviceUnavailable, err)
	}
	if m.device >= len(devices) {
		return nil, fmt.Errorf("capture: %w: device index %d out of range (%d devices)", ErrDeviceUnavailable, m.device, len(devices))
	}
	dev := devices[m.device]
	if dev.MaxInputChannels < 1 {
		return nil, fmt.Errorf("capture: %w: device %q has no input channels", ErrDeviceUnavailable, dev.Name)
	}
	return dev, nil
}

// ListInputDevices enumerates the host's audio input devices. It is a
// standalone diagnostic that initializes and terminates PortAudio around
// the enumeration, so it must not be called while a Microphone is running.
func ListInputDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("capture: %w: initialize: %v", ErrDeviceUnavailable, err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("capture: %w: list devices: %v", ErrDeviceUnavailable, err)
	}
	def, _ := portaudio.DefaultInputDevice()

	var out []Device
	for i, dev := range devices {
		if dev.MaxInputChannels < 1 {
			continue
		}
		out = append(out, Device{
			Index:             i,
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			Default:           def != nil && dev == def,
		})
	}
	return out, nil
}
