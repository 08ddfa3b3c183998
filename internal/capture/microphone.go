// Package capture feeds microphone audio into a vadplus session.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
)

// Config describes the capture stream.
type Config struct {
	SampleRate int
	// BlockSamples is the number of samples per delivery, normally the
	// session frame size.
	BlockSamples int
	// BufferBlocks is the ring capacity in blocks.
	BufferBlocks int
	// Device selects a capture device by name. Empty uses the default.
	Device string
}

// Microphone captures mono float32 audio with malgo. It implements
// vadplus.Source. The device callback only writes into a ring; a pump
// goroutine reads whole blocks and calls deliver.
type Microphone struct {
	cfg    Config
	logger *zap.Logger
	ctx    *malgo.AllocatedContext

	mu       sync.Mutex
	device   *malgo.Device
	ring     *sampleRing
	done     chan struct{}
	stopping atomic.Bool

	overruns atomic.Uint64
}

// NewMicrophone initializes the audio backend. Close releases it.
func NewMicrophone(cfg Config, logger *zap.Logger) (*Microphone, error) {
	if cfg.SampleRate <= 0 || cfg.BlockSamples <= 0 || cfg.BufferBlocks <= 0 {
		return nil, fmt.Errorf("capture: invalid config %+v", cfg)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		logger.Debug("malgo", zap.String("msg", msg))
	})
	if err != nil {
		return nil, fmt.Errorf("capture: init context: %w", err)
	}
	return &Microphone{
		cfg:    cfg,
		logger: logger.Named("capture"),
		ctx:    ctx,
	}, nil
}

// Start opens the device and begins delivering blocks of BlockSamples.
func (m *Microphone) Start(deliver func(samples []float32), fail func(err error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return errors.New("capture: already started")
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatF32
	devCfg.Capture.Channels = 1
	devCfg.SampleRate = uint32(m.cfg.SampleRate)
	devCfg.Alsa.NoMMap = 1
	if m.cfg.Device != "" {
		info, err := m.findDevice(m.cfg.Device)
		if err != nil {
			return err
		}
		devCfg.Capture.DeviceID = info.ID.Pointer()
	}

	ring := newSampleRing(m.cfg.BufferBlocks*m.cfg.BlockSamples, m.cfg.BlockSamples)
	onRecv := func(_, in []byte, framecount uint32) {
		if framecount == 0 {
			return
		}
		if !ring.write(in[:int(framecount)*bytesPerSample]) {
			if m.overruns.Add(1) == 1 {
				m.logger.Warn("capture ring full, dropping audio")
			}
		}
	}

	device, err := malgo.InitDevice(m.ctx.Context, devCfg, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		return fmt.Errorf("capture: init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("capture: start device: %w", err)
	}

	m.device = device
	m.ring = ring
	m.done = make(chan struct{})
	m.stopping.Store(false)
	go m.pump(ring, m.done, deliver, fail)

	m.logger.Info("capture started",
		zap.Int("sample_rate", m.cfg.SampleRate),
		zap.Int("block_samples", m.cfg.BlockSamples),
	)
	return nil
}

func (m *Microphone) pump(ring *sampleRing, done chan<- struct{}, deliver func([]float32), fail func(error)) {
	defer close(done)
	for {
		block := make([]float32, m.cfg.BlockSamples)
		if err := ring.readBlock(block); err != nil {
			if !m.stopping.Load() && fail != nil {
				fail(fmt.Errorf("capture: read ring: %w", err))
			}
			return
		}
		deliver(block)
	}
}

// Stop stops the device and waits for the pump to exit. Calling Stop on a
// stopped microphone is a no-op.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return nil
	}
	m.stopping.Store(true)
	err := m.device.Stop()
	m.device.Uninit()
	m.ring.closeWriter()
	<-m.done

	m.device, m.ring, m.done = nil, nil, nil
	if n := m.overruns.Load(); n > 0 {
		m.logger.Warn("capture overruns", zap.Uint64("dropped_callbacks", n))
	}
	m.logger.Info("capture stopped")
	if err != nil {
		return fmt.Errorf("capture: stop device: %w", err)
	}
	return nil
}

// Overruns returns the number of device callbacks dropped because the ring
// was full.
func (m *Microphone) Overruns() uint64 { return m.overruns.Load() }

// Close stops capture and releases the audio backend.
func (m *Microphone) Close() error {
	err := m.Stop()
	if uerr := m.ctx.Uninit(); uerr != nil {
		err = errors.Join(err, fmt.Errorf("capture: uninit context: %w", uerr))
	}
	m.ctx.Free()
	return err
}

func (m *Microphone) findDevice(name string) (malgo.DeviceInfo, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("capture: list devices: %w", err)
	}
	for _, info := range infos {
		if info.Name() == name {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("capture: device %q not found", name)
}

// Devices lists capture device names.
func (m *Microphone) Devices() ([]string, error) {
	return deviceNames(m.ctx)
}

// ListDevices lists capture device names without opening a Microphone.
func ListDevices(logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		logger.Debug("malgo", zap.String("msg", msg))
	})
	if err != nil {
		return nil, fmt.Errorf("capture: init context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()
	return deviceNames(ctx)
}

func deviceNames(ctx *malgo.AllocatedContext) ([]string, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("capture: list devices: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}
