package capture

import (
	"context"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/auralis-ai/auralis/pkg/audio"
	"github.com/auralis-ai/auralis/pkg/errorsx"
)

// Mic reads from the default capture device via malgo. The device delivers
// S16 mono at the configured rate; blocks are re-cut to cfg.BlockSize so the
// callback contract matches Scripted exactly.
type Mic struct {
	cfg Config

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

func NewMic(cfg Config) *Mic {
	return &Mic{cfg: cfg.withDefaults()}
}

func (m *Mic) Name() string { return "mic" }

func (m *Mic) Start(_ context.Context, fn BlockFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonCaptureStart)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.cfg.SampleRate)

	pending := make([]float32, 0, m.cfg.BlockSize)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			if n := int(frameCount) * 2; n <= len(data) {
				data = data[:n]
			}
			pending = append(pending, audio.Float32FromPCM16(data)...)
			for len(pending) >= m.cfg.BlockSize {
				block := make([]float32, m.cfg.BlockSize)
				copy(block, pending[:m.cfg.BlockSize])
				pending = pending[m.cfg.BlockSize:]
				fn(block)
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return errorsx.Wrap(err, errorsx.ReasonCaptureStart)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		mctx.Free()
		return errorsx.Wrap(err, errorsx.ReasonCaptureStart)
	}

	m.ctx = mctx
	m.device = device
	return nil
}

func (m *Mic) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil
	}
	m.device.Uninit()
	m.ctx.Uninit()
	m.ctx.Free()
	m.device = nil
	m.ctx = nil
	return nil
}
