//go:build !nocgo
// +build !nocgo

package audio

import (
	"bytes"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single device context per process, so every engine shares
// this one and gets its own otoContext handle on top of it.
var (
	device     *otoDevice
	deviceOnce sync.Once
	deviceErr  error
)

type otoDevice struct {
	ctx        *oto.Context
	sampleRate int

	mu          sync.Mutex
	base        time.Time
	suspended   bool
	suspendedAt time.Time
	paused      time.Duration
}

func openDevice(sampleRate int) (*otoDevice, error) {
	deviceOnce.Do(func() {
		options := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: Channels,
			Format:       oto.FormatFloat32LE,
		}

		switch runtime.GOOS {
		case "darwin":
			// CoreAudio is happier with larger buffers.
			options.BufferSize = 100 * time.Millisecond
		default:
			options.BufferSize = 50 * time.Millisecond
		}

		log.Debug("Opening audio device",
			"sample_rate", options.SampleRate,
			"channels", options.ChannelCount,
			"buffer_size", options.BufferSize)

		ctx, ready, err := oto.NewContext(options)
		if err != nil {
			deviceErr = fmt.Errorf("failed to create audio context: %w", err)
			return
		}
		<-ready

		device = &otoDevice{ctx: ctx, sampleRate: sampleRate, base: time.Now()}
	})

	if deviceErr != nil {
		return nil, deviceErr
	}
	if device.sampleRate != sampleRate {
		return nil, fmt.Errorf("audio device already opened at %d Hz, requested %d Hz", device.sampleRate, sampleRate)
	}
	return device, nil
}

func (d *otoDevice) now() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.base) - d.paused
	if d.suspended {
		elapsed -= time.Since(d.suspendedAt)
	}
	return elapsed.Seconds()
}

func (d *otoDevice) state() ContextState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.suspended {
		return ContextSuspended
	}
	return ContextRunning
}

func (d *otoDevice) suspend() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.suspended {
		return nil
	}
	if err := d.ctx.Suspend(); err != nil {
		return err
	}
	d.suspended = true
	d.suspendedAt = time.Now()
	return nil
}

func (d *otoDevice) resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.suspended {
		return nil
	}
	if err := d.ctx.Resume(); err != nil {
		return err
	}
	d.paused += time.Since(d.suspendedAt)
	d.suspended = false
	return nil
}

// otoContext is one engine's handle on the shared audio device.
type otoContext struct {
	dev *otoDevice

	mu      sync.Mutex
	closed  bool
	sources map[*otoSource]struct{}
}

// NewOtoContext opens (once) the system audio device and returns a handle on it.
func NewOtoContext(sampleRate int) (Context, error) {
	dev, err := openDevice(sampleRate)
	if err != nil {
		return nil, err
	}
	return &otoContext{dev: dev, sources: make(map[*otoSource]struct{})}, nil
}

func (c *otoContext) SampleRate() int { return c.dev.sampleRate }

func (c *otoContext) CurrentTime() float64 { return c.dev.now() }

func (c *otoContext) State() ContextState {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ContextClosed
	}
	return c.dev.state()
}

func (c *otoContext) Resume() error {
	if c.State() == ContextClosed {
		return ErrContextClosed
	}
	return c.dev.resume()
}

// Suspend pauses the whole device. It affects every engine.
func (c *otoContext) Suspend() error {
	if c.State() == ContextClosed {
		return ErrContextClosed
	}
	return c.dev.suspend()
}

func (c *otoContext) CreateBuffer(channels, frames, sampleRate int) (*Buffer, error) {
	if c.State() == ContextClosed {
		return nil, ErrContextClosed
	}
	if channels != Channels {
		return nil, fmt.Errorf("audio device is mono, got %d channels", channels)
	}
	return NewBuffer(channels, frames, sampleRate)
}

func (c *otoContext) NewGain() (Gain, error) {
	if c.State() == ContextClosed {
		return nil, ErrContextClosed
	}
	return &otoGain{volume: 1, players: make(map[*oto.Player]struct{})}, nil
}

func (c *otoContext) NewSource(buf *Buffer, gain Gain) (Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrContextClosed
	}
	g, ok := gain.(*otoGain)
	if !ok {
		return nil, fmt.Errorf("gain stage %T does not belong to this context", gain)
	}
	s := &otoSource{ctx: c, buf: buf, gain: g, done: make(chan struct{})}
	c.sources[s] = struct{}{}
	return s, nil
}

func (c *otoContext) forget(s *otoSource) {
	c.mu.Lock()
	delete(c.sources, s)
	c.mu.Unlock()
}

// Close stops every live source of this handle. The device itself stays
// open for the rest of the process.
func (c *otoContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	live := make([]*otoSource, 0, len(c.sources))
	for s := range c.sources {
		live = append(live, s)
	}
	c.mu.Unlock()

	for _, s := range live {
		_ = s.Stop()
	}
	return nil
}

type otoGain struct {
	mu      sync.Mutex
	volume  float64
	players map[*oto.Player]struct{}
}

func (g *otoGain) SetVolume(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.volume = v
	for p := range g.players {
		p.SetVolume(v)
	}
}

func (g *otoGain) Volume() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.volume
}

func (g *otoGain) attach(p *oto.Player) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p.SetVolume(g.volume)
	g.players[p] = struct{}{}
}

func (g *otoGain) detach(p *oto.Player) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.players, p)
}

type otoSource struct {
	ctx  *otoContext
	buf  *Buffer
	gain *otoGain

	mu      sync.Mutex
	player  *oto.Player
	started bool
	stopped bool
	ended   func()
	done    chan struct{}
}

func (s *otoSource) OnEnded(fn func()) {
	s.mu.Lock()
	s.ended = fn
	s.mu.Unlock()
}

func (s *otoSource) Start(offset float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("source already started")
	}
	s.started = true

	data := s.buf.float32LE(s.buf.frameAt(offset))
	s.player = s.ctx.dev.ctx.NewPlayer(bytes.NewReader(data))
	s.gain.attach(s.player)
	s.player.Play()

	go s.watch(s.player)
	return nil
}

// watch reports the natural end of playback. oto has no completion
// callback, so the player is polled.
func (s *otoSource) watch(p *oto.Player) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if p.IsPlaying() {
				continue
			}
			s.mu.Lock()
			if s.stopped {
				s.mu.Unlock()
				return
			}
			s.stopped = true
			close(s.done)
			fn := s.ended
			s.mu.Unlock()

			s.release(p)
			if fn != nil {
				fn()
			}
			return
		}
	}
}

func (s *otoSource) Stop() error {
	s.mu.Lock()
	if s.stopped || s.player == nil {
		s.stopped = true
		s.mu.Unlock()
		s.ctx.forget(s)
		return nil
	}
	s.stopped = true
	close(s.done)
	p := s.player
	s.mu.Unlock()

	p.Pause()
	s.release(p)
	return nil
}

func (s *otoSource) release(p *oto.Player) {
	s.gain.detach(p)
	s.ctx.forget(s)
	if err := p.Close(); err != nil {
		log.Debug("Closing audio player failed", "error", err)
	}
}
