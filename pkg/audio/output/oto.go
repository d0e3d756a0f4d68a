// ABOUTME: Oto-based audio output implementation
// ABOUTME: Plays each voice on its own oto player, mixed by the oto context
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// Oto output implementation using oto library
type Oto struct {
	otoCtx     *oto.Context
	sampleRate int
	channels   int

	mu     sync.Mutex
	voices map[*otoVoice]struct{}
	closed bool
}

type otoVoice struct {
	*voiceReader
	sink   *Oto
	player *oto.Player
	timer  *time.Timer
	mu     sync.Mutex
}

// NewOto opens the output device. oto allows one context per process.
func NewOto(sampleRate, channels int) (*Oto, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	log.Printf("Audio output initialized: %dHz, %d channels", sampleRate, channels)

	return &Oto{
		otoCtx:     ctx,
		sampleRate: sampleRate,
		channels:   channels,
		voices:     make(map[*otoVoice]struct{}),
	}, nil
}

// Play schedules buf on a fresh oto player
func (o *Oto) Play(buf audio.Buffer, gain float64, at time.Time, opts ...Option) Voice {
	reader := newVoiceReader(buf, gain, o.channels, newPlayConfig(opts))
	v := &otoVoice{
		voiceReader: reader,
		sink:        o,
		player:      o.otoCtx.NewPlayer(reader),
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		reader.stopped.Store(true)
		reader.finish()
		return v
	}
	o.voices[v] = struct{}{}
	o.mu.Unlock()

	go func() {
		<-v.Done()
		o.mu.Lock()
		delete(o.voices, v)
		o.mu.Unlock()
	}()

	delay := time.Until(at)
	if delay <= 0 {
		v.player.Play()
		return v
	}

	v.mu.Lock()
	v.timer = time.AfterFunc(delay, func() {
		if !reader.stopped.Load() {
			v.player.Play()
		}
	})
	v.mu.Unlock()
	return v
}

// Stop cancels a pending start and silences the voice
func (v *otoVoice) Stop() {
	v.mu.Lock()
	if v.timer != nil {
		v.timer.Stop()
	}
	v.mu.Unlock()

	v.stopped.Store(true)
	v.player.Pause()
	v.finish()
}

// SampleRate returns the device rate
func (o *Oto) SampleRate() int {
	return o.sampleRate
}

// Close stops all voices and suspends the device
func (o *Oto) Close() error {
	o.mu.Lock()
	o.closed = true
	voices := make([]*otoVoice, 0, len(o.voices))
	for v := range o.voices {
		voices = append(voices, v)
	}
	o.mu.Unlock()

	for _, v := range voices {
		v.Stop()
	}

	if err := o.otoCtx.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend oto context: %w", err)
	}
	return nil
}
