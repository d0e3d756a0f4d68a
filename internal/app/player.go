// ABOUTME: Main player application orchestration
// ABOUTME: Wires connection, clock sync, timeline, modules, audio and UI together
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Resonate-Protocol/nu-go/internal/client"
	"github.com/Resonate-Protocol/nu-go/internal/discovery"
	"github.com/Resonate-Protocol/nu-go/internal/metrics"
	"github.com/Resonate-Protocol/nu-go/internal/player"
	"github.com/Resonate-Protocol/nu-go/internal/ui"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/output"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol/control"
	"github.com/Resonate-Protocol/nu-go/pkg/rendezvous"
	"github.com/Resonate-Protocol/nu-go/pkg/sync"
)

// DefaultSampleRate is the output rate assets are resampled to
const DefaultSampleRate = 48000

// Config holds player configuration
type Config struct {
	ServerAddr  string
	Port        int
	Name        string
	Index       int
	X, Y        float64
	HasPosition bool
	Assets      []string
	SampleRate  int
	NoAudio     bool
	UseTUI      bool
	Debug       bool
	MetricsAddr string
}

// Player represents the main player application
type Player struct {
	config     Config
	client     *client.Client
	clockSync  *sync.ClockSync
	timeline   *player.Timeline
	sink       output.Sink
	assets     *Assets
	metrics    *metrics.Metrics
	feedback   ui.Feedback
	discovery  *discovery.Manager
	tuiProg    *tea.Program
	controls   *ui.Controls
	metricsSrv *http.Server

	grain   *GrainModule
	path    *PathModule
	groups  *GroupsModule
	modules map[string]Module

	// owned by the timeline
	missed int64

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new player
func New(config Config) *Player {
	ctx, cancel := context.WithCancel(context.Background())

	if config.SampleRate == 0 {
		config.SampleRate = DefaultSampleRate
	}
	if config.Name == "" {
		config.Name = "nu-player"
	}

	return &Player{
		config:    config,
		clockSync: sync.NewClockSync(),
		assets:    NewAssets(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the player and blocks until it stops
func (p *Player) Start() error {
	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	p.metrics = m

	if p.config.NoAudio {
		p.sink = output.NewNull(p.config.SampleRate)
	} else {
		sink, err := output.NewOto(p.config.SampleRate, 2)
		if err != nil {
			return fmt.Errorf("failed to open audio output: %w", err)
		}
		p.sink = sink
	}

	if p.config.UseTUI {
		p.controls = ui.NewControls()
		tuiProg, err := ui.Run(p.controls)
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		p.tuiProg = tuiProg
		p.feedback = ui.ProgramFeedback{Program: tuiProg}

		go func() {
			if _, err := p.tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
			p.cancel()
		}()
		go p.handleControls()
	} else {
		p.feedback = &ui.LogFeedback{Debug: p.config.Debug}
	}

	p.timeline = player.NewTimeline()
	if err := p.buildModules(rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))); err != nil {
		return err
	}

	go p.loadAssets()

	if p.config.MetricsAddr != "" {
		p.serveMetrics()
	}

	if p.config.ServerAddr == "" {
		p.discovery = discovery.NewManager(discovery.Config{
			ServiceName: p.config.Name,
			Port:        p.config.Port,
			Index:       p.config.Index,
		})

		if err := p.discovery.Advertise(); err != nil {
			log.Printf("mDNS advertise failed: %v", err)
		}
		p.discovery.Browse()

		go p.handleDiscovery()
	} else {
		if err := p.connect(p.config.ServerAddr); err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}
	}

	<-p.ctx.Done()

	return nil
}

// buildModules creates the modules on the timeline, sink and shared clock.
// Rendezvous completions fire on the timeline like every other callback.
func (p *Player) buildModules(rng *rand.Rand) error {
	path, err := NewPathModule(p.assets, rendezvous.New(p.clockSync, p.timeline, p.sink), p.feedback, p.metrics)
	if err != nil {
		return err
	}
	p.path = path
	p.grain = NewGrainModule(p.assets, p.sink, p.timeline, p.feedback, p.metrics, rng)
	p.groups = NewGroupsModule(p.assets, rendezvous.New(p.clockSync, p.timeline, p.sink), p.feedback)

	p.modules = make(map[string]Module)
	for _, m := range []Module{p.grain, p.path, p.groups} {
		p.modules[m.Name()] = m
	}
	return nil
}

// loadAssets decodes assets off the timeline and hands the result back to it
func (p *Player) loadAssets() {
	if len(p.config.Assets) == 0 {
		log.Printf("No assets configured")
	}
	p.assets.Load(p.config.Assets, p.config.SampleRate)

	p.timeline.Post(func() {
		if err := p.grain.AssetsLoaded(); err != nil {
			p.report(err)
		}
	})
}

func (p *Player) serveMetrics() {
	r := mux.NewRouter()
	r.Handle("/metrics", p.metrics.Handler()).Methods(http.MethodGet)

	p.metricsSrv = &http.Server{Addr: p.config.MetricsAddr, Handler: r}
	go func() {
		log.Printf("Serving metrics on %s", p.config.MetricsAddr)
		if err := p.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()
}

// handleDiscovery waits for server discovery
func (p *Player) handleDiscovery() {
	for {
		select {
		case server := <-p.discovery.Servers():
			addr := server.Addr()
			log.Printf("Attempting connection to %s", addr)

			if err := p.connect(addr); err != nil {
				log.Printf("Connection failed: %v", err)
				continue
			}
			return

		case <-p.ctx.Done():
			return
		}
	}
}

// connect establishes connection to server
func (p *Player) connect(serverAddr string) error {
	clientConfig := client.Config{
		ServerAddr: serverAddr,
		ClientID:   uuid.New().String(),
		Name:       p.config.Name,
		Version:    1,
		Role:       protocol.RolePlayer,
		Index:      p.config.Index,
	}
	if p.config.HasPosition {
		clientConfig.Position = &protocol.Position{X: p.config.X, Y: p.config.Y}
	}

	p.client = client.NewClient(clientConfig)

	if err := p.client.Connect(); err != nil {
		return err
	}

	hello := p.client.Hello()
	log.Printf("Connected to server: %s (%s) as player #%d", hello.Name, serverAddr, hello.Index)

	p.timeline.Post(func() {
		p.groups.SetIndex(hello.Index)
	})
	if p.config.HasPosition {
		if err := p.client.SendPosition(hello.Index, p.config.X, p.config.Y); err != nil {
			log.Printf("Failed to send position: %v", err)
		}
	}

	if p.tuiProg != nil {
		connected := true
		index := hello.Index
		p.tuiProg.Send(ui.StatusMsg{
			Connected:  &connected,
			ServerName: hello.Name,
			Index:      &index,
			X:          p.config.X,
			Y:          p.config.Y,
		})
	}

	go p.handleMessages()
	go p.clockSyncLoop()

	return nil
}

// clockSyncLoop continuously syncs clock
func (p *Player) clockSyncLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t1 := sync.ClientMicros()
			if err := p.client.SendTimeSync(t1); err != nil {
				log.Printf("Time sync send failed: %v", err)
				continue
			}

			select {
			case resp := <-p.client.TimeSyncResp:
				t4 := sync.ClientMicros()
				wasSynced := p.clockSync.Synced()
				p.clockSync.ProcessSyncResponse(resp.ClientTransmitted, resp.ServerReceived, resp.ServerTransmitted, t4)
				if !wasSynced && p.clockSync.Synced() {
					log.Printf("Shared clock locked at %.3fs", p.clockSync.Now())
				}

			case <-time.After(2 * time.Second):
				log.Printf("Time sync timeout")
			}

			p.timeline.Post(p.sendStatus)

		case <-p.client.Done():
			return
		case <-p.ctx.Done():
			return
		}
	}
}

// handleMessages moves server messages onto the timeline
func (p *Player) handleMessages() {
	for {
		select {
		case ctrl := <-p.client.Controls:
			p.timeline.Post(func() {
				p.route(ctrl)
			})

		case ir := <-p.client.IRs:
			p.timeline.Post(func() {
				p.path.SetIR(ir)
			})

		case clock := <-p.client.Clock:
			if p.config.Debug {
				log.Printf("[DEBUG] Server clock %.3fs, local shared %.3fs", clock.Time, p.clockSync.Now())
			}

		case positions := <-p.client.Positions:
			if p.config.Debug {
				log.Printf("[DEBUG] %d player positions", len(positions.Players))
			}

		case e := <-p.client.Errors:
			log.Printf("Server error %s: %s", e.Code, e.Message)

		case <-p.client.Done():
			log.Printf("Disconnected from server")
			if p.tuiProg != nil {
				connected := false
				p.tuiProg.Send(ui.StatusMsg{Connected: &connected})
			}
			return

		case <-p.ctx.Done():
			return
		}
	}
}

// route dispatches a control message to its module. Runs on the timeline.
func (p *Player) route(ctrl protocol.Control) {
	m, ok := p.modules[ctrl.Module]
	if !ok {
		p.report(fmt.Errorf("%w: module %q", control.ErrUnknownName, ctrl.Module))
		return
	}

	if err := Dispatch(m, control.Args(ctrl.Args)); err != nil {
		p.report(err)
	}
}

// report counts and logs a recoverable error. Runs on the timeline.
func (p *Player) report(err error) {
	kind := errorKind(err)
	if kind == metrics.KindRendezvousMissed {
		p.missed++
	}
	p.metrics.Report(kind, err)
}

// sendStatus pushes timeline-owned state to the TUI. Runs on the timeline.
func (p *Player) sendStatus() {
	if p.tuiProg == nil {
		return
	}

	offset, rtt, quality := p.clockSync.GetStats()
	enabled := p.grain.Enabled()
	p.tuiProg.Send(ui.StatusMsg{
		SyncOffset:   offset,
		SyncRTT:      rtt,
		SyncQuality:  quality,
		GrainEnabled: &enabled,
		IRs:          p.path.IRs(),
		Missed:       p.missed,
	})
}

// handleControls applies TUI input
func (p *Player) handleControls() {
	for {
		select {
		case v := <-p.controls.Volume:
			gain := float64(v.Volume) / 100
			if v.Muted {
				gain = 0
			}
			p.timeline.Post(func() {
				p.groups.SetLocalVolume(gain)
			})

		case s := <-p.controls.Shake:
			p.timeline.Post(func() {
				p.grain.Shake(s.Energy)
			})

		case <-p.controls.Quit:
			p.cancel()
			return

		case <-p.ctx.Done():
			return
		}
	}
}

// Stop stops the player
func (p *Player) Stop() {
	p.cancel()

	if p.discovery != nil {
		p.discovery.Stop()
	}

	if p.client != nil {
		p.client.SendGoodbye("shutdown")
		p.client.Close()
	}

	if p.timeline != nil {
		done := make(chan struct{})
		p.timeline.Post(func() {
			defer close(done)
			if p.path == nil {
				return
			}
			p.grain.Close()
			p.path.Reset()
			p.groups.Close()
		})
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		p.timeline.Close()
	}

	if p.metricsSrv != nil {
		p.metricsSrv.Close()
	}

	if p.sink != nil {
		p.sink.Close()
	}

	if p.tuiProg != nil {
		p.tuiProg.Quit()
	}
}
