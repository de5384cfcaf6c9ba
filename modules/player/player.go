package player

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dkosmari/RadiiU-sub000/pkg/audio"
	"github.com/dkosmari/RadiiU-sub000/pkg/sink"
	"github.com/dkosmari/RadiiU-sub000/pkg/station"
	"github.com/dkosmari/RadiiU-sub000/pkg/transport"
)

var module = "player"

var (
	metricBytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radiiu",
		Name:      "stream_bytes_received_total",
		Help:      "Bytes harvested from the stream transport.",
	})
	metricMetadataUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radiiu",
		Name:      "metadata_updates_total",
		Help:      "Metadata blocks and tag updates applied.",
	})
	metricTransportPauses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radiiu",
		Name:      "transport_pauses_total",
		Help:      "Times the transport was paused for backpressure.",
	})
	metricDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radiiu",
		Name:      "decode_errors_total",
		Help:      "Fatal decode errors that stopped a session.",
	})
)

type command struct {
	play *station.Station // nil means stop
}

// Player runs the playback session on a dedicated worker goroutine.
// Play and Stop hand commands to the worker; state readers only see
// snapshots published through the mutex.
type Player struct {
	services.Service
	cfg    *Config
	logger *slog.Logger

	sinks    sink.Factory
	commands chan command

	mtx      sync.Mutex
	state    string
	metadata audio.Metadata
	spec     *audio.Spec
	info     *audio.DecoderInfo
}

// New creates and returns a new Player.
func New(cfg Config, logger slog.Logger) (*Player, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.LowWatermark <= 0 {
		cfg.LowWatermark = defaultLowWatermark
	}
	if cfg.HighWatermark <= cfg.LowWatermark {
		cfg.HighWatermark = defaultHighWatermark
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	p := &Player{
		cfg:      &cfg,
		logger:   logger.With("module", module),
		commands: make(chan command, 4),
		state:    stateStopped.String(),
	}

	if cfg.DisableSink {
		p.sinks = sink.Null
	} else {
		p.sinks = sink.New
	}

	p.Service = services.NewBasicService(p.starting, p.running, p.stopping)

	return p, nil
}

func (p *Player) starting(ctx context.Context) error {
	if p.cfg.URL != "" {
		p.Play(station.Station{Name: p.cfg.Name, URL: p.cfg.URL})
	}
	return nil
}

func (p *Player) running(ctx context.Context) error {
	sess := newSession(p.logger, p.cfg, p.sinks)
	sess.onMetadata = p.publishMetadata
	sess.onSpec = p.publishSpec
	sess.onInfo = p.publishInfo
	sess.onState = p.publishState

	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sess.stop()
			return nil
		case cmd := <-p.commands:
			if cmd.play != nil {
				p.connect(ctx, sess, *cmd.play)
			} else {
				sess.stop()
			}
		case <-ticker.C:
			sess.tick()
		}
	}
}

func (p *Player) stopping(_ error) error {
	p.logger.Info("stopping")
	return nil
}

// connect resolves the station URL and hands a live transport to the
// session. Failures log and leave the player stopped.
func (p *Player) connect(ctx context.Context, sess *session, st station.Station) {
	p.logger.Info("connecting", "name", st.Name, "url", st.URL)

	url, err := station.Resolve(ctx, st.URL)
	if err != nil {
		p.logger.Error("error resolving station", "err", err, "url", st.URL)
		return
	}

	src := transport.New(url)
	src.AddHeader("Icy-MetaData", "1")
	src.AddHeader("User-Agent", p.cfg.UserAgent)
	if err := src.Start(ctx); err != nil {
		p.logger.Error("error connecting to stream", "err", err, "url", url)
		return
	}

	sess.start(src, st)
}

// Play requests playback of st, effective on the worker's next pass.
func (p *Player) Play(st station.Station) {
	select {
	case p.commands <- command{play: &st}:
	default:
		p.logger.Warn("command queue full, dropping play", "url", st.URL)
	}
}

// Stop requests teardown of the active session.
func (p *Player) Stop() {
	select {
	case p.commands <- command{}:
	default:
		p.logger.Warn("command queue full, dropping stop")
	}
}

// State reports the published playback state.
func (p *Player) State() string {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.state
}

// GetMetadata returns the current stream metadata, if any.
func (p *Player) GetMetadata() (audio.Metadata, bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.metadata, !p.metadata.IsZero()
}

// GetSpec returns the output format once a decoder has reported one.
func (p *Player) GetSpec() (audio.Spec, bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.spec == nil {
		return audio.Spec{}, false
	}
	return *p.spec, true
}

// GetDecoderInfo describes the active decoder, if any.
func (p *Player) GetDecoderInfo() (audio.DecoderInfo, bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.info == nil {
		return audio.DecoderInfo{}, false
	}
	return *p.info, true
}

func (p *Player) publishMetadata(m audio.Metadata) {
	p.mtx.Lock()
	p.metadata = m
	p.mtx.Unlock()
}

func (p *Player) publishSpec(s audio.Spec) {
	p.mtx.Lock()
	p.spec = &s
	p.mtx.Unlock()
}

func (p *Player) publishInfo(i audio.DecoderInfo) {
	p.mtx.Lock()
	p.info = &i
	p.mtx.Unlock()
}

func (p *Player) publishState(state string) {
	p.mtx.Lock()
	p.state = state
	if state == stateStopped.String() {
		p.spec = nil
		p.info = nil
	}
	p.mtx.Unlock()
}

type nowPlaying struct {
	State    string             `json:"state"`
	Metadata audio.Metadata     `json:"metadata,omitempty"`
	Spec     *audio.Spec        `json:"spec,omitempty"`
	Decoder  *audio.DecoderInfo `json:"decoder,omitempty"`
}

// NowPlayingHandler serves the current playback state as JSON.
func (p *Player) NowPlayingHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mtx.Lock()
		np := nowPlaying{
			State:    p.state,
			Metadata: p.metadata,
			Spec:     p.spec,
			Decoder:  p.info,
		}
		p.mtx.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(np); err != nil {
			p.logger.Error("error encoding now playing response", "err", err)
		}
	})
}
