package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/auralis-ai/auralis/pkg/analysis"
	"github.com/auralis-ai/auralis/pkg/audio"
	"github.com/auralis-ai/auralis/pkg/capture"
	"github.com/auralis-ai/auralis/pkg/errorsx"
	"github.com/auralis-ai/auralis/pkg/frames"
	"github.com/auralis-ai/auralis/pkg/metrics"
	"github.com/auralis-ai/auralis/pkg/pipeline"
	"github.com/auralis-ai/auralis/pkg/sink"
	"github.com/auralis-ai/auralis/pkg/transports"
	"github.com/auralis-ai/auralis/pkg/turn"
	"github.com/auralis-ai/auralis/pkg/vad"
	"github.com/auralis-ai/auralis/pkg/wire"
)

// Mode selects how captured audio reaches the service. One mode per
// deployment; they are not hot-swappable on a live connection.
type Mode string

const (
	// ModeSegmented buffers speech into utterances, sends each as one
	// realtime-input message, then prompts the service for a response.
	ModeSegmented Mode = "segmented"
	// ModeContinuous streams every captured block as it arrives and lets the
	// service decide turn boundaries.
	ModeContinuous Mode = "continuous"
)

type Config struct {
	Mode        Mode          `mapstructure:"mode"`
	Model       string        `mapstructure:"model"`
	BasePrompt  string        `mapstructure:"base_prompt"`
	Credential  string        `mapstructure:"credential"`
	TurnPrompt  string        `mapstructure:"turn_prompt"`
	PromptDelay time.Duration `mapstructure:"prompt_delay"`
	Watchdog    time.Duration `mapstructure:"watchdog"`
	VAD         vad.Config    `mapstructure:"vad"`
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeSegmented
	}
	if c.Model == "" {
		c.Model = "models/gemini-2.0-flash-exp"
	}
	if c.TurnPrompt == "" {
		c.TurnPrompt = "Analyze the audio you just received and respond now."
	}
	if c.PromptDelay <= 0 {
		c.PromptDelay = 100 * time.Millisecond
	}
	if c.Watchdog <= 0 {
		c.Watchdog = 30 * time.Second
	}
	return c
}

type Options struct {
	Config      Config
	Transport   transports.Transport
	Capture     capture.Source
	Sink        sink.Sink
	Observer    metrics.Observer
	Credentials *CredentialStore
}

// Driver is the session protocol driver. It exclusively owns the transport,
// the capture source, the segmenter, and every per-connection timer; the
// sink only ever receives fire-and-forget notifications.
type Driver struct {
	cfg       Config
	sessionID string

	transport transports.Transport
	capture   capture.Source
	seg       *vad.Segmenter
	reasm     *turn.Reassembler
	chain     *pipeline.Chain
	norm      *analysis.Normalizer
	snk       sink.Sink
	obs       metrics.Observer
	creds     *CredentialStore
	tlog      *sink.TranscriptLog
	pts       *frames.PTSGen
	log       *slog.Logger

	mu          sync.Mutex
	state       State
	watchdog    *time.Timer
	promptTimer *time.Timer
	turnStarted time.Time
	loopDone    chan struct{}
}

func NewDriver(opts Options) *Driver {
	cfg := opts.Config.withDefaults()
	sessionID := uuid.NewString()

	var normOpts []analysis.Option
	if cfg.Mode == ModeContinuous {
		normOpts = append(normOpts, analysis.WithFillerFilter())
	}

	obs := opts.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	snk := opts.Sink
	if snk == nil {
		snk = sink.Nop{}
	}

	d := &Driver{
		cfg:       cfg,
		sessionID: sessionID,
		transport: opts.Transport,
		capture:   opts.Capture,
		reasm:     turn.NewReassembler(sessionID),
		norm:      analysis.NewNormalizer(normOpts...),
		snk:       snk,
		obs:       obs,
		creds:     opts.Credentials,
		tlog:      sink.NewTranscriptLog(sink.DefaultTranscriptCap),
		pts:       frames.NewPTSGen(),
		state:     StateDisconnected,
		log: slog.Default().With(
			slog.String("component", "session"),
			slog.String("session_id", sessionID)),
	}
	d.seg = vad.NewSegmenter(cfg.VAD, d.onUtterance)
	d.chain = pipeline.NewChain(d.reasm)
	d.chain.SetObserver(obs)
	return d
}

func (d *Driver) SessionID() string { return d.sessionID }

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// transitionLocked advances the state machine, refusing moves the machine
// does not define. Callers hold d.mu.
func (d *Driver) transitionLocked(to State) bool {
	if !canTransition(d.state, to) {
		d.log.Warn("invalid_state_transition",
			slog.String("from", d.state.String()),
			slog.String("to", to.String()))
		return false
	}
	d.state = to
	return true
}

// Transcript exposes the bounded transcript history for presentation.
func (d *Driver) Transcript() *sink.TranscriptLog { return d.tlog }

// Connect opens the transport, sends the setup message, and starts the
// inbound dispatch loop. It does not wait for setup completion; the driver
// moves to ready when the marker arrives.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	if !d.transitionLocked(StateConnecting) {
		from := d.state
		d.mu.Unlock()
		return transitionErr(from, StateConnecting)
	}
	d.mu.Unlock()

	d.snk.UpdateStatus("connecting")
	if err := d.transport.Start(ctx); err != nil {
		d.mu.Lock()
		d.transitionLocked(StateError)
		d.mu.Unlock()
		d.snk.UpdateStatus("connection failed")
		d.snk.ShowError()
		return errorsx.Wrap(err, errorsx.ReasonTransportConnect)
	}

	if err := d.sendJSON(wire.NewSetup(d.cfg.Model, d.cfg.BasePrompt)); err != nil {
		d.mu.Lock()
		d.transitionLocked(StateError)
		d.mu.Unlock()
		d.snk.UpdateStatus("setup send failed")
		_ = d.transport.Stop()
		return err
	}

	d.mu.Lock()
	d.transitionLocked(StateAwaitingSetup)
	d.loopDone = make(chan struct{})
	done := d.loopDone
	d.mu.Unlock()

	go d.recvLoop(done)
	d.log.Info("session_connecting", slog.String("mode", string(d.cfg.Mode)))
	return nil
}

// Disconnect tears the session down in a fixed order: capture first so no
// audio callback runs against a dead segmenter, then segmenter timers, then
// the turn timers, then the transport. Calling it on an already-disconnected
// driver is a no-op.
func (d *Driver) Disconnect() error {
	done, active := d.beginTeardown()
	if !active {
		return nil
	}
	d.releaseResources()
	if done != nil {
		<-done
	}
	d.snk.UpdateUI(false)
	d.snk.ResetDisplay()
	d.snk.UpdateStatus("disconnected")
	d.log.Info("session_disconnected")
	return nil
}

// beginTeardown flips the state to disconnected exactly once and hands back
// the loop's done channel. The second return is false when there was nothing
// to tear down.
func (d *Driver) beginTeardown() (chan struct{}, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateDisconnected {
		return nil, false
	}
	d.transitionLocked(StateDisconnected)
	done := d.loopDone
	d.loopDone = nil
	return done, true
}

func (d *Driver) releaseResources() {
	if d.capture != nil {
		_ = d.capture.Stop()
	}
	d.seg.Reset()
	d.mu.Lock()
	d.stopTurnTimersLocked()
	d.mu.Unlock()
	d.reasm.Reset()
	_ = d.transport.Stop()
}

func (d *Driver) stopTurnTimersLocked() {
	if d.watchdog != nil {
		d.watchdog.Stop()
		d.watchdog = nil
	}
	if d.promptTimer != nil {
		d.promptTimer.Stop()
		d.promptTimer = nil
	}
}

func (d *Driver) recvLoop(done chan struct{}) {
	defer close(done)
	for f := range d.transport.Recv() {
		for _, out := range d.chain.Process(f) {
			d.handle(out)
		}
	}
	// Recv closed underneath us: remote hangup or transport failure. If
	// Disconnect initiated it the teardown below is a no-op.
	if _, active := d.beginTeardown(); active {
		d.releaseResources()
		d.snk.UpdateUI(false)
		d.snk.ResetDisplay()
		d.snk.UpdateStatus("connection closed")
		d.log.Info("session_closed_by_transport")
	}
}

func (d *Driver) handle(f frames.Frame) {
	switch fr := f.(type) {
	case frames.SystemFrame:
		d.handleSystem(fr)
	case frames.TextFrame:
		if fr.Meta()[turn.MetaTurnText] == "true" {
			d.completeTurn(fr.Text())
		}
	}
}

func (d *Driver) handleSystem(f frames.SystemFrame) {
	switch f.Name() {
	case frames.SystemConnOpen:
		// Connect observed the dial result directly.
	case frames.SystemSetupComplete:
		d.onSetupComplete()
	case frames.SystemTurnStarted:
		d.snk.ShowAnalyzing()
		d.snk.UpdateStatus("analyzing")
	case frames.SystemTurnComplete:
		// Fires for every completion marker, including turns with no text;
		// the pending-turn state must never outlive the marker.
		d.resolveTurn()
	case frames.SystemTurnError:
		d.onTurnError(f.Meta()[frames.MetaMessage])
	case frames.SystemInterrupted:
		d.log.Info("turn_interrupted_by_speech")
	case frames.SystemConnClose, frames.SystemConnError:
		// The recv loop handles teardown when the channel drains.
		if reason := f.Meta()[frames.MetaMessage]; reason != "" {
			d.snk.UpdateStatus("connection error: " + reason)
		}
	}
}

func (d *Driver) onSetupComplete() {
	d.mu.Lock()
	// Only the first marker after the handshake counts; Ready is also
	// reachable from turn states, so the source state is pinned here.
	if d.state != StateAwaitingSetup || !d.transitionLocked(StateReady) {
		state := d.state
		d.mu.Unlock()
		d.log.Warn("unexpected_setup_complete", slog.String("state", state.String()))
		return
	}
	d.mu.Unlock()

	if d.creds != nil && d.cfg.Credential != "" {
		if err := d.creds.Save(d.cfg.Credential); err != nil {
			d.log.Warn("credential_persist_failed", slog.String("error", err.Error()))
		}
	}

	d.snk.UpdateUI(true)
	if d.capture != nil {
		if err := d.capture.Start(context.Background(), d.onBlock); err != nil {
			// Connection stays open but is non-functional until the operator
			// reconnects with a working device.
			d.snk.UpdateStatus("microphone unavailable")
			d.snk.ShowError()
			d.log.Error("capture_start_failed", slog.String("error", err.Error()))
			return
		}
	}
	d.snk.ShowListening()
	d.snk.UpdateStatus("listening")
	d.obs.RecordEvent(metrics.Event("session_ready", 1, map[string]string{
		"session_id": d.sessionID,
		"mode":       string(d.cfg.Mode),
	}))
	d.log.Info("session_ready")
}

// onBlock receives one capture block on the device callback goroutine.
func (d *Driver) onBlock(samples []float32) {
	d.mu.Lock()
	state := d.state
	if d.cfg.Mode == ModeContinuous && state == StateReady && d.transitionLocked(StateStreaming) {
		state = StateStreaming
	}
	d.mu.Unlock()

	switch d.cfg.Mode {
	case ModeContinuous:
		if state != StateStreaming {
			return
		}
		if err := d.sendJSON(wire.NewRealtimeInput(audio.EncodeFrame(samples))); err != nil {
			d.log.Warn("frame_send_failed", slog.String("error", err.Error()))
		}
	default:
		if state != StateReady && state != StateTurnPending {
			return
		}
		pcm := audio.PCM16FromFloat32(samples)
		d.seg.Process(frames.NewAudioFrameFromPool(
			d.sessionID, d.pts.Next(d.sessionID), pcm, audio.SampleRate, 1, nil))
	}
}

// onUtterance fires on the segmenter's flush path with one utterance of PCM.
func (d *Driver) onUtterance(pcm []byte) {
	d.mu.Lock()
	if !d.transitionLocked(StateTurnPending) {
		d.mu.Unlock()
		d.seg.Resolve()
		return
	}
	d.turnStarted = time.Now()
	d.mu.Unlock()

	if err := d.sendJSON(wire.NewRealtimeInput(audio.EncodeChunk(pcm))); err != nil {
		d.snk.UpdateStatus("send failed")
		d.resolveTurn()
		return
	}
	d.obs.RecordEvent(metrics.Event("utterance_sent", float64(len(pcm)), map[string]string{
		"session_id": d.sessionID,
	}))

	d.mu.Lock()
	if d.state != StateTurnPending {
		d.mu.Unlock()
		return
	}
	// The short gap lets the final chunk land before the service is told to
	// treat the turn as finished.
	if d.promptTimer == nil {
		d.promptTimer = time.AfterFunc(d.cfg.PromptDelay, d.sendTurnPrompt)
	}
	if d.watchdog == nil {
		d.watchdog = time.AfterFunc(d.cfg.Watchdog, d.onWatchdog)
	}
	d.mu.Unlock()
	d.snk.ShowAnalyzing()
	d.snk.UpdateStatus("analyzing")
}

func (d *Driver) sendTurnPrompt() {
	d.mu.Lock()
	if d.promptTimer == nil || d.state != StateTurnPending {
		d.mu.Unlock()
		return
	}
	d.promptTimer = nil
	d.mu.Unlock()
	if err := d.sendJSON(wire.NewTurnPrompt(d.cfg.TurnPrompt)); err != nil {
		d.log.Warn("turn_prompt_send_failed", slog.String("error", err.Error()))
	}
}

func (d *Driver) onWatchdog() {
	d.mu.Lock()
	if d.watchdog == nil {
		d.mu.Unlock()
		return
	}
	d.watchdog = nil
	d.mu.Unlock()

	d.resolveTurn()
	d.reasm.Reset()
	d.snk.UpdateStatus("turn timed out")
	d.obs.RecordEvent(metrics.Event("turn_timeout", 1, map[string]string{
		"session_id": d.sessionID,
	}))
	d.log.Warn("turn_watchdog_fired")
}

// resolveTurn returns the driver to ready and releases the segmenter's
// awaiting-response gate so new utterances can start.
func (d *Driver) resolveTurn() {
	d.mu.Lock()
	d.stopTurnTimersLocked()
	if d.state == StateTurnPending {
		d.transitionLocked(StateReady)
	}
	d.mu.Unlock()
	d.seg.Resolve()
}

func (d *Driver) onTurnError(msg string) {
	d.resolveTurn()
	if msg == "" {
		msg = "service error"
	}
	d.snk.UpdateStatus("error: " + msg)
	d.snk.ShowError()
	d.log.Warn("turn_error", slog.String("message", msg))
}

func (d *Driver) completeTurn(text string) {
	d.mu.Lock()
	started := d.turnStarted
	d.mu.Unlock()
	d.resolveTurn()

	result, dialect := d.norm.Normalize(text)
	if result == nil {
		// Unparseable or filler turn: nothing reaches the display, the
		// session keeps listening.
		d.log.Info("turn_discarded", slog.Int("raw_len", len(text)))
		return
	}

	d.snk.UpdateDisplay(result)
	if result.Transcript != "" {
		d.tlog.Add(result.Transcript, result.Analysis)
		d.snk.AddToTranscriptLog(result.Transcript, result.Analysis)
	}
	d.snk.ShowListening()
	d.snk.UpdateStatus("listening")

	tags := map[string]string{
		"session_id": d.sessionID,
		"dialect":    string(dialect),
	}
	if !started.IsZero() {
		d.obs.RecordEvent(metrics.Event("turn_latency_ms",
			float64(time.Since(started).Milliseconds()), tags))
	}
	d.obs.RecordEvent(metrics.Event("turn_completed", 1, tags))
}

func (d *Driver) sendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	return d.transport.Send(frames.NewTextFrame(
		d.sessionID, d.pts.Next(d.sessionID), string(payload), nil))
}
