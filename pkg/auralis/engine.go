package auralis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/auralis-ai/auralis/pkg/capture"
	"github.com/auralis-ai/auralis/pkg/configutil"
	"github.com/auralis-ai/auralis/pkg/logging"
	"github.com/auralis-ai/auralis/pkg/metrics"
	"github.com/auralis-ai/auralis/pkg/runner"
	"github.com/auralis-ai/auralis/pkg/session"
	"github.com/auralis-ai/auralis/pkg/sink"
	"github.com/auralis-ai/auralis/pkg/transports"
	"github.com/auralis-ai/auralis/pkg/transports/live"
)

type Engine struct {
	cfg       Config
	driver    *session.Driver
	transport transports.Transport
	runner    *runner.LifecycleRunner
	closers   []io.Closer
}

// EngineOptions allows tests and embedders to substitute any collaborator;
// nil fields are built from the config.
type EngineOptions struct {
	Config    Config
	Transport transports.Transport
	Capture   capture.Source
	Sink      sink.Sink
	Observer  metrics.Observer
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	slog.SetDefault(logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat))

	slog.Info("auralis_init",
		"environment", cfg.Environment,
		"mode", cfg.Mode,
		"model", cfg.Model,
		"transport", cfg.Transport.Provider,
		"capture", cfg.Capture.Provider,
	)

	e := &Engine{cfg: cfg}

	obs := opts.Observer
	if obs == nil {
		obs = metrics.Observer(metrics.NoopObserver{})
		if cfg.Observability.MetricsFile != "" {
			f, err := os.OpenFile(cfg.Observability.MetricsFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open metrics file: %w", err)
			}
			e.closers = append(e.closers, f)
			obs = metrics.NewJSONLObserver(f)
		}
	}

	transport := opts.Transport
	if transport == nil {
		var err error
		transport, err = buildTransport(cfg)
		if err != nil {
			return nil, err
		}
	}
	e.transport = transport

	src := opts.Capture
	if src == nil {
		var err error
		src, err = buildCapture(cfg)
		if err != nil {
			return nil, err
		}
	}

	e.driver = session.NewDriver(session.Options{
		Config: session.Config{
			Mode:        session.Mode(cfg.Mode),
			Model:       cfg.Model,
			BasePrompt:  cfg.BasePrompt,
			Credential:  cfg.Credential,
			TurnPrompt:  cfg.TurnPrompt,
			PromptDelay: cfg.PromptDelay,
			Watchdog:    cfg.Watchdog,
			VAD:         cfg.VAD,
		},
		Transport:   transport,
		Capture:     src,
		Sink:        opts.Sink,
		Observer:    obs,
		Credentials: session.NewCredentialStore(cfg.CredentialFile),
	})

	e.runner = runner.NewLifecycleRunner(
		runner.DrainFunc(e.driver.Disconnect),
		runner.Hooks{
			OnStop: func() { slog.Info("auralis_stopped") },
		},
		15*time.Second)
	return e, nil
}

func buildTransport(cfg Config) (transports.Transport, error) {
	switch cfg.Transport.Provider {
	case "live":
		var tc live.Config
		if err := configutil.DecodeSettings(cfg.Transport.Settings, &tc); err != nil {
			return nil, fmt.Errorf("transport settings: %w", err)
		}
		if err := configutil.RequireString(tc.Endpoint, "transport.settings.endpoint"); err != nil {
			return nil, err
		}
		if tc.APIKey == "" {
			tc.APIKey = cfg.Credential
		}
		if tc.SessionID == "" {
			tc.SessionID = uuid.NewString()
		}
		return live.New(tc), nil
	default:
		return nil, fmt.Errorf("unknown transport provider %q", cfg.Transport.Provider)
	}
}

func buildCapture(cfg Config) (capture.Source, error) {
	ccfg, err := cfg.CaptureSettings()
	if err != nil {
		return nil, fmt.Errorf("capture settings: %w", err)
	}
	switch cfg.Capture.Provider {
	case "mic":
		return capture.NewMic(ccfg), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown capture provider %q", cfg.Capture.Provider)
	}
}

// Run connects the session and blocks until the context is cancelled or
// Stop is called; the session is drained before it returns.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.driver.Connect(ctx); err != nil {
		return err
	}
	err := e.runner.Run(ctx)
	e.close()
	return err
}

func (e *Engine) Stop() error {
	err := e.runner.Stop()
	e.close()
	return err
}

func (e *Engine) close() {
	for _, c := range e.closers {
		_ = c.Close()
	}
	e.closers = nil
}

func (e *Engine) Driver() *session.Driver { return e.driver }

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Health() error {
	if e.transport == nil {
		return fmt.Errorf("missing transport")
	}
	return nil
}
