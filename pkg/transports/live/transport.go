// Package live is the websocket transport to the hosted analysis service.
// It dials once; there is no reconnect logic anywhere in this client, a
// dropped connection surfaces as a system frame and the operator connects
// again.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/auralis-ai/auralis/pkg/errorsx"
	"github.com/auralis-ai/auralis/pkg/frames"
)

type Config struct {
	Endpoint  string        `mapstructure:"endpoint"`
	APIKey    string        `mapstructure:"api_key"`
	SessionID string        `mapstructure:"session_id"`
	DialWait  time.Duration `mapstructure:"dial_wait"`
}

func (c Config) withDefaults() Config {
	if c.DialWait <= 0 {
		c.DialWait = 10 * time.Second
	}
	return c
}

type Transport struct {
	cfg    Config
	conn   *websocket.Conn
	recvCh chan frames.Frame
	sendCh chan []byte
	sendMu sync.Mutex
	closed atomic.Bool
	wg     sync.WaitGroup
	log    *slog.Logger
}

func New(cfg Config) *Transport {
	return &Transport{
		cfg:    cfg.withDefaults(),
		recvCh: make(chan frames.Frame, 256),
		sendCh: make(chan []byte, 256),
		log: slog.Default().With(
			slog.String("component", "live_transport"),
			slog.String("session_id", cfg.SessionID)),
	}
}

func (t *Transport) Name() string { return "live" }

func (t *Transport) Recv() <-chan frames.Frame { return t.recvCh }

// Start dials the service endpoint. The API key travels as a query
// parameter, matching the hosted service contract.
func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if t.cfg.Endpoint == "" {
		return errorsx.Wrap(fmt.Errorf("endpoint required"), errorsx.ReasonTransportConnect)
	}

	u, err := url.Parse(t.cfg.Endpoint)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("parse endpoint: %w", err), errorsx.ReasonTransportConnect)
	}
	if t.cfg.APIKey != "" {
		q := u.Query()
		q.Set("key", t.cfg.APIKey)
		u.RawQuery = q.Encode()
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.DialWait)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("dial %s: %w", t.cfg.Endpoint, err), errorsx.ReasonTransportConnect)
	}
	t.conn = conn
	t.log.Info("transport_connected", slog.String("endpoint", t.cfg.Endpoint))

	t.emit(frames.NewSystemFrame(t.cfg.SessionID, time.Now().UnixNano(), frames.SystemConnOpen, nil))

	t.wg.Add(2)
	go t.readLoop()
	go t.writeLoop()
	return nil
}

func (t *Transport) readLoop() {
	defer t.wg.Done()
	for {
		msgType, payload, err := t.conn.ReadMessage()
		if err != nil {
			if !t.closed.Load() {
				name := frames.SystemConnError
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					name = frames.SystemConnClose
				}
				meta := map[string]string{frames.MetaMessage: err.Error()}
				t.emit(frames.NewSystemFrame(t.cfg.SessionID, time.Now().UnixNano(), name, meta))
			}
			t.teardown()
			return
		}
		switch msgType {
		case websocket.TextMessage, websocket.BinaryMessage:
			// Binary messages wrap the same JSON text.
			t.emit(frames.NewTextFrame(t.cfg.SessionID, time.Now().UnixNano(), string(payload),
				map[string]string{frames.MetaSource: "transport"}))
		}
	}
}

func (t *Transport) writeLoop() {
	defer t.wg.Done()
	for payload := range t.sendCh {
		if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			t.log.Warn("transport_write_error", slog.String("error", err.Error()))
			return
		}
	}
}

// Send forwards a text frame's payload to the service. Other frame kinds are
// ignored; encoding audio into an envelope is the session driver's job.
func (t *Transport) Send(f frames.Frame) error {
	tf, ok := f.(frames.TextFrame)
	if !ok {
		return nil
	}
	// The closed check and the enqueue sit under one lock so teardown can
	// never close sendCh between them.
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if t.closed.Load() {
		return errorsx.Wrap(fmt.Errorf("transport closed"), errorsx.ReasonTransportSend)
	}
	select {
	case t.sendCh <- []byte(tf.Text()):
		return nil
	default:
		return errorsx.Wrap(fmt.Errorf("send queue full"), errorsx.ReasonTransportSend)
	}
}

func (t *Transport) Stop() error {
	t.teardown()
	return nil
}

func (t *Transport) teardown() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	t.sendMu.Lock()
	close(t.sendCh)
	t.sendMu.Unlock()
	if t.conn != nil {
		_ = t.conn.Close()
	}
	go func() {
		t.wg.Wait()
		close(t.recvCh)
	}()
}

func (t *Transport) emit(f frames.Frame) {
	select {
	case t.recvCh <- f:
	default:
		t.log.Warn("recv_queue_full", slog.String("kind", string(f.Kind())))
	}
}
