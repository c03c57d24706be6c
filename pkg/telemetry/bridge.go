package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/teslashibe/go-technocrane/internal/log"
	"github.com/teslashibe/go-technocrane/pkg/protocol"
)

// ErrBridgeClosed is returned by Run after Close.
var ErrBridgeClosed = errors.New("telemetry: bridge closed")

const (
	defaultReconnect = time.Second
	maxBackoff       = 30 * time.Second
	writeWait        = 5 * time.Second
)

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// URL is the WebSocket endpoint of the tracking host.
	URL string

	// ReconnectInterval is the first delay after a failed dial. It doubles
	// on each failure up to 30 seconds.
	ReconnectInterval time.Duration

	Decode DecodeOptions
}

// Bridge receives packet messages from a tracking host, decodes them and
// publishes the samples to a Mailbox.
type Bridge struct {
	cfg    BridgeConfig
	source uuid.UUID
	out    *Mailbox
	logger *slog.Logger

	mu       sync.Mutex
	conn     *ws.Conn
	closed   bool
	done     chan struct{}
	onSample func(Sample)

	packets  atomic.Uint64
	rejected atomic.Uint64
}

// NewBridge creates a bridge that writes to out.
// Each bridge carries a random source ID stamped on its samples.
func NewBridge(cfg BridgeConfig, out *Mailbox) *Bridge {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnect
	}
	if cfg.Decode.FrameRate.FPS <= 0 {
		cfg.Decode.FrameRate = DefaultFrameRate
	}
	source := uuid.New()
	return &Bridge{
		cfg:    cfg,
		source: source,
		out:    out,
		logger: log.Component("telemetry").With("source", source.String()),
		done:   make(chan struct{}),
	}
}

// Source returns the bridge's source ID.
func (b *Bridge) Source() uuid.UUID {
	return b.source
}

// OnSample registers a callback run on the receive goroutine after each
// sample is published.
func (b *Bridge) OnSample(fn func(Sample)) {
	b.mu.Lock()
	b.onSample = fn
	b.mu.Unlock()
}

// Stats returns the number of decoded and rejected messages.
func (b *Bridge) Stats() (packets, rejected uint64) {
	return b.packets.Load(), b.rejected.Load()
}

// Connected reports whether a connection is open.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Run dials the tracking host and receives until ctx is done or Close is
// called. Dropped connections are redialled with exponential backoff.
func (b *Bridge) Run(ctx context.Context) error {
	backoff := b.cfg.ReconnectInterval

	for {
		if err := b.stopped(ctx); err != nil {
			return err
		}

		conn, _, err := ws.DefaultDialer.DialContext(ctx, b.cfg.URL, nil)
		if err != nil {
			b.logger.Warn("telemetry dial failed", "url", b.cfg.URL, "error", err, "backoff", backoff)
			if err := b.wait(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = b.cfg.ReconnectInterval

		if !b.attach(conn) {
			_ = conn.Close()
			return ErrBridgeClosed
		}
		b.logger.Info("telemetry connected", "url", b.cfg.URL)

		err = b.receive(ctx, conn)
		b.detach(conn)

		if stopErr := b.stopped(ctx); stopErr != nil {
			return stopErr
		}
		b.logger.Warn("telemetry connection lost", "error", err)
	}
}

// Close stops Run and closes the connection.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	conn := b.conn
	b.conn = nil
	b.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}

func (b *Bridge) stopped(ctx context.Context) error {
	select {
	case <-b.done:
		return ErrBridgeClosed
	default:
	}
	return ctx.Err()
}

func (b *Bridge) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-b.done:
		return ErrBridgeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) attach(conn *ws.Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.conn = conn
	return true
}

func (b *Bridge) detach(conn *ws.Conn) {
	b.mu.Lock()
	if b.conn == conn {
		b.conn = nil
	}
	b.mu.Unlock()
	_ = conn.Close()
}

// receive reads messages until the connection fails or ctx ends.
func (b *Bridge) receive(ctx context.Context, conn *ws.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := b.handle(conn, data); err != nil {
			b.rejected.Add(1)
			b.logger.Debug("telemetry message rejected", "error", err)
		}
	}
}

func (b *Bridge) handle(conn *ws.Conn, data []byte) error {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return err
	}

	switch msg.Type {
	case protocol.TypePacket:
		packet, err := msg.GetPacketData()
		if err != nil {
			return fmt.Errorf("decode packet: %w", err)
		}
		s := Decode(*packet, b.cfg.Decode)
		s.Source = b.source
		s.Received = time.Now()
		b.out.Put(s)
		b.packets.Add(1)

		b.mu.Lock()
		fn := b.onSample
		b.mu.Unlock()
		if fn != nil {
			fn(s)
		}
		return nil

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			return fmt.Errorf("decode ping: %w", err)
		}
		pong, err := protocol.NewPongMessage(ping.ID, msg.Timestamp, time.Now().UnixMilli())
		if err != nil {
			return err
		}
		out, err := pong.Bytes()
		if err != nil {
			return err
		}
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return conn.WriteMessage(ws.TextMessage, out)
	}

	return fmt.Errorf("unexpected message type %q", msg.Type)
}
