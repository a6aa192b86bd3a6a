// Package ws is the websocket transport to the messaging agent.
//
// Frames are JSON envelopes {"event": name, "data": payload}. The agent
// pushes "qr" (data URL string), "pairing-code" (string) and
// "connection-status" ({status, message}); the service sends "request-qr"
// and "request-pairing" (phone string).
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"whatsapp-service/internal/domain"
	"whatsapp-service/pkg/channel"
)

const (
	EventQR               = "qr"
	EventPairingCode      = "pairing-code"
	EventConnectionStatus = "connection-status"
	EventRequestQR        = "request-qr"
	EventRequestPairing   = "request-pairing"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type statusData struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Options struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
}

type Dialer struct {
	opts   Options
	logger *zap.Logger
}

func NewDialer(opts Options, logger *zap.Logger) *Dialer {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Dialer{opts: opts, logger: logger}
}

func (d *Dialer) Dial(ctx context.Context) (channel.Channel, error) {
	wd := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.opts.HandshakeTimeout,
	}
	conn, _, err := wd.DialContext(ctx, d.opts.URL, d.opts.Header)
	if err != nil {
		return nil, fmt.Errorf("dial agent %s: %w", d.opts.URL, err)
	}
	d.logger.Info("agent channel opened", zap.String("url", d.opts.URL))
	return newConn(conn, d.opts, d.logger), nil
}

// Conn is a live agent channel.
type Conn struct {
	conn   *websocket.Conn
	opts   Options
	logger *zap.Logger

	events chan domain.Event
	closed chan struct{}
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newConn(conn *websocket.Conn, opts Options, logger *zap.Logger) *Conn {
	c := &Conn{
		conn:   conn,
		opts:   opts,
		logger: logger,
		events: make(chan domain.Event, 16),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}

	readWait := 2 * opts.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	go c.readLoop()
	go c.pingLoop()
	return c
}

func (c *Conn) Events() <-chan domain.Event {
	return c.events
}

func (c *Conn) Send(ctx context.Context, cmd domain.Command) error {
	env, err := encodeCommand(cmd)
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return domain.ErrChannelClosed
	default:
	}

	deadline := time.Now().Add(c.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrChannelClosed, err)
	}
	return nil
}

// Close shuts the channel down and waits for the reader to exit.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
	<-c.done
	return nil
}

func (c *Conn) readLoop() {
	defer close(c.done)
	defer close(c.events)

	if !c.emit(domain.ChannelOpened()) {
		return
	}
	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if !isExpectedClose(err) {
				c.logger.Warn("agent channel read failed", zap.Error(err))
			}
			break
		}
		ev, err := decodeEvent(env)
		if err != nil {
			c.logger.Debug("dropping agent frame", zap.String("event", env.Event), zap.Error(err))
			continue
		}
		if !c.emit(ev) {
			return
		}
	}
	_ = c.conn.Close()
	c.emit(domain.ChannelClosed())
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		case <-c.closed:
			return
		}
	}
}

func (c *Conn) emit(ev domain.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.closed:
		return false
	}
}

func isExpectedClose(err error) bool {
	if errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func decodeEvent(env Envelope) (domain.Event, error) {
	switch env.Event {
	case EventQR:
		var payload string
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return domain.Event{}, fmt.Errorf("qr payload: %w", err)
		}
		return domain.CredentialQREvent([]byte(payload)), nil

	case EventPairingCode:
		var code string
		if err := json.Unmarshal(env.Data, &code); err != nil {
			return domain.Event{}, fmt.Errorf("pairing code payload: %w", err)
		}
		return domain.PairingCodeEvent(code), nil

	case EventConnectionStatus:
		var st statusData
		if err := json.Unmarshal(env.Data, &st); err != nil {
			return domain.Event{}, fmt.Errorf("status payload: %w", err)
		}
		return domain.StatusUpdate(st.Status, st.Message), nil
	}
	return domain.Event{}, fmt.Errorf("unknown event %q", env.Event)
}

func encodeCommand(cmd domain.Command) (Envelope, error) {
	switch cmd.Type {
	case domain.CommandRequestCredential:
		return Envelope{Event: EventRequestQR}, nil
	case domain.CommandRequestPairingCode:
		if cmd.Phone == "" {
			return Envelope{}, domain.ErrPhoneRequired
		}
		data, err := json.Marshal(cmd.Phone)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Event: EventRequestPairing, Data: data}, nil
	}
	return Envelope{}, fmt.Errorf("%w: unknown command %q", domain.ErrInvalidRequest, cmd.Type)
}
