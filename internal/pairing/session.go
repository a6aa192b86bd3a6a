package pairing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"whatsapp-service/internal/domain"
	"whatsapp-service/pkg/channel"
)

type PhoneNormalizer interface {
	Normalize(raw string) (string, error)
}

type Options struct {
	// PairingTimeout bounds how long a pairing-code request may go
	// unanswered before the display text says so. Zero disables it.
	PairingTimeout time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
}

// Session owns the single active agent channel of this process, feeds its
// events through a Machine and exposes the resulting state.
type Session struct {
	dialer     channel.Dialer
	normalizer PhoneNormalizer
	opts       Options
	logger     *zap.Logger

	mu           sync.Mutex
	machine      *Machine
	ch           channel.Channel
	pairingGen   uint64
	pairingTimer *time.Timer
	listeners    map[uint64]func(domain.ConnectionSession)
	nextListener uint64
	version      uint64

	// pubMu orders deliveries; published is the newest version delivered.
	pubMu     sync.Mutex
	published uint64
}

func NewSession(dialer channel.Dialer, normalizer PhoneNormalizer, opts Options, logger *zap.Logger) *Session {
	return &Session{
		dialer:     dialer,
		normalizer: normalizer,
		opts:       opts,
		logger:     logger,
		machine:    NewMachine(),
		listeners:  make(map[uint64]func(domain.ConnectionSession)),
	}
}

// Run keeps a channel open until ctx is done, redialing with backoff after
// every close or failed dial.
func (s *Session) Run(ctx context.Context) error {
	retry := channel.NewBackoff(s.opts.ReconnectMin, s.opts.ReconnectMax)
	for {
		ch, err := s.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := retry.NextBackOff()
			s.logger.Warn("agent dial failed", zap.Error(err), zap.Duration("retry_in", wait))
			s.note(fmt.Sprintf("Messaging agent unreachable, retrying in %s", wait))
			if err := channel.Sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		retry.Reset()
		s.Serve(ctx, ch)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := channel.Sleep(ctx, retry.NextBackOff()); err != nil {
			return err
		}
	}
}

// Serve processes events from ch in arrival order until it closes or ctx
// is done.
func (s *Session) Serve(ctx context.Context, ch channel.Channel) {
	s.mu.Lock()
	if s.ch != nil && s.ch != ch {
		s.mu.Unlock()
		s.logger.Warn("session already owns a channel, closing the new one")
		_ = ch.Close()
		return
	}
	s.ch = ch
	s.mu.Unlock()

	defer func() {
		_ = ch.Close()
		s.mu.Lock()
		owned := s.ch == ch
		s.mu.Unlock()
		// The channel ended without reporting its close.
		if owned {
			s.handle(ctx, ch, domain.ChannelClosed())
		}
	}()

	events := ch.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handle(ctx, ch, ev)
		}
	}
}

// handle applies ev from ch. Events from a channel the session no longer
// owns (detached by Reset or already closed) are dropped.
func (s *Session) handle(ctx context.Context, from channel.Channel, ev domain.Event) {
	s.mu.Lock()
	if s.ch != from {
		s.mu.Unlock()
		s.logger.Debug("dropping event from detached channel", zap.String("event", string(ev.Type)))
		return
	}
	t, cmds := s.machine.Apply(ev)
	if ev.Type == domain.EventChannelClosed {
		s.ch = nil
	}
	if !t.Ignored && (ev.Type == domain.EventCredentialPairingCode || t.To == domain.StatusConnected || t.To == domain.StatusDisconnected) {
		s.stopPairingTimerLocked()
	}
	snap, ver := s.stampLocked()
	ch := s.ch
	s.mu.Unlock()

	if t.Ignored {
		s.logger.Debug("ignoring channel event", zap.String("event", string(ev.Type)), zap.String("status", string(t.From)))
		return
	}
	if t.Changed() {
		s.logger.Info("connection state changed",
			zap.String("event", string(ev.Type)),
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)))
	}

	for _, cmd := range cmds {
		if ch == nil {
			break
		}
		if err := ch.Send(ctx, cmd); err != nil {
			s.logger.Warn("channel command failed", zap.String("command", string(cmd.Type)), zap.Error(err))
		}
	}
	s.publish(snap, ver)
}

// RequestPairingCode asks the agent for a pairing code for phone. The state
// only changes once the code arrives as an event.
func (s *Session) RequestPairingCode(ctx context.Context, phone string) error {
	if strings.TrimSpace(phone) == "" {
		return domain.ErrPhoneRequired
	}
	num, err := s.normalizer.Normalize(phone)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.ch == nil {
		s.mu.Unlock()
		return domain.ErrChannelClosed
	}
	if !s.machine.CanRequestPairingCode() {
		s.mu.Unlock()
		return domain.ErrPairingNotAllowed
	}
	s.machine.Note(msgRequestingPairing)
	s.armPairingTimerLocked()
	ch := s.ch
	snap, ver := s.stampLocked()
	s.mu.Unlock()

	s.publish(snap, ver)
	if err := ch.Send(ctx, domain.Command{Type: domain.CommandRequestPairingCode, Phone: num}); err != nil {
		return fmt.Errorf("request pairing code: %w", err)
	}
	return nil
}

// RequestCredential asks the agent to issue a fresh QR credential.
func (s *Session) RequestCredential(ctx context.Context) error {
	s.mu.Lock()
	ch := s.ch
	ok := s.machine.CanRequestPairingCode()
	s.mu.Unlock()

	if ch == nil {
		return domain.ErrChannelClosed
	}
	if !ok {
		return domain.ErrPairingNotAllowed
	}
	if err := ch.Send(ctx, domain.Command{Type: domain.CommandRequestCredential}); err != nil {
		return fmt.Errorf("request credential: %w", err)
	}
	return nil
}

// Reset closes the active channel and returns to Disconnected. Run redials
// afterwards, which starts a new pairing.
func (s *Session) Reset() {
	s.mu.Lock()
	ch := s.ch
	s.ch = nil
	s.stopPairingTimerLocked()
	s.machine.Reset("Session reset")
	snap, ver := s.stampLocked()
	s.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}
	s.publish(snap, ver)
}

func (s *Session) Snapshot() domain.ConnectionSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Session()
}

// Subscribe registers fn for every published snapshot. fn runs on the
// publishing goroutine; it must not block or call back into the Session.
func (s *Session) Subscribe(fn func(domain.ConnectionSession)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// stampLocked snapshots the machine and tags it with the next version.
func (s *Session) stampLocked() (domain.ConnectionSession, uint64) {
	s.version++
	return s.machine.Session(), s.version
}

// publish delivers snap to listeners unless a newer snapshot has already
// been delivered, so listeners see states in the order they were taken even
// when several goroutines publish at once.
func (s *Session) publish(snap domain.ConnectionSession, ver uint64) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if ver <= s.published {
		return
	}
	s.published = ver

	s.mu.Lock()
	fns := make([]func(domain.ConnectionSession), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Session) note(text string) {
	s.mu.Lock()
	s.machine.Note(text)
	snap, ver := s.stampLocked()
	s.mu.Unlock()
	s.publish(snap, ver)
}

func (s *Session) armPairingTimerLocked() {
	s.stopPairingTimerLocked()
	if s.opts.PairingTimeout <= 0 {
		return
	}
	gen := s.pairingGen
	s.pairingTimer = time.AfterFunc(s.opts.PairingTimeout, func() {
		s.pairingExpired(gen)
	})
}

func (s *Session) stopPairingTimerLocked() {
	s.pairingGen++
	if s.pairingTimer != nil {
		s.pairingTimer.Stop()
		s.pairingTimer = nil
	}
}

func (s *Session) pairingExpired(gen uint64) {
	s.mu.Lock()
	if gen != s.pairingGen || s.machine.Status() != domain.StatusAwaitingCredential {
		s.mu.Unlock()
		return
	}
	s.pairingTimer = nil
	s.machine.Note(msgPairingTimedOut)
	snap, ver := s.stampLocked()
	s.mu.Unlock()

	s.logger.Warn("pairing code request timed out", zap.Duration("timeout", s.opts.PairingTimeout))
	s.publish(snap, ver)
}
