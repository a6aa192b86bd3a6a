// Package dispatch runs one bulk send across a selection of recipients.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"whatsapp-service/internal/domain"
	"whatsapp-service/pkg/id"
)

// SendFunc delivers body to one canonical phone number.
type SendFunc func(ctx context.Context, phone, body string) error

type PhoneNormalizer interface {
	Normalize(raw string) (string, error)
}

type Options struct {
	// Concurrency caps in-flight sends. 1 sends strictly in order.
	Concurrency int
	// SendTimeout bounds a single send. Zero disables it.
	SendTimeout time.Duration
}

// Dispatcher holds no state across invocations: dispatching the same
// selection twice yields two independent ledgers.
type Dispatcher struct {
	normalizer PhoneNormalizer
	opts       Options
	logger     *zap.Logger
	now        func() time.Time
}

func NewDispatcher(normalizer PhoneNormalizer, opts Options, logger *zap.Logger) *Dispatcher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Dispatcher{
		normalizer: normalizer,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Prepared is a validated request plus what was dropped to build it.
type Prepared struct {
	Request          domain.DispatchRequest
	DroppedInvalid   int
	DroppedDuplicate int
}

// Prepare normalizes and deduplicates recipients (first occurrence wins) and
// checks the batch preconditions. It never sends.
func (d *Dispatcher) Prepare(recipients []domain.Recipient, body string) (Prepared, error) {
	var p Prepared
	seen := make(map[string]bool, len(recipients))

	for _, r := range recipients {
		num, err := d.normalizer.Normalize(r.Phone)
		if err != nil {
			p.DroppedInvalid++
			d.logger.Debug("dropping recipient with invalid phone", zap.String("recipient_id", r.ID), zap.Error(err))
			continue
		}
		if seen[num] {
			p.DroppedDuplicate++
			continue
		}
		seen[num] = true
		p.Request.Recipients = append(p.Request.Recipients, num)
		p.Request.RecipientIDs = append(p.Request.RecipientIDs, r.ID)
	}

	if len(p.Request.Recipients) == 0 {
		return p, domain.ErrNoValidRecipients
	}
	if strings.TrimSpace(body) == "" {
		return p, domain.ErrEmptyMessage
	}
	p.Request.Body = body
	return p, nil
}

// Dispatch sends body to every valid recipient. Batch preconditions fail
// before any send; per-recipient failures are recorded in the ledger and
// never abort the batch. Recipients not yet started when ctx is done are
// recorded as failed; sends already issued run to completion.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []domain.Recipient, body string, send SendFunc) (*domain.DispatchResult, error) {
	p, err := d.Prepare(recipients, body)
	if err != nil {
		return nil, err
	}

	res := &domain.DispatchResult{
		BatchID:          id.NewBatchID(),
		Request:          p.Request,
		Entries:          make([]domain.LedgerEntry, len(p.Request.Recipients)),
		DroppedInvalid:   p.DroppedInvalid,
		DroppedDuplicate: p.DroppedDuplicate,
		StartedAt:        d.now(),
	}
	log := d.logger.With(zap.String("batch_id", res.BatchID))
	log.Info("dispatch started",
		zap.Int("recipients", len(p.Request.Recipients)),
		zap.Int("dropped_invalid", p.DroppedInvalid),
		zap.Int("dropped_duplicate", p.DroppedDuplicate),
		zap.Int("concurrency", d.opts.Concurrency))

	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)

	for i, phone := range p.Request.Recipients {
		i, phone := i, phone
		res.Entries[i] = domain.LedgerEntry{
			ID:          id.NewULID("msg"),
			RecipientID: p.Request.RecipientIDs[i],
			Phone:       phone,
		}
		if err := ctx.Err(); err != nil {
			d.record(&res.Entries[i], err)
			continue
		}
		g.Go(func() error {
			err := d.sendOne(ctx, send, phone, p.Request.Body)
			d.record(&res.Entries[i], err)
			if err != nil {
				log.Warn("send failed", zap.String("phone", phone), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, e := range res.Entries {
		if e.Outcome == domain.OutcomeSent {
			res.Sent++
		} else {
			res.Failed++
		}
	}
	res.FinishedAt = d.now()

	log.Info("dispatch finished",
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

// sendOne runs one send to completion. ctx only decides whether the send
// starts; once issued it keeps ctx's values but not its cancellation.
func (d *Dispatcher) sendOne(ctx context.Context, send SendFunc, phone, body string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)
	if d.opts.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.SendTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panicked: %v", r)
		}
	}()

	if err := send(ctx, phone, body); err != nil {
		return &domain.SendError{Phone: phone, Err: err}
	}
	return nil
}

func (d *Dispatcher) record(e *domain.LedgerEntry, err error) {
	e.FinishedAt = d.now()
	if err == nil {
		e.Outcome = domain.OutcomeSent
		return
	}
	e.Outcome = domain.OutcomeFailed
	var se *domain.SendError
	if errors.As(err, &se) {
		e.Reason = se.Err.Error()
		return
	}
	e.Reason = err.Error()
}
