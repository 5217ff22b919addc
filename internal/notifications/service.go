package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	ErrNoChannels   = errors.New("no notification channels configured")
	ErrMissingPhone = errors.New("notice has no phone number")
)

// Channel delivers a notice over one transport. The returned bytes are the
// provider response, kept on the delivery log when it is valid JSON.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notice) ([]byte, error)
}

// Dispatcher sends outcome notices through its channels in order, stopping
// at the first one that succeeds. Every notice gets a delivery log; failed
// ones are picked up again by Retry.
type Dispatcher struct {
	channels    []Channel
	store       DeliveryStore
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time
}

func NewDispatcher(store DeliveryStore, logger *zap.Logger, maxAttempts int, channels ...Channel) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Dispatcher{
		channels:    channels,
		store:       store,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

func (d *Dispatcher) NotifyApproval(ctx context.Context, n ApprovalNotice) error {
	return d.Dispatch(ctx, n.notice())
}

func (d *Dispatcher) NotifyRejection(ctx context.Context, n RejectionNotice) error {
	return d.Dispatch(ctx, n.notice())
}

// Dispatch records and attempts a new notice
func (d *Dispatcher) Dispatch(ctx context.Context, n Notice) error {
	log := &DeliveryLog{
		ID:        uuid.NewString(),
		RecordID:  n.RecordID,
		Kind:      string(n.Kind),
		Notice:    n,
		CreatedAt: d.now(),
	}
	return d.attempt(ctx, log)
}

// RetryStats summarises one retry pass
type RetryStats struct {
	Attempted int `json:"attempted"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Abandoned int `json:"abandoned"`
}

// Retry re-attempts up to limit failed deliveries. Logs that reach the
// attempt ceiling are marked abandoned.
func (d *Dispatcher) Retry(ctx context.Context, limit int) (RetryStats, error) {
	var stats RetryStats
	if d.store == nil {
		return stats, nil
	}

	logs, err := d.store.ListRetryable(ctx, limit)
	if err != nil {
		return stats, err
	}

	for _, l := range logs {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Attempted++
		_ = d.attempt(ctx, l)
		switch l.Status {
		case StatusSent:
			stats.Sent++
		case StatusAbandoned:
			stats.Abandoned++
		default:
			stats.Failed++
		}
	}

	d.logger.Info("Notification retry pass finished",
		zap.Int("attempted", stats.Attempted),
		zap.Int("sent", stats.Sent),
		zap.Int("failed", stats.Failed),
		zap.Int("abandoned", stats.Abandoned),
	)
	return stats, nil
}

func (d *Dispatcher) attempt(ctx context.Context, log *DeliveryLog) error {
	log.Attempts++
	err := d.deliver(ctx, log)
	log.UpdatedAt = d.now()

	switch {
	case err == nil:
		log.Status = StatusSent
		log.LastError = ""
	case errors.Is(err, ErrMissingPhone), log.Attempts >= d.maxAttempts:
		log.Status = StatusAbandoned
		log.LastError = err.Error()
	default:
		log.Status = StatusFailed
		log.LastError = err.Error()
	}

	if d.store != nil {
		// the caller's deadline may already be spent by the channels
		if serr := d.store.Save(context.WithoutCancel(ctx), log); serr != nil {
			d.logger.Error("Failed to save delivery log",
				zap.String("delivery_id", log.ID),
				zap.Error(serr),
			)
		}
	}

	if err != nil {
		d.logger.Warn("Notification not delivered",
			zap.String("delivery_id", log.ID),
			zap.String("record_id", log.RecordID),
			zap.String("kind", log.Kind),
			zap.Int("attempts", log.Attempts),
			zap.String("status", log.Status),
			zap.Error(err),
		)
	}
	return err
}

func (d *Dispatcher) deliver(ctx context.Context, log *DeliveryLog) error {
	if log.Notice.Phone == "" {
		return ErrMissingPhone
	}
	if len(d.channels) == 0 {
		return ErrNoChannels
	}

	var errs []error
	for _, ch := range d.channels {
		log.Channel = ch.Name()
		resp, err := ch.Send(ctx, log.Notice)
		if len(resp) > 0 && json.Valid(resp) {
			log.ProviderResponse = datatypes.JSON(resp)
		}
		if err == nil {
			return nil
		}

		d.logger.Debug("Notification channel failed",
			zap.String("channel", ch.Name()),
			zap.String("request_id", log.Notice.RequestID),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}
