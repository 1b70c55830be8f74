// Package jobs runs the periodic background tasks: the expiry reminder
// digest and the encrypted off-site backup.
package jobs

import (
	"context"
	"time"

	"github.com/dkravets/keychat/internal/logging"
)

// TextSender pushes a proactive text message to one chat user.
type TextSender interface {
	SendText(ctx context.Context, toUser, content string) error
}

// DigestSource renders the expiry digest, returning "" when there is
// nothing to report.
type DigestSource interface {
	Reminder(ctx context.Context) (string, error)
}

// Reminder periodically renders the expiry digest and pushes it to the
// configured user.
type Reminder struct {
	source   DigestSource
	sender   TextSender
	toUser   string
	interval time.Duration
	log      logging.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewReminder(source DigestSource, sender TextSender, toUser string, interval time.Duration, logger logging.Logger) *Reminder {
	return &Reminder{
		source:   source,
		sender:   sender,
		toUser:   toUser,
		interval: interval,
		log:      logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the loop. The first digest goes out after one interval,
// not immediately, so restarts do not spam.
func (r *Reminder) Start(ctx context.Context) {
	go r.loop(ctx)
}

func (r *Reminder) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reminder) loop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Reminder) runOnce(ctx context.Context) {
	digest, err := r.source.Reminder(ctx)
	if err != nil {
		r.log.Error(ctx, "reminder digest failed", "error", err)
		return
	}
	if digest == "" {
		r.log.Debug(ctx, "reminder digest empty, skipping")
		return
	}

	if err := r.sender.SendText(ctx, r.toUser, digest); err != nil {
		r.log.Error(ctx, "reminder push failed", "error", err)
		return
	}
	r.log.Info(ctx, "reminder digest sent", "user", r.toUser)
}
