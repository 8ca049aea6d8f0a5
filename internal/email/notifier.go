package email

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
)

// Notifier sends scheduler notifications through a Sender, throttled per
// account. The rate state is instance-scoped (constructed once per process
// and passed by reference) rather than a process-wide global, so tests and
// multiple notifiers never share last-send timestamps.
type Notifier struct {
	sender      Sender
	logger      *slog.Logger
	minInterval time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time // uid -> last send

	now func() time.Time
}

func NewNotifier(sender Sender, logger *slog.Logger, minInterval time.Duration) *Notifier {
	return &Notifier{
		sender:      sender,
		logger:      logger.With("component", "notifier"),
		minInterval: minInterval,
		lastSent:    make(map[string]time.Time),
		now:         time.Now,
	}
}

func (n *Notifier) SchedulesDisabled(ctx context.Context, account *domain.Account, disabled []*domain.Schedule, limit, activeCount int) error {
	msg := RenderLimitExceeded(account, disabled, limit, activeCount)
	return n.send(ctx, account, msg)
}

func (n *Notifier) RunFinished(ctx context.Context, account *domain.Account, rec *domain.ExecutionRecord, nextRunAt *time.Time) error {
	var msg Message
	if rec.Status == domain.StatusSuccess {
		msg = RenderRunSuccess(account, rec, nextRunAt)
	} else {
		msg = RenderRunFailure(account, rec, nextRunAt)
	}
	return n.send(ctx, account, msg)
}

func (n *Notifier) send(ctx context.Context, account *domain.Account, msg Message) error {
	if account.Email == "" {
		return fmt.Errorf("account %s has no email address", account.UID)
	}
	if !n.allow(account.UID) {
		n.logger.Info("notification rate-limited", "uid", account.UID, "subject", msg.Subject)
		return nil
	}
	return n.sender.Send(ctx, account.Email, msg.Subject, msg.HTML)
}

func (n *Notifier) allow(uid string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if last, ok := n.lastSent[uid]; ok && now.Sub(last) < n.minInterval {
		return false
	}
	n.lastSent[uid] = now
	return true
}
