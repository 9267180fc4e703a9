package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/event-scheduler/internal/application"
	"github.com/example/event-scheduler/internal/logging"
)

// MailNotifier renders notifications and hands them to a Sender.
type MailNotifier struct {
	sender Sender
	from   string
}

var _ application.Notifier = (*MailNotifier)(nil)

// NewMailNotifier returns a notifier that sends from the given address.
func NewMailNotifier(sender Sender, from string) *MailNotifier {
	return &MailNotifier{sender: sender, from: from}
}

// NewSMTPNotifier is a MailNotifier backed by an SMTPSender.
func NewSMTPNotifier(cfg SMTPConfig) (*MailNotifier, error) {
	sender, err := NewSMTPSender(cfg)
	if err != nil {
		return nil, err
	}
	return NewMailNotifier(sender, sender.From()), nil
}

// SendInvite emails the registration link to a single invitee.
func (n *MailNotifier) SendInvite(ctx context.Context, email, link string) error {
	if email == "" {
		return errors.New("notify: invite recipient is empty")
	}
	return n.sender.Send(ctx, InviteMessage(n.from, email, link))
}

// SendCancellation emails every recipient on the notice. No recipients is a no-op.
func (n *MailNotifier) SendCancellation(ctx context.Context, notice application.CancellationNotice) error {
	if len(notice.Recipients) == 0 {
		return nil
	}
	return n.sender.Send(ctx, CancellationMessage(n.from, notice))
}

// LogNotifier writes notifications to the log instead of sending them. It is
// used when no mail relay is configured.
type LogNotifier struct {
	logger *slog.Logger
}

var _ application.Notifier = (*LogNotifier)(nil)

// NewLogNotifier returns a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify")}
}

func (n *LogNotifier) SendInvite(ctx context.Context, email, link string) error {
	n.logger.InfoContext(ctx, "invitation not emailed, smtp disabled",
		"to", email,
		"subject", inviteSubject,
		"link", link,
	)
	return nil
}

func (n *LogNotifier) SendCancellation(ctx context.Context, notice application.CancellationNotice) error {
	n.logger.InfoContext(ctx, "cancellation not emailed, smtp disabled",
		"to", notice.Recipients,
		"subject", cancellationSubject+notice.Title,
		"cancelled_by", notice.CancelledByName,
	)
	return nil
}

// Async delivers notifications on background goroutines so request handling
// never waits on the mail relay. Failures are logged.
type Async struct {
	next    application.Notifier
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

var _ application.Notifier = (*Async)(nil)

// NewAsync wraps next. Each delivery gets its own timeout, detached from the
// caller's cancellation.
func NewAsync(next application.Notifier, timeout time.Duration, logger *slog.Logger) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Async{next: next, timeout: timeout, logger: logger.With("component", "notify")}
}

// SendInvite schedules the invite and returns immediately.
func (a *Async) SendInvite(ctx context.Context, email, link string) error {
	a.dispatch(ctx, "invite", func(ctx context.Context) error {
		return a.next.SendInvite(ctx, email, link)
	})
	return nil
}

// SendCancellation schedules the cancellation notice and returns immediately.
func (a *Async) SendCancellation(ctx context.Context, notice application.CancellationNotice) error {
	notice.Recipients = append([]string(nil), notice.Recipients...)
	a.dispatch(ctx, "cancellation", func(ctx context.Context) error {
		return a.next.SendCancellation(ctx, notice)
	})
	return nil
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notify: waiting for deliveries: %w", ctx.Err())
	}
}

func (a *Async) dispatch(ctx context.Context, kind string, fn func(context.Context) error) {
	detached := context.WithoutCancel(ctx)
	logger := a.logger
	if scoped := logging.FromContext(detached); scoped != nil {
		logger = scoped.With("component", "notify")
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(detached, a.timeout)
		defer cancel()

		started := time.Now()
		if err := fn(ctx); err != nil {
			logger.WarnContext(ctx, "notification delivery failed", "kind", kind, "error", err)
			return
		}
		logger.DebugContext(ctx, "notification delivered", "kind", kind, "duration", time.Since(started))
	}()
}
