package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/user/arxiv-digest/internal/config"
	"github.com/user/arxiv-digest/internal/summarizer"
)

// ErrAuth reports an SMTP authentication failure. Retrying with the same
// credentials cannot succeed, so delivery aborts immediately.
var ErrAuth = errors.New("smtp authentication failed")

const sendAttempts = 3

// Stat is one labelled value in a success notification.
type Stat struct {
	Name  string
	Value string
}

// ErrorDetails carries everything an error notification renders.
type ErrorDetails struct {
	Mode     string
	Time     time.Time
	Message  string
	ExitCode int
	Context  []Stat
	Logs     []string
}

// sender delivers one composed message. The SMTP client sits behind this
// so tests can capture messages without a server.
type sender interface {
	send(ctx context.Context, msg *mail.Msg) error
}

type smtpSender struct {
	client *mail.Client
}

func (s *smtpSender) send(ctx context.Context, msg *mail.Msg) error {
	return s.client.DialAndSendWithContext(ctx, msg)
}

// Notifier formats and delivers digest, error, and success emails.
type Notifier struct {
	cfg    *config.Config
	sender sender
	logger *slog.Logger

	// sleep is swapped out in tests
	sleep func(time.Duration)
}

// New builds a notifier over an authenticated STARTTLS SMTP client.
func New(cfg *config.Config, logger *slog.Logger) (*Notifier, error) {
	client, err := mail.NewClient(cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUsername),
		mail.WithPassword(cfg.SMTPPassword),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	logger.Info("notifier ready", "recipients", len(cfg.EmailTo), "notifications", cfg.NotificationsOn)
	return &Notifier{cfg: cfg, sender: &smtpSender{client: client}, logger: logger, sleep: time.Sleep}, nil
}

// SendDigest delivers the digest to all recipients via BCC so the
// recipient list is not exposed.
func (n *Notifier) SendDigest(ctx context.Context, papers []summarizer.SummarizedPaper, totalFetched int, dateRange string, keywords []string) error {
	subject := fmt.Sprintf("%s Top %d of %d Papers - Week of %s",
		n.cfg.SubjectPrefix, len(papers), totalFetched, dateRange)

	body, err := renderDigest(papers, totalFetched, dateRange, keywords)
	if err != nil {
		return fmt.Errorf("render digest: %w", err)
	}

	msg, err := n.compose(n.cfg.EmailTo, subject, body, true)
	if err != nil {
		return err
	}

	n.logger.Info("sending digest", "recipients", len(n.cfg.EmailTo))
	if err := n.deliver(ctx, msg, sendAttempts); err != nil {
		return err
	}
	n.logger.Info("digest email sent")
	return nil
}

// SendError delivers an error report to the admin recipient. Best-effort:
// its own failure is logged, never propagated.
func (n *Notifier) SendError(ctx context.Context, details ErrorDetails) {
	if !n.cfg.NotificationsOn {
		n.logger.Info("notifications disabled, skipping error notification")
		return
	}

	subject := fmt.Sprintf("%s ERROR - %s Failed - %s",
		n.cfg.NotificationPrefix, capitalize(details.Mode), details.Time.Format("Jan 02, 2006"))

	body, err := renderError(details)
	if err != nil {
		n.logger.Error("render error notification", "error", err)
		return
	}

	msg, err := n.compose([]string{n.cfg.NotificationEmailTo}, subject, body, false)
	if err != nil {
		n.logger.Error("compose error notification", "error", err)
		return
	}

	if err := n.deliver(ctx, msg, 1); err != nil {
		n.logger.Error("failed to send error notification", "error", err)
		return
	}
	n.logger.Info("error notification sent", "to", n.cfg.NotificationEmailTo)
}

// SendSuccess delivers a run summary to the admin recipient. Best-effort,
// same as SendError.
func (n *Notifier) SendSuccess(ctx context.Context, mode string, stats []Stat) {
	if !n.cfg.NotificationsOn {
		n.logger.Info("notifications disabled, skipping success notification")
		return
	}

	subject := fmt.Sprintf("%s SUCCESS - %s Completed - %s",
		n.cfg.NotificationPrefix, capitalize(mode), time.Now().Format("Jan 02, 2006"))

	body, err := renderSuccess(mode, stats)
	if err != nil {
		n.logger.Error("render success notification", "error", err)
		return
	}

	msg, err := n.compose([]string{n.cfg.NotificationEmailTo}, subject, body, false)
	if err != nil {
		n.logger.Error("compose success notification", "error", err)
		return
	}

	if err := n.deliver(ctx, msg, 1); err != nil {
		n.logger.Error("failed to send success notification", "error", err)
		return
	}
	n.logger.Info("success notification sent", "to", n.cfg.NotificationEmailTo)
}

// SendTest delivers a plain test message to the admin recipient so
// operators can validate SMTP settings.
func (n *Notifier) SendTest(ctx context.Context) error {
	subject := fmt.Sprintf("%s SMTP test", n.cfg.NotificationPrefix)
	body := "<p>SMTP configuration test from the arXiv digest bot. If you can read this, delivery works.</p>"

	msg, err := n.compose([]string{n.cfg.NotificationEmailTo}, subject, body, false)
	if err != nil {
		return err
	}
	return n.deliver(ctx, msg, 1)
}

// compose builds a multipart HTML message. With bcc set, recipients go in
// the Bcc header and the To header shows the sender.
func (n *Notifier) compose(recipients []string, subject, htmlBody string, bcc bool) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.EmailFrom); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if bcc {
		if err := msg.To(n.cfg.EmailFrom); err != nil {
			return nil, fmt.Errorf("set to: %w", err)
		}
		if err := msg.Bcc(recipients...); err != nil {
			return nil, fmt.Errorf("set bcc: %w", err)
		}
	} else {
		if err := msg.To(recipients...); err != nil {
			return nil, fmt.Errorf("set to: %w", err)
		}
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	return msg, nil
}

// deliver sends with retry. Authentication failures abort immediately;
// transient SMTP and timeout errors retry after a fixed delay.
func (n *Notifier) deliver(ctx context.Context, msg *mail.Msg, attempts int) error {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := n.sender.send(ctx, msg)
		if err == nil {
			return nil
		}
		if isAuthErr(err) {
			n.logger.Error("smtp authentication failed", "error", err)
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		lastErr = err
		n.logger.Warn("smtp send failed", "error", err, "attempt", attempt+1, "max", attempts)
		if attempt < attempts-1 {
			n.sleep(10 * time.Second)
		}
	}
	return fmt.Errorf("send failed after %d attempts: %w", attempts, lastErr)
}

func isAuthErr(err error) bool {
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "535") || strings.Contains(text, "auth")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
