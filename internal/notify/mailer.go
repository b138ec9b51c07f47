// Package notify sends customer-facing email notifications.
//
// Delivery is always non-fatal: every send returns a Result describing
// what happened, and the caller decides how loudly to surface a
// failure. A ticket status update must never fail because the mail
// server is down.
package notify

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/wneessen/go-mail"

	"github.com/fixdesk/fixdesk/internal/config"
	"github.com/fixdesk/fixdesk/internal/models"
)

// sendAttempts is the total number of delivery attempts per email.
const sendAttempts = 3

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidEmail reports whether addr looks like a deliverable address.
// This is a plausibility check, not RFC 5322 validation.
func ValidEmail(addr string) bool {
	return emailPattern.MatchString(strings.TrimSpace(addr))
}

// Result is the outcome of one notification attempt. OK reports whether
// the customer was (or would have been) notified; Message is a short
// human-readable summary suitable for logs and the technician UI.
type Result struct {
	OK      bool
	Message string
}

// Mailer delivers ticket status emails over SMTP.
type Mailer struct {
	cfg    config.SMTP
	logger *log.Logger
}

// NewMailer creates a Mailer. logger may be nil, in which case the
// standard logger is used.
func NewMailer(cfg config.SMTP, logger *log.Logger) *Mailer {
	if logger == nil {
		logger = log.Default()
	}
	return &Mailer{cfg: cfg, logger: logger}
}

// SendStatusEmail notifies the customer that their ticket moved from
// oldStatus to newStatus. When the mailer is disabled the email is
// logged as a preview and reported as success; when SMTP settings are
// incomplete the result names the missing keys. Transient delivery
// failures are retried with increasing backoff before giving up.
func (m *Mailer) SendStatusEmail(recipient string, t *models.Ticket, oldStatus, newStatus models.Status, note, baseURL string) Result {
	recipient = strings.TrimSpace(recipient)
	if !ValidEmail(recipient) {
		return Result{OK: false, Message: fmt.Sprintf("invalid recipient address %q", recipient)}
	}

	subject := fmt.Sprintf("Repair update for ticket %s: %s", t.ClaimCode, newStatus)
	body := statusBody(t, oldStatus, newStatus, note, baseURL)

	if m.cfg.Disabled {
		m.logger.Printf("email preview (smtp disabled): to=%s subject=%q", recipient, subject)
		m.logger.Printf("email preview body:\n%s", body)
		return Result{OK: true, Message: "preview (smtp disabled)"}
	}

	if missing := m.cfg.Missing(); len(missing) > 0 {
		return Result{
			OK:      false,
			Message: fmt.Sprintf("email not configured (missing %s)", strings.Join(missing, ", ")),
		}
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return Result{OK: false, Message: fmt.Sprintf("invalid sender address %q: %v", m.cfg.From, err)}
	}
	if err := msg.To(recipient); err != nil {
		return Result{OK: false, Message: fmt.Sprintf("invalid recipient address %q: %v", recipient, err)}
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := m.client()
	if err != nil {
		return Result{OK: false, Message: fmt.Sprintf("smtp client: %v", err)}
	}

	ctx := context.Background()
	backoff := retry.WithMaxRetries(sendAttempts-1, retry.NewFibonacci(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.DialAndSendWithContext(ctx, msg); err != nil {
			m.logger.Printf("email delivery to %s failed, may retry: %v", recipient, err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return Result{OK: false, Message: fmt.Sprintf("delivery failed after %d attempts: %v", sendAttempts, err)}
	}

	m.logger.Printf("status email sent to %s for ticket %s (%s)", recipient, t.ClaimCode, newStatus)
	return Result{OK: true, Message: fmt.Sprintf("sent to %s", recipient)}
}

func (m *Mailer) client() (*mail.Client, error) {
	timeout := time.Duration(m.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.User),
		mail.WithPassword(m.cfg.Password),
		mail.WithTimeout(timeout),
	}
	if m.cfg.StartTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithSSL())
	}

	return mail.NewClient(m.cfg.Host, opts...)
}

// statusBody renders the plain-text email body.
func statusBody(t *models.Ticket, oldStatus, newStatus models.Status, note, baseURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", t.Name)
	fmt.Fprintf(&b, "Your repair ticket %s has been updated.\n\n", t.ClaimCode)
	if t.DeviceType != "" {
		device := t.DeviceType
		if t.Brand != "" || t.Model != "" {
			device = strings.TrimSpace(fmt.Sprintf("%s %s %s", t.DeviceType, t.Brand, t.Model))
		}
		fmt.Fprintf(&b, "Device: %s\n", device)
	}
	fmt.Fprintf(&b, "Status: %s -> %s\n", oldStatus, newStatus)
	if note != "" {
		fmt.Fprintf(&b, "Note: %s\n", note)
	}
	if baseURL != "" {
		fmt.Fprintf(&b, "\nCheck your repair status any time:\n%s/status?claim=%s\n", strings.TrimRight(baseURL, "/"), t.ClaimCode)
	}
	b.WriteString("\nPlease keep your claim code handy when you visit or call.\n")
	return b.String()
}
