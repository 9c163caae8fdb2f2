// Package notify delivers outbound notifications (currently password-reset
// links). The Notifier contract is fire-and-forget from the caller's point
// of view: the reset flow hands off the message and moves on, and delivery
// failures only ever show up in logs.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Notifier sends a message to a recipient address.
type Notifier interface {
	Send(to, subject, body string) error
}

// SMTPNotifier sends plain-text email through an SMTP relay.
type SMTPNotifier struct {
	Addr string // host:port
	From string
	Auth smtp.Auth
}

// NewSMTPNotifier builds an SMTPNotifier. username may be empty for
// relays that accept unauthenticated submission (e.g. a local sink in
// development).
func NewSMTPNotifier(host string, port int, username, password, from string) *SMTPNotifier {
	n := &SMTPNotifier{
		Addr: fmt.Sprintf("%s:%d", host, port),
		From: from,
	}
	if username != "" {
		n.Auth = smtp.PlainAuth("", username, password, host)
	}
	return n
}

// Send delivers one message. The body is sent as-is with a minimal
// plain-text header set.
func (n *SMTPNotifier) Send(to, subject, body string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(body)

	if err := smtp.SendMail(n.Addr, n.Auth, n.From, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	log.Debug().Str("to", to).Str("subject", subject).Msg("mail sent")
	return nil
}

// LogNotifier writes the message to the application log instead of
// delivering it. Used in development and tests.
type LogNotifier struct{}

// Send logs the would-be delivery and always succeeds.
func (LogNotifier) Send(to, subject, body string) error {
	log.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("notifier (log only)")
	return nil
}
