package mail

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
)

// Message is an outbound plain-text notification. ID, when set, is stamped
// on the wire as X-Notification-ID so relay logs correlate with ours.
type Message struct {
	ID      string
	To      string
	Subject string
	Text    string
}

// DispatcherConfig carries the relay settings resolved once at startup.
type DispatcherConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendFunc matches smtp.SendMail and is swapped in tests.
type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// DispatcherOption customises dispatcher behaviour.
type DispatcherOption func(*Dispatcher)

// WithSendFunc replaces the SMTP transport, primarily for tests.
func WithSendFunc(send sendFunc) DispatcherOption {
	return func(d *Dispatcher) {
		if send != nil {
			d.send = send
		}
	}
}

// Dispatcher relays composed messages over SMTP with PLAIN authentication.
type Dispatcher struct {
	cfg  DispatcherConfig
	send sendFunc
}

// NewDispatcher constructs an SMTP dispatcher from resolved configuration.
func NewDispatcher(cfg DispatcherConfig, opts ...DispatcherOption) (*Dispatcher, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("mail dispatcher: smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, errors.New("mail dispatcher: smtp port is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("mail dispatcher: from address is required")
	}

	d := &Dispatcher{cfg: cfg, send: smtp.SendMail}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Send relays the message. The context is consulted for early cancellation
// only; net/smtp itself does not take one.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	if d == nil || d.send == nil {
		return errors.New("mail dispatcher: not initialised")
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return errors.New("mail dispatcher: recipient is required")
	}

	addr := net.JoinHostPort(d.cfg.Host, fmt.Sprintf("%d", d.cfg.Port))
	var auth smtp.Auth
	if strings.TrimSpace(d.cfg.Username) != "" {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}

	payload := buildPayload(d.cfg.From, to, msg)
	if err := d.send(addr, auth, d.cfg.From, []string{to}, payload); err != nil {
		return fmt.Errorf("mail dispatcher: send to %s: %w", to, err)
	}
	return nil
}

func buildPayload(from, to string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	if id := strings.TrimSpace(msg.ID); id != "" {
		b.WriteString("X-Notification-ID: " + id + "\r\n")
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Text)
	return []byte(b.String())
}
