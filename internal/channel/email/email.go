// Package email delivers alerts over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/guardian/internal/channel"
	"github.com/saturnino-fabrica-de-software/guardian/internal/domain"
)

const dialTimeout = 10 * time.Second

// Config holds SMTP configuration.
type Config struct {
	Host     string // 465 uses implicit TLS, anything else tries STARTTLS
	Port     int
	Username string
	Password string
	From     string
}

// Validate validates the SMTP configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("SMTP port is required")
	}
	if c.From == "" {
		return fmt.Errorf("from address is required")
	}
	return nil
}

// Adapter sends alerts via email.
type Adapter struct {
	config Config
}

// New creates an email adapter.
func New(cfg Config) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid email config: %w", err)
	}
	return &Adapter{config: cfg}, nil
}

func (a *Adapter) Channel() domain.Channel {
	return domain.ChannelEmail
}

// Send delivers one message and returns the generated Message-ID.
func (a *Adapter) Send(ctx context.Context, destination string, msg channel.Message) (string, error) {
	if !strings.Contains(destination, "@") {
		return "", channel.Permanent(fmt.Errorf("invalid email address %q", destination))
	}

	messageID := fmt.Sprintf("<%s@guardian>", uuid.NewString())
	body := a.buildMessage(messageID, destination, msg)

	if err := a.sendMail(ctx, destination, body); err != nil {
		return "", classify(err)
	}
	return messageID, nil
}

func (a *Adapter) buildMessage(messageID, to string, msg channel.Message) []byte {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("From: %s\r\n", a.config.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString(fmt.Sprintf("Message-ID: %s\r\n", messageID))
	b.WriteString("X-Priority: 1\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")

	return []byte(b.String())
}

func (a *Adapter) sendMail(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(a.config.Host, fmt.Sprintf("%d", a.config.Port))
	tlsConfig := &tls.Config{ServerName: a.config.Host}

	var client *smtp.Client
	var err error
	if a.config.Port == 465 {
		client, err = a.connectImplicitTLS(ctx, addr, tlsConfig)
	} else {
		client, err = a.connectSTARTTLS(ctx, addr, tlsConfig)
	}
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer client.Close()

	if a.config.Username != "" && a.config.Password != "" {
		auth := smtp.PlainAuth("", a.config.Username, a.config.Password, a.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication: %w", err)
		}
	}

	if err := client.Mail(extractEmail(a.config.From)); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("add recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("start data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return client.Quit()
}

func (a *Adapter) connectImplicitTLS(ctx context.Context, addr string, tlsConfig *tls.Config) (*smtp.Client, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: dialTimeout},
		Config:    tlsConfig,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	bindDeadline(ctx, conn)

	return smtp.NewClient(conn, a.config.Host)
}

func (a *Adapter) connectSTARTTLS(ctx context.Context, addr string, tlsConfig *tls.Config) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	bindDeadline(ctx, conn)

	client, err := smtp.NewClient(conn, a.config.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	return client, nil
}

// bindDeadline makes the whole SMTP conversation respect the caller's deadline.
func bindDeadline(ctx context.Context, conn net.Conn) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
}

// classify maps 5xx SMTP replies to permanent failures.
func classify(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) && protoErr.Code >= 500 && protoErr.Code < 600 {
		return channel.Permanent(err)
	}
	return channel.Transient(err)
}

// extractEmail extracts the address from a "Name <email>" form.
func extractEmail(addr string) string {
	if start := strings.Index(addr, "<"); start != -1 {
		if end := strings.Index(addr, ">"); end != -1 {
			return addr[start+1 : end]
		}
	}
	return addr
}

var _ channel.Adapter = (*Adapter)(nil)
