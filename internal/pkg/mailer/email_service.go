package mailer

import (
	"context"
	"fmt"
	"time"

	"windback-be/internal/pkg/logger"

	"gopkg.in/gomail.v2"
)

const IdempotencyHeader = "X-Windback-Idempotency-Key"

type Message struct {
	To             string
	ToName         string
	FromName       string
	FromEmail      string
	Subject        string
	HTMLBody       string
	IdempotencyKey string
	Headers        map[string]string
}

type IMailer interface {
	Send(ctx context.Context, msg Message) error
}

type smtpMailer struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	timeout     time.Duration
	log         logger.ILogger
}

func NewSMTPMailer(host string, port int, username, password, senderEmail, senderName string, timeout time.Duration, log logger.ILogger) IMailer {
	return &smtpMailer{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: senderEmail,
		senderName:  senderName,
		timeout:     timeout,
		log:         log,
	}
}

func (s *smtpMailer) build(msg Message) *gomail.Message {
	fromEmail := msg.FromEmail
	if fromEmail == "" {
		fromEmail = s.senderEmail
	}
	fromName := msg.FromName
	if fromName == "" {
		fromName = s.senderName
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", fromEmail, fromName)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	if msg.IdempotencyKey != "" {
		m.SetHeader(IdempotencyHeader, msg.IdempotencyKey)
	}
	for k, v := range msg.Headers {
		m.SetHeader(k, v)
	}
	m.SetBody("text/html", msg.HTMLBody)
	return m
}

// Send dials and delivers one message. A timeout is reported as a failure; the
// SMTP exchange may still finish in the background.
func (s *smtpMailer) Send(ctx context.Context, msg Message) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	m := s.build(msg)
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.log.Error("MAILER", "Failed to send email", map[string]interface{}{
				"to":              msg.To,
				"idempotency_key": msg.IdempotencyKey,
				"error":           err.Error(),
			})
			return fmt.Errorf("smtp send: %w", err)
		}
		s.log.Info("MAILER", "Email sent", map[string]interface{}{
			"to":              msg.To,
			"idempotency_key": msg.IdempotencyKey,
		})
		return nil
	case <-ctx.Done():
		s.log.Warn("MAILER", "Email send timed out", map[string]interface{}{
			"to":              msg.To,
			"idempotency_key": msg.IdempotencyKey,
		})
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

// logMailer only logs. Used when no SMTP host is configured.
type logMailer struct {
	log logger.ILogger
}

func NewLogMailer(log logger.ILogger) IMailer {
	return &logMailer{log: log}
}

func (l *logMailer) Send(ctx context.Context, msg Message) error {
	l.log.Info("MAILER", "SMTP not configured, email logged only", map[string]interface{}{
		"to":              msg.To,
		"subject":         msg.Subject,
		"idempotency_key": msg.IdempotencyKey,
	})
	return nil
}
