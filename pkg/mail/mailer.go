package mail

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// Message represents an outbound email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string // HTML body, already rendered and sanitized
}

// Result carries provider metadata for a delivered message.
type Result struct {
	MessageID string
}

// Mailer defines behaviour for sending email messages. Implementations must
// respect context cancellation and classify unrecoverable failures with
// Permanent so callers can decide whether to retry.
type Mailer interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// PermanentError marks a delivery failure that will not succeed on retry,
// such as a rejected recipient address.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as a non-retryable delivery failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is a non-retryable delivery failure.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}

func validateAddress(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Permanent(errors.New("mail: recipient address is empty"))
	}
	if _, err := mail.ParseAddress(addr); err != nil {
		return Permanent(fmt.Errorf("mail: invalid address %q: %w", addr, err))
	}
	return nil
}

// ConsoleMailer logs outbound messages instead of delivering them. Used in
// development and as a fallback when SMTP is disabled.
type ConsoleMailer struct {
	log *zap.Logger
}

// NewConsoleMailer constructs a console mailer writing through the supplied logger.
func NewConsoleMailer(log *zap.Logger) *ConsoleMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConsoleMailer{log: log}
}

// Send logs the message and reports success.
func (m *ConsoleMailer) Send(ctx context.Context, msg Message) (Result, error) {
	if err := validateAddress(msg.To); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	m.log.Info("console mail",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return Result{MessageID: "console"}, nil
}
