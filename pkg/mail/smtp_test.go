package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSMTPClient struct {
	mailFrom   string
	rcptTo     []string
	data       strings.Builder
	rcptErr    error
	quitCalled bool
}

func (f *fakeSMTPClient) Mail(from string) error { f.mailFrom = from; return nil }
func (f *fakeSMTPClient) Rcpt(to string) error {
	if f.rcptErr != nil {
		return f.rcptErr
	}
	f.rcptTo = append(f.rcptTo, to)
	return nil
}
func (f *fakeSMTPClient) Data() (io.WriteCloser, error)  { return nopWriteCloser{&f.data}, nil }
func (f *fakeSMTPClient) Quit() error                    { f.quitCalled = true; return nil }
func (f *fakeSMTPClient) Close() error                   { return nil }
func (f *fakeSMTPClient) StartTLS(*tls.Config) error      { return nil }
func (f *fakeSMTPClient) Auth(smtp.Auth) error            { return nil }
func (f *fakeSMTPClient) Extension(string) (bool, string) { return false, "" }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newTestMailer(client smtpClient) *smtpMailer {
	return &smtpMailer{
		cfg: SMTPSettings{Enabled: true, Host: "smtp.test", Port: 25, From: "billing@agency.test", Timeout: time.Second},
		dialFn: func(ctx context.Context, cfg SMTPSettings) (net.Conn, smtpClient, error) {
			server, _ := net.Pipe()
			return server, client, nil
		},
		authFn: func(smtpClient, SMTPSettings) error { return nil },
	}
}

func TestSMTPSendWritesMessage(t *testing.T) {
	client := &fakeSMTPClient{}
	mailer := newTestMailer(client)

	res, err := mailer.Send(context.Background(), Message{
		To:      "student@example.com",
		Subject: "Installment due soon",
		Body:    "<p>Hi</p>",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.MessageID)
	require.Equal(t, "billing@agency.test", client.mailFrom)
	require.Equal(t, []string{"student@example.com"}, client.rcptTo)
	require.Contains(t, client.data.String(), "Subject: Installment due soon")
	require.Contains(t, client.data.String(), "Content-Type: text/html")
	require.True(t, client.quitCalled)
}

func TestSMTPSendRejectsInvalidAddressAsPermanent(t *testing.T) {
	mailer := newTestMailer(&fakeSMTPClient{})

	_, err := mailer.Send(context.Background(), Message{To: "not-an-address"})
	require.Error(t, err)
	require.True(t, IsPermanent(err))
}

func TestSMTPSendClassifiesRcptRejection(t *testing.T) {
	client := &fakeSMTPClient{rcptErr: errors.New("550 mailbox unavailable")}
	mailer := newTestMailer(client)

	_, err := mailer.Send(context.Background(), Message{To: "gone@example.com"})
	require.Error(t, err)
	require.True(t, IsPermanent(err))
}

func TestSMTPSendDisabled(t *testing.T) {
	mailer := &smtpMailer{cfg: SMTPSettings{Enabled: false}}

	_, err := mailer.Send(context.Background(), Message{To: "student@example.com"})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}
