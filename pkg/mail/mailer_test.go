package mail

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	from   string
	rcpts  []string
	body   strings.Builder
	quit   bool
	closed bool
}

func (f *fakeClient) Mail(from string) error { f.from = from; return nil }
func (f *fakeClient) Rcpt(to string) error   { f.rcpts = append(f.rcpts, to); return nil }
func (f *fakeClient) Data() (io.WriteCloser, error) {
	return nopWriteCloser{&f.body}, nil
}
func (f *fakeClient) Quit() error                     { f.quit = true; return nil }
func (f *fakeClient) Close() error                    { f.closed = true; return nil }
func (f *fakeClient) StartTLS(*tls.Config) error      { return nil }
func (f *fakeClient) Auth(smtp.Auth) error            { return nil }
func (f *fakeClient) Extension(string) (bool, string) { return false, "" }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newTestMailer(t *testing.T, cfg SMTPSettings) (*smtpMailer, *fakeClient) {
	t.Helper()

	client := &fakeClient{}
	mailer, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	sm := mailer.(*smtpMailer)
	sm.dialFn = func(ctx context.Context, cfg SMTPSettings) (net.Conn, smtpClient, error) {
		server, _ := net.Pipe()
		return server, client, nil
	}
	sm.authFn = func(smtpClient, SMTPSettings) error { return nil }
	return sm, client
}

func TestSendDisabledReturnsSentinel(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{To: []string{"a@example.com"}})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestSendDeliversFormattedMessage(t *testing.T) {
	mailer, client := newTestMailer(t, SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "noreply@sonder.app",
	})

	msg := VerificationEmail("counsellor@example.com", "123456")
	require.NoError(t, mailer.Send(context.Background(), msg))

	require.Equal(t, "noreply@sonder.app", client.from)
	require.Equal(t, []string{"counsellor@example.com"}, client.rcpts)
	require.Contains(t, client.body.String(), "123456")
	require.Contains(t, client.body.String(), "Subject: Verify your Sonder Account")
	require.True(t, client.quit)
}

func TestSendRejectsInvalidRecipient(t *testing.T) {
	mailer, _ := newTestMailer(t, SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "noreply@sonder.app",
	})

	err := mailer.Send(context.Background(), Message{To: []string{"not-an-address"}})
	require.Error(t, err)
}

func TestNewSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.Error(t, err)
}
