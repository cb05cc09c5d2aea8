package mailer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func testConfig() Config {
	return Config{
		SenderEmail:  "no-reply@sxp.test",
		SupportEmail: "support@sxp.test",
		BaseURL:      "https://app.sxp.test/",
		AppName:      "SXP",
		LogFallback:  true,
	}
}

func newLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func TestURLs(t *testing.T) {
	svc := NewWithSender(nil, testConfig(), nil)

	assert.Equal(t, "https://app.sxp.test/verify-email/abc_123", svc.VerificationURL("abc_123"))
	assert.Equal(t, "https://app.sxp.test/reset-password/abc_123", svc.ResetURL("abc_123"))
}

func TestSendVerificationEmail_UsesSender(t *testing.T) {
	sender := &recordingSender{}
	svc := NewWithSender(sender, testConfig(), nil)

	err := svc.SendVerificationEmail(context.Background(), Recipient{Email: "a@b.com", Name: "Al <b>"}, "tok")
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "a@b.com", msg.To)
	assert.Equal(t, "email-verification", msg.Tag)
	assert.Contains(t, msg.HTMLBody, "https://app.sxp.test/verify-email/tok")
	assert.Contains(t, msg.HTMLBody, "Al &lt;b&gt;")
	assert.Contains(t, msg.TextBody, "https://app.sxp.test/verify-email/tok")
}

func TestSend_NoProviderLogsAndSucceeds(t *testing.T) {
	logger, buf := newLogger()
	svc := NewWithSender(nil, testConfig(), logger)

	require.NoError(t, svc.SendPasswordResetEmail(context.Background(), Recipient{Email: "a@b.com"}, "reset-tok"))
	require.NoError(t, svc.SendWelcomeEmail(context.Background(), Recipient{Email: "a@b.com"}))

	out := buf.String()
	assert.Contains(t, out, "https://app.sxp.test/reset-password/reset-tok")
	assert.Contains(t, out, "Welcome to SXP")
}

func TestSend_ProviderFailure(t *testing.T) {
	logger, buf := newLogger()
	sender := &recordingSender{err: errors.New("boom")}

	svc := NewWithSender(sender, testConfig(), logger)
	require.NoError(t, svc.SendWelcomeEmail(context.Background(), Recipient{Email: "a@b.com"}))
	assert.Contains(t, buf.String(), "email delivery failed")

	cfg := testConfig()
	cfg.LogFallback = false
	strict := NewWithSender(sender, cfg, logger)
	assert.Error(t, strict.SendWelcomeEmail(context.Background(), Recipient{Email: "a@b.com"}))
}

func TestSend_InvalidRecipient(t *testing.T) {
	svc := NewWithSender(&recordingSender{}, testConfig(), nil)

	err := svc.SendVerificationEmail(context.Background(), Recipient{Email: "not-an-email"}, "tok")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestNew_SelectsPostmarkOnlyWithTokens(t *testing.T) {
	svc, err := New(testConfig(), nil)
	require.NoError(t, err)
	assert.Nil(t, svc.sender)

	cfg := testConfig()
	cfg.PostmarkServerToken = "server"
	cfg.PostmarkAccountToken = "account"
	svc, err = New(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc.sender)

	cfg.SenderEmail = "broken"
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
