package mailer

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Recipient identifies who a message is addressed to.
type Recipient struct {
	Email string
	Name  string
}

// Service renders the account emails and hands them to a Sender. With no
// Sender, or when the Sender fails and LogFallback is set, the message is
// written to the logger and treated as delivered.
type Service struct {
	sender Sender
	config Config
	logger *slog.Logger
}

// New picks a Postmark sender when tokens are configured and falls back to
// log-only delivery otherwise.
func New(cfg Config, logger *slog.Logger) (*Service, error) {
	var sender Sender
	if cfg.postmarkEnabled() {
		s, err := NewPostmarkSender(cfg)
		if err != nil {
			return nil, err
		}
		sender = s
	}
	return NewWithSender(sender, cfg, logger), nil
}

func NewWithSender(sender Sender, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AppName == "" {
		cfg.AppName = "SXP Optimizer"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{
		sender: sender,
		config: cfg,
		logger: logger.With(slog.String("component", "mailer")),
	}
}

// VerificationURL is the link a user follows to confirm their address.
func (s *Service) VerificationURL(token string) string {
	return s.config.BaseURL + "/verify-email/" + url.PathEscape(token)
}

// ResetURL is the link a user follows to choose a new password.
func (s *Service) ResetURL(token string) string {
	return s.config.BaseURL + "/reset-password/" + url.PathEscape(token)
}

func (s *Service) SendVerificationEmail(ctx context.Context, to Recipient, token string) error {
	link := s.VerificationURL(token)
	return s.deliver(ctx, Message{
		To:      to.Email,
		Subject: "Verify your email for " + s.config.AppName,
		HTMLBody: s.htmlBody(to.Name,
			"Thanks for signing up. Please confirm your email address to activate your account.",
			link, "Verify email",
			"This link expires in 24 hours."),
		TextBody: fmt.Sprintf("Hi %s,\n\nConfirm your email address: %s\n\nThis link expires in 24 hours.\n", greetingName(to.Name), link),
		Tag:      "email-verification",
	}, link)
}

func (s *Service) SendWelcomeEmail(ctx context.Context, to Recipient) error {
	link := s.config.BaseURL + "/"
	return s.deliver(ctx, Message{
		To:      to.Email,
		Subject: "Welcome to " + s.config.AppName,
		HTMLBody: s.htmlBody(to.Name,
			"Your email is verified and your account is ready.",
			link, "Open "+s.config.AppName, ""),
		TextBody: fmt.Sprintf("Hi %s,\n\nYour email is verified and your account is ready: %s\n", greetingName(to.Name), link),
		Tag:      "welcome",
	}, link)
}

func (s *Service) SendPasswordResetEmail(ctx context.Context, to Recipient, token string) error {
	link := s.ResetURL(token)
	return s.deliver(ctx, Message{
		To:      to.Email,
		Subject: "Reset your " + s.config.AppName + " password",
		HTMLBody: s.htmlBody(to.Name,
			"We received a request to reset your password. If it was not you, ignore this email.",
			link, "Reset password",
			"This link expires in 1 hour."),
		TextBody: fmt.Sprintf("Hi %s,\n\nReset your password: %s\n\nThis link expires in 1 hour.\n", greetingName(to.Name), link),
		Tag:      "password-reset",
	}, link)
}

func (s *Service) deliver(ctx context.Context, msg Message, link string) error {
	if err := msg.validate(); err != nil {
		return err
	}

	if s.sender == nil {
		s.logMessage(ctx, msg, link, nil)
		return nil
	}

	err := s.sender.Send(ctx, msg)
	if err == nil {
		return nil
	}
	if !s.config.LogFallback {
		return err
	}
	s.logMessage(ctx, msg, link, err)
	return nil
}

func (s *Service) logMessage(ctx context.Context, msg Message, link string, cause error) {
	attrs := []any{
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("tag", msg.Tag),
		slog.String("link", link),
		slog.String("body", msg.TextBody),
	}
	if cause != nil {
		attrs = append(attrs, slog.Any("error", cause))
		s.logger.WarnContext(ctx, "email delivery failed, logged instead", attrs...)
		return
	}
	s.logger.InfoContext(ctx, "email not sent, no provider configured", attrs...)
}

func (s *Service) htmlBody(name, intro, link, action, footer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(greetingName(name)))
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(intro))
	fmt.Fprintf(&b, `<p><a href="%s">%s</a></p>`, html.EscapeString(link), html.EscapeString(action))
	if footer != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(footer))
	}
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(s.config.AppName))
	return b.String()
}

func greetingName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}
