package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	gomail "gopkg.in/gomail.v2"

	"github.com/praxisdev/identity-api/pkg/validator"
)

const (
	verificationBody = `<p>Welcome! Confirm your address by opening <a href="%s">this verification link</a>. The link expires in 48 hours.</p>`
	resetBody        = `<p>A password reset was requested for your account. <a href="%s">Choose a new password</a> within the next hour. If you did not ask for this, ignore this message.</p>`
	welcomeBody      = `<p>Hi %s, your account is ready.</p>`
)

type SMTPConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from" validate:"required,email"`
	// BaseURL is the public address links in outgoing mail point at.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

type smtpService struct {
	dialer  *gomail.Dialer
	from    string
	baseURL string
	logger  zerolog.Logger
}

// NewSMTPService builds the gomail-backed sender, rejecting incomplete
// configuration at startup rather than on the first send. Each send dials a
// fresh connection; volume is low enough that pooling is not worth carrying.
func NewSMTPService(cfg SMTPConfig, logger zerolog.Logger) (Service, error) {
	if err := validator.New().Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid smtp config: %w", err)
	}

	return &smtpService{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger.With().Str("component", "email").Logger(),
	}, nil
}

func (s *smtpService) SendVerification(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, token)
	return s.send(ctx, email, "Verify your email address", fmt.Sprintf(verificationBody, link))
}

func (s *smtpService) SendPasswordReset(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	return s.send(ctx, email, "Reset your password", fmt.Sprintf(resetBody, link))
}

func (s *smtpService) SendWelcome(ctx context.Context, email, name string) error {
	return s.send(ctx, email, "Welcome", fmt.Sprintf(welcomeBody, name))
}

func (s *smtpService) send(ctx context.Context, to, subject, body string) error {
	// gomail has no context support; honor cancellation before dialing.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	s.logger.Debug().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}
