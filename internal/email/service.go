package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Service delivers provisioning mail. Invite codes travel only by mail;
// they are never returned through the API.
type Service interface {
	SendInvite(ctx context.Context, to string, code string, role string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	BaseURL  string
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
	base   string
}

func NewSMTPService(cfg *Config) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		base:   cfg.BaseURL,
	}
}

func (s *smtpService) SendInvite(ctx context.Context, to string, code string, role string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "You have been invited")
	m.SetBody("text/plain", fmt.Sprintf(
		"You have been invited to join as %s.\n\nAccept your invitation here:\n%s/invites/%s\n\nThe link is single use and expires.",
		role, s.base, code))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send invite mail: %w", err)
	}
	return nil
}

// Noop discards mail; used in tests and local development.
type Noop struct{}

func (Noop) SendInvite(ctx context.Context, to string, code string, role string) error {
	return nil
}
