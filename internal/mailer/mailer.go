package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

const (
	verificationPath  = "/mail/verify/"
	passwordResetPath = "/register/reset-password/"

	verificationSubject  = "Confirm your CarRental email"
	passwordResetSubject = "Reset your CarRental password"
)

// Sender is satisfied by *mail.Client.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Mailer sends the account verification and password reset mails.
type Mailer struct {
	sender  Sender
	from    string
	baseURL string
}

// NewSMTPClient dials over implicit TLS with PLAIN auth.
func NewSMTPClient(cfg Config) (*mail.Client, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return client, nil
}

// New builds a Mailer whose links are rooted at baseURL.
func New(sender Sender, from, baseURL string) *Mailer {
	return &Mailer{sender: sender, from: from, baseURL: strings.TrimRight(baseURL, "/")}
}

func (m *Mailer) SendVerification(ctx context.Context, email, token string) error {
	url := m.baseURL + verificationPath + token
	body := fmt.Sprintf("Hello,\n\nPlease confirm your email address by following this link:\n%s\n\nIf you did not create a CarRental account, ignore this mail.\n", url)
	return m.send(ctx, email, verificationSubject, body)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, email, token string) error {
	url := m.baseURL + passwordResetPath + token
	body := fmt.Sprintf("Hello,\n\nA password reset was requested for your account. Set a new password here:\n%s\n\nIf you did not request it, ignore this mail.\n", url)
	return m.send(ctx, email, passwordResetSubject, body)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg(mail.WithEncoding(mail.NoEncoding))
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender %q: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send %q to %s: %w", subject, to, err)
	}
	return nil
}
