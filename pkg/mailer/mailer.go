package mailer

import (
	"strings"

	mail "gopkg.in/mail.v2"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender is the part of the dialer the mailer uses.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

type Mailer struct {
	cfg    Config
	sender Sender
}

func New(cfg Config) *Mailer {
	return &Mailer{
		cfg:    cfg,
		sender: mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// NewWithSender is used by tests to capture outgoing messages.
func NewWithSender(cfg Config, sender Sender) *Mailer {
	return &Mailer{cfg: cfg, sender: sender}
}

func (m *Mailer) Send(to, subject, body string) error {
	from := m.cfg.From
	if strings.TrimSpace(from) == "" {
		from = m.cfg.Username
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	return m.sender.DialAndSend(msg)
}
