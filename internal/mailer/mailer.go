// Package mailer доставляет одноразовые коды подтверждения по email.
package mailer

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const otpSubject = "Your Ink Panels verification code"

// SMTPConfig содержит параметры SMTP-сервера.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPMailer отправляет письма через SMTP.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer создаёт почтовый клиент. Порт 465 использует неявный TLS, остальные порты STARTTLS по возможности.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp sender address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	return &SMTPMailer{cfg: cfg}, nil
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(15 * time.Second),
	}
	if m.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if m.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.User),
			mail.WithPassword(m.cfg.Password),
		)
	}

	c, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return c, nil
}

// SendOTP отправляет код подтверждения на адрес to.
func (m *SMTPMailer) SendOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	msg, err := buildOTPMessage(m.cfg.From, to, code, ttl)
	if err != nil {
		return err
	}

	c, err := m.client()
	if err != nil {
		return err
	}

	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send otp mail: %w", err)
	}
	return nil
}

func buildOTPMessage(from, to, code string, ttl time.Duration) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(otpSubject)

	minutes := int(ttl.Minutes())
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Your verification code is %s.\nIt expires in %d minutes. If you did not request it, ignore this email.\n",
		code, minutes,
	))
	msg.AddAlternativeString(mail.TypeTextHTML, fmt.Sprintf(
		`<p>Your verification code is <strong>%s</strong>.</p><p>It expires in %d minutes. If you did not request it, ignore this email.</p>`,
		html.EscapeString(code), minutes,
	))
	return msg, nil
}

// LogMailer пишет коды в журнал вместо отправки. Используется при разработке без SMTP.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer создаёт журналирующий почтовый клиент.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendOTP записывает код в журнал.
func (m *LogMailer) SendOTP(_ context.Context, to, code string, ttl time.Duration) error {
	m.logger.Info("otp code issued",
		zap.String("email", maskEmail(to)),
		zap.String("code", code),
		zap.Duration("ttl", ttl),
	)
	return nil
}

func maskEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}
	switch len(local) {
	case 0:
		return "***@" + domain
	case 1:
		return local + "***@" + domain
	case 2:
		return local[:1] + "***@" + domain
	default:
		return local[:1] + "***" + local[len(local)-1:] + "@" + domain
	}
}
