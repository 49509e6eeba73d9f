package invoice

import (
	"fmt"
	"io"

	"gopkg.in/gomail.v2"
)

// Mailer sends an invoice PDF to a recipient.
type Mailer interface {
	Send(to, subject, body string, attachment []byte, attachmentName string) error
}

// SMTPConfig holds SMTP credentials. They are injected here by the caller;
// nothing in this package reads them from ambient process state.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // defaults to Username
}

// SMTPMailer implements Mailer over plain SMTP.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates an SMTPMailer, validating the injected credentials.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("smtp credentials are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// Send mails the PDF invoice as an attachment.
func (m *SMTPMailer) Send(to, subject, body string, attachment []byte, attachmentName string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	msg.Attach(attachmentName, gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(attachment)
		return err
	}))

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("dialing smtp: %w", err)
	}
	return nil
}
