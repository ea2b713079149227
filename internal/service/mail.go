package service

import (
	"fmt"

	"github.com/spf13/viper"
	"gopkg.in/gomail.v2"
)

// SMTPMailer sends verification and password reset emails through the SMTP
// relay configured under mail.* in config.toml
type SMTPMailer struct {
	host     string
	port     int
	from     string
	password string
	baseURL  string
}

func NewSMTPMailer() *SMTPMailer {
	scheme := "http"
	if viper.GetBool("host.ssl.enabled") {
		scheme = "https"
	}

	return &SMTPMailer{
		host:     viper.GetString("mail.host"),
		port:     viper.GetInt("mail.port"),
		from:     viper.GetString("mail.sender"),
		password: viper.GetString("mail.password"),
		baseURL:  fmt.Sprintf("%s://%s", scheme, viper.GetString("host.domain")),
	}
}

func (m *SMTPMailer) SendVerification(to, token string) error {
	link := fmt.Sprintf("%s/auth/verify/%s", m.baseURL, token)

	body := fmt.Sprintf(
		"Click <a href='%s'>here</a> to verify your account.<br><br>This link will expire in 24 hours.",
		link)

	return m.send(to, "Verify your email address", body)
}

func (m *SMTPMailer) SendPasswordReset(to, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.baseURL, token)

	body := fmt.Sprintf(
		"Click <a href='%s'>here</a> to reset your password.<br><br>This link will expire in 1 hour. If you didn't request a reset you can ignore this email.",
		link)

	return m.send(to, "Reset your password", body)
}

func (m *SMTPMailer) send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(m.host, m.port, m.from, m.password)

	return d.DialAndSend(msg)
}
