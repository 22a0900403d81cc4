// Package mail delivers newsletter emails over SMTP with STARTTLS.
// Message construction is separated from transport so the MIME
// building can be tested without a live SMTP server.
package mail

import (
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Message is a fully addressed newsletter email.
type Message struct {
	From     string
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers messages via an SMTP relay.
type Sender struct {
	host     string
	port     int
	username string
	password string
}

// NewSender creates an SMTP sender for the given relay.
func NewSender(host string, port int, username, password string) *Sender {
	return &Sender{
		host:     host,
		port:     port,
		username: username,
		password: password,
	}
}

// Send validates the message, opens a STARTTLS session and delivers it.
func (s *Sender) Send(msg Message) error {
	if err := ValidateAddress(msg.To); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	if err := ValidateAddress(msg.From); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if msg.HTMLBody == "" && msg.TextBody == "" {
		return fmt.Errorf("message has no body")
	}

	raw := BuildMIME(msg)
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))

	start := time.Now()
	if err := s.deliver(addr, msg.From, msg.To, raw); err != nil {
		return fmt.Errorf("smtp delivery failed: %w", err)
	}

	log.WithFields(log.Fields{
		"recipient":   msg.To,
		"subject":     msg.Subject,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Newsletter email sent")

	return nil
}

// deliver runs the SMTP conversation: EHLO, STARTTLS, AUTH, MAIL, RCPT, DATA.
func (s *Sender) deliver(addr, from, to string, raw []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.WithError(closeErr).Debug("SMTP connection close error")
		}
	}()

	if ok, _ := client.Extension("STARTTLS"); !ok {
		return fmt.Errorf("smtp server %s does not support STARTTLS", addr)
	}

	tlsConfig := &tls.Config{
		ServerName: s.host,
		MinVersion: tls.VersionTLS12,
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("starttls failed: %w", err)
	}

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp authentication failed: %w", err)
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM rejected: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO rejected: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	return client.Quit()
}

// ValidateAddress checks that addr is a parseable email address.
func ValidateAddress(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("address is empty")
	}
	if _, err := mail.ParseAddress(addr); err != nil {
		return fmt.Errorf("address %q is not valid: %w", addr, err)
	}
	return nil
}

// BuildMIME renders the message as a multipart/alternative MIME document.
// The plain-text part comes first so clients that understand HTML prefer it last.
func BuildMIME(msg Message) []byte {
	boundary := fmt.Sprintf("newsletter-%d", time.Now().UnixNano())

	var sb strings.Builder
	sb.WriteString("From: " + msg.From + "\r\n")
	sb.WriteString("To: " + msg.To + "\r\n")
	sb.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	sb.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: multipart/alternative; boundary=\"" + boundary + "\"\r\n")
	sb.WriteString("\r\n")

	if msg.TextBody != "" {
		sb.WriteString("--" + boundary + "\r\n")
		sb.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
		sb.WriteString("\r\n")
		sb.WriteString(normalizeLineEndings(msg.TextBody))
		sb.WriteString("\r\n")
	}

	if msg.HTMLBody != "" {
		sb.WriteString("--" + boundary + "\r\n")
		sb.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
		sb.WriteString("\r\n")
		sb.WriteString(normalizeLineEndings(msg.HTMLBody))
		sb.WriteString("\r\n")
	}

	sb.WriteString("--" + boundary + "--\r\n")

	return []byte(sb.String())
}

// normalizeLineEndings converts bare LF line endings to CRLF as SMTP requires.
func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
