package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"
)

const (
	emailDialTimeout  = 7 * time.Second
	emailImplicitPort = 465
	emailMinTLS       = tls.VersionTLS12
)

// SMTPMailer delivers notification emails over SMTP with STARTTLS or
// implicit TLS on port 465.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if strings.TrimSpace(m.Host) == "" {
		return fmt.Errorf("smtp host is empty")
	}
	if m.Port == 0 {
		return fmt.Errorf("smtp port is empty/0")
	}

	fromAddr, err := parseEmailAddress(m.From)
	if err != nil {
		return fmt.Errorf("parse from: %w", err)
	}

	var toAddrs, toHeaders []string
	for _, r := range to {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		addr, err := parseEmailAddress(r)
		if err != nil {
			return fmt.Errorf("parse to %q: %w", r, err)
		}
		toAddrs = append(toAddrs, addr)
		toHeaders = append(toHeaders, r)
	}
	if len(toAddrs) == 0 {
		return fmt.Errorf("no valid recipients")
	}

	msg := buildEmailMessage(m.From, toHeaders, subject, body)
	return m.sendSMTP(ctx, fromAddr, toAddrs, msg)
}

func parseEmailAddress(s string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}

func (m *SMTPMailer) sendSMTP(ctx context.Context, fromAddr string, toAddrs []string, msg []byte) error {
	addr := net.JoinHostPort(m.Host, fmt.Sprintf("%d", m.Port))
	conn, err := dialWithContext(ctx, addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer conn.Close()

	implicitTLS := m.Port == emailImplicitPort
	if implicitTLS {
		tlsConn := tls.Client(conn, &tls.Config{
			ServerName: m.Host,
			MinVersion: emailMinTLS,
		})
		if err := tlsConn.Handshake(); err != nil {
			return fmt.Errorf("tls handshake: %w", err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	isTLS := implicitTLS
	if !implicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{
				ServerName: m.Host,
				MinVersion: emailMinTLS,
			}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
			isTLS = true
		}
	}

	// Refuse to send credentials without TLS
	authConfigured := strings.TrimSpace(m.Username) != "" || strings.TrimSpace(m.Password) != ""
	if authConfigured && !isTLS {
		return fmt.Errorf("refusing to authenticate without TLS (enable STARTTLS or use port 465)")
	}

	if strings.TrimSpace(m.Username) != "" {
		auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(fromAddr); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range toAddrs {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := writer.Write(msg); err != nil {
		writer.Close()
		return fmt.Errorf("write data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	_ = client.Quit()
	return nil
}

func dialWithContext(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: emailDialTimeout}

	connCh := make(chan net.Conn, 1)
	errCh := make(chan error, 1)

	go func() {
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			errCh <- err
			return
		}
		connCh <- conn
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, err
	case conn := <-connCh:
		return conn, nil
	}
}

func buildEmailMessage(from string, to []string, subject, body string) []byte {
	var buf bytes.Buffer

	writeHeader(&buf, "From", from)
	writeHeader(&buf, "To", strings.Join(to, ", "))
	writeHeader(&buf, "Subject", sanitizeHeader(subject))
	writeHeader(&buf, "Date", time.Now().Format(time.RFC1123Z))
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "Content-Type", `text/plain; charset="utf-8"`)
	writeHeader(&buf, "Content-Transfer-Encoding", "8bit")
	buf.WriteString("\r\n")

	// Normalize line endings to CRLF
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	body = strings.ReplaceAll(body, "\n", "\r\n")
	buf.WriteString(body)

	if !strings.HasSuffix(body, "\r\n") {
		buf.WriteString("\r\n")
	}

	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
