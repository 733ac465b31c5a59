package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/dev-tams/dbbackup/internal/config"
)

// emailNotifier mails the backup outcome to a fixed recipient list.
type emailNotifier struct {
	addr string
	host string
	from string
	to   []string
	auth smtp.Auth
	now  func() time.Time
}

func NewEmail(cfg config.NotificationDetails) (Notifier, error) {
	host := strings.TrimSpace(cfg.SMTPHost)
	from := strings.TrimSpace(cfg.From)
	if host == "" {
		return nil, errors.New("config.smtp_host is required")
	}
	if cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535 {
		return nil, fmt.Errorf("config.smtp_port %d is out of range", cfg.SMTPPort)
	}
	if from == "" {
		return nil, errors.New("config.from is required")
	}

	var to []string
	for _, r := range strings.Split(cfg.To, ",") {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}
	if len(to) == 0 {
		return nil, errors.New("config.to must include at least one recipient")
	}

	user := strings.TrimSpace(cfg.Username)
	pass := strings.TrimSpace(cfg.Password)
	if (user == "") != (pass == "") {
		return nil, errors.New("config.username and config.password must be set together")
	}

	e := &emailNotifier{
		addr: net.JoinHostPort(host, strconv.Itoa(cfg.SMTPPort)),
		host: host,
		from: from,
		to:   to,
		now:  time.Now,
	}
	if user != "" {
		e.auth = smtp.PlainAuth("", user, pass, host)
	}
	return e, nil
}

func (e *emailNotifier) Notify(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.send(ctx, e.message(event))
}

func (e *emailNotifier) message(event Event) []byte {
	outcome := "succeeded"
	if event.Status == StatusFailure {
		outcome = "failed"
	}
	headers := []string{
		"From: " + e.from,
		"To: " + strings.Join(e.to, ", "),
		fmt.Sprintf("Subject: [dbbackup] %s backup %s", event.Connection, outcome),
		"Date: " + e.now().UTC().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
	}
	body := Text(event) + "\n\n" + Details(event)
	msg := strings.Join(headers, "\r\n") + "\r\n\r\n" + strings.ReplaceAll(body, "\n", "\r\n") + "\r\n"
	return []byte(msg)
}

// send runs one SMTP transaction. The context bounds the dial and, through
// the connection deadline, every later command.
func (e *emailNotifier) send(ctx context.Context, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", e.addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", e.addr, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	c, err := smtp.NewClient(conn, e.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: e.host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if e.auth != nil {
		if err := c.Auth(e.auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(e.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, r := range e.to {
		if err := c.Rcpt(r); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", r, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	return c.Quit()
}
