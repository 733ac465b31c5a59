package notify

import (
	"context"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dev-tams/dbbackup/internal/config"
)

// smtpSink accepts one SMTP session and reports the recipients and the
// message body it received.
type smtpSink struct {
	host string
	port int
	rcpt chan []string
	data chan string
}

func newSMTPSink(t *testing.T) *smtpSink {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	s := &smtpSink{host: host, port: port, rcpt: make(chan []string, 1), data: make(chan string, 1)}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)

		var rcpts []string
		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			verb := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(verb, "EHLO"), strings.HasPrefix(verb, "HELO"):
				_ = tp.PrintfLine("250 localhost")
			case strings.HasPrefix(verb, "MAIL FROM"):
				_ = tp.PrintfLine("250 OK")
			case strings.HasPrefix(verb, "RCPT TO"):
				rcpts = append(rcpts, strings.Trim(line[len("RCPT TO:"):], "<> "))
				_ = tp.PrintfLine("250 OK")
			case verb == "DATA":
				_ = tp.PrintfLine("354 end with <CR><LF>.<CR><LF>")
				lines, err := tp.ReadDotLines()
				if err != nil {
					return
				}
				s.rcpt <- rcpts
				s.data <- strings.Join(lines, "\n")
				_ = tp.PrintfLine("250 OK")
			case verb == "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("502 not implemented")
			}
		}
	}()
	return s
}

func TestEmailDeliversRenderedEvent(t *testing.T) {
	sink := newSMTPSink(t)
	n, err := NewEmail(config.NotificationDetails{
		SMTPHost: sink.host,
		SMTPPort: sink.port,
		From:     "backups@example.com",
		To:       "ops@example.com, dba@example.com",
	})
	if err != nil {
		t.Fatalf("NewEmail: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = n.Notify(ctx, Event{
		Connection: "main",
		Database:   "app",
		Host:       "db.internal",
		Status:     StatusSuccess,
		Error:      "data retention: 1 delete failure(s)",
		Sweep:      &SweepCounts{Deleted: 2, Retained: 5, Failed: 1},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	rcpts := <-sink.rcpt
	if len(rcpts) != 2 || rcpts[0] != "ops@example.com" || rcpts[1] != "dba@example.com" {
		t.Fatalf("unexpected recipients %v", rcpts)
	}
	data := <-sink.data
	for _, want := range []string{
		"Subject: [dbbackup] main backup succeeded",
		"A backup of the app at db.internal has been created. Data retention: 2 deleted, 5 retained, 1 failed.",
		"retention deleted: 2",
		"retention failed: 1",
		"error: data retention: 1 delete failure(s)",
	} {
		if !strings.Contains(data, want) {
			t.Fatalf("message missing %q:\n%s", want, data)
		}
	}
}

func TestEmailStopsOnCanceledContext(t *testing.T) {
	n, err := NewEmail(config.NotificationDetails{SMTPHost: "127.0.0.1", SMTPPort: 1, From: "a@example.com", To: "b@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := n.Notify(ctx, Event{Status: StatusFailure}); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewEmailValidatesConfig(t *testing.T) {
	base := config.NotificationDetails{SMTPHost: "smtp.example.com", SMTPPort: 587, From: "a@example.com", To: "b@example.com"}

	bad := map[string]func(*config.NotificationDetails){
		"no host":       func(c *config.NotificationDetails) { c.SMTPHost = " " },
		"bad port":      func(c *config.NotificationDetails) { c.SMTPPort = 0 },
		"no from":       func(c *config.NotificationDetails) { c.From = "" },
		"no recipients": func(c *config.NotificationDetails) { c.To = " , " },
		"half auth":     func(c *config.NotificationDetails) { c.Username = "u" },
	}
	for name, mutate := range bad {
		c := base
		mutate(&c)
		if _, err := NewEmail(c); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := NewEmail(base); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestTextAndDetails(t *testing.T) {
	ev := Event{Connection: "main", Database: "app", Host: "db", Status: StatusFailure, Error: "pg_dump exited 1"}
	if got := Text(ev); got != "A backup of the app at db has failed: pg_dump exited 1" {
		t.Fatalf("unexpected text %q", got)
	}
	d := Details(ev)
	if !strings.Contains(d, "connection: main") || !strings.Contains(d, "error: pg_dump exited 1") {
		t.Fatalf("unexpected details:\n%s", d)
	}
	if strings.Contains(d, "retention") || strings.Contains(d, "file:") {
		t.Fatalf("empty fields should be skipped:\n%s", d)
	}
}
