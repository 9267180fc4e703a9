package notify

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/event-scheduler/internal/application"
)

var notice = application.CancellationNotice{
	Recipients:      []string{"alice@example.com", "bob@example.com"},
	Title:           "Planning",
	Start:           time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	End:             time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	CancelledByName: "Alice",
}

type recordingSender struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *recordingSender) sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

func TestInviteMessage(t *testing.T) {
	msg := InviteMessage("noreply@example.com", "carol@example.com", "http://localhost:3000/register?token=abc")

	assert.Equal(t, "You're invited!", msg.Subject)
	assert.Equal(t, []string{"carol@example.com"}, msg.To)
	assert.Contains(t, msg.Body, "http://localhost:3000/register?token=abc")

	raw := string(msg.Bytes())
	assert.Contains(t, raw, "From: noreply@example.com\r\n")
	assert.Contains(t, raw, "Subject: You're invited!\r\n")
	assert.Contains(t, raw, "\r\n\r\nYou have been invited")
	assert.NotContains(t, strings.ReplaceAll(raw, "\r\n", ""), "\n")
}

func TestCancellationMessage(t *testing.T) {
	msg := CancellationMessage("noreply@example.com", notice)

	assert.Equal(t, "Event Cancelled: Planning", msg.Subject)
	assert.Equal(t, notice.Recipients, msg.To)
	assert.Contains(t, msg.Body, "Title: Planning\n")
	assert.Contains(t, msg.Body, "Time: 2024-03-04 09:00 - 10:00 UTC\n")
	assert.Contains(t, msg.Body, "Cancelled by: Alice\n")

	overnight := notice
	overnight.End = notice.Start.Add(20 * time.Hour)
	assert.Contains(t, CancellationMessage("x", overnight).Body, "2024-03-04 09:00 - 2024-03-05 05:00 UTC")
}

func TestMailNotifier(t *testing.T) {
	sender := &recordingSender{}
	notifier := NewMailNotifier(sender, "noreply@example.com")

	require.NoError(t, notifier.SendInvite(context.Background(), "carol@example.com", "http://x/?token=t"))
	require.NoError(t, notifier.SendCancellation(context.Background(), notice))
	require.NoError(t, notifier.SendCancellation(context.Background(), application.CancellationNotice{Title: "nobody"}))
	assert.Error(t, notifier.SendInvite(context.Background(), "", "link"))

	sent := sender.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "noreply@example.com", sent[0].From)
	assert.Equal(t, "Event Cancelled: Planning", sent[1].Subject)

	sender.err = errors.New("relay down")
	assert.ErrorContains(t, notifier.SendCancellation(context.Background(), notice), "relay down")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	notifier := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, notifier.SendInvite(context.Background(), "carol@example.com", "http://x/?token=t"))
	require.NoError(t, notifier.SendCancellation(context.Background(), notice))

	out := buf.String()
	assert.Contains(t, out, "to=carol@example.com")
	assert.Contains(t, out, `subject="Event Cancelled: Planning"`)
}

func TestAsyncDeliversInBackground(t *testing.T) {
	sender := &recordingSender{}
	async := NewAsync(NewMailNotifier(sender, "noreply@example.com"), time.Second, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	recipients := []string{"alice@example.com"}
	require.NoError(t, async.SendCancellation(ctx, application.CancellationNotice{Recipients: recipients, Title: "Planning"}))
	require.NoError(t, async.SendInvite(ctx, "carol@example.com", "link"))
	// Cancelling the request must not abort delivery, and the caller may reuse its slice.
	cancel()
	recipients[0] = "mutated@example.com"

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, async.Wait(waitCtx))

	sent := sender.sent()
	require.Len(t, sent, 2)
	var to []string
	for _, msg := range sent {
		to = append(to, msg.To...)
	}
	assert.ElementsMatch(t, []string{"alice@example.com", "carol@example.com"}, to)
}

func TestAsyncLogsFailures(t *testing.T) {
	var (
		mu  sync.Mutex
		buf bytes.Buffer
	)
	logger := slog.New(slog.NewTextHandler(&lockedWriter{mu: &mu, w: &buf}, nil))
	async := NewAsync(NewMailNotifier(&recordingSender{err: errors.New("relay down")}, "x"), time.Second, logger)

	require.NoError(t, async.SendInvite(context.Background(), "carol@example.com", "link"))
	require.NoError(t, async.Wait(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, buf.String(), "notification delivery failed")
	assert.Contains(t, buf.String(), "kind=invite")
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func TestNewSMTPSenderValidates(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{})
	assert.Error(t, err)

	_, err = NewSMTPSender(SMTPConfig{Host: "smtp.example.com"})
	assert.Error(t, err)

	sender, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Username: "mailer@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "mailer@example.com", sender.From())
	assert.Equal(t, ImplicitTLSPort, sender.cfg.Port)
}

// fakeSMTPServer speaks just enough SMTP for a plain, unauthenticated delivery.
func fakeSMTPServer(t *testing.T) (port int, received <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }
		reply("220 localhost ESMTP")

		var transcript strings.Builder
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			transcript.WriteString(line)
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 localhost")
			case strings.HasPrefix(cmd, "MAIL FROM"), strings.HasPrefix(cmd, "RCPT TO"):
				reply("250 OK")
			case cmd == "DATA":
				reply("354 go ahead")
				for {
					body, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if body == ".\r\n" {
						break
					}
					transcript.WriteString(body)
				}
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				out <- transcript.String()
				return
			default:
				reply("502 unsupported")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.Port, out
}

func TestSMTPSenderDeliversOverPlainConnection(t *testing.T) {
	port, received := fakeSMTPServer(t)

	notifier, err := NewSMTPNotifier(SMTPConfig{
		Host:    "127.0.0.1",
		Port:    port,
		From:    "noreply@example.com",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, notifier.SendCancellation(context.Background(), notice))

	select {
	case transcript := <-received:
		assert.Contains(t, transcript, "MAIL FROM:<noreply@example.com>")
		assert.Contains(t, transcript, "RCPT TO:<alice@example.com>")
		assert.Contains(t, transcript, "RCPT TO:<bob@example.com>")
		assert.Contains(t, transcript, "Subject: Event Cancelled: Planning")
	case <-time.After(3 * time.Second):
		t.Fatal("fake smtp server never saw QUIT")
	}
}

func TestSMTPSenderReportsDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	sender, err := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: port, From: "x@example.com", Timeout: time.Second})
	require.NoError(t, err)
	err = sender.Send(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorContains(t, err, "dial smtp")
}
