// Package notify delivers invitation and cancellation emails.
package notify

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/example/event-scheduler/internal/application"
)

const (
	inviteSubject       = "You're invited!"
	cancellationSubject = "Event Cancelled: "
	dateTimeFormat      = "2006-01-02 15:04"
	clockFormat         = "15:04 MST"
)

// Message is a plain-text email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Bytes renders the message in RFC 5322 form with CRLF line endings.
func (m Message) Bytes() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	return buf.Bytes()
}

// InviteMessage builds the invitation email carrying the registration link.
func InviteMessage(from, to, link string) Message {
	body := "You have been invited to join the event scheduler.\n\n" +
		"Complete your registration here:\n" +
		link + "\n"
	return Message{From: from, To: []string{to}, Subject: inviteSubject, Body: body}
}

// CancellationMessage builds the email sent to everyone on a cancelled event.
func CancellationMessage(from string, notice application.CancellationNotice) Message {
	var body strings.Builder
	body.WriteString("The following event has been cancelled.\n\n")
	fmt.Fprintf(&body, "Title: %s\n", notice.Title)
	fmt.Fprintf(&body, "Time: %s\n", formatWindow(notice.Start, notice.End))
	fmt.Fprintf(&body, "Cancelled by: %s\n", notice.CancelledByName)

	return Message{
		From:    from,
		To:      append([]string(nil), notice.Recipients...),
		Subject: cancellationSubject + notice.Title,
		Body:    body.String(),
	}
}

func formatWindow(start, end time.Time) string {
	start, end = start.UTC(), end.UTC()
	if start.Year() == end.Year() && start.YearDay() == end.YearDay() {
		return start.Format(dateTimeFormat) + " - " + end.Format(clockFormat)
	}
	return start.Format(dateTimeFormat) + " - " + end.Format(dateTimeFormat) + " UTC"
}
