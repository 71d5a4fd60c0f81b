package parser

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Message is the part of an RFC822 message the lead parser looks at
type Message struct {
	Subject   string
	MessageID string
	FromName  string
	FromAddr  string
	Date      time.Time
	Text      string
	HTML      string
}

// From returns the sender formatted as `Name <addr>` or just the address
func (m *Message) From() string {
	switch {
	case m.FromName != "" && m.FromAddr != "":
		return m.FromName + " <" + m.FromAddr + ">"
	case m.FromAddr != "":
		return m.FromAddr
	default:
		return m.FromName
	}
}

// ParseMessage reads a raw RFC822 message. It is best-effort: headers that fail
// to decode are left empty, and input that is not MIME at all is kept as text.
func ParseMessage(raw []byte) *Message {
	msg := &Message{}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if mr == nil {
		msg.Text = strings.ToValidUTF8(string(raw), "�")
		return msg
	}
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		msg.Text = strings.ToValidUTF8(string(raw), "�")
		return msg
	}

	readHeader(msg, &mr.Header)

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if part == nil {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		ct, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil && len(body) == 0 {
			continue
		}
		text := strings.ToValidUTF8(string(body), "�")

		switch {
		case strings.HasPrefix(ct, "text/html"):
			msg.HTML = appendBody(msg.HTML, text)
		case strings.HasPrefix(ct, "text/plain"), ct == "":
			msg.Text = appendBody(msg.Text, text)
		}
	}

	return msg
}

func readHeader(msg *Message, h *mail.Header) {
	if subject, err := h.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = h.Get("Subject")
	}

	if id, err := h.MessageID(); err == nil {
		msg.MessageID = id
	}

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		msg.FromName = from[0].Name
		msg.FromAddr = from[0].Address
	} else {
		msg.FromAddr = strings.TrimSpace(h.Get("From"))
	}

	if date, err := h.Date(); err == nil {
		msg.Date = date
	}
}

func appendBody(existing, part string) string {
	if strings.TrimSpace(part) == "" {
		return existing
	}
	if existing == "" {
		return part
	}
	return existing + "\n" + part
}
