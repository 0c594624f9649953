// Package parser turns raw RFC 822 payloads into structured email records.
package parser

import (
	"bytes"
	"fmt"
	"io"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	// Register charset decoders (windows-1252, iso-8859-*, koi8-r, etc.)
	_ "github.com/emersion/go-message/charset"

	"mailsense-backend/internal/email/domain"
)

// Headers worth keeping on the record; everything else is dropped.
var retainedHeaders = []string{
	"From", "To", "Cc", "Subject", "Date", "Reply-To",
	"List-Unsubscribe", "X-Mailer", "DKIM-Signature",
}

// Normalize parses a raw message into an Email record. It never fails the
// whole message on malformed MIME: when body parsing breaks, the raw headers
// are preserved and both bodies stay nil.
func Normalize(raw domain.RawMessage) *domain.Email {
	email := &domain.Email{
		UID:       raw.UID,
		Folder:    raw.Folder,
		SizeBytes: len(raw.Body),
		IsRead:    hasFlag(raw.Flags, "\\Seen"),
		IsStarred: hasFlag(raw.Flags, "\\Flagged"),
	}
	if !raw.InternalDate.IsZero() {
		received := raw.InternalDate
		email.DateReceived = &received
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw.Body))
	if err != nil {
		normalizeHeadersOnly(raw, email)
	} else {
		defer mr.Close()
		normalizeHeader(&mr.Header, email)
		normalizeParts(mr, email)
	}

	if email.MessageID == "" {
		email.MessageID = fallbackMessageID(raw)
	}
	return email
}

func normalizeHeader(h *mail.Header, email *domain.Email) {
	if id, err := h.MessageID(); err == nil && id != "" {
		email.MessageID = "<" + id + ">"
	}
	if subject, err := h.Subject(); err == nil {
		email.Subject = subject
	} else {
		email.Subject = h.Get("Subject")
	}

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		email.FromAddress = from[0].Address
		email.FromName = from[0].Name
	}
	if replyTo, err := h.AddressList("Reply-To"); err == nil && len(replyTo) > 0 {
		email.ReplyTo = replyTo[0].Address
	}
	email.ToAddresses = parseAddressList(h, "To")
	email.CcAddresses = parseAddressList(h, "Cc")

	if date, err := h.Date(); err == nil && !date.IsZero() {
		sent := date.UTC()
		email.DateSent = &sent
	}

	headers := domain.HeaderMap{}
	for _, key := range retainedHeaders {
		if v := h.Get(key); v != "" {
			headers[key] = v
		}
	}
	email.RawHeaders = headers
}

// parseAddressList reads one recipient header, dropping entries that repeat
// an exactly equal earlier entry. Case folding is deliberately not applied.
func parseAddressList(h *mail.Header, key string) domain.AddressList {
	addrs, err := h.AddressList(key)
	if err != nil || len(addrs) == 0 {
		return domain.AddressList{}
	}

	seen := make(map[string]bool, len(addrs))
	out := make(domain.AddressList, 0, len(addrs))
	for _, a := range addrs {
		if a.Address == "" || seen[a.Address] {
			continue
		}
		seen[a.Address] = true
		out = append(out, domain.Address{Name: a.Name, Address: a.Address})
	}
	return out
}

func normalizeParts(mr *mail.Reader, email *domain.Email) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Broken part boundary or unknown encoding: keep what we have.
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			text := string(body)
			switch {
			case strings.HasPrefix(contentType, "text/plain") && email.BodyText == nil:
				email.BodyText = &text
			case strings.HasPrefix(contentType, "text/html") && email.BodyHTML == nil:
				email.BodyHTML = &text
			}
		case *mail.AttachmentHeader:
			// Presence is structural, the Content-Disposition of the part,
			// never a trusted top-level header.
			email.HasAttachments = true
			_, _ = io.Copy(io.Discard, part.Body)
		}
	}
}

// normalizeHeadersOnly is the degraded path for messages go-message cannot
// read at all: headers via net/mail, nil bodies.
func normalizeHeadersOnly(raw domain.RawMessage, email *domain.Email) {
	msg, err := netmail.ReadMessage(bytes.NewReader(raw.Body))
	if err != nil {
		return
	}

	email.Subject = msg.Header.Get("Subject")
	if id := strings.TrimSpace(msg.Header.Get("Message-Id")); id != "" {
		email.MessageID = id
	}
	if from, err := netmail.ParseAddress(msg.Header.Get("From")); err == nil {
		email.FromAddress = from.Address
		email.FromName = from.Name
	}
	if date, err := msg.Header.Date(); err == nil {
		sent := date.UTC()
		email.DateSent = &sent
	}

	headers := domain.HeaderMap{}
	for _, key := range retainedHeaders {
		if v := msg.Header.Get(key); v != "" {
			headers[key] = v
		}
	}
	email.RawHeaders = headers
}

func fallbackMessageID(raw domain.RawMessage) string {
	folder := strings.ToLower(strings.ReplaceAll(raw.Folder, " ", "-"))
	if folder == "" {
		folder = "local"
	}
	return fmt.Sprintf("<no-id-uid-%d@%s.local>", raw.UID, folder)
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

// SentOrReceived picks the best available timestamp for ordering.
func SentOrReceived(email *domain.Email) time.Time {
	if email.DateSent != nil {
		return *email.DateSent
	}
	if email.DateReceived != nil {
		return *email.DateReceived
	}
	return time.Time{}
}
