package mimeparse

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"
)

func init() {
	// Register additional charsets that are commonly used in emails
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// ParsedEmail is the subset of an RFC 5322 message the triage pipeline needs
type ParsedEmail struct {
	MessageID  string
	InReplyTo  string
	Subject    string
	Sender     string
	SenderName string
	Date       time.Time
	BodyText   string
	BodyHTML   string
}

// Body returns the plain text body, or the tag-stripped HTML body when no text part exists
func (p *ParsedEmail) Body() string {
	if strings.TrimSpace(p.BodyText) != "" {
		return strings.TrimSpace(p.BodyText)
	}
	return StripHTML(p.BodyHTML)
}

// From renders the sender as "Name <address>" when a display name is present
func (p *ParsedEmail) From() string {
	if p.SenderName != "" && p.Sender != "" {
		return fmt.Sprintf("%s <%s>", p.SenderName, p.Sender)
	}
	return p.Sender
}

// Parse reads a raw message. A missing or malformed Date header yields the zero time.
func Parse(r io.Reader) (*ParsedEmail, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, fmt.Errorf("failed to read email: %w", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("failed to create mail reader: %w", err)
	}
	defer mr.Close()

	parsed := &ParsedEmail{}
	header := mr.Header

	parsed.MessageID = strings.Trim(header.Get("Message-Id"), "<> ")
	parsed.InReplyTo = strings.TrimSpace(header.Get("In-Reply-To"))
	parsed.Subject = decodeMIMEWord(header.Get("Subject"))

	if fromAddrs, err := header.AddressList("From"); err == nil && len(fromAddrs) > 0 {
		parsed.Sender = fromAddrs[0].Address
		parsed.SenderName = fromAddrs[0].Name
	} else {
		parsed.Sender = strings.TrimSpace(header.Get("From"))
	}

	if date, err := header.Date(); err == nil {
		parsed.Date = date
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			// attachments are not triaged
			continue
		}

		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}

		switch {
		case strings.HasPrefix(contentType, "text/html"):
			if parsed.BodyHTML == "" {
				parsed.BodyHTML = string(body)
			}
		case strings.HasPrefix(contentType, "text/plain"), contentType == "":
			if parsed.BodyText == "" {
				parsed.BodyText = string(body)
			}
		}
	}

	return parsed, nil
}

// decodeMIMEWord decodes MIME-encoded words (RFC 2047)
func decodeMIMEWord(s string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes tags, unescapes the common entities and collapses whitespace
func StripHTML(s string) string {
	text := htmlTagPattern.ReplaceAllString(s, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&amp;", "&")
	return strings.Join(strings.Fields(text), " ")
}
