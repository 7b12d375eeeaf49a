package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"triage-backend/internal/triage/domain"
	"triage-backend/pkg/mimeparse"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Config holds IMAP connection settings
type Config struct {
	Server   string
	Port     int
	Username string
	Password string
	Mailbox  string
	// Insecure dials without TLS (local servers and tests)
	Insecure bool
}

type Service struct {
	cfg Config
}

func NewService(cfg Config) *Service {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &Service{cfg: cfg}
}

func (s *Service) connect() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)

	var c *client.Client
	var err error
	if s.cfg.Insecure {
		c, err = client.Dial(addr)
	} else {
		c, err = client.DialTLS(addr, &tls.Config{ServerName: s.cfg.Server})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	c.Timeout = 30 * time.Second

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return c, nil
}

// FetchRecent searches the mailbox and returns the newest matching messages, newest first
func (s *Service) FetchRecent(ctx context.Context, opts domain.FetchOptions) ([]*domain.Message, error) {
	opts = opts.WithDefaults()

	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select(s.cfg.Mailbox, true); err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", s.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().Add(-time.Duration(opts.LookbackHours) * time.Hour)
	if opts.Unread() {
		criteria.WithoutFlags = []string{imap.SeenFlag}
	}
	for _, term := range opts.QueryTerms {
		if term = strings.TrimSpace(term); term != "" {
			criteria.Text = append(criteria.Text, term)
		}
	}

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search failed: %w", err)
	}
	if len(uids) == 0 {
		return []*domain.Message{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Higher UIDs arrived later
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if len(uids) > opts.MaxResults {
		uids = uids[:opts.MaxResults]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchFlags, imap.FetchInternalDate, section.FetchItem()}

	fetched := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, fetched)
	}()

	messages := make([]*domain.Message, 0, len(uids))
	for msg := range fetched {
		m, err := s.convert(msg)
		if err != nil {
			log.Printf("[IMAP] Failed to parse message uid=%d: %v", msg.Uid, err)
			continue
		}
		messages = append(messages, m)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch failed: %w", err)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].SentDate.After(messages[j].SentDate)
	})
	return messages, nil
}

func (s *Service) convert(msg *imap.Message) (*domain.Message, error) {
	raw := firstLiteral(msg)
	if raw == nil {
		return nil, fmt.Errorf("message has no body")
	}

	parsed, err := mimeparse.Parse(raw)
	if err != nil {
		return nil, err
	}

	id := parsed.MessageID
	if id == "" {
		id = fmt.Sprintf("imap-%s-%d", strings.ToLower(s.cfg.Mailbox), msg.Uid)
	}

	sent := parsed.Date
	if sent.IsZero() {
		sent = msg.InternalDate
	}

	body := parsed.Body()
	return &domain.Message{
		ID:       id,
		ThreadID: parsed.InReplyTo,
		Sender:   parsed.From(),
		Subject:  parsed.Subject,
		Body:     body,
		SentDate: sent,
		Snippet:  snippet(body, 140),
		IsUnread: !hasFlag(msg.Flags, imap.SeenFlag),
		Source:   domain.SourceIMAP,
	}, nil
}

// firstLiteral returns the fetched body. Servers may echo the section without
// PEEK, so the literal is taken from the map rather than looked up by name.
func firstLiteral(msg *imap.Message) io.Reader {
	for _, literal := range msg.Body {
		if literal == nil {
			continue
		}
		data, err := io.ReadAll(literal)
		if err != nil {
			return nil
		}
		return bytes.NewReader(data)
	}
	return nil
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

func snippet(body string, n int) string {
	runes := []rune(strings.Join(strings.Fields(body), " "))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n])
}
