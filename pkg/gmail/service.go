package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"triage-backend/internal/triage/domain"
	"triage-backend/pkg/mimeparse"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is called after the oauth2 source refreshes the access token
type TokenUpdateFunc func(token *oauth2.Token) error

type Service struct {
	clientID       string
	clientSecret   string
	accessToken    string
	refreshToken   string
	onTokenRefresh TokenUpdateFunc

	// endpoint overrides the API root; used by tests
	endpoint string
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[Gmail] Failed to update token: %v", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret, accessToken, refreshToken string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}
}

// OnTokenRefresh registers a callback for refreshed tokens
func (s *Service) OnTokenRefresh(fn TokenUpdateFunc) *Service {
	s.onTokenRefresh = fn
	return s
}

// WithEndpoint points the client at a different API root
func (s *Service) WithEndpoint(endpoint string) *Service {
	s.endpoint = endpoint
	return s
}

// GetGmailService creates Gmail service with the configured tokens
func (s *Service) GetGmailService(ctx context.Context) (*gmail.Service, error) {
	if s.endpoint != "" {
		return gmail.NewService(ctx, option.WithEndpoint(s.endpoint), option.WithoutAuthentication())
	}

	token := &oauth2.Token{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if s.refreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: s.onTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}

	return srv, nil
}

// BuildQuery renders the Gmail search query for the fetch options
func BuildQuery(opts domain.FetchOptions, now time.Time) string {
	opts = opts.WithDefaults()
	since := now.Add(-time.Duration(opts.LookbackHours) * time.Hour)

	parts := []string{"after:" + since.Format("2006/01/02")}
	if opts.Unread() {
		parts = append(parts, "is:unread")
	}
	for _, term := range opts.QueryTerms {
		if term = strings.TrimSpace(term); term != "" {
			parts = append(parts, term)
		}
	}
	return strings.Join(parts, " ")
}

// FetchRecent lists recent inbox messages and normalizes them, newest first
func (s *Service) FetchRecent(ctx context.Context, opts domain.FetchOptions) ([]*domain.Message, error) {
	opts = opts.WithDefaults()

	srv, err := s.GetGmailService(ctx)
	if err != nil {
		return nil, err
	}

	user := "me"
	q := BuildQuery(opts, time.Now())

	listResp, err := srv.Users.Messages.List(user).Q(q).MaxResults(int64(opts.MaxResults)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve messages: %v", err)
	}

	type messageResult struct {
		msg *domain.Message
		err error
	}

	resultChan := make(chan messageResult, len(listResp.Messages))
	semaphore := make(chan struct{}, 10) // Max 10 concurrent requests

	for _, m := range listResp.Messages {
		go func(msgID string) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			full, err := srv.Users.Messages.Get(user, msgID).Format("full").Context(ctx).Do()
			if err != nil {
				resultChan <- messageResult{nil, err}
				return
			}
			resultChan <- messageResult{convertGmailMessage(full), nil}
		}(m.Id)
	}

	messages := make([]*domain.Message, 0, len(listResp.Messages))
	var lastErr error
	for i := 0; i < len(listResp.Messages); i++ {
		result := <-resultChan
		if result.err != nil {
			log.Printf("[Gmail] Failed to fetch message: %v", result.err)
			lastErr = result.err
			continue
		}
		messages = append(messages, result.msg)
	}
	if len(messages) == 0 && lastErr != nil {
		return nil, fmt.Errorf("unable to retrieve any of %d messages: %w", len(listResp.Messages), lastErr)
	}

	// Parallel fetching returns messages in random order
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].SentDate.After(messages[j].SentDate)
	})

	return messages, nil
}

func convertGmailMessage(msg *gmail.Message) *domain.Message {
	var headers []*gmail.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}

	sent := time.UnixMilli(msg.InternalDate)
	if raw := getHeader(headers, "Date"); raw != "" {
		if parsed, err := parseDate(raw); err == nil {
			sent = parsed
		}
	}

	return &domain.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Sender:   getHeader(headers, "From"),
		Subject:  getHeader(headers, "Subject"),
		Body:     getEmailBody(msg.Payload),
		SentDate: sent,
		Snippet:  msg.Snippet,
		IsUnread: hasLabel(msg.LabelIds, "UNREAD"),
		Source:   domain.SourceGmail,
	}
}

func parseDate(raw string) (time.Time, error) {
	layouts := []string{time.RFC1123Z, time.RFC1123, "Mon, 2 Jan 2006 15:04:05 -0700", "2 Jan 2006 15:04:05 -0700"}
	// Drop trailing comments like "(UTC)"
	if idx := strings.Index(raw, " ("); idx > 0 {
		raw = raw[:idx]
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func decodeBody(data string) (string, bool) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded), true
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded), true
	}
	return "", false
}

// getEmailBody prefers text/plain and falls back to tag-stripped text/html
func getEmailBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}

	var htmlBody, plainBody string

	var visit func(part *gmail.MessagePart)
	visit = func(part *gmail.MessagePart) {
		if part.Body != nil && part.Body.Data != "" {
			if data, ok := decodeBody(part.Body.Data); ok {
				switch {
				case strings.HasPrefix(part.MimeType, "text/plain") && plainBody == "":
					plainBody = data
				case strings.HasPrefix(part.MimeType, "text/html") && htmlBody == "":
					htmlBody = data
				}
			}
		}
		for _, child := range part.Parts {
			visit(child)
		}
	}
	visit(payload)

	if plainBody != "" {
		return strings.TrimSpace(plainBody)
	}
	return mimeparse.StripHTML(htmlBody)
}

func hasLabel(labels []string, labelID string) bool {
	for _, label := range labels {
		if label == labelID {
			return true
		}
	}
	return false
}
