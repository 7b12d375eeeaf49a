package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"triage-backend/internal/triage/domain"
	"triage-backend/pkg/fcm"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes on its watch topic
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// UrgentAlert is published for every item tagged urgent
type UrgentAlert struct {
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	Sender   string `json:"sender"`
	Urgency  int    `json:"urgency"`
	Category string `json:"category"`
}

// DeviceNotifier pushes notifications to device tokens
type DeviceNotifier interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

// MailboxUpdateFunc is called when Gmail reports new history for a mailbox
type MailboxUpdateFunc func(ctx context.Context, emailAddress string)

type Service struct {
	pubsubClient *pubsub.Client
	topic        *pubsub.Topic
	topicName    string

	fcmClient    DeviceNotifier
	deviceTokens []string

	onMailboxUpdate MailboxUpdateFunc

	// Deduplication: track last historyId per mailbox to avoid duplicate fetches
	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

// NewService connects to Pub/Sub. topicName may be a short name or a full resource name.
func NewService(ctx context.Context, projectID, topicName, credentialsFile string) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return NewServiceWithClient(client, topicName), nil
}

// NewServiceWithClient wraps an existing Pub/Sub client
func NewServiceWithClient(client *pubsub.Client, topicName string) *Service {
	s := &Service{
		pubsubClient:  client,
		topicName:     ShortTopicName(topicName),
		lastHistoryID: make(map[string]uint64),
	}
	if client != nil && s.topicName != "" {
		s.topic = client.Topic(s.topicName)
	}
	return s
}

// ShortTopicName extracts the topic id from "projects/<p>/topics/<id>"
func ShortTopicName(name string) string {
	if parts := strings.Split(name, "/"); len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return name
}

// WithDeviceAlerts also pushes urgent alerts to the given on-call devices
func (s *Service) WithDeviceAlerts(client DeviceNotifier, tokens []string) *Service {
	s.fcmClient = client
	s.deviceTokens = tokens
	return s
}

// OnMailboxUpdate registers the callback for Gmail push notifications
func (s *Service) OnMailboxUpdate(fn MailboxUpdateFunc) {
	s.onMailboxUpdate = fn
}

// PublishUrgent publishes an urgent item to the alert topic and on-call devices
func (s *Service) PublishUrgent(ctx context.Context, item *domain.ProcessedItem) error {
	if item == nil || item.Record == nil {
		return nil
	}

	alert := UrgentAlert{
		ID:       item.Record.ID,
		Subject:  item.Record.Subject,
		Sender:   item.Record.Sender,
		Urgency:  item.Urgency(),
		Category: domain.DefaultCategory,
	}
	priority := string(domain.PriorityUrgent)
	if item.Classification != nil {
		alert.Category = item.Classification.Category
		priority = string(item.Classification.Priority)
	}

	var errs []string

	if s.topic != nil {
		data, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}
		result := s.topic.Publish(ctx, &pubsub.Message{
			Data: data,
			Attributes: map[string]string{
				"priority": priority,
				"source":   string(item.Record.Source),
			},
		})
		if id, err := result.Get(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("pubsub: %v", err))
		} else {
			log.Printf("[PubSub] Published urgent alert %s for %s", id, alert.ID)
		}
	}

	if s.fcmClient != nil && len(s.deviceTokens) > 0 {
		subject := alert.Subject
		if len([]rune(subject)) > 100 {
			subject = string([]rune(subject)[:97]) + "..."
		}
		if subject == "" {
			subject = "(no subject)"
		}
		_, err := s.fcmClient.SendToDevices(ctx, s.deviceTokens, fcm.NotificationData{
			Title: fmt.Sprintf("Urgent (%d/10): %s", alert.Urgency, alert.Category),
			Body:  subject,
			Data: map[string]string{
				"type":     "urgent_email",
				"email_id": alert.ID,
				"urgency":  strconv.Itoa(alert.Urgency),
				"category": alert.Category,
			},
		})
		if err != nil {
			errs = append(errs, fmt.Sprintf("fcm: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("urgent alert for %s: %s", alert.ID, strings.Join(errs, "; "))
	}
	return nil
}

// Listen receives Gmail push notifications until ctx is done
func (s *Service) Listen(ctx context.Context, subscription string) {
	if s.pubsubClient == nil || subscription == "" {
		return
	}

	sub := s.pubsubClient.Subscription(ShortTopicName(subscription))
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}
	if !exists {
		log.Printf("[PubSub] Subscription %s does not exist, Gmail push disabled", subscription)
		return
	}

	log.Printf("[PubSub] Listening for Gmail notifications on subscription: %s", subscription)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg.Data)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) handleMessage(ctx context.Context, data []byte) {
	var notification GmailNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
		return
	}
	if notification.EmailAddress == "" {
		return
	}

	s.mu.Lock()
	lastHID, exists := s.lastHistoryID[notification.EmailAddress]
	if exists && notification.HistoryID <= lastHID {
		s.mu.Unlock()
		log.Printf("[PubSub] Skipping duplicate notification for %s (historyId %d <= last %d)", notification.EmailAddress, notification.HistoryID, lastHID)
		return
	}
	s.lastHistoryID[notification.EmailAddress] = notification.HistoryID
	s.mu.Unlock()

	log.Printf("[PubSub] Mailbox update for %s (historyId: %d)", notification.EmailAddress, notification.HistoryID)
	if s.onMailboxUpdate != nil {
		s.onMailboxUpdate(ctx, notification.EmailAddress)
	}
}

// Close flushes pending publishes and closes the client
func (s *Service) Close() error {
	if s.topic != nil {
		s.topic.Stop()
	}
	if s.pubsubClient != nil {
		return s.pubsubClient.Close()
	}
	return nil
}
