package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"triage-backend/internal/triage/domain"
	"triage-backend/pkg/fcm"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type fakeNotifier struct {
	tokens []string
	data   fcm.NotificationData
	err    error
}

func (f *fakeNotifier) SendToDevices(ctx context.Context, tokens []string, n fcm.NotificationData) ([]string, error) {
	f.tokens = tokens
	f.data = n
	return nil, f.err
}

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(context.Background(), "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	return client, srv
}

func urgentItem() *domain.ProcessedItem {
	return &domain.ProcessedItem{
		Record: &domain.Message{ID: "e1", Subject: "Checkout down", Sender: "ops@example.com", Source: domain.SourceGmail},
		Classification: &domain.Classification{
			Category:     "OUTAGE",
			Priority:     domain.PriorityUrgent,
			UrgencyScore: 9,
		},
	}
}

func TestPublishUrgent(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)
	_, err := client.CreateTopic(ctx, "urgent-alerts")
	require.NoError(t, err)

	svc := NewServiceWithClient(client, "projects/test-project/topics/urgent-alerts")
	defer svc.Close()

	require.NoError(t, svc.PublishUrgent(ctx, urgentItem()))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "urgent", msgs[0].Attributes["priority"])
	assert.Equal(t, "gmail", msgs[0].Attributes["source"])

	var alert UrgentAlert
	require.NoError(t, json.Unmarshal(msgs[0].Data, &alert))
	assert.Equal(t, UrgentAlert{ID: "e1", Subject: "Checkout down", Sender: "ops@example.com", Urgency: 9, Category: "OUTAGE"}, alert)
}

func TestPublishUrgentPushesToDevices(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := NewServiceWithClient(nil, "").WithDeviceAlerts(notifier, []string{"tok-1"})

	require.NoError(t, svc.PublishUrgent(context.Background(), urgentItem()))
	assert.Equal(t, []string{"tok-1"}, notifier.tokens)
	assert.Equal(t, "Checkout down", notifier.data.Body)
	assert.Equal(t, "e1", notifier.data.Data["email_id"])
	assert.Equal(t, "9", notifier.data.Data["urgency"])
}

func TestPublishUrgentReportsDeviceFailure(t *testing.T) {
	svc := NewServiceWithClient(nil, "").WithDeviceAlerts(&fakeNotifier{err: errors.New("quota")}, []string{"tok-1"})
	assert.Error(t, svc.PublishUrgent(context.Background(), urgentItem()))
}

func TestPublishUrgentWithoutSinks(t *testing.T) {
	svc := NewServiceWithClient(nil, "")
	assert.NoError(t, svc.PublishUrgent(context.Background(), urgentItem()))
	assert.NoError(t, svc.PublishUrgent(context.Background(), nil))
}

func TestHandleMessageDeduplicatesHistory(t *testing.T) {
	svc := NewServiceWithClient(nil, "")
	var calls []string
	svc.OnMailboxUpdate(func(ctx context.Context, emailAddress string) {
		calls = append(calls, emailAddress)
	})

	ctx := context.Background()
	svc.handleMessage(ctx, []byte(`{"emailAddress":"support@example.com","historyId":10}`))
	svc.handleMessage(ctx, []byte(`{"emailAddress":"support@example.com","historyId":10}`))
	svc.handleMessage(ctx, []byte(`{"emailAddress":"support@example.com","historyId":9}`))
	svc.handleMessage(ctx, []byte(`{"emailAddress":"support@example.com","historyId":11}`))
	svc.handleMessage(ctx, []byte(`not json`))
	svc.handleMessage(ctx, []byte(`{"historyId":12}`))

	assert.Equal(t, []string{"support@example.com", "support@example.com"}, calls)
}

func TestShortTopicName(t *testing.T) {
	assert.Equal(t, "gmail-updates", ShortTopicName("projects/p/topics/gmail-updates"))
	assert.Equal(t, "alerts", ShortTopicName("alerts"))
	assert.Equal(t, "", ShortTopicName(""))
}
