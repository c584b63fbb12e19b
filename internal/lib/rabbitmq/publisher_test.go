package rabbitmq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

func TestPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	uri := amqpURIForTest(ctx, t)

	conn, err := Connect(ctx, uri, 3, time.Second)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	ch, err := SetupChannel(conn, GetNotificationQueues())
	require.NoError(t, err)
	_, err = ch.QueuePurge(PaymentQueue, false)
	require.NoError(t, err)

	publisher := NewPublisher(ch)
	defer func() { _ = publisher.Close() }()

	msg := models.PaymentNotification{PaymentID: "pay-1", Username: "bob", Email: "bob@example.com", PlanDays: 30}
	require.NoError(t, publisher.Publish(ctx, PaymentRoutingKey, msg))

	readCh, err := conn.Channel()
	require.NoError(t, err)
	defer func() { _ = readCh.Close() }()

	deliveries, err := readCh.Consume(PaymentQueue, "test-reader", true, false, false, false, nil)
	require.NoError(t, err)

	select {
	case d := <-deliveries:
		var got models.PaymentNotification
		require.NoError(t, json.Unmarshal(d.Body, &got))
		assert.Equal(t, msg, got)
		assert.Equal(t, "application/json", d.ContentType)
		assert.Equal(t, amqp.Persistent, d.DeliveryMode)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishMessage_MarshalError(t *testing.T) {
	bad := struct {
		Ch chan int `json:"ch"`
	}{Ch: make(chan int)}

	err := PublishMessage(nil, NotificationsExchange, PaymentRoutingKey, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq.PublishMessage")
}

func TestPublisher_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &Publisher{exchange: NotificationsExchange}
	err := p.Publish(ctx, PaymentRoutingKey, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
