package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"payvost/internal/domain"
	"payvost/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Name() string {
	return m.Called().String(0)
}

func (m *MockSink) Deliver(ctx context.Context, ev *Event) error {
	return m.Called(ctx, ev).Error(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(ctx, msgs).Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

func succeededIntent() *domain.PaymentIntent {
	return &domain.PaymentIntent{
		ID:        uuid.New(),
		Reference: "pi_abc123",
		UserID:    uuid.New(),
		Amount:    decimal.NewFromInt(5000),
		Currency:  domain.NGN,
		Provider:  domain.ProviderPaystack,
		Status:    domain.IntentStatusSucceeded,
		Metadata:  domain.Metadata{"customer_email": "ada@example.com"},
	}
}

func TestNewIntentEvent(t *testing.T) {
	ev, ok := NewIntentEvent(succeededIntent())
	require.True(t, ok)
	assert.Equal(t, EventPaymentSucceeded, ev.Type)
	assert.Equal(t, "ada@example.com", ev.Email)
	assert.Equal(t, "pi_abc123", ev.IntentReference)

	pending := succeededIntent()
	pending.Status = domain.IntentStatusProcessing
	_, ok = NewIntentEvent(pending)
	assert.False(t, ok)
}

func TestDispatcher_ContinuesAfterSinkFailure(t *testing.T) {
	first := new(MockSink)
	second := new(MockSink)
	ev, _ := NewIntentEvent(succeededIntent())

	first.On("Name").Return("first")
	first.On("Deliver", mock.Anything, ev).Return(errors.New("smtp down"))
	second.On("Name").Return("second")
	second.On("Deliver", mock.Anything, ev).Return(nil)

	d := NewDispatcher(logger.NewNop(), first, nil, second)
	d.Notify(context.Background(), ev)

	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestEmailSink(t *testing.T) {
	m := new(MockMailer)
	sink := NewEmailSink(m, logger.NewNop())

	ev, _ := NewIntentEvent(succeededIntent())
	m.On("Send", "ada@example.com", "Payment Received", mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "5000.00 NGN")
	})).Return(nil)
	require.NoError(t, sink.Deliver(context.Background(), ev))

	ev.Email = ""
	require.NoError(t, sink.Deliver(context.Background(), ev))
	m.AssertNumberOfCalls(t, "Send", 1)
}

func TestRender_FailureReason(t *testing.T) {
	intent := succeededIntent()
	intent.Status = domain.IntentStatusFailed
	intent.FailureReason = "card declined"
	ev, _ := NewIntentEvent(intent)

	subject, body := render(ev)
	assert.Equal(t, "Payment Failed", subject)
	assert.Contains(t, body, "card declined")
}

func TestKafkaSink_KeysByIntentReference(t *testing.T) {
	w := new(MockWriter)
	sink := NewKafkaSink(w)
	ev, _ := NewIntentEvent(succeededIntent())

	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || string(msgs[0].Key) != "pi_abc123" {
			return false
		}
		var decoded map[string]interface{}
		if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil {
			return false
		}
		_, hasEmail := decoded["email"]
		return decoded["type"] == "payment.succeeded" && !hasEmail
	})).Return(nil)

	require.NoError(t, sink.Deliver(context.Background(), ev))
	w.AssertExpectations(t)
}

func TestHub_BroadcastsToClients(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	ev, _ := NewIntentEvent(succeededIntent())
	require.NoError(t, hub.Deliver(context.Background(), ev))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]interface{}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "pi_abc123", got["intent_reference"])

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

type fakeReader struct {
	msgs []kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) Close() error { return nil }

func TestRelay_DeliversPublishedEvents(t *testing.T) {
	ev := &Event{ID: uuid.New(), Type: EventPaymentSucceeded, IntentReference: "pi_relay"}
	payload, err := ev.marshal()
	require.NoError(t, err)

	reader := &fakeReader{msgs: []kafka.Message{
		{Value: []byte("not json")},
		{Value: payload},
	}}
	sink := new(MockSink)
	delivered := make(chan struct{})
	sink.On("Deliver", mock.Anything, mock.MatchedBy(func(e *Event) bool {
		return e.IntentReference == "pi_relay"
	})).Run(func(mock.Arguments) { close(delivered) }).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewRelay(reader, sink, logger.NewNop()).Run(ctx) }()

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("event not relayed")
	}
	cancel()
	assert.NoError(t, <-done)
	sink.AssertExpectations(t)
}
