package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulink/tutorlink/internal/model"
)

// attach registers a pump-less client so tests can read delivered
// payloads straight from the send channel.
func attach(t *testing.T, h *Hub, userID uint64, buffer int) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan []byte, buffer), userID: userID}
	h.RegisterClient(c)
	return c
}

func recv(t *testing.T, c *Client) ChangeEvent {
	t.Helper()
	select {
	case payload := <-c.send:
		var ev ChangeEvent
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return ChangeEvent{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.send:
		t.Fatalf("unexpected delivery: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_DeliversOnlyToTargetUser(t *testing.T) {
	h := NewHub(nil)
	student := attach(t, h, 1, 8)
	tutor := attach(t, h, 2, 8)
	bystander := attach(t, h, 3, 8)

	ev := ChangeEvent{
		Kind:           EventMessageInserted,
		CounterpartyID: 2,
		MessageID:      10,
		Content:        "hello",
		OccurredAt:     time.Now().UTC(),
	}
	require.NoError(t, h.PublishToUser(context.Background(), 1, ev))

	got := recv(t, student)
	assert.Equal(t, EventMessageInserted, got.Kind)
	assert.Equal(t, uint64(2), got.CounterpartyID)
	assert.Equal(t, "hello", got.Content)

	assertSilent(t, tutor)
	assertSilent(t, bystander)
}

func TestHub_PerUserOrderingPreserved(t *testing.T) {
	h := NewHub(nil)
	c := attach(t, h, 1, 16)

	for i := 1; i <= 5; i++ {
		ev := ChangeEvent{
			Kind:           EventBookingStatusChanged,
			CounterpartyID: 2,
			BookingID:      uint64(i),
			BookingStatus:  model.StatusAccepted,
			OccurredAt:     time.Now().UTC(),
		}
		require.NoError(t, h.PublishToUser(context.Background(), 1, ev))
	}
	for i := 1; i <= 5; i++ {
		assert.Equal(t, uint64(i), recv(t, c).BookingID)
	}
}

func TestHub_FanOutToAllConnectionsOfUser(t *testing.T) {
	h := NewHub(nil)
	first := attach(t, h, 1, 8)
	second := attach(t, h, 1, 8)

	ev := ChangeEvent{Kind: EventMessageRead, CounterpartyID: 2, OccurredAt: time.Now().UTC()}
	require.NoError(t, h.PublishToUser(context.Background(), 1, ev))

	assert.Equal(t, EventMessageRead, recv(t, first).Kind)
	assert.Equal(t, EventMessageRead, recv(t, second).Kind)
}

func TestHub_SlowClientIsEvictedNotBlocking(t *testing.T) {
	h := NewHub(nil)
	slow := attach(t, h, 1, 1)
	healthy := attach(t, h, 1, 8)

	// Two publishes overflow the slow client's single-slot buffer; the
	// hub must drop it and keep delivering to the healthy connection.
	for i := 1; i <= 3; i++ {
		ev := ChangeEvent{Kind: EventMessageInserted, CounterpartyID: 2, MessageID: uint64(i)}
		require.NoError(t, h.PublishToUser(context.Background(), 1, ev))
	}

	for i := 1; i <= 3; i++ {
		assert.Equal(t, uint64(i), recv(t, healthy).MessageID)
	}
	// The slow client received the first event, then was closed.
	assert.Equal(t, uint64(1), recv(t, slow).MessageID)
	_, open := <-slow.send
	assert.False(t, open, "expected slow client channel to be closed")
}

func TestParseUserChannel(t *testing.T) {
	cases := []struct {
		channel string
		id      uint64
		ok      bool
	}{
		{"user:42", 42, true},
		{"user:0", 0, false},
		{"user:", 0, false},
		{"group:42", 0, false},
		{"user:abc", 0, false},
	}
	for _, tc := range cases {
		id, ok := parseUserChannel(tc.channel)
		assert.Equal(t, tc.ok, ok, tc.channel)
		assert.Equal(t, tc.id, id, tc.channel)
	}
}
