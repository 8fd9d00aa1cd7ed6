package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidswitch/backend/internal/models"
)

func testClient() *Client {
	return &Client{ID: uuid.New().String(), send: make(chan WSMessage, 4)}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	c := testClient()

	hub.Register(c)
	assert.Equal(t, 1, hub.Connected())

	hub.Unregister(c)
	assert.Equal(t, 0, hub.Connected())
}

func TestPublishEventReachesClients(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	c := testClient()
	hub.Register(c)

	from, to := "a", "b"
	pos := 12.0
	hub.PublishEvent("P001", models.Event{
		SessionID:        uuid.New(),
		EventType:        models.EventSwitch,
		FromVideoID:      &from,
		ToVideoID:        &to,
		PlaybackPosition: &pos,
		OccurredAt:       time.Now(),
	})

	select {
	case msg := <-c.send:
		assert.Equal(t, "study_event", msg.Event)
		var fe FeedEvent
		require.NoError(t, json.Unmarshal(msg.Data, &fe))
		assert.Equal(t, "P001", fe.ParticipantID)
		assert.Equal(t, "switch", fe.EventType)
		require.NotNil(t, fe.FromVideoID)
		assert.Equal(t, "a", *fe.FromVideoID)
		require.NotNil(t, fe.PlaybackPosition)
		assert.Equal(t, 12.0, *fe.PlaybackPosition)
	default:
		t.Fatal("no feed message delivered")
	}
}

func TestPublishEventSkipsFullBuffers(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	c := &Client{ID: uuid.New().String(), send: make(chan WSMessage)} // no buffer, no reader
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		hub.PublishEvent("P001", models.Event{SessionID: uuid.New(), EventType: models.EventPlay, OccurredAt: time.Now()})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}
