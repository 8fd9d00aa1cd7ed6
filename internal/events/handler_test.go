package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidswitch/backend/internal/middleware"
	"github.com/vidswitch/backend/internal/models"
	"github.com/vidswitch/backend/pkg/response"
)

type fakeStore struct {
	owned       int
	countCalls  int
	insertCalls int
	inserted    []NewEvent
}

func (f *fakeStore) CountOwnedSessions(_ context.Context, sessionIDs []uuid.UUID, _ uuid.UUID) (int, error) {
	f.countCalls++
	return f.owned, nil
}

func (f *fakeStore) InsertBatch(_ context.Context, batch []NewEvent) ([]models.Event, error) {
	f.insertCalls++
	f.inserted = batch
	out := make([]models.Event, len(batch))
	for i, ne := range batch {
		out[i] = models.Event{
			ID:         uuid.New(),
			SessionID:  ne.SessionID,
			EventType:  ne.EventType,
			OccurredAt: ne.OccurredAt,
		}
	}
	return out, nil
}

func (f *fakeStore) ListBySession(_ context.Context, _ uuid.UUID) ([]models.Event, error) {
	return nil, nil
}

func (f *fakeStore) ListAll(_ context.Context, _ Filter) ([]models.EventRow, error) {
	return nil, nil
}

type fakeFeed struct {
	published []models.Event
}

func (f *fakeFeed) PublishEvent(_ string, e models.Event) {
	f.published = append(f.published, e)
}

func newBatchContext(t *testing.T, payload any, participantID uuid.UUID) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	c.Request = httptest.NewRequest(http.MethodPost, "/events/track-batch", bytes.NewReader(b))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserID, participantID)
	c.Set(middleware.ContextUserLabel, "P001")
	return c, w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) response.Body {
	t.Helper()
	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestTrackBatchRejectsForeignSession(t *testing.T) {
	store := &fakeStore{owned: 1}
	h := NewHandler(store, nil, nil, nil, nil)

	mine := uuid.New()
	someoneElses := uuid.New()
	c, w := newBatchContext(t, BatchRequest{Events: []IncomingEvent{
		{SessionID: mine, EventType: "play"},
		{SessionID: someoneElses, EventType: "pause"},
	}}, uuid.New())

	h.TrackBatch(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, store.insertCalls)
	body := decodeBody(t, w)
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "do not belong")
}

func TestTrackBatchRejectsUnknownEventType(t *testing.T) {
	store := &fakeStore{owned: 1}
	h := NewHandler(store, nil, nil, nil, nil)

	c, w := newBatchContext(t, BatchRequest{Events: []IncomingEvent{
		{SessionID: uuid.New(), EventType: "buffering"},
	}}, uuid.New())

	h.TrackBatch(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, store.countCalls)
	assert.Equal(t, 0, store.insertCalls)
	body := decodeBody(t, w)
	assert.Contains(t, body.Error, "buffering")
}

func TestTrackBatchRejectsEmptyBatch(t *testing.T) {
	store := &fakeStore{}
	h := NewHandler(store, nil, nil, nil, nil)

	c, w := newBatchContext(t, BatchRequest{Events: []IncomingEvent{}}, uuid.New())

	h.TrackBatch(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, store.insertCalls)
}

func TestTrackBatchPersistsOwnedBatch(t *testing.T) {
	store := &fakeStore{owned: 1}
	feed := &fakeFeed{}
	h := NewHandler(store, nil, nil, feed, nil)

	sessionID := uuid.New()
	c, w := newBatchContext(t, BatchRequest{Events: []IncomingEvent{
		{SessionID: sessionID, EventType: "play"},
		{SessionID: sessionID, EventType: "pause"},
		{SessionID: sessionID, EventType: "complete"},
	}}, uuid.New())

	h.TrackBatch(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, store.insertCalls)
	assert.Len(t, store.inserted, 3)
	assert.Len(t, feed.published, 3)

	body := decodeBody(t, w)
	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), data["count"])
}

func TestTrackSingleEvent(t *testing.T) {
	store := &fakeStore{owned: 1}
	h := NewHandler(store, nil, nil, nil, nil)

	c, w := newBatchContext(t, IncomingEvent{SessionID: uuid.New(), EventType: "play"}, uuid.New())

	h.Track(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, store.insertCalls)
	assert.Len(t, store.inserted, 1)
}
