package sessions

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
	"github.com/vidswitch/backend/internal/videos"
	"github.com/vidswitch/backend/pkg/response"
)

type fakeStore struct {
	completeErr   error
	completed     *models.Session
	created       *models.Session
	createdFor    uuid.UUID
	createdVideo  string
	snapCondition models.Condition
}

func (f *fakeStore) Create(_ context.Context, participantID uuid.UUID, videoID string, condition models.Condition) (*models.Session, error) {
	f.createdFor = participantID
	f.createdVideo = videoID
	f.snapCondition = condition
	f.created = &models.Session{
		ID:            uuid.New(),
		ParticipantID: participantID,
		VideoID:       videoID,
		Condition:     condition,
	}
	return f.created, nil
}

func (f *fakeStore) Complete(_ context.Context, id, participantID uuid.UUID) (*models.Session, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return f.completed, nil
}

func (f *fakeStore) ListByParticipant(_ context.Context, _ uuid.UUID) ([]models.SessionSummary, error) {
	return nil, nil
}

func (f *fakeStore) ListAll(_ context.Context) ([]models.SessionSummary, error) {
	return nil, nil
}

type fakeDirectory struct {
	participant *models.Participant
}

func (f *fakeDirectory) GetByID(_ context.Context, _ uuid.UUID) (*models.Participant, error) {
	return f.participant, nil
}

type fakeCatalog struct {
	known map[string]bool
}

func (f *fakeCatalog) GetByID(_ context.Context, id string) (*models.Video, error) {
	if !f.known[id] {
		return nil, videos.ErrNotFound
	}
	return &models.Video{ID: id}, nil
}

func newCompleteContext(t *testing.T, sessionID string, participantID uuid.UUID) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPut, "/sessions/"+sessionID+"/complete", nil)
	c.Params = gin.Params{{Key: "id", Value: sessionID}}
	c.Set(middleware.ContextUserID, participantID)
	return c, w
}

func newStartContext(t *testing.T, videoID string, participantID uuid.UUID) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	b, err := json.Marshal(StartRequest{VideoID: videoID})
	require.NoError(t, err)
	c.Request = httptest.NewRequest(http.MethodPost, "/sessions/start", bytes.NewReader(b))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserID, participantID)
	return c, w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) response.Body {
	t.Helper()
	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCompleteAlreadyCompletedIsConflict(t *testing.T) {
	store := &fakeStore{completeErr: ErrAlreadyCompleted}
	h := NewHandler(store, nil, nil, nil)

	c, w := newCompleteContext(t, uuid.New().String(), uuid.New())
	h.Complete(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	body := decodeBody(t, w)
	assert.False(t, body.Success)
	assert.Equal(t, "session already completed", body.Error)
}

func TestCompleteForeignSessionIsNotFound(t *testing.T) {
	store := &fakeStore{completeErr: ErrNotFound}
	h := NewHandler(store, nil, nil, nil)

	c, w := newCompleteContext(t, uuid.New().String(), uuid.New())
	h.Complete(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "session not found", body.Error)
}

func TestCompleteInvalidIDIsBadRequest(t *testing.T) {
	store := &fakeStore{}
	h := NewHandler(store, nil, nil, nil)

	c, w := newCompleteContext(t, "not-a-uuid", uuid.New())
	h.Complete(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteSuccess(t *testing.T) {
	participantID := uuid.New()
	store := &fakeStore{completed: &models.Session{ID: uuid.New(), ParticipantID: participantID}}
	h := NewHandler(store, nil, nil, nil)

	c, w := newCompleteContext(t, store.completed.ID.String(), participantID)
	h.Complete(c)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.True(t, body.Success)
}

func TestStartUnknownVideoIsNotFound(t *testing.T) {
	store := &fakeStore{}
	dir := &fakeDirectory{participant: &models.Participant{ID: uuid.New(), ParticipantID: "P001", Condition: models.ConditionSwitching}}
	h := NewHandler(store, dir, &fakeCatalog{known: map[string]bool{}}, nil)

	c, w := newStartContext(t, "nope", uuid.New())
	h.Start(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Nil(t, store.created)
}

func TestStartSnapshotsParticipantCondition(t *testing.T) {
	participantID := uuid.New()
	store := &fakeStore{}
	dir := &fakeDirectory{participant: &models.Participant{ID: participantID, ParticipantID: "P001", Condition: models.ConditionNonSwitching}}
	h := NewHandler(store, dir, &fakeCatalog{known: map[string]bool{"video-1": true}}, nil)

	c, w := newStartContext(t, "video-1", participantID)
	h.Start(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, participantID, store.createdFor)
	assert.Equal(t, "video-1", store.createdVideo)
	assert.Equal(t, models.ConditionNonSwitching, store.snapCondition)
}
