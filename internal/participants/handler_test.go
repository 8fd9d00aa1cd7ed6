package participants

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

	"github.com/vidswitch/backend/internal/models"
	"github.com/vidswitch/backend/pkg/response"
)

type fakeStore struct {
	createErr error
	created   *models.Participant
}

func (f *fakeStore) Create(_ context.Context, participantID string, condition models.Condition) (*models.Participant, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = &models.Participant{ID: uuid.New(), ParticipantID: participantID, Condition: condition}
	return f.created, nil
}

func (f *fakeStore) GetByID(_ context.Context, _ uuid.UUID) (*models.Participant, error) {
	return nil, ErrNotFound
}

func (f *fakeStore) GetByParticipantID(_ context.Context, _ string) (*models.Participant, error) {
	return nil, ErrNotFound
}

func (f *fakeStore) List(_ context.Context) ([]models.ParticipantSummary, error) {
	return nil, nil
}

func newCreateContext(t *testing.T, req CreateRequest) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	b, err := json.Marshal(req)
	require.NoError(t, err)
	c.Request = httptest.NewRequest(http.MethodPost, "/participants", bytes.NewReader(b))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestCreateDuplicateParticipantIDIsConflict(t *testing.T) {
	store := &fakeStore{createErr: ErrDuplicate}
	h := NewHandler(store, nil, nil)

	c, w := newCreateContext(t, CreateRequest{ParticipantID: "P001", Condition: "switching"})
	h.Create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "participant id already exists", body.Error)
}

func TestCreateUnknownConditionIsBadRequest(t *testing.T) {
	store := &fakeStore{}
	h := NewHandler(store, nil, nil)

	c, w := newCreateContext(t, CreateRequest{ParticipantID: "P001", Condition: "free_for_all"})
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, store.created)
}

func TestCreateParticipant(t *testing.T) {
	store := &fakeStore{}
	h := NewHandler(store, nil, nil)

	c, w := newCreateContext(t, CreateRequest{ParticipantID: "P002", Condition: "non_switching"})
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, store.created)
	assert.Equal(t, models.ConditionNonSwitching, store.created.Condition)
}
