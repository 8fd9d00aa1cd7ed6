package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidswitch/backend/internal/models"
	"github.com/vidswitch/backend/internal/policy"
	"github.com/vidswitch/backend/internal/studyapi"
	"github.com/vidswitch/backend/internal/telemetry"
)

type fakeAPI struct {
	mu        sync.Mutex
	sessions  map[string]string // session id -> video id
	completed map[string]bool
	startErr  error
	sent      []telemetry.Event
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{sessions: make(map[string]string), completed: make(map[string]bool)}
}

func (f *fakeAPI) StartSession(ctx context.Context, videoID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	id := uuid.New()
	f.sessions[id.String()] = videoID
	return &models.Session{ID: id, VideoID: videoID, StartedAt: time.Now()}, nil
}

func (f *fakeAPI) CompleteSession(ctx context.Context, sessionID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	videoID, ok := f.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("complete: %w", studyapi.ErrNotFound)
	}
	if f.completed[sessionID] {
		return nil, fmt.Errorf("complete: %w", studyapi.ErrAlreadyCompleted)
	}
	f.completed[sessionID] = true
	id, _ := uuid.Parse(sessionID)
	now := time.Now()
	return &models.Session{ID: id, VideoID: videoID, CompletedAt: &now}, nil
}

func (f *fakeAPI) Send(ctx context.Context, batch []telemetry.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, batch...)
	return nil
}

func newTestController(t *testing.T, condition models.Condition, api *fakeAPI) (*Controller, *telemetry.Queue) {
	t.Helper()
	engine, err := policy.NewEngine("P001", condition, nil, nil)
	require.NoError(t, err)
	queue := telemetry.NewQueue(api, time.Hour, 50, nil)
	return NewController(engine, api, queue, nil), queue
}

func TestSelectOpensSession(t *testing.T) {
	api := newFakeAPI()
	ctrl, _ := newTestController(t, models.ConditionSwitching, api)

	require.NoError(t, ctrl.Select(context.Background(), "a"))
	assert.Equal(t, "a", ctrl.Active())
	assert.NotEmpty(t, ctrl.SessionID())
	assert.Equal(t, "a", api.sessions[ctrl.SessionID()])
}

func TestSelectRejectedByPolicyOpensNothing(t *testing.T) {
	api := newFakeAPI()
	ctrl, _ := newTestController(t, models.ConditionNonSwitching, api)
	ctx := context.Background()

	require.NoError(t, ctrl.Select(ctx, "a"))
	err := ctrl.Select(ctx, "b")
	assert.ErrorIs(t, err, policy.ErrSwitchNotAllowed)
	assert.Len(t, api.sessions, 1, "no session may open for a rejected selection")
}

func TestDegradedModeWhenSessionOpenFails(t *testing.T) {
	api := newFakeAPI()
	api.startErr = errors.New("connection refused")
	ctrl, queue := newTestController(t, models.ConditionSwitching, api)
	ctx := context.Background()

	// playback proceeds locally even though the boundary is down
	require.NoError(t, ctrl.Select(ctx, "a"))
	assert.Empty(t, ctrl.SessionID())

	// telemetry from the unattributed play-through is dropped, not sent
	ctrl.Play(ctx, 0)
	ctrl.Pause(ctx, 5, 2)
	queue.Flush(ctx)
	assert.Empty(t, api.sent)
}

func TestEndedCompletesSessionAndLocksItem(t *testing.T) {
	api := newFakeAPI()
	ctrl, queue := newTestController(t, models.ConditionSwitching, api)
	ctx := context.Background()

	require.NoError(t, ctrl.Select(ctx, "a"))
	sessionID := ctrl.SessionID()
	ctrl.Progress(30)
	ctrl.Ended(ctx, 30)

	assert.True(t, api.completed[sessionID])
	assert.Empty(t, ctrl.SessionID())
	assert.ErrorIs(t, ctrl.Select(ctx, "a"), policy.ErrAlreadyCompleted)

	queue.Flush(ctx)
	require.Len(t, api.sent, 1)
	e := api.sent[0]
	assert.Equal(t, "complete", e.EventType)
	assert.Equal(t, sessionID, e.SessionID)
	require.NotNil(t, e.PlaybackPosition)
	assert.Equal(t, 30.0, *e.PlaybackPosition)
}

func TestEndedToleratesAlreadyCompleted(t *testing.T) {
	api := newFakeAPI()
	ctrl, _ := newTestController(t, models.ConditionSwitching, api)
	ctx := context.Background()

	require.NoError(t, ctrl.Select(ctx, "a"))
	api.completed[ctrl.SessionID()] = true

	// must not panic or leave the item unlocked
	ctrl.Ended(ctx, 10)
	assert.ErrorIs(t, ctrl.Select(ctx, "a"), policy.ErrAlreadyCompleted)
}

func TestSwitchEmitsEventAndOpensNewSession(t *testing.T) {
	api := newFakeAPI()
	ctrl, queue := newTestController(t, models.ConditionSwitching, api)
	ctx := context.Background()

	require.NoError(t, ctrl.Select(ctx, "a"))
	first := ctrl.SessionID()

	require.NoError(t, ctrl.Switch(ctx, "b", 12.0))
	assert.Equal(t, "b", ctrl.Active())
	assert.NotEqual(t, first, ctrl.SessionID())

	queue.Flush(ctx)
	require.Len(t, api.sent, 1)
	e := api.sent[0]
	assert.Equal(t, "switch", e.EventType)
	assert.Equal(t, first, e.SessionID, "switch event belongs to the session being left")
	require.NotNil(t, e.FromVideoID)
	require.NotNil(t, e.ToVideoID)
	assert.Equal(t, "a", *e.FromVideoID)
	assert.Equal(t, "b", *e.ToVideoID)
	require.NotNil(t, e.PlaybackPosition)
	assert.Equal(t, 12.0, *e.PlaybackPosition)
}

func TestSwitchRejectedUnderNonSwitching(t *testing.T) {
	api := newFakeAPI()
	ctrl, queue := newTestController(t, models.ConditionNonSwitching, api)
	ctx := context.Background()

	require.NoError(t, ctrl.Select(ctx, "a"))
	err := ctrl.Switch(ctx, "b", 5.0)
	assert.ErrorIs(t, err, policy.ErrSwitchNotAllowed)
	assert.Equal(t, "a", ctrl.Active())

	queue.Flush(ctx)
	assert.Empty(t, api.sent, "rejected switch must not emit telemetry")
}

func TestSeekClampFlowsThroughController(t *testing.T) {
	api := newFakeAPI()
	ctrl, _ := newTestController(t, models.ConditionNonSwitching, api)
	ctx := context.Background()

	require.NoError(t, ctrl.Select(ctx, "a"))
	ctrl.Progress(30)

	pos, err := ctrl.Seek(90)
	assert.ErrorIs(t, err, policy.ErrSeekNotAllowed)
	assert.Equal(t, 30.0, pos)
}
