package player

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vidswitch/backend/internal/models"
	"github.com/vidswitch/backend/internal/policy"
	"github.com/vidswitch/backend/internal/studyapi"
	"github.com/vidswitch/backend/internal/telemetry"
)

// SessionAPI is the server boundary the controller needs: open and close
// viewing sessions.
type SessionAPI interface {
	StartSession(ctx context.Context, videoID string) (*models.Session, error)
	CompleteSession(ctx context.Context, sessionID string) (*models.Session, error)
}

// Controller ties the policy engine, the session boundary, and the telemetry
// queue together for one participant's playback. If the server is
// unreachable when a session should open, playback continues locally with no
// session id and telemetry for that play-through stays unattributed (and is
// therefore dropped by the queue).
type Controller struct {
	engine  *policy.Engine
	api     SessionAPI
	queue   *telemetry.Queue
	logger  *zap.Logger
	session string
}

// NewController creates a playback controller.
func NewController(engine *policy.Engine, api SessionAPI, queue *telemetry.Queue, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{engine: engine, api: api, queue: queue, logger: logger}
}

// SessionID returns the current session id, empty in degraded mode or when
// nothing is active.
func (p *Controller) SessionID() string { return p.session }

// Active returns the active video id, empty when nothing is selected.
func (p *Controller) Active() string { return p.engine.Active() }

// Select activates a video if policy permits and opens a session for it.
// Policy rejections are returned unchanged; a session-open failure is not an
// error, the video plays locally without attribution.
func (p *Controller) Select(ctx context.Context, videoID string) error {
	if err := p.engine.SelectItem(videoID); err != nil {
		return err
	}
	p.openSession(ctx, videoID)
	return nil
}

func (p *Controller) openSession(ctx context.Context, videoID string) {
	s, err := p.api.StartSession(ctx, videoID)
	if err != nil {
		p.logger.Warn("session open failed, playing unattributed",
			zap.String("video_id", videoID), zap.Error(err))
		p.session = ""
		return
	}
	p.session = s.ID.String()
}

// Play records a play event at the given position.
func (p *Controller) Play(ctx context.Context, position float64) {
	p.enqueue(ctx, telemetry.Event{
		EventType:        string(models.EventPlay),
		PlaybackPosition: &position,
	})
}

// Pause records a pause event with the pause duration in seconds.
func (p *Controller) Pause(ctx context.Context, position, duration float64) {
	p.enqueue(ctx, telemetry.Event{
		EventType:        string(models.EventPause),
		Duration:         &duration,
		PlaybackPosition: &position,
	})
}

// Seek asks policy to validate a seek and returns the position playback must
// resume at. Under a clamped rejection the returned position is the
// high-water mark and policy.ErrSeekNotAllowed reports it.
func (p *Controller) Seek(target float64) (float64, error) {
	return p.engine.ClampSeek(p.engine.Active(), target)
}

// Progress reports natural playback progression, advancing the high-water
// mark.
func (p *Controller) Progress(position float64) {
	active := p.engine.Active()
	if active == "" {
		return
	}
	p.engine.RecordProgress(active, position)
}

// Switch moves to another video, recording a switch event from the old one
// and opening a fresh session. The old session stays open; the old video
// remains incomplete and reselectable. Policy rejects this under conditions
// without free switching.
func (p *Controller) Switch(ctx context.Context, toVideoID string, position float64) error {
	from := p.engine.Active()
	if from == toVideoID {
		return nil
	}
	if err := p.engine.SelectItem(toVideoID); err != nil {
		return err
	}
	fromID, toID := from, toVideoID
	p.enqueue(ctx, telemetry.Event{
		EventType:        string(models.EventSwitch),
		FromVideoID:      &fromID,
		ToVideoID:        &toID,
		PlaybackPosition: &position,
	})
	p.openSession(ctx, toVideoID)
	return nil
}

// Ended handles the natural end of the active video: the session is closed
// (a duplicate completion is tolerated), the item is locked against replay,
// and a complete event is recorded.
func (p *Controller) Ended(ctx context.Context, position float64) {
	active := p.engine.Active()
	if active == "" {
		return
	}
	p.enqueue(ctx, telemetry.Event{
		EventType:        string(models.EventComplete),
		PlaybackPosition: &position,
	})
	if p.session != "" {
		if _, err := p.api.CompleteSession(ctx, p.session); err != nil {
			if errors.Is(err, studyapi.ErrAlreadyCompleted) {
				p.logger.Debug("session was already completed", zap.String("session_id", p.session))
			} else {
				p.logger.Warn("session complete failed", zap.String("session_id", p.session), zap.Error(err))
			}
		}
	}
	p.engine.MarkCompleted(active)
	p.session = ""
}

func (p *Controller) enqueue(ctx context.Context, e telemetry.Event) {
	e.SessionID = p.session
	p.queue.Enqueue(ctx, e)
}
