package policy

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/vidswitch/backend/internal/models"
)

var (
	// ErrAlreadyCompleted is returned when selecting an item that was
	// finished before. Finished items are permanently locked.
	ErrAlreadyCompleted = errors.New("item already completed")
	// ErrSwitchNotAllowed is returned when the condition forbids leaving
	// the active item for another one.
	ErrSwitchNotAllowed = errors.New("switching not allowed in this condition")
	// ErrSeekNotAllowed is returned when a forward seek past the high-water
	// mark is rejected.
	ErrSeekNotAllowed = errors.New("seek past watched position not allowed")
)

// Rules describes what a condition permits. Registered per condition name so
// new conditions slot in without touching the engine.
type Rules struct {
	FreeSwitching bool
	FreeSeeking   bool
}

var (
	rulesMu          sync.RWMutex
	rulesByCondition = map[models.Condition]Rules{
		models.ConditionSwitching:    {FreeSwitching: true, FreeSeeking: true},
		models.ConditionNonSwitching: {FreeSwitching: false, FreeSeeking: false},
	}
)

// RegisterRules binds playback rules to a condition name.
func RegisterRules(c models.Condition, r Rules) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	rulesByCondition[c] = r
}

// RulesFor returns the rules for a condition. Unknown conditions get the
// restrictive default.
func RulesFor(c models.Condition) Rules {
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	if r, ok := rulesByCondition[c]; ok {
		return r
	}
	return Rules{}
}

// State is the persisted policy state for one (participant, condition) pair.
type State struct {
	Completed []string           `json:"completed"`
	Active    string             `json:"active,omitempty"`
	HighWater map[string]float64 `json:"high_water"`
}

// Engine enforces per-condition playback policy. Pure decision logic over
// in-memory state; persistence goes through a Store.
type Engine struct {
	participant string
	condition   models.Condition
	rules       Rules
	state       State
	completed   map[string]bool
	store       Store
	logger      *zap.Logger
}

// NewEngine creates a policy engine for one participant under one condition,
// restoring any state the store holds for that pair.
func NewEngine(participant string, condition models.Condition, store Store, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		participant: participant,
		condition:   condition,
		rules:       RulesFor(condition),
		state:       State{HighWater: make(map[string]float64)},
		completed:   make(map[string]bool),
		store:       store,
		logger:      logger,
	}
	if store != nil {
		st, err := store.Load(participant, string(condition))
		if err != nil {
			return nil, err
		}
		if st != nil {
			e.state = *st
			if e.state.HighWater == nil {
				e.state.HighWater = make(map[string]float64)
			}
			for _, id := range e.state.Completed {
				e.completed[id] = true
			}
		}
	}
	return e, nil
}

// Condition returns the condition this engine enforces.
func (e *Engine) Condition() models.Condition { return e.condition }

// Active returns the currently active item id, or empty.
func (e *Engine) Active() string { return e.state.Active }

// SelectItem decides whether id may become the active item. Completed items
// are never reselectable; under a no-switching condition only the active
// item (or a first selection) is legal. No state changes on rejection.
func (e *Engine) SelectItem(id string) error {
	if e.completed[id] {
		return ErrAlreadyCompleted
	}
	if !e.rules.FreeSwitching && e.state.Active != "" && e.state.Active != id {
		return ErrSwitchNotAllowed
	}
	e.state.Active = id
	e.persist()
	return nil
}

// ClampSeek validates a seek to target for the given item. When forward
// scrubbing is disallowed the returned position is clamped to the high-water
// mark and ErrSeekNotAllowed reports the rejection; callers resume playback
// at the returned position either way.
func (e *Engine) ClampSeek(id string, target float64) (float64, error) {
	if e.rules.FreeSeeking {
		return target, nil
	}
	hw := e.state.HighWater[id]
	if target > hw {
		e.logger.Debug("seek rejected",
			zap.String("item", id),
			zap.Float64("target", target),
			zap.Float64("high_water", hw))
		return hw, ErrSeekNotAllowed
	}
	return target, nil
}

// RecordProgress advances the high-water mark for an item. Only natural
// playback progression moves it; it never goes backwards.
func (e *Engine) RecordProgress(id string, position float64) {
	if position > e.state.HighWater[id] {
		e.state.HighWater[id] = position
		e.persist()
	}
}

// HighWater returns the furthest natural position reached for an item.
func (e *Engine) HighWater(id string) float64 {
	return e.state.HighWater[id]
}

// MarkCompleted locks an item against replay and clears the active slot.
// Idempotent: marking an already-completed item is a no-op.
func (e *Engine) MarkCompleted(id string) {
	if e.completed[id] {
		if e.state.Active == id {
			e.state.Active = ""
			e.persist()
		}
		return
	}
	e.completed[id] = true
	e.state.Completed = append(e.state.Completed, id)
	if e.state.Active == id {
		e.state.Active = ""
	}
	e.persist()
}

// CanReplay reports whether an item may be watched again. Always false once
// completed, under every condition.
func (e *Engine) CanReplay(id string) bool {
	return !e.completed[id]
}

// CompletedItems returns the ids finished so far, in completion order.
func (e *Engine) CompletedItems() []string {
	out := make([]string, len(e.state.Completed))
	copy(out, e.state.Completed)
	return out
}

func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	if err := e.store.Save(e.participant, string(e.condition), e.state); err != nil {
		e.logger.Warn("policy state save failed", zap.Error(err))
	}
}
