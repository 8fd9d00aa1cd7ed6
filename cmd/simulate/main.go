// Package main runs a headless scripted participant against a live server.
// Used for experiment dry-runs: it exercises login, the video catalog,
// policy enforcement, session lifecycle, and telemetry batching end to end.
package main

import (
	"context"
	"errors"
	"flag"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vidswitch/backend/internal/models"
	"github.com/vidswitch/backend/internal/player"
	"github.com/vidswitch/backend/internal/policy"
	"github.com/vidswitch/backend/internal/studyapi"
	"github.com/vidswitch/backend/internal/telemetry"
)

func main() {
	var (
		serverURL   = flag.String("server", "http://localhost:8080", "study server base URL")
		participant = flag.String("participant", "P001", "participant id to log in as")
		stateDir    = flag.String("state-dir", ".simstate", "directory for persisted policy state")
		stepSeconds = flag.Float64("step", 5, "seconds of playback progress per tick")
	)
	flag.Parse()

	logger := newLogger()
	defer logger.Sync()

	ctx := context.Background()
	api := studyapi.New(*serverURL, logger)

	p, err := api.Login(ctx, *participant)
	if err != nil {
		logger.Fatal("login", zap.Error(err))
	}
	logger.Info("logged in",
		zap.String("participant", p.ParticipantID),
		zap.String("condition", string(p.Condition)))

	catalog, err := api.Videos(ctx)
	if err != nil {
		logger.Fatal("load catalog", zap.Error(err))
	}
	if len(catalog) == 0 {
		logger.Fatal("empty video catalog")
	}

	store, err := policy.NewFileStore(*stateDir)
	if err != nil {
		logger.Fatal("state store", zap.Error(err))
	}
	engine, err := policy.NewEngine(p.ParticipantID, p.Condition, store, logger)
	if err != nil {
		logger.Fatal("policy engine", zap.Error(err))
	}

	queue := telemetry.NewQueue(api, 0, 0, logger)
	queueCtx, stopQueue := context.WithCancel(ctx)
	queueDone := make(chan struct{})
	go func() {
		queue.Run(queueCtx)
		close(queueDone)
	}()

	ctrl := player.NewController(engine, api, queue, logger)
	runScript(ctx, ctrl, catalog, *stepSeconds, logger)

	stopQueue()
	<-queueDone
	logger.Info("simulation finished")
}

// runScript plays every still-watchable video to the end. Under a switching
// condition it hops to the next video once mid-play; under a non-switching
// condition it attempts one forward seek to show the clamp.
func runScript(ctx context.Context, ctrl *player.Controller, catalog []models.Video, step float64, logger *zap.Logger) {
	for i, v := range catalog {
		if err := ctrl.Select(ctx, v.ID); err != nil {
			logger.Info("selection rejected", zap.String("video", v.ID), zap.Error(err))
			continue
		}
		logger.Info("watching", zap.String("video", ctrl.Active()), zap.String("session", ctrl.SessionID()))
		ctrl.Play(ctx, 0)

		pos := 0.0
		duration := float64(v.DurationSec)
		if duration <= 0 {
			duration = 30
		}
		for pos < duration {
			pos += step
			if pos > duration {
				pos = duration
			}
			ctrl.Progress(pos)

			switch {
			case pos >= duration/2 && i+1 < len(catalog) && ctrl.Active() == v.ID:
				// one mid-play switch attempt; rejected under non_switching
				next := catalog[i+1].ID
				if err := ctrl.Switch(ctx, next, pos); err != nil {
					if errors.Is(err, policy.ErrSwitchNotAllowed) {
						logger.Info("switch blocked by condition", zap.String("to", next))
					}
				} else {
					logger.Info("switched", zap.String("from", v.ID), zap.String("to", next))
				}
			case pos >= duration/4 && pos < duration/4+step:
				target, err := ctrl.Seek(pos + 60)
				if errors.Is(err, policy.ErrSeekNotAllowed) {
					logger.Info("seek clamped", zap.Float64("requested", pos+60), zap.Float64("resumed_at", target))
				} else if err == nil && target > pos {
					pos = target
				}
			}
		}

		if ctrl.Active() != "" {
			ctrl.Pause(ctx, pos, 1.5)
			ctrl.Play(ctx, pos)
			ctrl.Ended(ctx, pos)
			logger.Info("completed", zap.String("video", v.ID))
		}
	}
}

func newLogger() *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, _ := config.Build()
	return logger
}
