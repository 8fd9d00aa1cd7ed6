package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vidswitch/backend/internal/exports"
	"github.com/vidswitch/backend/internal/models"
	"github.com/vidswitch/backend/pkg/queue"
	"github.com/vidswitch/backend/pkg/storage"
)

// ExportProcessor processes export jobs: render the dataset as CSV, upload
// to S3, update the job row.
type ExportProcessor struct {
	exportRepo *exports.Repository
	generator  *exports.Generator
	s3         *storage.S3
	queue      *queue.Queue
	logger     *zap.Logger
}

// NewExportProcessor creates an export job processor.
func NewExportProcessor(exportRepo *exports.Repository, generator *exports.Generator, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *ExportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportProcessor{exportRepo: exportRepo, generator: generator, s3: s3, queue: q, logger: logger}
}

// Process executes one export job.
func (p *ExportProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeExport {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	rec, err := p.exportRepo.GetByID(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("export job not found: %s", payload.JobID)
	}
	if rec.Status == models.ExportStatusCompleted {
		p.logger.Info("export already completed", zap.String("job_id", rec.ID.String()))
		return nil
	}
	if err := p.exportRepo.MarkProcessing(ctx, rec.ID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	data, err := p.generator.CSV(ctx, payload.ExportType)
	if err != nil {
		_ = p.exportRepo.MarkFailed(ctx, rec.ID, err.Error())
		return fmt.Errorf("render csv: %w", err)
	}

	key := storage.ExportKey(rec.ID.String(), payload.ExportType)
	if err := p.s3.Upload(ctx, key, "text/csv", bytes.NewReader(data)); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	if err := p.exportRepo.MarkCompleted(ctx, rec.ID, key); err != nil {
		p.logger.Error("mark export completed failed", zap.Error(err), zap.String("job_id", rec.ID.String()))
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("export completed", zap.String("job_id", rec.ID.String()), zap.String("s3_key", key), zap.Int("bytes", len(data)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ExportProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("export worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
