// Package ingest imports city CSV files into the document store in ordered,
// rate-limited batches that can resume after a quota pause.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/okian/globepins/internal/adapters/checkpoint"
	"github.com/okian/globepins/internal/adapters/docstore"
	"github.com/okian/globepins/internal/domain/errkind"
	"github.com/okian/globepins/internal/domain/model"
	"github.com/okian/globepins/pkg/logger"
	"github.com/okian/globepins/pkg/metrics"
)

// Writer is the store surface ingestion needs.
type Writer interface {
	Commit(ctx context.Context, ops []docstore.Op) error
	Count(ctx context.Context) (int, error)
	Now() time.Time
}

// Gate is the mutation permission check.
type Gate interface {
	Check(op string) error
}

// Ingestor runs one import at a time; the checkpoint is shared between runs.
type Ingestor struct {
	writer      Writer
	checkpoints checkpoint.Store
	gate        Gate

	batchSize int
	delay     time.Duration
	retry     RetryPolicy
	log       logger.Logger
	tracer    trace.Tracer

	mu sync.Mutex
}

// New creates an ingestor writing through w.
func New(w Writer, cp checkpoint.Store, gate Gate, opts ...Option) *Ingestor {
	in := &Ingestor{
		writer:      w,
		checkpoints: cp,
		gate:        gate,
		batchSize:   DefaultBatchSize,
		delay:       time.Second,
		retry:       DefaultRetryPolicy(),
		log:         logger.Default().Named("ingest"),
		tracer:      otel.Tracer("github.com/okian/globepins/internal/ingest"),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest starts a run in the background. onProgress is called after every
// committed batch and onComplete exactly once with the outcome. Either may
// be nil.
func (in *Ingestor) Ingest(ctx context.Context, content string, onProgress func(Progress), onComplete func(Outcome)) {
	go func() {
		out := in.run(ctx, content, onProgress)
		if onComplete != nil {
			onComplete(out)
		}
	}()
}

// Run imports content and returns when the run succeeds, pauses or fails.
func (in *Ingestor) Run(ctx context.Context, content string, onProgress func(Progress)) Outcome {
	return in.run(ctx, content, onProgress)
}

func (in *Ingestor) run(ctx context.Context, content string, onProgress func(Progress)) (out Outcome) {
	in.mu.Lock()
	defer in.mu.Unlock()

	out.RunID = uuid.NewString()
	log := in.log.With(logger.String("run", out.RunID))
	defer func() {
		metrics.RecordIngestOutcome(string(out.Status))
		log.Info(ctx, "ingestion finished",
			logger.String("status", string(out.Status)),
			logger.Int("written", out.Written),
			logger.Int("skipped", out.Skipped),
			logger.Int("next_offset", out.NextOffset),
		)
	}()

	if err := in.gate.Check("ingest"); err != nil {
		return fail(out, StatusDenied, err)
	}

	parsed, err := Parse(content)
	if err != nil {
		return fail(out, StatusMalformed, err)
	}
	out.Total = len(parsed.Candidates)
	out.Skipped = parsed.Malformed
	out.Duplicates = parsed.Duplicates
	metrics.RecordIngestRows(0, parsed.Malformed, parsed.Duplicates)

	offset := in.resumeOffset(ctx, log, out.Total)
	out.ResumedFrom = offset
	out.NextOffset = offset
	log.Info(ctx, "ingestion started",
		logger.Int("rows", parsed.Rows),
		logger.Int("candidates", out.Total),
		logger.Int("resume_from", offset),
	)

	limit := rate.Inf
	if in.delay > 0 {
		limit = rate.Every(in.delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	for start, batch := offset, 0; start < out.Total; start, batch = start+in.batchSize, batch+1 {
		if err := limiter.Wait(ctx); err != nil {
			return fail(out, StatusFailed, errkind.Wrap("ingest.wait", errkind.ErrWriteFailure, err))
		}
		end := min(start+in.batchSize, out.Total)

		err := in.commit(ctx, parsed.Candidates[start:end], batch, start)
		switch {
		case errors.Is(err, errkind.ErrQuotaExceeded):
			in.saveCheckpoint(ctx, log, start)
			out.NextOffset = start
			out.Status = StatusPaused
			out.Err = err
			out.Message = fmt.Sprintf("Quota exceeded, resume later from row %d of %d. %s", start, out.Total, out.summary())
			return out
		case err != nil:
			return fail(out, StatusFailed, err)
		}

		limiter = pause(limit)
		out.Written += end - start
		out.NextOffset = end
		metrics.RecordIngestRows(end-start, 0, 0)
		in.saveCheckpoint(ctx, log, end)
		if onProgress != nil {
			onProgress(Progress{RunID: out.RunID, Batch: batch, Committed: end, Total: out.Total, Written: out.Written})
		}
	}

	if err := in.checkpoints.Clear(ctx); err != nil {
		log.Warn(ctx, "checkpoint clear failed", logger.Error(err))
	}
	metrics.UpdateCheckpointOffset(0)
	if n, err := in.writer.Count(ctx); err == nil {
		log.Info(ctx, "collection size", logger.Int("count", n))
	}

	out.Status = StatusSuccess
	out.Message = out.summary()
	return out
}

// pause returns a limiter whose next token is a full interval away, so the
// gap is measured from the end of the last commit rather than its start.
func pause(limit rate.Limit) *rate.Limiter {
	l := rate.NewLimiter(limit, 1)
	l.Allow()
	return l
}

// resumeOffset loads the checkpoint. A checkpoint at or beyond the candidate
// count belongs to another file and restarts from 0.
func (in *Ingestor) resumeOffset(ctx context.Context, log logger.Logger, total int) int {
	cp, ok, err := in.checkpoints.Load(ctx)
	if err != nil {
		log.Warn(ctx, "checkpoint unreadable, starting from 0", logger.Error(err))
		return 0
	}
	if !ok {
		return 0
	}
	if cp.NextRowOffset < 0 || cp.NextRowOffset >= total {
		log.Info(ctx, "stale checkpoint reset", logger.Int("offset", cp.NextRowOffset), logger.Int("candidates", total))
		if err := in.checkpoints.Clear(ctx); err != nil {
			log.Warn(ctx, "checkpoint clear failed", logger.Error(err))
		}
		return 0
	}
	return cp.NextRowOffset
}

// saveCheckpoint runs only after a batch committed or paused. A failed save
// is logged: re-writing rows on resume is harmless because writes merge.
func (in *Ingestor) saveCheckpoint(ctx context.Context, log logger.Logger, offset int) {
	if err := in.checkpoints.Save(ctx, model.Checkpoint{NextRowOffset: offset}); err != nil {
		log.Error(ctx, "checkpoint save failed", logger.Int("offset", offset), logger.Error(err))
		return
	}
	metrics.UpdateCheckpointOffset(offset)
}

func (in *Ingestor) commit(ctx context.Context, recs []model.CityRecord, batch, start int) error {
	ctx, span := in.tracer.Start(ctx, "ingest.commit_batch", trace.WithAttributes(
		attribute.Int("batch", batch),
		attribute.Int("offset", start),
		attribute.Int("rows", len(recs)),
	))
	defer span.End()

	now := in.writer.Now()
	ops := make([]docstore.Op, len(recs))
	for i, rec := range recs {
		ops[i] = docstore.Op{ID: rec.ID, Patch: docstore.GeometryPatch(rec, now)}
	}

	began := time.Now()
	err := in.retry.do(ctx, func(ctx context.Context) error {
		return in.writer.Commit(ctx, ops)
	})
	metrics.RecordIngestBatch(float64(time.Since(began).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func fail(out Outcome, status Status, err error) Outcome {
	out.Status = status
	out.Err = err
	out.Message = err.Error()
	return out
}
