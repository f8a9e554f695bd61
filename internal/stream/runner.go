package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Nacho7823/voiceAsisstant/internal/job"
	"github.com/Nacho7823/voiceAsisstant/internal/staging"
	"github.com/Nacho7823/voiceAsisstant/internal/transcripts"
	"github.com/Nacho7823/voiceAsisstant/internal/whisper"
)

const (
	// Segments are tiny relative to the time the engine needs to produce
	// them, so a modest buffer behaves as unbounded in practice. The
	// consumer drains the channel even after the client disconnects, so
	// the producer can never wedge on a full buffer.
	eventBuffer = 64

	recordTimeout = 5 * time.Second
)

// Runner bridges the blocking engine call to an ordered per-job event
// channel. One producer goroutine per job writes the channel; the handler
// consuming it is the only reader.
type Runner struct {
	engine   whisper.Engine
	registry *job.Registry
	history  *job.History
	archive  *transcripts.Store
	logger   *slog.Logger
}

// NewRunner wires the runner. history and archive may be nil, in which case
// terminal records and transcript archiving are skipped.
func NewRunner(engine whisper.Engine, registry *job.Registry, history *job.History, archive *transcripts.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		engine:   engine,
		registry: registry,
		history:  history,
		archive:  archive,
		logger:   logger.With("component", "stream_runner"),
	}
}

// JobRequest describes one accepted streaming job. Audio must already be
// staged; the runner releases it in its terminal cleanup.
type JobRequest struct {
	JobID    string
	Model    string
	Language string // raw requested value, policy applied by the runner
	Audio    *staging.Audio
}

// Start launches the producer goroutine and returns its event channel. The
// channel always yields meta, segment*, (stopped|error)?, end — in that
// order — and is closed right after end. The caller must consume the channel
// to completion.
func (r *Runner) Start(req JobRequest, handle *job.Handle) <-chan Event {
	events := make(chan Event, eventBuffer)
	go r.produce(req, handle, events)
	return events
}

func (r *Runner) produce(req JobRequest, handle *job.Handle, events chan<- Event) {
	log := r.logger.With("job_id", req.JobID)

	task, forced := whisper.ResolveTask(req.Language)
	rec := &job.Record{
		JobID:             req.JobID,
		Model:             req.Model,
		Task:              string(task),
		LanguageRequested: req.Language,
		Outcome:           job.OutcomeCompleted,
		CreatedAt:         handle.CreatedAt(),
	}
	var text strings.Builder

	defer func() {
		// All terminal cleanup happens before end is sent: a consumer that
		// observes end may immediately query the registry or the history
		// record and must see the final state.
		r.registry.Unregister(req.JobID)
		if req.Audio != nil {
			if err := req.Audio.Release(); err != nil {
				log.Warn("failed to release staged audio", "path", req.Audio.Path, "error", err)
			}
		}
		r.finish(log, rec, text.String())

		events <- EndEvent()
		close(events)
	}()

	// The engine call and every Next below block; that is why this whole
	// function runs on its own goroutine.
	info, segments, err := r.engine.Transcribe(context.Background(), whisper.Request{
		AudioPath: req.Audio.Path,
		Model:     req.Model,
		Task:      task,
		Language:  forced,
	})
	if err != nil {
		log.Error("engine call failed", "error", err)
		rec.Outcome = job.OutcomeFailed
		rec.Detail = err.Error()
		events <- ErrorEvent(err.Error())
		return
	}
	defer segments.Close()

	handle.SetMetadata(job.Metadata{
		Model:            req.Model,
		Task:             string(task),
		DetectedLanguage: info.DetectedLanguage,
	})
	rec.DetectedLanguage = info.DetectedLanguage

	events <- MetaEvent(req.JobID, req.Model, info.DetectedLanguage, task)

	for {
		seg, err := segments.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Error("engine stream failed", "error", err)
			rec.Outcome = job.OutcomeFailed
			rec.Detail = err.Error()
			events <- ErrorEvent(err.Error())
			return
		}

		// Cancellation is polled on the boundary between produced units;
		// a unit already produced when the flag is set is abandoned, and
		// the rest of the sequence is never drained.
		if handle.Cancelled() {
			log.Info("job cancelled", "segments", rec.Segments)
			rec.Outcome = job.OutcomeCancelled
			events <- StoppedEvent(ReasonCancelled)
			return
		}

		rec.Segments++
		text.WriteString(seg.Text)
		events <- SegmentEvent(seg)
	}
}

// finish writes the terminal history record and, for completed jobs, the
// transcript archive row. Both are best-effort diagnostics.
func (r *Runner) finish(log *slog.Logger, rec *job.Record, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if r.history != nil {
		if err := r.history.Record(ctx, rec); err != nil {
			log.Warn("failed to record job history", "error", err)
		}
	}

	if r.archive != nil && rec.Outcome == job.OutcomeCompleted {
		err := r.archive.Save(ctx, &transcripts.Transcript{
			JobID:             rec.JobID,
			Model:             rec.Model,
			TaskUsed:          rec.Task,
			DetectedLanguage:  rec.DetectedLanguage,
			LanguageRequested: rec.LanguageRequested,
			Text:              strings.TrimSpace(text),
		})
		if err != nil {
			log.Warn("failed to archive transcript", "error", err)
		}
	}
}
