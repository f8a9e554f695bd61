package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Nacho7823/voiceAsisstant/internal/job"
	"github.com/Nacho7823/voiceAsisstant/internal/shared"
	"github.com/Nacho7823/voiceAsisstant/internal/staging"
	"github.com/Nacho7823/voiceAsisstant/internal/stream"
	"github.com/Nacho7823/voiceAsisstant/internal/transcripts"
	"github.com/Nacho7823/voiceAsisstant/internal/whisper"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	defaultModel = "small"

	// The browser client sends language="" for auto-detect; the default
	// only applies when the field is absent entirely.
	defaultLanguage = "es"
)

type Handler struct {
	engine   whisper.Engine
	runner   *stream.Runner
	registry *job.Registry
	staging  *staging.Store
	history  *job.History
	archive  *transcripts.Store
	logger   *slog.Logger
}

func NewHandler(
	engine whisper.Engine,
	runner *stream.Runner,
	registry *job.Registry,
	stagingStore *staging.Store,
	history *job.History,
	archive *transcripts.Store,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:   engine,
		runner:   runner,
		registry: registry,
		staging:  stagingStore,
		history:  history,
		archive:  archive,
		logger:   logger.With("handler", "api"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/models", h.HandleModels)
	e.GET("/languages", h.HandleLanguages)
	e.POST("/translate", h.HandleTranslate)
	e.POST("/translate_stream", h.HandleTranslateStream)
	e.POST("/stop/:job_id", h.HandleStop)
	e.GET("/jobs/:job_id", h.HandleJob)
}

func (h *Handler) HandleModels(c echo.Context) error {
	return c.JSON(http.StatusOK, whisper.Models)
}

func (h *Handler) HandleLanguages(c echo.Context) error {
	return c.JSON(http.StatusOK, whisper.Languages)
}

type TranslateResponse struct {
	ModelUsed         string `json:"model_used"`
	DetectedLanguage  string `json:"detected_language"`
	LanguageRequested string `json:"language_requested"`
	TaskUsed          string `json:"task_used"`
	ResultText        string `json:"result_text"`
}

func (h *Handler) HandleTranslate(c echo.Context) error {
	model, language, audio, err := h.acceptUpload(c)
	if err != nil {
		return err
	}
	defer func() {
		if err := audio.Release(); err != nil {
			h.logger.Warn("failed to release staged audio", "path", audio.Path, "error", err)
		}
	}()

	task, forced := whisper.ResolveTask(language)
	info, segments, err := h.engine.Transcribe(c.Request().Context(), whisper.Request{
		AudioPath: audio.Path,
		Model:     model,
		Task:      task,
		Language:  forced,
	})
	if err != nil {
		h.logger.Error("transcription failed", "error", err)
		return shared.InternalError("transcription_failed", err.Error())
	}
	defer segments.Close()

	var text strings.Builder
	for {
		seg, err := segments.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.logger.Error("transcription failed", "error", err)
			return shared.InternalError("transcription_failed", err.Error())
		}
		text.WriteString(seg.Text)
	}

	resp := TranslateResponse{
		ModelUsed:         model,
		DetectedLanguage:  info.DetectedLanguage,
		LanguageRequested: language,
		TaskUsed:          string(task),
		ResultText:        strings.TrimSpace(text.String()),
	}

	if h.archive != nil {
		err := h.archive.Save(c.Request().Context(), &transcripts.Transcript{
			Model:             model,
			TaskUsed:          string(task),
			DetectedLanguage:  info.DetectedLanguage,
			LanguageRequested: language,
			Text:              resp.ResultText,
			AudioPath:         audio.Path,
		})
		if err != nil {
			h.logger.Warn("failed to archive transcript", "error", err)
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) HandleTranslateStream(c echo.Context) error {
	model, language, audio, err := h.acceptUpload(c)
	if err != nil {
		return err
	}

	jobID := uuid.NewString()
	handle, err := h.registry.Register(jobID)
	if err != nil {
		h.logger.Error("job registration failed", "job_id", jobID, "error", err)
		_ = audio.Release()
		if errors.Is(err, job.ErrDuplicateJob) {
			return shared.Conflict("job_exists", "a job with this id is already running")
		}
		return shared.InternalError("job_register_failed", err.Error())
	}

	events := h.runner.Start(stream.JobRequest{
		JobID:    jobID,
		Model:    model,
		Language: language,
		Audio:    audio,
	}, handle)

	h.logger.Info("stream started", "job_id", jobID, "model", model, "language_requested", language)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()

	// Flag the job the moment the client goes away instead of on the next
	// event boundary. Cancel on a finished handle is a harmless no-op.
	go func() {
		<-ctx.Done()
		handle.Cancel()
	}()

	clientGone := false

	// The channel must be drained to completion even after the client goes
	// away, so the producer's terminal cleanup always runs.
	for ev := range events {
		if clientGone {
			continue
		}

		select {
		case <-ctx.Done():
			clientGone = true
			continue
		default:
		}

		frame, err := stream.EncodeSSE(ev)
		if err != nil {
			h.logger.Error("failed to encode event", "job_id", jobID, "error", err)
			continue
		}
		if _, err := resp.Write(frame); err != nil {
			handle.Cancel()
			clientGone = true
			continue
		}
		resp.Flush()
	}

	if clientGone {
		h.logger.Info("client disconnected mid-stream", "job_id", jobID)
	}
	return nil
}

type StopResponse struct {
	JobID   string `json:"job_id"`
	Stopped bool   `json:"stopped"`
}

func (h *Handler) HandleStop(c echo.Context) error {
	jobID := c.Param("job_id")

	if err := h.registry.RequestCancel(jobID); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return shared.NotFound("job_not_found", "job not found or already finished")
		}
		return shared.InternalError("stop_failed", err.Error())
	}

	h.logger.Info("stop requested", "job_id", jobID)
	return c.JSON(http.StatusOK, StopResponse{JobID: jobID, Stopped: true})
}

func (h *Handler) HandleJob(c echo.Context) error {
	jobID := c.Param("job_id")

	rec, err := h.history.Get(c.Request().Context(), jobID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("job_not_found", "no record for this job")
		}
		return shared.InternalError("history_failed", err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

// acceptUpload validates the request parameters and stages the uploaded
// audio. Failures here happen before any stream starts, so they surface as
// ordinary request errors.
func (h *Handler) acceptUpload(c echo.Context) (model, language string, audio *staging.Audio, err error) {
	model = formValue(c, "model_size", defaultModel)
	if !whisper.ValidModel(model) {
		return "", "", nil, shared.BadRequest("invalid_model", "unsupported model size: "+model)
	}
	language = formValue(c, "language", defaultLanguage)

	fileHeader, err := c.FormFile("audio_file")
	if err != nil {
		return "", "", nil, shared.BadRequest("missing_audio", "audio_file is required")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", "", nil, shared.BadRequest("invalid_audio", "cannot read uploaded audio")
	}
	defer src.Close()

	audio, err = h.staging.Save(src, fileHeader.Filename)
	if err != nil {
		h.logger.Error("audio staging failed", "error", err)
		return "", "", nil, shared.InternalError("staging_failed", err.Error())
	}
	return model, language, audio, nil
}

// formValue distinguishes an absent field from an explicitly empty one:
// language="" means auto-detect and must not fall back to the default.
func formValue(c echo.Context, key, fallback string) string {
	form, err := c.MultipartForm()
	if err != nil {
		return fallback
	}
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return fallback
	}
	return values[0]
}
