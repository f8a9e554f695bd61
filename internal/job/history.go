package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Nacho7823/voiceAsisstant/internal/shared"
	"github.com/redis/go-redis/v9"
)

const historyTTL = 7 * 24 * time.Hour

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Record is the terminal trace of one streaming job, kept for a week so
// clients and operators can look up what happened to a finished job id.
type Record struct {
	JobID             string    `json:"job_id"`
	Model             string    `json:"model_used"`
	Task              string    `json:"task_used"`
	DetectedLanguage  string    `json:"detected_language,omitempty"`
	LanguageRequested string    `json:"language_requested"`
	Outcome           Outcome   `json:"outcome"`
	Segments          int       `json:"segments"`
	Detail            string    `json:"detail,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

func (r *Record) RedisKey() string {
	return "job:" + r.JobID
}

type History struct {
	redis *redis.Client
}

func NewHistory(redisClient *redis.Client) *History {
	return &History{redis: redisClient}
}

func (h *History) Record(ctx context.Context, rec *Record) error {
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return h.redis.Set(ctx, rec.RedisKey(), data, historyTTL).Err()
}

func (h *History) Get(ctx context.Context, jobID string) (*Record, error) {
	data, err := h.redis.Get(ctx, "job:"+jobID).Bytes()
	if err == redis.Nil {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
