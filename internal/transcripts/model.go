package transcripts

import "time"

// Transcript is the archived result of a completed transcription, either from
// the synchronous endpoint or assembled from a finished streaming job.
type Transcript struct {
	ID                string    `gorm:"primaryKey" json:"id"`
	JobID             string    `gorm:"index" json:"job_id,omitempty"`
	Model             string    `gorm:"not null" json:"model_used"`
	TaskUsed          string    `gorm:"not null" json:"task_used"`
	DetectedLanguage  string    `json:"detected_language"`
	LanguageRequested string    `json:"language_requested"`
	Text              string    `json:"result_text"`
	AudioPath         string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}
