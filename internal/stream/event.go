package stream

import (
	"encoding/json"

	"github.com/Nacho7823/voiceAsisstant/internal/whisper"
)

// EventType tags one message of the output stream. The sequence per job is
// always meta, zero or more segments, at most one stopped or error, then end.
type EventType string

const (
	EventMeta    EventType = "meta"
	EventSegment EventType = "segment"
	EventStopped EventType = "stopped"
	EventError   EventType = "error"
	EventEnd     EventType = "end"
)

const ReasonCancelled = "cancelled"

type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

type MetaPayload struct {
	JobID            string `json:"job_id"`
	ModelUsed        string `json:"model_used"`
	DetectedLanguage string `json:"detected_language"`
	TaskUsed         string `json:"task_used"`
}

type SegmentPayload struct {
	Text  string   `json:"text"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

type StoppedPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Detail string `json:"detail"`
}

func MetaEvent(jobID, model, detectedLanguage string, task whisper.Task) Event {
	return Event{Type: EventMeta, Payload: MetaPayload{
		JobID:            jobID,
		ModelUsed:        model,
		DetectedLanguage: detectedLanguage,
		TaskUsed:         string(task),
	}}
}

func SegmentEvent(seg whisper.Segment) Event {
	return Event{Type: EventSegment, Payload: SegmentPayload{
		Text:  seg.Text,
		Start: seg.Start,
		End:   seg.End,
	}}
}

func StoppedEvent(reason string) Event {
	return Event{Type: EventStopped, Payload: StoppedPayload{Reason: reason}}
}

func ErrorEvent(detail string) Event {
	return Event{Type: EventError, Payload: ErrorPayload{Detail: detail}}
}

func EndEvent() Event {
	return Event{Type: EventEnd}
}

// EncodeSSE frames one event as a complete server-sent-events block:
// "data: <json>\n\n". Events are never fragmented across frames.
func EncodeSSE(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, len(data)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}
