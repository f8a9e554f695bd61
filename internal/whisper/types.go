package whisper

// Task selects what the engine does with detected speech.
type Task string

const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

// LanguageAuto is the sentinel the browser client may send to request
// automatic language detection. An empty string means the same thing.
const LanguageAuto = "auto"

var Models = []string{"tiny", "base", "small", "medium", "large-v2", "large-v3"}

var Languages = []string{"auto", "en", "es", "fr", "de", "it", "pt", "ru", "zh", "ja", "ko"}

func ValidModel(size string) bool {
	for _, m := range Models {
		if m == size {
			return true
		}
	}
	return false
}

// Request describes one transcription call against the engine.
type Request struct {
	// AudioPath is a staged audio file readable by the engine sidecar.
	AudioPath string
	Model     string
	Task      Task
	// Language forces the source language; empty means auto-detect.
	Language string
}

// Segment is one transcript unit. Start and End are seconds from the
// beginning of the audio; nil when the engine reports no timing.
type Segment struct {
	Text  string
	Start *float64
	End   *float64
}

// Info carries the metadata the engine exposes once decoding has started.
type Info struct {
	DetectedLanguage    string
	LanguageProbability float64
	DurationSeconds     float64
}
