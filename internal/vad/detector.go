package vad

import "math"

const (
	// The detector consumes fixed windows of 512 samples at 16 kHz,
	// roughly 32 ms each. Browsers deliver arbitrarily sized frames; the
	// handler re-chunks them before calling Process.
	ChunkSize  = 512
	SampleRate = 16000
)

type EventType string

const (
	SpeechStart EventType = "speech_start"
	SpeechEnd   EventType = "speech_end"
)

// Event marks a speech boundary. Time is seconds from the start of the
// connection's audio.
type Event struct {
	Type EventType
	Time float64
}

// Detector consumes fixed-size PCM chunks and reports speech boundaries.
// Implementations keep per-connection state; Reset clears it.
type Detector interface {
	Process(chunk []float32) *Event
	Reset()
}

type Config struct {
	// Threshold is the RMS level above which a chunk counts as speech.
	Threshold float64
	// HangoverChunks is how many consecutive quiet chunks close an
	// utterance. Prevents flapping on short pauses.
	HangoverChunks int
}

func DefaultConfig() Config {
	return Config{
		Threshold:      0.015,
		HangoverChunks: 12, // ~380ms of silence
	}
}

// EnergyDetector is a simple RMS-threshold voice activity detector with
// hangover. It is not a neural VAD, but for driving a push-to-talk style UI
// the boundaries it produces are good enough, and it runs in-process.
type EnergyDetector struct {
	cfg      Config
	inSpeech bool
	quiet    int
	samples  int64
}

func NewEnergyDetector(cfg Config) *EnergyDetector {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.HangoverChunks <= 0 {
		cfg.HangoverChunks = DefaultConfig().HangoverChunks
	}
	return &EnergyDetector{cfg: cfg}
}

func (d *EnergyDetector) Process(chunk []float32) *Event {
	chunkStart := float64(d.samples) / SampleRate
	d.samples += int64(len(chunk))
	chunkEnd := float64(d.samples) / SampleRate

	if rms(chunk) >= d.cfg.Threshold {
		d.quiet = 0
		if !d.inSpeech {
			d.inSpeech = true
			return &Event{Type: SpeechStart, Time: chunkStart}
		}
		return nil
	}

	if d.inSpeech {
		d.quiet++
		if d.quiet >= d.cfg.HangoverChunks {
			d.inSpeech = false
			d.quiet = 0
			return &Event{Type: SpeechEnd, Time: chunkEnd}
		}
	}
	return nil
}

func (d *EnergyDetector) Reset() {
	d.inSpeech = false
	d.quiet = 0
	d.samples = 0
}

func rms(chunk []float32) float64 {
	if len(chunk) == 0 {
		return 0
	}
	var sum float64
	for _, s := range chunk {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(chunk)))
}
