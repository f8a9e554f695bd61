package whisper

import "context"

// SegmentStream is a lazy, forward-only, single-pass sequence of transcript
// units. Next blocks until the engine produces the next unit and returns
// io.EOF after the last one. Close releases the underlying connection and
// abandons any units not yet consumed.
type SegmentStream interface {
	Next() (Segment, error)
	Close() error
}

type Engine interface {
	Transcribe(ctx context.Context, req Request) (Info, SegmentStream, error)
}
