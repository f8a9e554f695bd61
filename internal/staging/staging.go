package staging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Store persists uploaded audio so the engine sidecar can read it from disk.
// When keep is false, Audio.Release deletes the file after the job finishes;
// when true, uploads are kept for later inspection.
type Store struct {
	dir    string
	keep   bool
	logger *slog.Logger
}

func NewStore(dir string, keep bool, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Store{
		dir:    dir,
		keep:   keep,
		logger: logger.With("component", "staging"),
	}, nil
}

// Audio is a staged upload. Path is stable for the lifetime of the job.
type Audio struct {
	Path string
	Size int64
	keep bool
}

func (s *Store) Save(r io.Reader, filename string) (*Audio, error) {
	if filename == "" {
		filename = "upload.wav"
	}
	name := fmt.Sprintf("audio%d_%s", time.Now().UnixMilli(), filepath.Base(filename))
	dst := filepath.Join(s.dir, name)

	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return nil, fmt.Errorf("write staged file: %w", err)
	}

	s.logger.Debug("audio staged", "path", dst, "bytes", size)
	return &Audio{Path: dst, Size: size, keep: s.keep}, nil
}

// Release removes the staged file unless the store keeps uploads. Safe to
// call more than once.
func (a *Audio) Release() error {
	if a.keep {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
