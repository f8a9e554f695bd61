package transcripts

import (
	"context"
	"errors"

	"github.com/Nacho7823/voiceAsisstant/internal/shared"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Transcript{})
}

func (s *Store) Save(ctx context.Context, t *Transcript) error {
	if t.ID == "" {
		t.ID = shared.NewID("tr_")
	}
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *Store) GetByID(ctx context.Context, id string) (*Transcript, error) {
	var t Transcript
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &t, err
}

func (s *Store) GetByJobID(ctx context.Context, jobID string) (*Transcript, error) {
	var t Transcript
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &t, err
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Transcript, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []*Transcript
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}
