package history

import (
	"context"
	"errors"

	"github.com/eleven-am/speech-delivery/internal/shared"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&DeliveryRecord{})
}

func (s *Store) Create(ctx context.Context, r *DeliveryRecord) error {
	if r.ID == "" {
		r.ID = shared.NewID("dlv_")
	}
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) GetByID(ctx context.Context, id string) (*DeliveryRecord, error) {
	var r DeliveryRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &r, err
}

func (s *Store) ListBySession(ctx context.Context, sessionID string, limit int) ([]DeliveryRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var records []DeliveryRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (s *Store) CountByProvider(ctx context.Context, provider string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&DeliveryRecord{}).
		Where("provider = ?", provider).
		Count(&count).Error
	return count, err
}
