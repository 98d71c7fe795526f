package scanner

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Aidin1998/arbcore/pkg/models"
)

// GormObservationStore is the embedded sqlite-backed observation store.
type GormObservationStore struct {
	db *gorm.DB
}

// NewGormObservationStore migrates the observations table and returns the
// store.
func NewGormObservationStore(db *gorm.DB) (*GormObservationStore, error) {
	if err := db.AutoMigrate(&models.SpreadObservation{}); err != nil {
		return nil, err
	}
	return &GormObservationStore{db: db}, nil
}

func (s *GormObservationStore) SaveObservation(ctx context.Context, obs *models.SpreadObservation) error {
	return s.db.WithContext(ctx).Create(obs).Error
}

// RecentObservations returns observations newer than the cutoff, most
// recent first. Consumed by analytics tooling.
func (s *GormObservationStore) RecentObservations(ctx context.Context, instrument string, since time.Time, limit int) ([]models.SpreadObservation, error) {
	var out []models.SpreadObservation
	q := s.db.WithContext(ctx).
		Where("observed_at > ?", since).
		Order("observed_at DESC").
		Limit(limit)
	if instrument != "" {
		q = q.Where("instrument = ?", instrument)
	}
	err := q.Find(&out).Error
	return out, err
}

var _ ObservationStore = (*GormObservationStore)(nil)
