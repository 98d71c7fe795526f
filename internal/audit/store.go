package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the embedded gorm-backed audit sink. Writes happen on the
// caller's goroutine but errors are swallowed after logging, keeping the
// fire-and-forget contract.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore migrates the audit tables and returns a ready sink.
func NewStore(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if err := db.AutoMigrate(&Event{}, &Alert{}); err != nil {
		return nil, err
	}
	return &Store{db: db, logger: logger.Named("audit")}, nil
}

func (s *Store) AuditLog(ctx context.Context, action, resourceType, resourceID, before, after string, severity Severity) {
	event := &Event{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		BeforeState:  before,
		AfterState:   after,
		Severity:     severity,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		s.logger.Error("failed to persist audit event",
			zap.String("action", action),
			zap.String("resource_id", resourceID),
			zap.Error(err))
	}
}

func (s *Store) CreateAlert(ctx context.Context, title, message string, severity Severity, source string, metadata map[string]string) {
	alert := &Alert{
		ID:        uuid.New(),
		Title:     title,
		Message:   message,
		Severity:  severity,
		Source:    source,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		s.logger.Error("failed to persist alert",
			zap.String("title", title),
			zap.String("source", source),
			zap.Error(err))
	}
	if severity == SeverityCritical {
		s.logger.Error("critical alert raised",
			zap.String("title", title),
			zap.String("message", message),
			zap.String("source", source))
	}
}

var _ Logger = (*Store)(nil)
