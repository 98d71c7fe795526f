// Package audit defines the persistence/audit collaborator surface. Both
// operations are fire-and-forget: failures are logged by implementations
// and never propagated to callers.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Severity grades audit events and alerts.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is one audit record. Before/After capture resource state around a
// mutation as opaque JSON snapshots.
type Event struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Action       string    `json:"action" gorm:"index"`
	ResourceType string    `json:"resource_type" gorm:"index"`
	ResourceID   string    `json:"resource_id" gorm:"index"`
	BeforeState  string    `json:"before_state,omitempty"`
	AfterState   string    `json:"after_state,omitempty"`
	Severity     Severity  `json:"severity" gorm:"index"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

// Alert is an operational alert raised toward on-call tooling.
type Alert struct {
	ID        uuid.UUID         `json:"id" gorm:"primaryKey;type:uuid"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Severity  Severity          `json:"severity" gorm:"index"`
	Source    string            `json:"source" gorm:"index"`
	Metadata  map[string]string `json:"metadata,omitempty" gorm:"serializer:json"`
	CreatedAt time.Time         `json:"created_at" gorm:"index"`
}

// Logger is the narrow audit collaborator injected into the core's
// components.
type Logger interface {
	AuditLog(ctx context.Context, action, resourceType, resourceID, before, after string, severity Severity)
	CreateAlert(ctx context.Context, title, message string, severity Severity, source string, metadata map[string]string)
}

// Nop discards everything; useful as a default and in tests that do not
// assert on audit output.
type Nop struct{}

func (Nop) AuditLog(context.Context, string, string, string, string, string, Severity) {}
func (Nop) CreateAlert(context.Context, string, string, Severity, string, map[string]string) {
}

var _ Logger = Nop{}
