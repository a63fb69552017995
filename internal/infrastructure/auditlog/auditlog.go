// Package auditlog records the state transitions reported to it (the
// orchestrator reports payment authorize/capture/compensation and refund
// events) into its own durable table, independent of the
// mutable transaction/payment rows — so a support agent or a later
// reconciliation can replay exactly what happened and when, even after
// the row itself has moved on. Grounded on the teacher's
// PGOrderEventLogger (gorm.DB.Create against a dedicated event table).
package auditlog

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// TransactionEvent is a single state transition recorded against a
// transaction or one of its payments.
type TransactionEvent struct {
	ID            uint   `gorm:"primaryKey"`
	TransactionID string `gorm:"type:uuid;index"`
	PaymentID     string `gorm:"type:uuid;index"`
	EventType     string `gorm:"type:varchar(64);index"`
	FromStatus    string `gorm:"type:varchar(32)"`
	ToStatus      string `gorm:"type:varchar(32)"`
	Detail        string `gorm:"type:text"`
	OccurredAt    time.Time
}

func (TransactionEvent) TableName() string { return "transaction_events" }

type Logger interface {
	LogTransition(ctx context.Context, event TransactionEvent) error
}

type PGLogger struct {
	db *gorm.DB
}

func NewPGLogger(db *gorm.DB) *PGLogger {
	return &PGLogger{db: db}
}

func (l *PGLogger) LogTransition(ctx context.Context, event TransactionEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return l.db.WithContext(ctx).Create(&event).Error
}
