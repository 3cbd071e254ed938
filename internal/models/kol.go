package models

import (
	"time"

	"gorm.io/gorm"
)

// KolIncome is the two-bucket ledger embedded in every KOL row. Pending holds
// money earned on running jobs that an admin has not yet approved for payout;
// Approved holds money released by a payment acceptance. Amounts are in minor
// currency units and never go negative.
type KolIncome struct {
	Pending  int64 `gorm:"not null;default:0" json:"pending"`
	Approved int64 `gorm:"not null;default:0" json:"approved"`
}

// KolJobStats tracks how many jobs a KOL is invited to, running, or has
// completed. Mutated only inside the same transaction as the job documents
// the counts describe.
type KolJobStats struct {
	InviteCount    int `gorm:"not null;default:0" json:"invite_count"`
	RunningCount   int `gorm:"not null;default:0" json:"running_count"`
	CompletedCount int `gorm:"not null;default:0" json:"completed_count"`
}

type Kol struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"not null;size:255" json:"name"`
	Email     string         `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Income    KolIncome      `gorm:"embedded;embeddedPrefix:income_" json:"income"`
	JobStats  KolJobStats    `gorm:"embedded;embeddedPrefix:job_" json:"job_stats"`
	IsBlocked bool           `gorm:"default:false" json:"is_blocked"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// HistoryAction is a KOL-level audit row for actions outside a single job,
// currently payout request lifecycle events.
type HistoryAction struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	KolID            uint      `gorm:"not null;index" json:"kol_id"`
	CauserID         uint      `gorm:"not null" json:"causer_id"`
	Action           string    `gorm:"size:100;not null" json:"action"`
	PaymentRequestID *uint     `gorm:"index" json:"payment_request_id"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}
