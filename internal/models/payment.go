package models

import (
	"time"

	"gorm.io/gorm"
)

type PaymentRequestStatus string

const (
	PaymentRequestRaw    PaymentRequestStatus = "raw"
	PaymentRequestAccept PaymentRequestStatus = "accept"
	PaymentRequestReject PaymentRequestStatus = "reject"
)

// PaymentRequest is a KOL's payout request. Price snapshots income.approved at
// creation time; the approved balance is zeroed in the same transaction, so a
// rejection restores exactly this amount. At most one raw request per KOL may
// exist at a time.
type PaymentRequest struct {
	ID        uint                 `gorm:"primaryKey" json:"id"`
	KolID     uint                 `gorm:"not null;index" json:"kol_id"`
	Price     int64                `gorm:"not null" json:"price"`
	Status    PaymentRequestStatus `gorm:"size:20;not null;default:'raw';index" json:"status"`
	Reason    string               `gorm:"type:text" json:"reason"`
	CreatedAt time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt       `gorm:"index" json:"deleted_at"`
}
