package models

import (
	"time"

	"gorm.io/gorm"
)

// InviteStatus leaves raw exactly once: join materializes a KolJob, reject is
// terminal.
type InviteStatus string

const (
	InviteRaw    InviteStatus = "raw"
	InviteJoin   InviteStatus = "join"
	InviteReject InviteStatus = "reject"
)

// Invite is a standing offer for a KOL to join a job at an agreed price.
type Invite struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	KolID     uint           `gorm:"not null;index" json:"kol_id"`
	JobID     uint           `gorm:"not null;index" json:"job_id"`
	Price     int64          `gorm:"not null" json:"price"`
	Status    InviteStatus   `gorm:"size:20;not null;default:'raw'" json:"status"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`

	Histories []InviteHistory `gorm:"foreignKey:InviteID" json:"histories"`
}

type InviteHistory struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	InviteID  uint         `gorm:"not null;index" json:"invite_id"`
	ActorID   uint         `gorm:"not null" json:"actor_id"`
	Status    InviteStatus `gorm:"size:20;not null" json:"status"`
	Reason    string       `gorm:"type:text" json:"reason"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
}
