package models

import (
	"time"

	"gorm.io/gorm"
)

type Job struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Title     string         `gorm:"not null;size:500" json:"title"`
	Brand     string         `gorm:"size:255" json:"brand"`
	Status    string         `gorm:"size:50;default:'open'" json:"status"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`

	TimeSlots []TimeSlot    `gorm:"foreignKey:JobID" json:"time_slots"`
	Questions []JobQuestion `gorm:"foreignKey:JobID" json:"questions"`
}

// TimeSlot is a capacity-limited posting window on a job. JoinCount is the
// number of KOLs who picked this slot; it must never exceed CapacityLimit.
// The counter is only advanced through a guarded update inside the join
// transaction, so two concurrent joiners cannot both take the last unit.
type TimeSlot struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	JobID         uint      `gorm:"not null;index" json:"job_id"`
	PostAt        time.Time `json:"post_at"`
	CapacityLimit int       `gorm:"not null" json:"capacity_limit"`
	JoinCount     int       `gorm:"not null;default:0" json:"join_count"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// JobQuestion must be answered by every KOL joining the job.
type JobQuestion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JobID     uint      `gorm:"not null;index" json:"job_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// JobKolHistory is the job's per-KOL event log ("kol accepted invite",
// "kol rejected invite", ...). Append-only.
type JobKolHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JobID     uint      `gorm:"not null;index:idx_job_kol" json:"job_id"`
	KolID     uint      `gorm:"not null;index:idx_job_kol" json:"kol_id"`
	ActorID   uint      `gorm:"not null" json:"actor_id"`
	Action    string    `gorm:"size:100;not null" json:"action"`
	Reason    string    `gorm:"type:text" json:"reason"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
