package models

import (
	"time"

	"gorm.io/gorm"
)

// JobStatus is the overall status of a KOL's participation in a job.
type JobStatus string

const (
	JobActive        JobStatus = "active"
	JobCloseJob      JobStatus = "close_job"
	JobPayment       JobStatus = "payment"
	JobRejectPayment JobStatus = "reject_payment"
)

// Terminal reports whether no further post-state transitions are permitted.
func (s JobStatus) Terminal() bool {
	return s == JobPayment || s == JobRejectPayment
}

// PostStatus is the sub-state of the content submission, distinct from the
// assignment's overall JobStatus. It only moves forward: raw -> content -> link.
type PostStatus string

const (
	PostRaw     PostStatus = "raw"
	PostContent PostStatus = "content"
	PostLink    PostStatus = "link"
)

// RequestState marks an in-flight review request on a post. A transition may
// only be accepted or rejected while the state is pending; reject leaves the
// rejected sentinel behind so the KOL sees the verdict and can resubmit.
type RequestState string

const (
	RequestNone     RequestState = ""
	RequestPending  RequestState = "pending"
	RequestRejected RequestState = "rejected"
)

// Post is the submission substructure embedded in a KolJob.
type Post struct {
	Content         string       `gorm:"type:text" json:"content"`
	Link            string       `gorm:"size:1000" json:"link"`
	ExternalPostID  string       `gorm:"size:255" json:"external_post_id"`
	Status          PostStatus   `gorm:"size:20;not null;default:'raw'" json:"status"`
	AttachmentCount int          `gorm:"not null;default:0" json:"attachment_count"`
	Request         RequestState `gorm:"size:20;not null;default:''" json:"request"`
}

// Engagement counters reported for the published post.
type Engagement struct {
	Likes    int `gorm:"not null;default:0" json:"likes"`
	Comments int `gorm:"not null;default:0" json:"comments"`
	Shares   int `gorm:"not null;default:0" json:"shares"`
}

// KolJob is one KOL's accepted participation in one job, created when an
// invite is accepted. Price is agreed at invite time and immutable afterwards.
type KolJob struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	KolID      uint           `gorm:"not null;index" json:"kol_id"`
	JobID      uint           `gorm:"not null;index" json:"job_id"`
	TimeSlotID uint           `gorm:"not null" json:"time_slot_id"`
	Price      int64          `gorm:"not null" json:"price"`
	Status     JobStatus      `gorm:"size:30;not null;default:'active'" json:"status"`
	Post       Post           `gorm:"embedded;embeddedPrefix:post_" json:"post"`
	Engagement Engagement     `gorm:"embedded;embeddedPrefix:engagement_" json:"engagement"`
	IsBlocked  bool           `gorm:"default:false" json:"is_blocked"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at"`

	Histories []KolJobHistory `gorm:"foreignKey:KolJobID" json:"histories"`
}

// KolJobHistory is the append-only log of everything that happened to one
// assignment. MessageID references the mail dispatch that confirmed the
// transition, when one gated it.
type KolJobHistory struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	KolJobID   uint       `gorm:"not null;index" json:"kol_job_id"`
	ActorID    uint       `gorm:"not null" json:"actor_id"`
	JobStatus  JobStatus  `gorm:"size:30;not null" json:"job_status"`
	PostStatus PostStatus `gorm:"size:20;not null" json:"post_status"`
	Action     string     `gorm:"size:100;not null" json:"action"`
	Reason     string     `gorm:"type:text" json:"reason"`
	MessageID  string     `gorm:"size:64" json:"message_id"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// KolJobAnswer stores one answer a KOL gave to a job question when joining.
type KolJobAnswer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	KolJobID   uint      `gorm:"not null;index" json:"kol_job_id"`
	QuestionID uint      `gorm:"not null" json:"question_id"`
	Answer     string    `gorm:"type:text;not null" json:"answer"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
