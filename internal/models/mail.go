package models

import (
	"time"
)

// MailKind selects the mail template a transition dispatches.
type MailKind string

const (
	MailContentAccepted MailKind = "content_accepted"
	MailContentRejected MailKind = "content_rejected"
	MailLinkAccepted    MailKind = "link_accepted"
	MailLinkRejected    MailKind = "link_rejected"
	MailPaymentAccepted MailKind = "payment_accepted"
	MailPaymentRejected MailKind = "payment_rejected"
	MailPayoutRequested MailKind = "payout_requested"
	MailPayoutAccepted  MailKind = "payout_accepted"
	MailPayoutRejected  MailKind = "payout_rejected"
)

// MailDispatch is the gateway receipt row. It is written through the caller's
// transaction handle, so a row exists if and only if the transition it gated
// committed.
type MailDispatch struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MessageID   string    `gorm:"uniqueIndex;not null;size:64" json:"message_id"`
	CauserID    uint      `gorm:"not null" json:"causer_id"`
	RecipientID uint      `gorm:"not null;index" json:"recipient_id"`
	Kind        MailKind  `gorm:"size:50;not null" json:"kind"`
	Params      string    `gorm:"type:jsonb" json:"params"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
