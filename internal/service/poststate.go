package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hypecast/kolport/internal/models"
)

type postEvent string

const (
	eventAccept postEvent = "accept"
	eventReject postEvent = "reject"
)

// postTransition is the pure outcome of one state-machine step, resolved from
// (post.status, event) before any side effect runs. It is applied only after
// the gating mail dispatch is confirmed, inside the same transaction.
type postTransition struct {
	mail        models.MailKind
	action      string
	nextPost    models.PostStatus   // "" leaves post.status unchanged
	nextStatus  models.JobStatus    // "" leaves the assignment status unchanged
	nextRequest models.RequestState // request flag after the step
	payout      bool                // move price from pending to approved
	forfeit     bool                // drop price from pending, credit nothing
}

// resolvePostTransition selects the behavior for the current post status. A
// pair with no entry is a terminal-state error and changes nothing.
func resolvePostTransition(status models.PostStatus, ev postEvent) (postTransition, error) {
	switch {
	case status == models.PostRaw && ev == eventAccept:
		return postTransition{
			mail:        models.MailContentAccepted,
			action:      "content_accepted",
			nextPost:    models.PostContent,
			nextRequest: models.RequestNone,
		}, nil
	case status == models.PostRaw && ev == eventReject:
		return postTransition{
			mail:        models.MailContentRejected,
			action:      "content_rejected",
			nextRequest: models.RequestRejected,
		}, nil
	case status == models.PostContent && ev == eventAccept:
		return postTransition{
			mail:        models.MailLinkAccepted,
			action:      "link_accepted",
			nextPost:    models.PostLink,
			nextRequest: models.RequestNone,
		}, nil
	case status == models.PostContent && ev == eventReject:
		return postTransition{
			mail:        models.MailLinkRejected,
			action:      "link_rejected",
			nextRequest: models.RequestRejected,
		}, nil
	case status == models.PostLink && ev == eventAccept:
		return postTransition{
			mail:        models.MailPaymentAccepted,
			action:      "payment_accepted",
			nextStatus:  models.JobPayment,
			nextRequest: models.RequestNone,
			payout:      true,
		}, nil
	case status == models.PostLink && ev == eventReject:
		return postTransition{
			mail:        models.MailPaymentRejected,
			action:      "payment_rejected",
			nextStatus:  models.JobRejectPayment,
			nextRequest: models.RequestNone,
			forfeit:     true,
		}, nil
	}
	return postTransition{}, forbidden(CodeStateNotAllowed, "no transition defined from post status %q", status)
}

// KolJobService drives a KOL's job assignment through its post-review
// lifecycle. Every accept/reject is notification-confirmed: the mail dispatch
// runs inside the transaction and its failure rolls back everything.
type KolJobService struct {
	db      *gorm.DB
	gateway NotificationGateway
	admin   AdminNotifier
	logger  *zap.Logger
}

func NewKolJobService(db *gorm.DB, gateway NotificationGateway, admin AdminNotifier, logger *zap.Logger) *KolJobService {
	return &KolJobService{
		db:      db,
		gateway: gateway,
		admin:   admin,
		logger:  logger,
	}
}

// SubmitPostInput carries the KOL's submission for the current stage: content
// while the post is raw, the published link once content is approved.
type SubmitPostInput struct {
	Content         string `json:"content"`
	Link            string `json:"link"`
	ExternalPostID  string `json:"external_post_id"`
	AttachmentCount int    `json:"attachment_count"`
}

// SubmitPost stores the KOL's submission and raises the pending review flag.
// Forbidden while a review is already pending or once the assignment reached a
// terminal status.
func (s *KolJobService) SubmitPost(ctx context.Context, kolJobID, kolID uint, input SubmitPostInput) (*models.KolJob, error) {
	var kj models.KolJob

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&kj, kolJobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(CodeKolJobNotFound, "kol job %d not found", kolJobID)
			}
			return fmt.Errorf("failed to load kol job: %w", err)
		}
		if kj.KolID != kolID {
			return forbidden(CodeStateNotAllowed, "kol job %d does not belong to kol %d", kolJobID, kolID)
		}
		if kj.IsBlocked {
			return forbidden(CodeKolBlocked, "kol job %d is blocked", kolJobID)
		}
		if kj.Status.Terminal() {
			return forbidden(CodeStateNotAllowed, "kol job %d already settled", kolJobID)
		}
		if kj.Post.Request == models.RequestPending {
			return forbidden(CodeRequestPending, "a review request is already pending")
		}

		switch kj.Post.Status {
		case models.PostRaw:
			if input.Content == "" {
				return invalid(CodeMissingField, "content is required")
			}
			kj.Post.Content = input.Content
			kj.Post.AttachmentCount = input.AttachmentCount
		case models.PostContent:
			if input.Link == "" {
				return invalid(CodeMissingField, "link is required")
			}
			kj.Post.Link = input.Link
			kj.Post.ExternalPostID = input.ExternalPostID
		case models.PostLink:
			// Nothing new to submit: this raises the payment review request.
		default:
			return forbidden(CodeStateNotAllowed, "nothing to submit at post status %q", kj.Post.Status)
		}

		kj.Post.Request = models.RequestPending

		history := models.KolJobHistory{
			KolJobID:   kj.ID,
			ActorID:    kolID,
			JobStatus:  kj.Status,
			PostStatus: kj.Post.Status,
			Action:     "post_submitted",
		}

		if err := tx.Save(&kj).Error; err != nil {
			return fmt.Errorf("failed to save kol job: %w", err)
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.admin.PushAdminNotify(ctx, fmt.Sprintf("kol %d submitted for review on job %d", kolID, kj.JobID), "post_submitted")
	return &kj, nil
}

// AcceptPost advances the assignment one stage and mirrors the matching
// ledger effect. Causer and target must be bound; their absence is a
// programming error, not a business failure.
func (s *KolJobService) AcceptPost(ctx context.Context, kolJobID, causerID uint) (*models.KolJob, error) {
	return s.review(ctx, kolJobID, causerID, eventAccept, "")
}

// RejectPost records the rejection with its mandatory reason. The post status
// never advances on rejection.
func (s *KolJobService) RejectPost(ctx context.Context, kolJobID, causerID uint, reason string) (*models.KolJob, error) {
	if reason == "" {
		return nil, invalid(CodeReasonRequired, "a rejection reason is required")
	}
	return s.review(ctx, kolJobID, causerID, eventReject, reason)
}

func (s *KolJobService) review(ctx context.Context, kolJobID, causerID uint, ev postEvent, reason string) (*models.KolJob, error) {
	if causerID == 0 {
		return nil, fmt.Errorf("post state machine: causer not bound")
	}
	if kolJobID == 0 {
		return nil, fmt.Errorf("post state machine: target not bound")
	}

	var kj models.KolJob

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&kj, kolJobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(CodeKolJobNotFound, "kol job %d not found", kolJobID)
			}
			return fmt.Errorf("failed to load kol job: %w", err)
		}
		if kj.Status.Terminal() {
			return forbidden(CodeStateNotAllowed, "kol job %d already settled", kolJobID)
		}
		if kj.Post.Request != models.RequestPending {
			return forbidden(CodeRequestNotPending, "no review request pending on kol job %d", kolJobID)
		}

		tr, err := resolvePostTransition(kj.Post.Status, ev)
		if err != nil {
			return err
		}

		var kol models.Kol
		if err := lockForUpdate(tx).First(&kol, kj.KolID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(CodeKolNotFound, "kol %d not found", kj.KolID)
			}
			return fmt.Errorf("failed to load kol: %w", err)
		}

		// The gating side effect. No receipt, no transition.
		receipt, err := s.gateway.Send(ctx, tx, causerID, kol.ID, tr.mail, map[string]any{
			"kol_job_id": kj.ID,
			"job_id":     kj.JobID,
			"price":      kj.Price,
			"reason":     reason,
		})
		if err != nil {
			return fmt.Errorf("notification dispatch failed: %w", err)
		}

		if tr.nextPost != "" {
			kj.Post.Status = tr.nextPost
		}
		if tr.nextStatus != "" {
			kj.Status = tr.nextStatus
		}
		kj.Post.Request = tr.nextRequest

		if tr.payout {
			kol.Income.Pending = flooredSub64(kol.Income.Pending, kj.Price)
			kol.Income.Approved += kj.Price
			kol.JobStats.RunningCount = flooredSub(kol.JobStats.RunningCount, 1)
			kol.JobStats.CompletedCount++
		}
		if tr.forfeit {
			kol.Income.Pending = flooredSub64(kol.Income.Pending, kj.Price)
			kol.JobStats.RunningCount = flooredSub(kol.JobStats.RunningCount, 1)
		}

		history := models.KolJobHistory{
			KolJobID:   kj.ID,
			ActorID:    causerID,
			JobStatus:  kj.Status,
			PostStatus: kj.Post.Status,
			Action:     tr.action,
			Reason:     reason,
			MessageID:  receipt.MessageID,
		}

		if err := tx.Save(&kj).Error; err != nil {
			return fmt.Errorf("failed to save kol job: %w", err)
		}
		if tr.payout || tr.forfeit {
			if err := tx.Save(&kol).Error; err != nil {
				return fmt.Errorf("failed to save kol ledger: %w", err)
			}
			// Ledger movements are mirrored on the KOL-level audit log.
			action := models.HistoryAction{
				KolID:    kol.ID,
				CauserID: causerID,
				Action:   tr.action,
			}
			if err := tx.Create(&action).Error; err != nil {
				return fmt.Errorf("failed to append history action: %w", err)
			}
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Post review applied",
		zap.Uint("kol_job_id", kj.ID),
		zap.String("event", string(ev)),
		zap.String("post_status", string(kj.Post.Status)),
		zap.String("status", string(kj.Status)))

	return &kj, nil
}

func flooredSub(v, d int) int {
	if v < d {
		return 0
	}
	return v - d
}

func flooredSub64(v, d int64) int64 {
	if v < d {
		return 0
	}
	return v - d
}
