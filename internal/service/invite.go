package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hypecast/kolport/internal/models"
)

// InviteService turns standing invites into active job assignments, enforcing
// slot capacity and answer completeness, and keeps the invite-side ledger
// counters consistent.
type InviteService struct {
	db     *gorm.DB
	admin  AdminNotifier
	logger *zap.Logger
}

func NewInviteService(db *gorm.DB, admin AdminNotifier, logger *zap.Logger) *InviteService {
	return &InviteService{
		db:     db,
		admin:  admin,
		logger: logger,
	}
}

type JoinAnswer struct {
	QuestionID uint   `json:"question_id"`
	Answer     string `json:"answer"`
}

type JoinJobInput struct {
	TimeSlotID uint         `json:"time_slot_id"`
	Answers    []JoinAnswer `json:"answers"`
}

// JoinJob accepts a raw invite on behalf of its KOL and materializes the
// assignment. Slot increment, invite flip, KolJob creation, ledger counter
// moves and the job history append all commit together or not at all.
func (s *InviteService) JoinJob(ctx context.Context, kolID, inviteID uint, input JoinJobInput) (*models.KolJob, error) {
	var kj models.KolJob

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invite models.Invite
		if err := lockForUpdate(tx).First(&invite, inviteID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(CodeInviteNotFound, "invite %d not found", inviteID)
			}
			return fmt.Errorf("failed to load invite: %w", err)
		}
		if invite.KolID != kolID {
			return forbidden(CodeNotInviteOwner, "invite %d does not belong to kol %d", inviteID, kolID)
		}
		if invite.Status != models.InviteRaw {
			return forbidden(CodeInviteNotRaw, "invite %d is already %s", inviteID, invite.Status)
		}

		var questions []models.JobQuestion
		if err := tx.Where("job_id = ?", invite.JobID).Find(&questions).Error; err != nil {
			return fmt.Errorf("failed to load job questions: %w", err)
		}
		answered := make(map[uint]string, len(input.Answers))
		for _, a := range input.Answers {
			if a.Answer != "" {
				answered[a.QuestionID] = a.Answer
			}
		}
		for _, q := range questions {
			if _, ok := answered[q.ID]; !ok {
				return invalid(CodeQuestionUnanswered, "question %d is unanswered", q.ID)
			}
		}

		var slot models.TimeSlot
		if err := tx.Where("id = ? AND job_id = ?", input.TimeSlotID, invite.JobID).First(&slot).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(CodeSlotNotFound, "time slot %d not found on job %d", input.TimeSlotID, invite.JobID)
			}
			return fmt.Errorf("failed to load time slot: %w", err)
		}
		if slot.JoinCount >= slot.CapacityLimit {
			return forbidden(CodeTimeEmpty, "time slot %d is full", slot.ID)
		}

		// Guarded increment: zero rows affected means the slot filled
		// concurrently between the read and the update.
		res := tx.Model(&models.TimeSlot{}).
			Where("id = ? AND join_count < capacity_limit", slot.ID).
			Update("join_count", gorm.Expr("join_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("failed to take slot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return forbidden(CodeTimeEmpty, "time slot %d is full", slot.ID)
		}

		var kol models.Kol
		if err := lockForUpdate(tx).First(&kol, kolID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(CodeKolNotFound, "kol %d not found", kolID)
			}
			return fmt.Errorf("failed to load kol: %w", err)
		}

		kj = models.KolJob{
			KolID:      kolID,
			JobID:      invite.JobID,
			TimeSlotID: slot.ID,
			Price:      invite.Price,
			Status:     models.JobActive,
			Post:       models.Post{Status: models.PostRaw},
		}
		if err := tx.Create(&kj).Error; err != nil {
			return fmt.Errorf("failed to create kol job: %w", err)
		}

		for _, a := range input.Answers {
			ans := models.KolJobAnswer{
				KolJobID:   kj.ID,
				QuestionID: a.QuestionID,
				Answer:     a.Answer,
			}
			if err := tx.Create(&ans).Error; err != nil {
				return fmt.Errorf("failed to store answer: %w", err)
			}
		}

		invite.Status = models.InviteJoin
		if err := tx.Save(&invite).Error; err != nil {
			return fmt.Errorf("failed to save invite: %w", err)
		}
		inviteHistory := models.InviteHistory{
			InviteID: invite.ID,
			ActorID:  kolID,
			Status:   models.InviteJoin,
		}
		if err := tx.Create(&inviteHistory).Error; err != nil {
			return fmt.Errorf("failed to append invite history: %w", err)
		}

		jobHistory := models.JobKolHistory{
			JobID:   invite.JobID,
			KolID:   kolID,
			ActorID: kolID,
			Action:  "kol_accepted_invite",
		}
		if err := tx.Create(&jobHistory).Error; err != nil {
			return fmt.Errorf("failed to append job history: %w", err)
		}

		// The agreed price enters the pending bucket here; it leaves it when
		// the payment stage settles one way or the other.
		kol.Income.Pending += invite.Price
		kol.JobStats.InviteCount = flooredSub(kol.JobStats.InviteCount, 1)
		kol.JobStats.RunningCount++
		if err := tx.Save(&kol).Error; err != nil {
			return fmt.Errorf("failed to save kol ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.admin.PushAdminNotify(ctx, fmt.Sprintf("kol %d joined job %d", kolID, kj.JobID), "invite_joined")
	s.logger.Info("Invite accepted",
		zap.Uint("invite_id", inviteID),
		zap.Uint("kol_id", kolID),
		zap.Uint("kol_job_id", kj.ID))

	return &kj, nil
}

// RejectInvite terminally declines a raw invite, recording the reason on the
// invite and the job's per-KOL history, and releasing the invite counter.
func (s *InviteService) RejectInvite(ctx context.Context, causerID, inviteID uint, reason string) (*models.Invite, error) {
	if reason == "" {
		return nil, invalid(CodeReasonRequired, "a rejection reason is required")
	}

	var invite models.Invite

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&invite, inviteID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(CodeInviteNotFound, "invite %d not found", inviteID)
			}
			return fmt.Errorf("failed to load invite: %w", err)
		}
		if invite.Status != models.InviteRaw {
			return forbidden(CodeInviteNotRaw, "invite %d is already %s", inviteID, invite.Status)
		}

		invite.Status = models.InviteReject
		if err := tx.Save(&invite).Error; err != nil {
			return fmt.Errorf("failed to save invite: %w", err)
		}
		inviteHistory := models.InviteHistory{
			InviteID: invite.ID,
			ActorID:  causerID,
			Status:   models.InviteReject,
			Reason:   reason,
		}
		if err := tx.Create(&inviteHistory).Error; err != nil {
			return fmt.Errorf("failed to append invite history: %w", err)
		}

		jobHistory := models.JobKolHistory{
			JobID:   invite.JobID,
			KolID:   invite.KolID,
			ActorID: causerID,
			Action:  "kol_rejected_invite",
			Reason:  reason,
		}
		if err := tx.Create(&jobHistory).Error; err != nil {
			return fmt.Errorf("failed to append job history: %w", err)
		}

		var kol models.Kol
		if err := lockForUpdate(tx).First(&kol, invite.KolID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(CodeKolNotFound, "kol %d not found", invite.KolID)
			}
			return fmt.Errorf("failed to load kol: %w", err)
		}
		kol.JobStats.InviteCount = flooredSub(kol.JobStats.InviteCount, 1)
		if err := tx.Save(&kol).Error; err != nil {
			return fmt.Errorf("failed to save kol ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Invite rejected",
		zap.Uint("invite_id", inviteID),
		zap.Uint("causer_id", causerID))

	return &invite, nil
}
