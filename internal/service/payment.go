package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hypecast/kolport/internal/config"
	"github.com/hypecast/kolport/internal/models"
)

// PaymentService handles payout requests against the approved income bucket.
// The approved balance is withdrawn provisionally at request creation; admin
// acceptance makes the withdrawal permanent, rejection restores the snapshot.
type PaymentService struct {
	db      *gorm.DB
	config  *config.PaymentConfig
	gateway NotificationGateway
	admin   AdminNotifier
	logger  *zap.Logger
}

func NewPaymentService(db *gorm.DB, cfg *config.PaymentConfig, gateway NotificationGateway, admin AdminNotifier, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		db:      db,
		config:  cfg,
		gateway: gateway,
		admin:   admin,
		logger:  logger,
	}
}

// CreateRequestPayment snapshots the KOL's approved balance into a raw payout
// request and zeroes the balance in the same transaction. The KOL row is
// locked first, so concurrent creates for the same KOL serialize on the
// one-raw-request check. The KOL-facing notification is best-effort.
func (s *PaymentService) CreateRequestPayment(ctx context.Context, kolID uint) (*models.PaymentRequest, error) {
	var request models.PaymentRequest

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var kol models.Kol
		if err := lockForUpdate(tx).First(&kol, kolID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(CodeKolNotFound, "kol %d not found", kolID)
			}
			return fmt.Errorf("failed to load kol: %w", err)
		}

		if kol.Income.Approved <= s.config.MinPayout {
			return forbidden(CodeBelowThreshold, "approved income %d does not exceed the payout minimum %d",
				kol.Income.Approved, s.config.MinPayout)
		}

		var pending int64
		if err := tx.Model(&models.PaymentRequest{}).
			Where("kol_id = ? AND status = ?", kolID, models.PaymentRequestRaw).
			Count(&pending).Error; err != nil {
			return fmt.Errorf("failed to check pending requests: %w", err)
		}
		if pending > 0 {
			return forbidden(CodePayoutPending, "a payout request is already pending for kol %d", kolID)
		}

		request = models.PaymentRequest{
			KolID:  kolID,
			Price:  kol.Income.Approved,
			Status: models.PaymentRequestRaw,
		}
		if err := tx.Create(&request).Error; err != nil {
			return fmt.Errorf("failed to create payment request: %w", err)
		}

		kol.Income.Approved = 0
		if err := tx.Save(&kol).Error; err != nil {
			return fmt.Errorf("failed to save kol ledger: %w", err)
		}

		action := models.HistoryAction{
			KolID:            kolID,
			CauserID:         kolID,
			Action:           "payout_requested",
			PaymentRequestID: &request.ID,
		}
		if err := tx.Create(&action).Error; err != nil {
			return fmt.Errorf("failed to append history action: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Best-effort: the request stands even when this mail fails.
	if _, err := s.gateway.Send(ctx, s.db.WithContext(ctx), kolID, kolID, models.MailPayoutRequested, map[string]any{
		"request_id": request.ID,
		"price":      request.Price,
	}); err != nil {
		s.logger.Warn("Payout request mail failed", zap.Uint("request_id", request.ID), zap.Error(err))
	}

	s.admin.PushAdminNotify(ctx, fmt.Sprintf("kol %d requested payout of %d", kolID, request.Price), "payout_requested")
	return &request, nil
}

// AcceptRequest settles a raw payout request. The balance was already zeroed
// at creation, so the ledger does not move; the confirmation mail gates the
// status flip.
func (s *PaymentService) AcceptRequest(ctx context.Context, causerID, requestID uint) (*models.PaymentRequest, error) {
	if causerID == 0 {
		return nil, fmt.Errorf("payment workflow: causer not bound")
	}

	var request models.PaymentRequest

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&request, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(CodeRequestNotFound, "payment request %d not found", requestID)
			}
			return fmt.Errorf("failed to load payment request: %w", err)
		}
		if request.Status != models.PaymentRequestRaw {
			return forbidden(CodeStateNotAllowed, "payment request %d is already %s", requestID, request.Status)
		}

		if _, err := s.gateway.Send(ctx, tx, causerID, request.KolID, models.MailPayoutAccepted, map[string]any{
			"request_id": request.ID,
			"price":      request.Price,
		}); err != nil {
			return fmt.Errorf("notification dispatch failed: %w", err)
		}

		request.Status = models.PaymentRequestAccept
		if err := tx.Save(&request).Error; err != nil {
			return fmt.Errorf("failed to save payment request: %w", err)
		}

		action := models.HistoryAction{
			KolID:            request.KolID,
			CauserID:         causerID,
			Action:           "payout_accepted",
			PaymentRequestID: &request.ID,
		}
		if err := tx.Create(&action).Error; err != nil {
			return fmt.Errorf("failed to append history action: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payout request accepted",
		zap.Uint("request_id", request.ID),
		zap.Uint("kol_id", request.KolID),
		zap.Int64("price", request.Price))

	return &request, nil
}

// RejectRequest declines a raw payout request and restores the snapshotted
// amount onto the approved balance. The restore is additive: income approved
// since the request was created is kept.
func (s *PaymentService) RejectRequest(ctx context.Context, causerID, requestID uint, reason string) (*models.PaymentRequest, error) {
	if causerID == 0 {
		return nil, fmt.Errorf("payment workflow: causer not bound")
	}
	if reason == "" {
		return nil, invalid(CodeReasonRequired, "a rejection reason is required")
	}

	var request models.PaymentRequest

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&request, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(CodeRequestNotFound, "payment request %d not found", requestID)
			}
			return fmt.Errorf("failed to load payment request: %w", err)
		}
		if request.Status != models.PaymentRequestRaw {
			return forbidden(CodeStateNotAllowed, "payment request %d is already %s", requestID, request.Status)
		}

		var kol models.Kol
		if err := lockForUpdate(tx).First(&kol, request.KolID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(CodeKolNotFound, "kol %d not found", request.KolID)
			}
			return fmt.Errorf("failed to load kol: %w", err)
		}

		if _, err := s.gateway.Send(ctx, tx, causerID, request.KolID, models.MailPayoutRejected, map[string]any{
			"request_id": request.ID,
			"price":      request.Price,
			"reason":     reason,
		}); err != nil {
			return fmt.Errorf("notification dispatch failed: %w", err)
		}

		request.Status = models.PaymentRequestReject
		request.Reason = reason
		if err := tx.Save(&request).Error; err != nil {
			return fmt.Errorf("failed to save payment request: %w", err)
		}

		kol.Income.Approved += request.Price
		if err := tx.Save(&kol).Error; err != nil {
			return fmt.Errorf("failed to save kol ledger: %w", err)
		}

		action := models.HistoryAction{
			KolID:            request.KolID,
			CauserID:         causerID,
			Action:           "payout_rejected",
			PaymentRequestID: &request.ID,
		}
		if err := tx.Create(&action).Error; err != nil {
			return fmt.Errorf("failed to append history action: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payout request rejected",
		zap.Uint("request_id", request.ID),
		zap.Uint("kol_id", request.KolID),
		zap.String("reason", reason))

	return &request, nil
}

// CountPendingRequests is used by the payout digest scheduler.
func (s *PaymentService) CountPendingRequests(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PaymentRequest{}).
		Where("status = ?", models.PaymentRequestRaw).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pending requests: %w", err)
	}
	return count, nil
}
