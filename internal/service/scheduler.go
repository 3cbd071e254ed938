package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hypecast/kolport/internal/config"
)

// Scheduler periodically pushes a digest of pending payout requests to the
// admin channel so raw requests are not forgotten.
type Scheduler struct {
	config   *config.SchedulerConfig
	logger   *zap.Logger
	payments *PaymentService
	admin    AdminNotifier
	ticker   *time.Ticker
	stopCh   chan struct{}
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, payments *PaymentService, admin AdminNotifier) *Scheduler {
	return &Scheduler{
		config:   cfg,
		logger:   logger,
		payments: payments,
		admin:    admin,
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	interval, err := time.ParseDuration(s.config.DigestInterval)
	if err != nil {
		s.logger.Error("Invalid digest interval", zap.String("interval", s.config.DigestInterval), zap.Error(err))
		return err
	}

	s.logger.Info("Starting scheduler", zap.String("digest_interval", s.config.DigestInterval))

	s.ticker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-s.ticker.C:
				if err := s.runDigest(ctx); err != nil {
					s.logger.Error("Payout digest failed", zap.Error(err))
				}
			case <-s.stopCh:
				s.logger.Info("Scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) runDigest(ctx context.Context) error {
	count, err := s.payments.CountPendingRequests(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	s.admin.PushAdminNotify(ctx, fmt.Sprintf("%d payout requests awaiting review", count), "payout_digest")
	return nil
}

func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
	s.logger.Info("Scheduler shutdown completed")
}
