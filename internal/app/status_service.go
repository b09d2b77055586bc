package app

import (
	"context"
	"fmt"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"docbox_notifier/internal/domain/box"
)

// StatusService is the status transition engine: it closes OPEN boxes whose
// deadline has passed.
type StatusService struct {
	boxes   box.Repository
	clock   clock.Clock
	logger  *logrus.Entry
	metrics Metrics
}

func NewStatusService(boxes box.Repository, clk clock.Clock, logger *logrus.Entry, metrics Metrics) *StatusService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &StatusService{boxes: boxes, clock: clk, logger: logger, metrics: metrics}
}

// ExpireOverdue moves every OPEN box past its deadline to CLOSED_EXPIRED in
// one batch update. OPEN_SOMEONE and OPEN_RESUME boxes are never touched.
// Running it again is a no-op for boxes it already closed.
func (s *StatusService) ExpireOverdue(ctx context.Context) (*TransitionResult, error) {
	now := s.clock.Now()
	ids, err := s.boxes.ExpireOpenBefore(ctx, now)
	if err != nil {
		s.logger.WithError(err).Error("Status transition step failed, next tick will retry")
		return nil, fmt.Errorf("failed to expire overdue boxes: %w", err)
	}
	s.metrics.BoxesExpired(len(ids))
	if len(ids) > 0 {
		s.logger.WithFields(logrus.Fields{"count": len(ids), "box_ids": ids}).Info("Expired overdue boxes")
	} else {
		s.logger.Debug("No overdue boxes to expire")
	}
	if ids == nil {
		ids = []int64{}
	}
	return &TransitionResult{RunAt: now, Count: len(ids), BoxIDs: ids}, nil
}
