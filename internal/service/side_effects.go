package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/egov/grievance-service/internal/domain"
	"github.com/egov/grievance-service/internal/events"
)

// afterCommit appends the history entry and publishes the event on a tracked goroutine.
//
// Both steps are best-effort and at-most-once: a failure is logged and counted but never
// retried, and there is no outbox, so the ledger or the event stream can lag behind the
// aggregate. Tasks for the same grievance run in commit order.
func (s *GrievanceService) afterCommit(ctx context.Context, g *domain.Grievance, oldStatus *domain.GrievanceStatus, changedBy string, at time.Time) {
	entry := &domain.StatusHistoryEntry{
		ID:          s.newID(),
		GrievanceID: g.ID,
		OldStatus:   oldStatus,
		NewStatus:   g.Status,
		ChangedBy:   changedBy,
		ChangedAt:   at,
	}
	event := events.NewStatusChangedEvent(g, entry)
	detached := context.WithoutCancel(ctx)

	s.tailsMu.Lock()
	previous := s.tails[g.ID]
	done := make(chan struct{})
	s.tails[g.ID] = done
	s.tailsMu.Unlock()

	s.sideEffects.Add(1)
	go func() {
		defer s.sideEffects.Done()
		defer s.releaseTail(g.ID, done)
		if previous != nil {
			<-previous
		}

		taskCtx := detached
		if s.sideEffectTimeout > 0 {
			var cancel context.CancelFunc
			taskCtx, cancel = context.WithTimeout(detached, s.sideEffectTimeout)
			defer cancel()
		}

		if err := s.history.Append(taskCtx, entry); err != nil {
			s.metrics.RecordSideEffectFailure("history")
			s.logger.Error("history append failed",
				zap.String("grievance_id", entry.GrievanceID),
				zap.String("new_status", string(entry.NewStatus)),
				zap.Error(err),
			)
		}

		if s.publisher == nil {
			return
		}
		if err := s.publisher.Publish(taskCtx, event); err != nil {
			s.metrics.RecordSideEffectFailure("event")
			s.logger.Error("event publish failed",
				zap.String("grievance_id", event.GrievanceID),
				zap.String("new_status", event.NewStatus),
				zap.Error(err),
			)
		}
	}()
}

func (s *GrievanceService) releaseTail(id string, done chan struct{}) {
	close(done)
	s.tailsMu.Lock()
	if s.tails[id] == done {
		delete(s.tails, id)
	}
	s.tailsMu.Unlock()
}

// Wait blocks until every scheduled history append and event publish has finished.
func (s *GrievanceService) Wait() {
	s.sideEffects.Wait()
}
