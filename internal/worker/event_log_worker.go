package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/egov/grievance-service/internal/events"
)

// StartEventLogWorker subscribes a structured-log sink to the in-process bus, so
// status changes stay visible when no broker is configured.
func StartEventLogWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil || logger == nil {
		return
	}
	dispatcher.Subscribe(func(_ context.Context, event events.GrievanceStatusChangedEvent) error {
		logger.Info("grievance status changed",
			zap.String("grievance_id", event.GrievanceID),
			zap.String("department_id", event.DepartmentID),
			zap.String("old_status", event.OldStatus),
			zap.String("new_status", event.NewStatus),
			zap.String("changed_by", event.ChangedBy),
			zap.Stringp("assigned_officer_id", event.AssignedOfficerID),
		)
		return nil
	})
}
