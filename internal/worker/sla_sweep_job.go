package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/egov/grievance-service/internal/domain"
	"github.com/egov/grievance-service/internal/observability"
)

// Sweeper lists grievances that are breaching SLA or already escalated.
type Sweeper interface {
	Sweep(ctx context.Context) ([]domain.Grievance, error)
}

// SLASweepJob periodically runs the SLA sweep and publishes the at-risk gauge.
// It only reports; it never changes a grievance.
type SLASweepJob struct {
	sweeper  Sweeper
	schedule string
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
	cron     *cron.Cron
}

// NewSLASweepJob builds the job. An empty schedule disables it.
func NewSLASweepJob(sweeper Sweeper, schedule string, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *SLASweepJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLASweepJob{
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Start registers the schedule and starts the scheduler.
func (j *SLASweepJob) Start() error {
	if j.schedule == "" {
		j.logger.Info("sla sweep job disabled")
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() { j.RunOnce(context.Background()) }); err != nil {
		return err
	}
	j.cron = c
	c.Start()
	j.logger.Info("sla sweep job scheduled", zap.String("schedule", j.schedule))
	return nil
}

// Stop halts scheduling and waits for a running sweep up to ctx.
func (j *SLASweepJob) Stop(ctx context.Context) {
	if j.cron == nil {
		return
	}
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce performs one sweep and returns the at-risk count per department.
func (j *SLASweepJob) RunOnce(ctx context.Context) map[string]int {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	started := time.Now()
	grievances, err := j.sweeper.Sweep(ctx)
	if err != nil {
		j.logger.Error("sla sweep failed", zap.Error(err))
		return nil
	}

	byDepartment := make(map[string]int)
	for _, g := range grievances {
		byDepartment[g.DepartmentID]++
	}
	elapsed := time.Since(started)
	j.metrics.ObserveSweep(elapsed, byDepartment)
	j.logger.Info("sla sweep finished",
		zap.Int("at_risk", len(grievances)),
		zap.Int("departments", len(byDepartment)),
		zap.Duration("elapsed", elapsed),
	)
	return byDepartment
}
