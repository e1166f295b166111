package workers

import (
	"context"
	"time"

	"helpdesk/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkerTask represents a named operation to be executed during a worker run.
type WorkerTask struct {
	Name string
	Fn   func(ctx context.Context) (int, error)
}

// RunTracker persists worker cycles to the worker_runs table so operators can
// see when a cleanup last succeeded.
type RunTracker struct {
	DB *gorm.DB
}

// StartRun opens a run record in the running state.
func (t *RunTracker) StartRun(workerName string) (*models.WorkerRun, error) {
	run := models.WorkerRun{
		WorkerName: workerName,
		Status:     models.WorkerRunStatusRunning,
		StartedAt:  time.Now(),
	}
	if err := t.DB.Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// CompleteRun marks the run as completed.
func (t *RunTracker) CompleteRun(run *models.WorkerRun) {
	t.closeRun(run, models.WorkerRunStatusCompleted)
}

// FailRun marks the run as failed.
func (t *RunTracker) FailRun(run *models.WorkerRun) {
	t.closeRun(run, models.WorkerRunStatusFailed)
}

func (t *RunTracker) closeRun(run *models.WorkerRun, status models.WorkerRunStatus) {
	err := t.DB.Model(run).Updates(map[string]any{
		"status":   status,
		"ended_at": time.Now(),
	}).Error
	if err != nil {
		zap.L().Error("Failed to close worker run",
			zap.String("worker", run.WorkerName),
			zap.Error(err))
	}
}

func executeTasks(ctx context.Context, tasks []WorkerTask) ([]int, bool) {
	counts := make([]int, len(tasks))
	failed := false

	for i, task := range tasks {
		count, taskErr := task.Fn(ctx)
		if taskErr != nil {
			zap.L().Error("Cleanup task failed",
				zap.String("task", task.Name),
				zap.Error(taskErr))
			failed = true
		}
		counts[i] = count
	}

	return counts, failed
}

// StartPeriodicWorker runs an immediate tracked cycle, then repeats on
// interval until the context is cancelled.
func StartPeriodicWorker(
	ctx context.Context,
	workerName string,
	interval time.Duration,
	tracker *RunTracker,
	tasks []WorkerTask,
) {
	zap.L().Info("Starting worker",
		zap.String("worker", workerName),
		zap.Duration("interval", interval))

	runWorkerCycle(ctx, workerName, tracker, tasks)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Worker shutting down", zap.String("worker", workerName))
			return
		case <-ticker.C:
			runWorkerCycle(ctx, workerName, tracker, tasks)
		}
	}
}

// runWorkerCycle executes a single tracked worker cycle, logging timing and
// per-task counts.
func runWorkerCycle(ctx context.Context, workerName string, tracker *RunTracker, tasks []WorkerTask) {
	startTime := time.Now()
	zap.L().Info("Starting worker cycle", zap.String("worker", workerName))

	run, err := tracker.StartRun(workerName)
	if err != nil {
		zap.L().Error("Failed to start worker run tracking", zap.Error(err))
		return
	}

	counts, failed := executeTasks(ctx, tasks)

	if failed {
		tracker.FailRun(run)
	} else {
		tracker.CompleteRun(run)
	}

	fields := []zap.Field{zap.String("worker", workerName)}
	for i, task := range tasks {
		fields = append(fields, zap.Int(task.Name, counts[i]))
	}
	fields = append(fields, zap.Duration("duration", time.Since(startTime)))

	zap.L().Info("Worker cycle complete", fields...)
}
