package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskReorderSweep is the nightly scan for products at or below their
// reorder point. It catches products whose crossing event was missed (for
// example after a manual adjustment downward past both thresholds at once).
const TaskReorderSweep = "ledger:stock.reorder_sweep"

// NewReorderSweepTask builds the cron task.
func NewReorderSweepTask() *asynq.Task {
	return asynq.NewTask(TaskReorderSweep, nil)
}

// ReorderSweepJob emails a digest of every product needing reorder.
type ReorderSweepJob struct {
	pool     *pgxpool.Pool
	notifier *Notifier
	logger   *slog.Logger
}

// NewReorderSweepJob constructs the job.
func NewReorderSweepJob(pool *pgxpool.Pool, notifier *Notifier, logger *slog.Logger) *ReorderSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReorderSweepJob{pool: pool, notifier: notifier, logger: logger}
}

// Handle processes TaskReorderSweep tasks.
func (j *ReorderSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	rows, err := j.pool.Query(ctx, `
		SELECT code, name, quantity, reorder_point
		FROM products
		WHERE reorder_point > 0 AND quantity <= reorder_point
		ORDER BY code`)
	if err != nil {
		return fmt.Errorf("jobs: reorder sweep query: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	count := 0
	for rows.Next() {
		var code, name string
		var quantity, reorderPoint int64
		if err := rows.Scan(&code, &name, &quantity, &reorderPoint); err != nil {
			return fmt.Errorf("jobs: reorder sweep scan: %w", err)
		}
		count++
		fmt.Fprintf(&b, "%s %s: %d left (reorder at %d)\n", code, name, quantity, reorderPoint)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if count == 0 {
		j.logger.Info("reorder sweep clean")
		return nil
	}

	subject := fmt.Sprintf("Reorder digest: %d products below reorder point", count)
	return j.notifier.send(ctx, subject, b.String())
}
