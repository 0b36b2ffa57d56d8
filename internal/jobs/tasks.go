package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polystore/polystore-console/internal/observability"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRecountRoles recomputes roles.user_count from the users table. The
	// console never adjusts counts inline; this task is the backend
	// maintenance of the value.
	TaskRecountRoles = "rbac:recount_roles"
	// TaskPurgeAudit removes audit rows past the retention horizon.
	TaskPurgeAudit = "audit:purge"
)

// PurgeAuditPayload parametrises the audit purge.
type PurgeAuditPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewRecountRolesTask constructs an Asynq task.
func NewRecountRolesTask() *asynq.Task {
	return asynq.NewTask(TaskRecountRoles, nil)
}

// NewPurgeAuditTask constructs an Asynq task.
func NewPurgeAuditTask(payload PurgeAuditPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurgeAudit, data), nil
}

// NewRecountRolesHandler builds the handler for TaskRecountRoles.
func NewRecountRolesHandler(pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		err := recountRoles(ctx, pool)
		metrics.ObserveJob(TaskRecountRoles, err)
		if err != nil {
			if logger != nil {
				logger.Error("recount roles", slog.Any("error", err))
			}
			return err
		}
		if logger != nil {
			logger.Info("recount roles finished")
		}
		return nil
	}
}

// NewPurgeAuditHandler builds the handler for TaskPurgeAudit.
func NewPurgeAuditHandler(pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PurgeAuditPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.Retention <= 0 {
			payload.Retention = 90 * 24 * time.Hour
		}
		removed, err := purgeAudit(ctx, pool, payload.Retention)
		metrics.ObserveJob(TaskPurgeAudit, err)
		if err != nil {
			if logger != nil {
				logger.Error("purge audit", slog.Any("error", err))
			}
			return err
		}
		if logger != nil {
			logger.Info("purge audit finished", slog.Int64("removed", removed))
		}
		return nil
	}
}

func recountRoles(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		UPDATE roles r SET user_count = counted.n, updated_at = NOW()
		FROM (
			SELECT r2.id, COUNT(u.id) AS n
			FROM roles r2
			LEFT JOIN users u ON u.role_name = r2.name
			GROUP BY r2.id
		) AS counted
		WHERE counted.id = r.id AND r.user_count <> counted.n`)
	return err
}

func purgeAudit(ctx context.Context, pool *pgxpool.Pool, retention time.Duration) (int64, error) {
	tag, err := pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < NOW() - $1::interval`, retention.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
