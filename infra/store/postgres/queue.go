package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/core/store"
)

const taskColumns = `id, from_station_id, to_station_id, qty, reason, status, worker_id, created_at, assigned_at, completed_at`

// PublishSuggestions inserts batch as a new generation and points readers at
// it. Older generations are dropped in the same transaction.
func (s *Store) PublishSuggestions(ctx context.Context, batch []model.Suggestion) (int64, error) {
	var gen int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var created time.Time
		if err := tx.QueryRow(ctx, `INSERT INTO suggestion_generations DEFAULT VALUES RETURNING id, created_at`).
			Scan(&gen, &created); err != nil {
			return err
		}
		if len(batch) > 0 {
			b := &pgx.Batch{}
			for _, sg := range batch {
				b.Queue(`INSERT INTO suggestions (generation, from_station_id, to_station_id, qty, distance_m, forecast_ts, reason, created_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
					gen, sg.FromStationID, sg.ToStationID, sg.Qty, sg.DistanceM, sg.ForecastTS, sg.Reason, created)
			}
			if err := tx.SendBatch(ctx, b).Close(); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `INSERT INTO suggestion_current (singleton, generation) VALUES (TRUE, $1)
			ON CONFLICT (singleton) DO UPDATE SET generation = EXCLUDED.generation`, gen); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM suggestion_generations WHERE id < $1`, gen)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("publish suggestions: %w", err)
	}
	return gen, nil
}

// Suggestions returns the current generation ordered by id.
func (s *Store) Suggestions(ctx context.Context) ([]model.Suggestion, error) {
	rows, err := s.pool.Query(ctx, `SELECT s.id, s.generation, s.from_station_id, s.to_station_id, s.qty,
			s.distance_m, s.forecast_ts, s.reason, s.created_at
		FROM suggestions s JOIN suggestion_current c ON c.generation = s.generation
		ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Suggestion, error) {
		var sg model.Suggestion
		err := row.Scan(&sg.ID, &sg.Generation, &sg.FromStationID, &sg.ToStationID, &sg.Qty,
			&sg.DistanceM, &sg.ForecastTS, &sg.Reason, &sg.CreatedAt)
		return sg, err
	})
}

// PromoteSuggestion deletes the suggestion from the current generation and
// creates a ready task from it in one transaction. A concurrent promotion of
// the same id waits on the row lock and then finds nothing to delete.
func (s *Store) PromoteSuggestion(ctx context.Context, suggestionID int64) (model.Task, error) {
	var task model.Task
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var in model.TaskInput
		err := tx.QueryRow(ctx, `DELETE FROM suggestions
			WHERE id = $1 AND generation = (SELECT generation FROM suggestion_current)
			RETURNING from_station_id, to_station_id, qty, reason`, suggestionID).
			Scan(&in.FromStationID, &in.ToStationID, &in.Qty, &in.Reason)
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		task, err = insertTask(ctx, tx, in)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return model.Task{}, fmt.Errorf("suggestion %d: %w", suggestionID, store.ErrNotFound)
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("promote suggestion %d: %w", suggestionID, err)
	}
	return task, nil
}

// CreateTask inserts a ready task.
func (s *Store) CreateTask(ctx context.Context, in model.TaskInput) (model.Task, error) {
	if err := in.Validate(); err != nil {
		return model.Task{}, err
	}
	task, err := insertTask(ctx, s.pool, in)
	if err != nil {
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertTask(ctx context.Context, q querier, in model.TaskInput) (model.Task, error) {
	return scanTask(q.QueryRow(ctx, `INSERT INTO tasks (from_station_id, to_station_id, qty, reason, status)
		VALUES ($1, $2, $3, $4, 'ready') RETURNING `+taskColumns,
		in.FromStationID, in.ToStationID, in.Qty, in.Reason))
}

// ClaimTask assigns the oldest ready task to workerID. Rows locked by an
// in-flight claim are skipped, so concurrent workers never receive the same
// task and never wait for each other.
func (s *Store) ClaimTask(ctx context.Context, workerID string) (model.Task, error) {
	task, err := scanTask(s.pool.QueryRow(ctx, `UPDATE tasks
		SET status = 'assigned', worker_id = $1, assigned_at = clock_timestamp()
		WHERE id = (
			SELECT id FROM tasks WHERE status = 'ready'
			ORDER BY created_at, id
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+taskColumns, workerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, store.ErrQueueEmpty
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("claim task: %w", err)
	}
	return task, nil
}

// CompleteTask marks the task completed whatever its status. The first
// completion time is kept.
func (s *Store) CompleteTask(ctx context.Context, taskID int64) (model.Task, error) {
	task, err := scanTask(s.pool.QueryRow(ctx, `UPDATE tasks
		SET status = 'completed', completed_at = COALESCE(completed_at, clock_timestamp())
		WHERE id = $1
		RETURNING `+taskColumns, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, fmt.Errorf("task %d: %w", taskID, store.ErrNotFound)
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("complete task %d: %w", taskID, err)
	}
	return task, nil
}

// Task returns one task by id.
func (s *Store) Task(ctx context.Context, taskID int64) (model.Task, error) {
	task, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, fmt.Errorf("task %d: %w", taskID, store.ErrNotFound)
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("get task %d: %w", taskID, err)
	}
	return task, nil
}

// Tasks lists tasks matching filter, newest first.
func (s *Store) Tasks(ctx context.Context, filter store.TaskFilter) ([]model.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, filter.Status.String())
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.WorkerID != "" {
		args = append(args, filter.WorkerID)
		where = append(where, fmt.Sprintf("worker_id = $%d", len(args)))
	}
	q := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Task, error) {
		return scanTask(row)
	})
}

func scanTask(row pgx.Row) (model.Task, error) {
	var (
		t      model.Task
		status string
	)
	if err := row.Scan(&t.ID, &t.FromStationID, &t.ToStationID, &t.Qty, &t.Reason, &status,
		&t.WorkerID, &t.CreatedAt, &t.AssignedAt, &t.CompletedAt); err != nil {
		return model.Task{}, err
	}
	st, err := model.ParseTaskStatus(status)
	if err != nil {
		return model.Task{}, err
	}
	t.Status = st
	return t, nil
}
