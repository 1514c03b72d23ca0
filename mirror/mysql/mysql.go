package mysql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	mysqlmigrate "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/lucas-luzj/magic-crm/core"
	"github.com/lucas-luzj/magic-crm/mirror"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

type option func(*mysqlStore)

// WithApplyMigrations controls whether migrations are applied on startup.
func WithApplyMigrations(apply bool) option {
	return func(s *mysqlStore) {
		s.applyMigrations = apply
	}
}

// NewMysqlStore creates a store backed by a MySQL database.
func NewMysqlStore(host string, port int, user, password, database string, opts ...option) (*mysqlStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&interpolateParams=true", user, password, host, port, database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &mysqlStore{
		db:              db,
		applyMigrations: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.applyMigrations {
		if err := s.migrate(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

type mysqlStore struct {
	db              *sql.DB
	applyMigrations bool
}

var _ mirror.Store = (*mysqlStore)(nil)

func (s *mysqlStore) migrate() error {
	dbi, err := mysqlmigrate.WithInstance(s.db, &mysqlmigrate.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "mysql", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	return nil
}

func (s *mysqlStore) Close() error {
	return s.db.Close()
}

func (s *mysqlStore) UpsertProcessInstance(ctx context.Context, instance *core.ProcessInstance) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO process_instances
			(id, definition_id, definition_key, definition_name, business_key, status, starter_id, start_time, end_time, termination_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				status = VALUES(status),
				end_time = VALUES(end_time),
				termination_reason = VALUES(termination_reason)`,
		instance.ID,
		instance.DefinitionID,
		instance.DefinitionKey,
		instance.DefinitionName,
		instance.BusinessKey,
		string(instance.Status),
		instance.StarterID,
		instance.StartTime,
		nullTime(instance.EndTime),
		instance.TerminationReason,
	)
	if err != nil {
		return fmt.Errorf("upserting process instance: %w", err)
	}

	return nil
}

func (s *mysqlStore) UpsertTask(ctx context.Context, task *core.Task) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tasks
			(id, process_instance_id, definition_key, assignee, owner, status, priority, due_date, create_time, end_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				assignee = VALUES(assignee),
				owner = VALUES(owner),
				status = VALUES(status),
				priority = VALUES(priority),
				due_date = VALUES(due_date),
				end_time = VALUES(end_time)`,
		task.ID,
		task.ProcessInstanceID,
		task.DefinitionKey,
		task.Assignee,
		task.Owner,
		string(task.Status),
		task.Priority,
		nullTime(task.DueDate),
		task.CreateTime,
		nullTime(task.EndTime),
	)
	if err != nil {
		return fmt.Errorf("upserting task: %w", err)
	}

	return nil
}

func (s *mysqlStore) ProcessInstance(ctx context.Context, id string) (*core.ProcessInstance, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, definition_id, definition_key, definition_name, business_key, status, starter_id, start_time, end_time, termination_reason
			FROM process_instances WHERE id = ?`,
		id,
	)

	var instance core.ProcessInstance
	var status string
	var endTime sql.NullTime

	if err := row.Scan(
		&instance.ID,
		&instance.DefinitionID,
		&instance.DefinitionKey,
		&instance.DefinitionName,
		&instance.BusinessKey,
		&status,
		&instance.StarterID,
		&instance.StartTime,
		&endTime,
		&instance.TerminationReason,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrProcessInstanceNotFound
		}

		return nil, fmt.Errorf("reading process instance: %w", err)
	}

	instance.Status = core.ProcessStatus(status)
	if endTime.Valid {
		instance.EndTime = &endTime.Time
	}

	return &instance, nil
}

func (s *mysqlStore) Task(ctx context.Context, id string) (*core.Task, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, process_instance_id, definition_key, assignee, owner, status, priority, due_date, create_time, end_time
			FROM tasks WHERE id = ?`,
		id,
	)

	var task core.Task
	var status string
	var dueDate, endTime sql.NullTime

	if err := row.Scan(
		&task.ID,
		&task.ProcessInstanceID,
		&task.DefinitionKey,
		&task.Assignee,
		&task.Owner,
		&status,
		&task.Priority,
		&dueDate,
		&task.CreateTime,
		&endTime,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrTaskNotFound
		}

		return nil, fmt.Errorf("reading task: %w", err)
	}

	task.Status = core.TaskStatus(status)
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if endTime.Valid {
		task.EndTime = &endTime.Time
	}

	return &task, nil
}

func (s *mysqlStore) PendingTasks(ctx context.Context, assignee string, page mirror.Page) ([]*mirror.TaskWithInstance, error) {
	return s.queryTasks(ctx, assignee, false, page)
}

func (s *mysqlStore) CompletedTasks(ctx context.Context, assignee string, page mirror.Page) ([]*mirror.TaskWithInstance, error) {
	return s.queryTasks(ctx, assignee, true, page)
}

func (s *mysqlStore) queryTasks(ctx context.Context, assignee string, completed bool, page mirror.Page) ([]*mirror.TaskWithInstance, error) {
	op := "<>"
	if completed {
		op = "="
	}

	if page.Limit <= 0 {
		page.Limit = 50
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT t.id, t.process_instance_id, t.definition_key, t.assignee, t.owner, t.status, t.priority, t.due_date, t.create_time, t.end_time,
				i.definition_name, i.business_key
			FROM tasks t
			INNER JOIN process_instances i ON i.id = t.process_instance_id
			WHERE t.assignee = ? AND t.status `+op+` ?
			ORDER BY t.create_time DESC, t.id
			LIMIT ? OFFSET ?`,
		assignee,
		string(core.TaskStatusCompleted),
		page.Limit,
		page.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var result []*mirror.TaskWithInstance

	for rows.Next() {
		var twi mirror.TaskWithInstance
		var status string
		var dueDate, endTime sql.NullTime

		if err := rows.Scan(
			&twi.Task.ID,
			&twi.Task.ProcessInstanceID,
			&twi.Task.DefinitionKey,
			&twi.Task.Assignee,
			&twi.Task.Owner,
			&status,
			&twi.Task.Priority,
			&dueDate,
			&twi.Task.CreateTime,
			&endTime,
			&twi.ProcessName,
			&twi.BusinessKey,
		); err != nil {
			return nil, fmt.Errorf("reading task row: %w", err)
		}

		twi.Task.Status = core.TaskStatus(status)
		if dueDate.Valid {
			twi.Task.DueDate = &dueDate.Time
		}
		if endTime.Valid {
			twi.Task.EndTime = &endTime.Time
		}

		result = append(result, &twi)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading task rows: %w", err)
	}

	return result, nil
}

func (s *mysqlStore) RemoveFinishedInstances(ctx context.Context, finishedBefore time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx,
		`DELETE t FROM tasks t
			INNER JOIN process_instances i ON i.id = t.process_instance_id
			WHERE i.status IN (?, ?) AND i.end_time < ?`,
		string(core.ProcessStatusTerminated),
		string(core.ProcessStatusCompleted),
		finishedBefore,
	); err != nil {
		return 0, fmt.Errorf("removing task rows: %w", err)
	}

	res, err := tx.ExecContext(
		ctx,
		`DELETE FROM process_instances WHERE status IN (?, ?) AND end_time < ?`,
		string(core.ProcessStatusTerminated),
		string(core.ProcessStatusCompleted),
		finishedBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("removing instance rows: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("removing finished instances: %w", err)
	}

	return int(removed), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *t, Valid: true}
}
