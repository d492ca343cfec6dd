package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/google/uuid"

	"deskpanel/internal/model"
)

// Postgres is the durable Store. Schema:
//
//	lockers    (id text primary key, location text not null,
//	            status text not null, created_at timestamptz not null)
//	desk_state (id int primary key check (id = 1), exam_mode boolean not null)
//	audit_log  (id text primary key, action text not null, detail text not null,
//	            user_name text not null, user_role text not null,
//	            created_at timestamptz not null)
//
// Mutations publish on the shared hub after committing, so local subscribers
// observe changes live; cross-instance propagation goes through the optional
// Redis bridge and is eventual.
type Postgres struct {
	db  *sql.DB
	hub *Hub
}

var _ Store = (*Postgres)(nil)

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return NewPostgres(db), nil
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, hub: NewHub()}
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) DB() *sql.DB { return p.db }

func (p *Postgres) Lockers(ctx context.Context) ([]model.Locker, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, location, status
		FROM lockers
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Locker
	for rows.Next() {
		var locker model.Locker
		if err := rows.Scan(&locker.ID, &locker.Location, &locker.Status); err != nil {
			return nil, err
		}
		out = append(out, locker)
	}
	return out, rows.Err()
}

func (p *Postgres) ExamMode(ctx context.Context) (bool, error) {
	var examMode bool
	err := p.db.QueryRowContext(ctx, `SELECT exam_mode FROM desk_state WHERE id = 1`).Scan(&examMode)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return examMode, err
}

func (p *Postgres) Logs(ctx context.Context, limit int) ([]model.LogEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, action, detail, user_name, user_role, created_at
		FROM audit_log
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LogEntry
	for rows.Next() {
		var entry model.LogEntry
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Detail, &entry.UserName, &entry.UserRole, &entry.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (p *Postgres) Lock(ctx context.Context, id string) error {
	return p.setStatus(ctx, id, model.LockerLocked)
}

func (p *Postgres) Unlock(ctx context.Context, id string) error {
	return p.setStatus(ctx, id, model.LockerUnlocked)
}

func (p *Postgres) Toggle(ctx context.Context, id string) (model.LockerStatus, error) {
	var status model.LockerStatus
	err := p.db.QueryRowContext(ctx, `
		UPDATE lockers
		SET status = CASE WHEN status = 'locked' THEN 'unlocked' ELSE 'locked' END
		WHERE id = $1
		RETURNING status
	`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	p.hub.Publish(Event{Kind: EventLockers})
	return status, nil
}

func (p *Postgres) LockAll(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `UPDATE lockers SET status = 'locked'`); err != nil {
		return err
	}
	p.hub.Publish(Event{Kind: EventLockers})
	return nil
}

func (p *Postgres) ToggleExamMode(ctx context.Context) (bool, error) {
	var examMode bool
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO desk_state (id, exam_mode) VALUES (1, true)
		ON CONFLICT (id) DO UPDATE SET exam_mode = NOT desk_state.exam_mode
		RETURNING exam_mode
	`).Scan(&examMode)
	if err != nil {
		return false, err
	}
	p.hub.Publish(Event{Kind: EventExamMode})
	return examMode, nil
}

func (p *Postgres) AddLocker(ctx context.Context, fields LockerFields) (model.Locker, error) {
	locker := model.Locker{
		ID:       uuid.NewString(),
		Location: fields.Location,
		Status:   model.LockerUnlocked,
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO lockers (id, location, status, created_at)
		VALUES ($1, $2, $3, now())
	`, locker.ID, locker.Location, locker.Status)
	if err != nil {
		return model.Locker{}, err
	}
	p.hub.Publish(Event{Kind: EventLockers})
	return locker, nil
}

func (p *Postgres) UpdateLocker(ctx context.Context, id string, update LockerUpdate) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE lockers
		SET location = COALESCE($2, location),
		    status = COALESCE($3, status)
		WHERE id = $1
	`, id, update.Location, (*string)(update.Status))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	p.hub.Publish(Event{Kind: EventLockers})
	return nil
}

func (p *Postgres) DeleteLocker(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM lockers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	p.hub.Publish(Event{Kind: EventLockers})
	return nil
}

func (p *Postgres) AppendLog(ctx context.Context, entry model.LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, action, detail, user_name, user_role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.Action, entry.Detail, entry.UserName, entry.UserRole, entry.CreatedAt)
	if err != nil {
		return err
	}
	p.hub.Publish(Event{Kind: EventLog})
	return nil
}

func (p *Postgres) Subscribe(ctx context.Context) <-chan Event {
	return p.hub.Subscribe(ctx)
}

func (p *Postgres) EventHub() *Hub {
	return p.hub
}

func (p *Postgres) setStatus(ctx context.Context, id string, status model.LockerStatus) error {
	result, err := p.db.ExecContext(ctx, `UPDATE lockers SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	p.hub.Publish(Event{Kind: EventLockers})
	return nil
}
