package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hoofprint/internal/domain"
)

// Every statement below is a single atomic mutation of one row. Expired
// rows are invisible to Get, Set, Take and Touch even before the sweeper
// removes them.
const (
	createSessionQuery = `
		INSERT INTO sessions (id, data, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	getSessionQuery = `
		SELECT id, data, expires_at, created_at
		FROM sessions
		WHERE id = $1 AND expires_at > $2
	`
	setSessionValueQuery = `
		UPDATE sessions SET data = data || jsonb_build_object($2::text, $3::text)
		WHERE id = $1 AND expires_at > $4
	`
	removeSessionValueQuery = `UPDATE sessions SET data = data - $2::text WHERE id = $1`
	takeSessionValueQuery   = `
		UPDATE sessions AS s SET data = s.data - $2::text
		FROM (
			SELECT id, data ->> $2::text AS value
			FROM sessions
			WHERE id = $1 AND expires_at > $3
			FOR UPDATE
		) AS old
		WHERE s.id = old.id
		RETURNING old.value
	`
	touchSessionQuery         = `UPDATE sessions SET expires_at = $2 WHERE id = $1 AND expires_at > $3`
	deleteSessionQuery        = `DELETE FROM sessions WHERE id = $1`
	deleteExpiredSessionQuery = `DELETE FROM sessions WHERE expires_at <= $1`
)

// SessionRepository implements domain.SessionRepository on a JSONB payload.
type SessionRepository struct {
	db  DBTX
	now func() time.Time
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	data := session.Data
	if data == nil {
		data = map[string]string{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode session data: %w", err)
	}

	err = r.db.QueryRowContext(ctx, createSessionQuery,
		session.ID,
		string(payload),
		session.ExpiresAt,
	).Scan(&session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	session := &domain.Session{}
	var payload []byte
	err := r.db.QueryRowContext(ctx, getSessionQuery, id, r.now()).Scan(
		&session.ID,
		&payload,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.Data = make(map[string]string)
	if err := json.Unmarshal(payload, &session.Data); err != nil {
		return nil, fmt.Errorf("failed to decode session data: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) Set(ctx context.Context, id, key, value string) error {
	res, err := r.db.ExecContext(ctx, setSessionValueQuery, id, key, value, r.now())
	if err != nil {
		return fmt.Errorf("failed to set session value: %w", err)
	}
	return expectOneRow(res)
}

func (r *SessionRepository) Remove(ctx context.Context, id, key string) error {
	if _, err := r.db.ExecContext(ctx, removeSessionValueQuery, id, key); err != nil {
		return fmt.Errorf("failed to remove session value: %w", err)
	}
	return nil
}

// Take locks the row, removes key and returns its previous value in one
// statement, so two concurrent takes never both see the value.
func (r *SessionRepository) Take(ctx context.Context, id, key string) (string, bool, error) {
	var value sql.NullString
	err := r.db.QueryRowContext(ctx, takeSessionValueQuery, id, key, r.now()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, domain.ErrSessionNotFound
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to take session value: %w", err)
	}
	return value.String, value.Valid, nil
}

func (r *SessionRepository) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, touchSessionQuery, id, expiresAt, r.now())
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return expectOneRow(res)
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, deleteSessionQuery, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredSessionQuery, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return rowsAffected(res)
}

// Ping checks the session table is reachable.
func (r *SessionRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("session store unreachable: %w", err)
	}
	return nil
}

func expectOneRow(res sql.Result) error {
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}
