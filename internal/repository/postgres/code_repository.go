package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hoofprint/internal/domain"
)

const (
	createCodeQuery = `
		INSERT INTO codes (id, user_id, site_id, type, value, name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	selectCodeColumns = `
		SELECT c.id, c.user_id, c.site_id, s.name, c.type, c.value, c.name, c.created_at, c.last_updated
		FROM codes c
		JOIN sites s ON s.id = c.site_id
	`
	getCodeByIDQuery     = selectCodeColumns + `WHERE c.id = $1`
	listCodesByUserQuery = selectCodeColumns + `WHERE c.user_id = $1 ORDER BY c.created_at`
	deleteCodeQuery      = `DELETE FROM codes WHERE id = $1`

	updateCodeQuery = `
		UPDATE codes SET site_id = $2, type = $3, value = $4, name = $5, last_updated = now()
		WHERE id = $1
		RETURNING last_updated
	`
)

// CodeRepository implements domain.CodeRepository for PostgreSQL
type CodeRepository struct {
	db DBTX
}

// NewCodeRepository creates a new PostgreSQL code repository
func NewCodeRepository(db DBTX) *CodeRepository {
	return &CodeRepository{db: db}
}

func (r *CodeRepository) Create(ctx context.Context, code *domain.Code) error {
	err := r.db.QueryRowContext(ctx, createCodeQuery,
		code.ID,
		code.UserID,
		code.SiteID,
		code.Type,
		code.Value,
		code.Name,
	).Scan(&code.CreatedAt)
	if IsForeignKeyViolation(err, codesSiteConstraint) {
		return domain.ErrSiteNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create code: %w", err)
	}
	return nil
}

func (r *CodeRepository) GetByID(ctx context.Context, id string) (*domain.Code, error) {
	code, err := scanCode(r.db.QueryRowContext(ctx, getCodeByIDQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get code: %w", err)
	}
	return code, nil
}

func (r *CodeRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Code, error) {
	rows, err := r.db.QueryContext(ctx, listCodesByUserQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list codes: %w", err)
	}
	defer rows.Close()

	var codes []*domain.Code
	for rows.Next() {
		code, err := scanCode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan code: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate codes: %w", err)
	}
	return codes, nil
}

func (r *CodeRepository) Update(ctx context.Context, code *domain.Code) error {
	var lastUpdated time.Time
	err := r.db.QueryRowContext(ctx, updateCodeQuery,
		code.ID,
		code.SiteID,
		code.Type,
		code.Value,
		code.Name,
	).Scan(&lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrCodeNotFound
	}
	if IsForeignKeyViolation(err, codesSiteConstraint) {
		return domain.ErrSiteNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update code: %w", err)
	}
	code.LastUpdated = &lastUpdated
	return nil
}

func (r *CodeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteCodeQuery, id)
	if err != nil {
		return fmt.Errorf("failed to delete code: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrCodeNotFound
	}
	return nil
}

func scanCode(row scanner) (*domain.Code, error) {
	code := &domain.Code{}
	var lastUpdated sql.NullTime
	err := row.Scan(
		&code.ID,
		&code.UserID,
		&code.SiteID,
		&code.SiteName,
		&code.Type,
		&code.Value,
		&code.Name,
		&code.CreatedAt,
		&lastUpdated,
	)
	if err != nil {
		return nil, err
	}
	if lastUpdated.Valid {
		code.LastUpdated = &lastUpdated.Time
	}
	return code, nil
}
