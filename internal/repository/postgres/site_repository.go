package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hoofprint/internal/domain"
)

const (
	createSiteQuery = `
		INSERT INTO sites (id, name, url)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	getSiteByIDQuery = `SELECT id, name, url, created_at FROM sites WHERE id = $1`
	listSitesQuery   = `SELECT id, name, url, created_at FROM sites ORDER BY name`
)

// SiteRepository implements domain.SiteRepository for PostgreSQL
type SiteRepository struct {
	db DBTX
}

// NewSiteRepository creates a new PostgreSQL site repository
func NewSiteRepository(db DBTX) *SiteRepository {
	return &SiteRepository{db: db}
}

func (r *SiteRepository) Create(ctx context.Context, site *domain.Site) error {
	err := r.db.QueryRowContext(ctx, createSiteQuery, site.ID, site.Name, site.URL).Scan(&site.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create site: %w", err)
	}
	return nil
}

func (r *SiteRepository) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	site := &domain.Site{}
	err := r.db.QueryRowContext(ctx, getSiteByIDQuery, id).Scan(&site.ID, &site.Name, &site.URL, &site.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSiteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return site, nil
}

func (r *SiteRepository) List(ctx context.Context) ([]*domain.Site, error) {
	rows, err := r.db.QueryContext(ctx, listSitesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []*domain.Site
	for rows.Next() {
		site := &domain.Site{}
		if err := rows.Scan(&site.ID, &site.Name, &site.URL, &site.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sites: %w", err)
	}
	return sites, nil
}
