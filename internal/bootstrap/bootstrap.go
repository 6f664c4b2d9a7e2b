// Package bootstrap brings a database to the current schema and seeds the
// rows the application cannot run without.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"hoofprint/internal/domain"
	"hoofprint/internal/security"
)

// Seeded administrator account.
const (
	AdminEmail       = "admin"
	AdminDisplayName = "Default Administrator"
)

// Hasher hashes a plaintext password.
type Hasher interface {
	Hash(plaintext string) (string, error)
}

// Result reports what a run changed.
type Result struct {
	Applied      []string
	AdminCreated bool
	SiteCreated  bool
}

// Runner applies pending migrations and seeds the administrator and the
// default site in one transaction.
type Runner struct {
	store      domain.TxStore
	hasher     Hasher
	migrations []domain.Migration
	logger     *slog.Logger
}

func NewRunner(store domain.TxStore, hasher Hasher, migrations []domain.Migration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:      store,
		hasher:     hasher,
		migrations: migrations,
		logger:     logger,
	}
}

// Run is idempotent: every step checks whether its row or version already
// exists. Any failure rolls back the whole run and wraps ErrBootstrapFailed.
// A freshly generated administrator password is logged once, after commit.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	var adminPassword string

	err := r.store.WithTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		applied, err := r.migrate(ctx, tx)
		if err != nil {
			return err
		}
		res.Applied = applied

		adminPassword, err = r.seedAdmin(ctx, tx.Users())
		if err != nil {
			return err
		}
		res.AdminCreated = adminPassword != ""

		res.SiteCreated, err = r.seedDefaultSite(ctx, tx.Sites())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBootstrapFailed, err)
	}

	for _, v := range res.Applied {
		r.logger.Info("applied migration", "version", v)
	}
	if res.SiteCreated {
		r.logger.Info("created default site", "site_id", domain.DefaultSiteID, "name", domain.DefaultSiteName)
	}
	if res.AdminCreated {
		r.logger.Warn("created default administrator, change this password after first login",
			"email", AdminEmail,
			"password", adminPassword,
		)
	}
	return res, nil
}

func (r *Runner) migrate(ctx context.Context, tx domain.Tx) ([]string, error) {
	done, err := tx.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range r.migrations {
		if done[m.Version] {
			continue
		}
		if err := tx.ApplyMigration(ctx, m); err != nil {
			return nil, err
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

// seedAdmin returns the plaintext password when it created the account.
func (r *Runner) seedAdmin(ctx context.Context, users domain.UserRepository) (string, error) {
	_, err := users.GetByID(ctx, domain.AdminUserID)
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return "", fmt.Errorf("failed to look up administrator: %w", err)
	}

	password, err := security.GenerateSecret(security.PasswordDefaultLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate administrator password: %w", err)
	}
	hash, err := r.hasher.Hash(password)
	if err != nil {
		return "", err
	}

	err = users.Create(ctx, &domain.User{
		ID:           domain.AdminUserID,
		Email:        AdminEmail,
		DisplayName:  AdminDisplayName,
		PasswordHash: hash,
		Groups:       []string{domain.GroupAdmin},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create administrator: %w", err)
	}
	return password, nil
}

func (r *Runner) seedDefaultSite(ctx context.Context, sites domain.SiteRepository) (bool, error) {
	_, err := sites.GetByID(ctx, domain.DefaultSiteID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrSiteNotFound) {
		return false, fmt.Errorf("failed to look up default site: %w", err)
	}

	err = sites.Create(ctx, &domain.Site{ID: domain.DefaultSiteID, Name: domain.DefaultSiteName})
	if err != nil {
		return false, fmt.Errorf("failed to create default site: %w", err)
	}
	return true, nil
}
