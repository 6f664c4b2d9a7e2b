package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrSiteNotFound = errors.New("site not found")

// DefaultSiteName is the display name of the site seeded at bootstrap.
const DefaultSiteName = "Generic Site"

// DefaultSiteID identifies the site seeded at bootstrap.
var DefaultSiteID = uuid.Nil.String()

// Site is a place where codes are scanned
type Site struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// SiteRepository defines the interface for site data access
type SiteRepository interface {
	Create(ctx context.Context, site *Site) error
	GetByID(ctx context.Context, id string) (*Site, error)
	List(ctx context.Context) ([]*Site, error)
}
