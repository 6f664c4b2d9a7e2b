package domain

import (
	"context"
	"errors"
	"time"
)

var ErrCodeNotFound = errors.New("code not found")

// Supported code types.
const (
	CodeTypeBarcode = "barcode"
	CodeTypeQRCode  = "qrcode"
)

// MaxCodeValueLength bounds the stored code value.
const MaxCodeValueLength = 255

// Code is a barcode or QR code a user presents at a site
type Code struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	SiteID      string     `json:"site_id"`
	SiteName    string     `json:"site_name"`
	Type        string     `json:"type"`
	Value       string     `json:"value"`
	Name        string     `json:"name,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// CodeRepository defines the interface for code data access
type CodeRepository interface {
	Create(ctx context.Context, code *Code) error
	GetByID(ctx context.Context, id string) (*Code, error)
	ListByUser(ctx context.Context, userID string) ([]*Code, error)
	// Update stores the type, value, name and site of code and stamps
	// LastUpdated.
	Update(ctx context.Context, code *Code) error
	Delete(ctx context.Context, id string) error
}
