package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"hoofprint/internal/domain"
)

const maxCodeNameLength = 255

// CodeInput is the submitted create-code form.
type CodeInput struct {
	Type   string
	Value  string
	SiteID string
	Name   string
}

type CodeService struct {
	codeRepo domain.CodeRepository
	siteRepo domain.SiteRepository
}

func NewCodeService(codeRepo domain.CodeRepository, siteRepo domain.SiteRepository) *CodeService {
	return &CodeService{
		codeRepo: codeRepo,
		siteRepo: siteRepo,
	}
}

// ListForUser returns the codes owned by userID.
func (s *CodeService) ListForUser(ctx context.Context, userID string) ([]*domain.Code, error) {
	return s.codeRepo.ListByUser(ctx, userID)
}

func (s *CodeService) ListSites(ctx context.Context) ([]*domain.Site, error) {
	return s.siteRepo.List(ctx)
}

// Get loads a code by ID. Malformed IDs are reported as ErrCodeNotFound.
func (s *CodeService) Get(ctx context.Context, id string) (*domain.Code, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrCodeNotFound
	}
	return s.codeRepo.GetByID(ctx, id)
}

// Create validates in and stores a new code owned by userID.
func (s *CodeService) Create(ctx context.Context, userID string, in CodeInput) (*domain.Code, error) {
	in, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	code := &domain.Code{
		ID:     uuid.NewString(),
		UserID: userID,
		SiteID: in.SiteID,
		Type:   in.Type,
		Value:  in.Value,
		Name:   in.Name,
	}
	if err := s.codeRepo.Create(ctx, code); err != nil {
		return nil, err
	}
	return code, nil
}

// GetOwned loads a code that userID may edit, returning ErrForbidden for
// anyone but its owner.
func (s *CodeService) GetOwned(ctx context.Context, userID, codeID string) (*domain.Code, error) {
	code, err := s.Get(ctx, codeID)
	if err != nil {
		return nil, err
	}
	if code.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return code, nil
}

// Update replaces the fields of an existing code after the same checks as
// Create. Only its owner may update it; ownership is checked before the
// input is validated.
func (s *CodeService) Update(ctx context.Context, userID, codeID string, in CodeInput) (*domain.Code, error) {
	code, err := s.GetOwned(ctx, userID, codeID)
	if err != nil {
		return nil, err
	}

	in, err = s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	code.SiteID = in.SiteID
	code.Type = in.Type
	code.Value = in.Value
	code.Name = in.Name
	if err := s.codeRepo.Update(ctx, code); err != nil {
		return nil, err
	}
	return code, nil
}

// validate trims in and checks every field, including that the site exists.
func (s *CodeService) validate(ctx context.Context, in CodeInput) (CodeInput, error) {
	in.Type = strings.TrimSpace(in.Type)
	in.Value = strings.TrimSpace(in.Value)
	in.SiteID = strings.TrimSpace(in.SiteID)
	in.Name = strings.TrimSpace(in.Name)

	v := domain.NewValidationError()
	switch in.Type {
	case domain.CodeTypeBarcode, domain.CodeTypeQRCode:
	case "":
		v.Add("type", "Type is required")
	default:
		v.Add("type", "Type must be barcode or qrcode")
	}
	switch {
	case in.Value == "":
		v.Add("value", "Value is required")
	case len(in.Value) > domain.MaxCodeValueLength:
		v.Add("value", fmt.Sprintf("Value must be at most %d characters", domain.MaxCodeValueLength))
	}
	if len(in.Name) > maxCodeNameLength {
		v.Add("name", fmt.Sprintf("Name must be at most %d characters", maxCodeNameLength))
	}
	if _, err := uuid.Parse(in.SiteID); err != nil {
		v.Add("site_id", "Site is invalid")
	} else if _, err := s.siteRepo.GetByID(ctx, in.SiteID); err != nil {
		if !errors.Is(err, domain.ErrSiteNotFound) {
			return in, fmt.Errorf("failed to load site: %w", err)
		}
		v.Add("site_id", "Site does not exist")
	}
	return in, v.OrNil()
}

// Delete removes a code. Only its owner may delete it.
func (s *CodeService) Delete(ctx context.Context, userID, codeID string) error {
	if _, err := s.GetOwned(ctx, userID, codeID); err != nil {
		return err
	}
	return s.codeRepo.Delete(ctx, codeID)
}
