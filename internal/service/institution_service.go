package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/skipd/skipd-api/internal/models"
	appErrors "github.com/skipd/skipd-api/pkg/errors"
)

type institutionRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Institution, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Institution, error)
	Create(ctx context.Context, institution *models.Institution) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// CreateInstitutionRequest captures fields for creating institutions.
type CreateInstitutionRequest struct {
	Name         string  `json:"name" validate:"required"`
	AbsenceLimit float64 `json:"absence_limit" validate:"gte=0,lte=1"`
}

// UpdateInstitutionRequest modifies institution fields, changeset style.
type UpdateInstitutionRequest struct {
	Name         *string  `json:"name" validate:"omitempty,min=1"`
	AbsenceLimit *float64 `json:"absence_limit" validate:"omitempty,gte=0,lte=1"`
}

// InstitutionService handles institution workflows.
type InstitutionService struct {
	repo      institutionRepository
	users     accessUserStore
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstitutionService creates a new institution service.
func NewInstitutionService(repo institutionRepository, users accessUserStore, access *AccessService, validate *validator.Validate, logger *zap.Logger) *InstitutionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstitutionService{repo: repo, users: users, access: access, validator: validate, logger: logger}
}

// Create adds an institution under the given user. The owning user must
// exist, and a principal may only create institutions for themself.
func (s *InstitutionService) Create(ctx context.Context, principalID, userID int64, req CreateInstitutionRequest) (*models.Institution, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid institution payload")
	}

	owner, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if principalID != owner.ID {
		return nil, appErrors.ErrForbidden
	}

	institution := &models.Institution{
		Name:         req.Name,
		AbsenceLimit: req.AbsenceLimit,
		UserID:       owner.ID,
	}

	if err := s.repo.Create(ctx, institution); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create institution")
	}

	s.logger.Info("institution created", zap.Int64("institution_id", institution.ID), zap.Int64("user_id", owner.ID))
	return institution, nil
}

// Get returns an institution after verifying ownership.
func (s *InstitutionService) Get(ctx context.Context, principalID, id int64) (*models.Institution, error) {
	return s.access.AuthorizeInstitution(ctx, principalID, id)
}

// ListByUser returns every institution owned by the given user. Only the
// owner may enumerate the collection; there is no partial result for anyone
// else.
func (s *InstitutionService) ListByUser(ctx context.Context, principalID, userID int64) ([]models.Institution, error) {
	if principalID != userID {
		return nil, appErrors.ErrForbidden
	}

	institutions, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list institutions")
	}
	return institutions, nil
}

// Update applies a changeset to an owned institution.
func (s *InstitutionService) Update(ctx context.Context, principalID, id int64, req UpdateInstitutionRequest) (*models.Institution, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid institution payload")
	}

	institution, err := s.access.AuthorizeInstitution(ctx, principalID, id)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.AbsenceLimit != nil {
		fields["absence_limit"] = *req.AbsenceLimit
	}

	if len(fields) == 0 {
		return institution, nil
	}

	found, err := s.repo.UpdateFields(ctx, id, fields)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update institution")
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "institution not found")
	}

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload institution")
	}
	return updated, nil
}

// Delete removes an owned institution, cascading to its subjects.
func (s *InstitutionService) Delete(ctx context.Context, principalID, id int64) error {
	if _, err := s.access.AuthorizeInstitution(ctx, principalID, id); err != nil {
		return err
	}

	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete institution")
	}
	if !found {
		return appErrors.Clone(appErrors.ErrNotFound, "institution not found")
	}

	s.logger.Info("institution deleted", zap.Int64("institution_id", id))
	return nil
}
