package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/skipd/skipd-api/internal/models"
	appErrors "github.com/skipd/skipd-api/pkg/errors"
)

type accessUserStore interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

type accessInstitutionStore interface {
	FindByID(ctx context.Context, id int64) (*models.Institution, error)
}

type accessSubjectStore interface {
	FindByID(ctx context.Context, id int64) (*models.Subject, error)
	OwnerOf(ctx context.Context, subjectID int64) (*models.SubjectOwner, error)
}

// AccessService walks the ownership chain for a target entity up to the
// authenticated principal and accepts or rejects. Every decision re-resolves
// the live chain at request time; nothing here reads denormalized or cached
// owner fields.
//
// The check order is fixed: the directly addressed resource is loaded first
// (its absence wins over everything), then missing ancestors, and only then
// ownership. A caller probing someone else's ids therefore sees "not found"
// for absent targets and "forbidden" for existing ones.
type AccessService struct {
	users        accessUserStore
	institutions accessInstitutionStore
	subjects     accessSubjectStore
}

// NewAccessService constructs the authorizer over the entity stores.
func NewAccessService(users accessUserStore, institutions accessInstitutionStore, subjects accessSubjectStore) *AccessService {
	return &AccessService{users: users, institutions: institutions, subjects: subjects}
}

// CanAccessInstitution reports whether the principal owns the institution.
func (s *AccessService) CanAccessInstitution(principalID int64, institution *models.Institution) bool {
	return institution != nil && principalID == institution.UserID
}

// AuthorizeUser loads the target user and verifies the principal is that
// same user. User records are never visible across accounts.
func (s *AccessService) AuthorizeUser(ctx context.Context, principalID, targetID int64) (*models.User, error) {
	user, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if principalID != user.ID {
		return nil, appErrors.ErrForbidden
	}
	return user, nil
}

// AuthorizeInstitution loads the institution and verifies ownership.
func (s *AccessService) AuthorizeInstitution(ctx context.Context, principalID, institutionID int64) (*models.Institution, error) {
	institution, err := s.institutions.FindByID(ctx, institutionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution")
	}
	if !s.CanAccessInstitution(principalID, institution) {
		return nil, appErrors.ErrForbidden
	}
	return institution, nil
}

// AuthorizeSubject loads the subject, then resolves its parent institution's
// owner through the live chain, and verifies the principal is that owner.
// A subject whose institution has vanished (orphaned foreign key) reports
// the missing institution, never a successful lookup.
func (s *AccessService) AuthorizeSubject(ctx context.Context, principalID, subjectID int64) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	owner, err := s.subjects.OwnerOf(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve subject owner")
	}
	if principalID != owner.OwnerUserID {
		return nil, appErrors.ErrForbidden
	}
	return subject, nil
}
