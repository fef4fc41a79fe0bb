package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/skipd/skipd-api/internal/models"
	appErrors "github.com/skipd/skipd-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	Create(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) (bool, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error
	Delete(ctx context.Context, id int64) (bool, error)
	RevokeUserRefreshTokens(ctx context.Context, userID int64) error
}

// RegisterUserRequest captures fields for the public signup.
type RegisterUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	PhotoURL string `json:"photo_url" validate:"omitempty,url"`
}

// UpdateUserRequest modifies user fields. Only fields present in the payload
// are applied; absent fields stay untouched.
type UpdateUserRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=1"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Password  *string `json:"password" validate:"omitempty,min=6"`
	IsPremium *bool   `json:"is_premium"`
	PhotoURL  *string `json:"photo_url"`
}

// UserService handles account workflows.
type UserService struct {
	repo      userRepository
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates a new user service.
func NewUserService(repo userRepository, access *AccessService, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, access: access, validator: validate, logger: logger}
}

// Register creates a new account. This is the only user operation that
// requires no principal.
func (s *UserService) Register(ctx context.Context, req RegisterUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.repo.ExistsByEmail(ctx, req.Email, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		PhotoURL:     req.PhotoURL,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Get returns the user's own record.
func (s *UserService) Get(ctx context.Context, principalID, id int64) (*models.User, error) {
	return s.access.AuthorizeUser(ctx, principalID, id)
}

// Update applies a changeset to the user's own record. Email uniqueness is
// re-validated whenever the email field is present and differs.
func (s *UserService) Update(ctx context.Context, principalID, id int64, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	user, err := s.access.AuthorizeUser(ctx, principalID, id)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != user.Email {
			exists, err := s.repo.ExistsByEmail(ctx, email, id)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
			}
			if exists {
				return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
			}
			fields["email"] = email
		}
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		fields["password_hash"] = string(hash)
	}
	if req.IsPremium != nil {
		fields["is_premium"] = *req.IsPremium
	}
	if req.PhotoURL != nil {
		fields["photo_url"] = *req.PhotoURL
	}

	if len(fields) == 0 {
		return user, nil
	}

	found, err := s.repo.UpdateFields(ctx, id, fields)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload user")
	}
	return updated, nil
}

// Delete removes the user's own account, cascading to owned institutions
// and their subjects.
func (s *UserService) Delete(ctx context.Context, principalID, id int64) error {
	if _, err := s.access.AuthorizeUser(ctx, principalID, id); err != nil {
		return err
	}

	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	if !found {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}

	s.logger.Info("user deleted", zap.Int64("user_id", id))
	return nil
}

// ChangePassword verifies the current password before storing a new hash.
// A missing user and a wrong current password produce the same generic
// response so callers cannot probe accounts.
func (s *UserService) ChangePassword(ctx context.Context, principalID, id int64, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	if principalID != id {
		return appErrors.ErrForbidden
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrBadRequest, "invalid current credentials")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrBadRequest, "invalid current credentials")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, id, string(newHash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password change", zap.Error(err))
	}

	return nil
}
