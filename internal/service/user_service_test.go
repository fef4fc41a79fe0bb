package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/skipd/skipd-api/internal/models"
	appErrors "github.com/skipd/skipd-api/pkg/errors"
)

type mockUserRepo struct {
	users          map[int64]*models.User
	nextID         int64
	revokedUserIDs []int64
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	repo := &mockUserRepo{users: make(map[int64]*models.User), nextID: 1}
	for _, user := range users {
		repo.users[user.ID] = user
		if user.ID >= repo.nextID {
			repo.nextID = user.ID + 1
		}
	}
	return repo
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	for _, user := range m.users {
		if user.Email == email && user.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) (bool, error) {
	user, ok := m.users[id]
	if !ok {
		return false, nil
	}
	for column, value := range fields {
		switch column {
		case "name":
			user.Name = value.(string)
		case "email":
			user.Email = value.(string)
		case "password_hash":
			user.PasswordHash = value.(string)
		case "is_premium":
			user.IsPremium = value.(bool)
		case "photo_url":
			user.PhotoURL = value.(string)
		}
	}
	return true, nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error {
	if user, ok := m.users[id]; ok {
		user.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id int64) (bool, error) {
	if _, ok := m.users[id]; !ok {
		return false, nil
	}
	delete(m.users, id)
	return true, nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	m.revokedUserIDs = append(m.revokedUserIDs, userID)
	return nil
}

func newUserService(repo *mockUserRepo) *UserService {
	access := NewAccessService(repo, &stubInstitutionStore{}, &stubSubjectStore{})
	return NewUserService(repo, access, nil, nil)
}

func TestUserServiceRegister(t *testing.T) {
	repo := newMockUserRepo()
	svc := newUserService(repo)

	user, err := svc.Register(context.Background(), RegisterUserRequest{
		Name:     "Alice",
		Email:    "Alice@Example.com",
		Password: "password",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "password", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password")))
}

func TestUserServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: 1, Email: "alice@example.com"})
	svc := newUserService(repo)

	_, err := svc.Register(context.Background(), RegisterUserRequest{
		Name:     "Impostor",
		Email:    "alice@example.com",
		Password: "password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceRegisterInvalidPayload(t *testing.T) {
	svc := newUserService(newMockUserRepo())

	_, err := svc.Register(context.Background(), RegisterUserRequest{Name: "Alice", Email: "not-an-email", Password: "short"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceGetForeign(t *testing.T) {
	repo := newMockUserRepo(
		&models.User{ID: 1, Email: "alice@example.com"},
		&models.User{ID: 2, Email: "bob@example.com"},
	)
	svc := newUserService(repo)

	_, err := svc.Get(context.Background(), 1, 2)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdatePartial(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: 1, Name: "Alice", Email: "alice@example.com", PhotoURL: "http://old"})
	svc := newUserService(repo)

	name := "Alicia"
	updated, err := svc.Update(context.Background(), 1, 1, UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Name)
	assert.Equal(t, "alice@example.com", updated.Email)
	assert.Equal(t, "http://old", updated.PhotoURL)
}

func TestUserServiceUpdateEmptyChangeset(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: 1, Name: "Alice", Email: "alice@example.com"})
	svc := newUserService(repo)

	updated, err := svc.Update(context.Background(), 1, 1, UpdateUserRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated.Name)
}

func TestUserServiceUpdateEmailConflict(t *testing.T) {
	repo := newMockUserRepo(
		&models.User{ID: 1, Name: "Alice", Email: "alice@example.com"},
		&models.User{ID: 2, Name: "Bob", Email: "bob@example.com"},
	)
	svc := newUserService(repo)

	email := "bob@example.com"
	_, err := svc.Update(context.Background(), 1, 1, UpdateUserRequest{Email: &email})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "alice@example.com", repo.users[1].Email)
}

// Re-submitting the current email is a no-op, not a conflict against the
// user's own row.
func TestUserServiceUpdateSameEmail(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: 1, Name: "Alice", Email: "alice@example.com"})
	svc := newUserService(repo)

	email := "alice@example.com"
	updated, err := svc.Update(context.Background(), 1, 1, UpdateUserRequest{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", updated.Email)
}

func TestUserServiceUpdateRehashesPassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.DefaultCost)
	repo := newMockUserRepo(&models.User{ID: 1, Name: "Alice", Email: "alice@example.com", PasswordHash: string(oldHash)})
	svc := newUserService(repo)

	password := "new-password"
	_, err := svc.Update(context.Background(), 1, 1, UpdateUserRequest{Password: &password})
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[1].PasswordHash), []byte("new-password")))
}

func TestUserServiceDelete(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: 1, Email: "alice@example.com"})
	svc := newUserService(repo)

	require.NoError(t, svc.Delete(context.Background(), 1, 1))
	assert.Empty(t, repo.users)
}

func TestUserServiceDeleteForeign(t *testing.T) {
	repo := newMockUserRepo(
		&models.User{ID: 1, Email: "alice@example.com"},
		&models.User{ID: 2, Email: "bob@example.com"},
	)
	svc := newUserService(repo)

	err := svc.Delete(context.Background(), 1, 2)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.users, 2)
}

func TestUserServiceChangePassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.DefaultCost)
	repo := newMockUserRepo(&models.User{ID: 1, Email: "alice@example.com", PasswordHash: string(oldHash)})
	svc := newUserService(repo)

	err := svc.ChangePassword(context.Background(), 1, 1, models.ChangePasswordRequest{
		OldPassword: "old-password",
		NewPassword: "new-password",
	})
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[1].PasswordHash), []byte("new-password")))
	assert.Contains(t, repo.revokedUserIDs, int64(1))
}

// A wrong current password and a vanished account produce the same generic
// failure so the endpoint cannot be used to probe which accounts exist.
func TestUserServiceChangePasswordGenericFailure(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.DefaultCost)
	repo := newMockUserRepo(&models.User{ID: 1, Email: "alice@example.com", PasswordHash: string(oldHash)})
	svc := newUserService(repo)

	wrongErr := svc.ChangePassword(context.Background(), 1, 1, models.ChangePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "new-password",
	})
	require.Error(t, wrongErr)

	delete(repo.users, 1)
	missingErr := svc.ChangePassword(context.Background(), 1, 1, models.ChangePasswordRequest{
		OldPassword: "old-password",
		NewPassword: "new-password",
	})
	require.Error(t, missingErr)

	wrong := appErrors.FromError(wrongErr)
	missing := appErrors.FromError(missingErr)
	assert.Equal(t, wrong.Code, missing.Code)
	assert.Equal(t, wrong.Message, missing.Message)
	assert.Equal(t, appErrors.ErrBadRequest.Code, wrong.Code)
}

func TestUserServiceChangePasswordForeign(t *testing.T) {
	repo := newMockUserRepo(
		&models.User{ID: 1, Email: "alice@example.com"},
		&models.User{ID: 2, Email: "bob@example.com"},
	)
	svc := newUserService(repo)

	err := svc.ChangePassword(context.Background(), 1, 2, models.ChangePasswordRequest{
		OldPassword: "whatever",
		NewPassword: "new-password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
