package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/skipd/skipd-api/internal/middleware"
	"github.com/skipd/skipd-api/internal/models"
	"github.com/skipd/skipd-api/internal/service"
)

type fakeUserRepo struct {
	users  map[int64]*models.User
	tokens map[string]*models.RefreshToken
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	for _, user := range f.users {
		if user.Email == email && user.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = int64(len(f.users) + 1)
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) (bool, error) {
	user, ok := f.users[id]
	if !ok {
		return false, nil
	}
	if name, ok := fields["name"].(string); ok {
		user.Name = name
	}
	if email, ok := fields["email"].(string); ok {
		user.Email = email
	}
	return true, nil
}

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error {
	if user, ok := f.users[id]; ok {
		user.PasswordHash = passwordHash
	}
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id int64) (bool, error) {
	if _, ok := f.users[id]; !ok {
		return false, nil
	}
	delete(f.users, id)
	return true, nil
}

func (f *fakeUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	now := time.Now().UTC()
	for _, token := range f.tokens {
		if token.UserID == userID {
			token.Revoked = true
			token.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if f.tokens == nil {
		f.tokens = make(map[string]*models.RefreshToken)
	}
	f.tokens[token.Token] = token
	return nil
}

func (f *fakeUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := f.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stored, nil
}

func (f *fakeUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range f.tokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

type fakeInstitutionRepo struct {
	institutions map[int64]*models.Institution
}

func (f *fakeInstitutionRepo) FindByID(ctx context.Context, id int64) (*models.Institution, error) {
	institution, ok := f.institutions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return institution, nil
}

func (f *fakeInstitutionRepo) ListByUser(ctx context.Context, userID int64) ([]models.Institution, error) {
	var result []models.Institution
	for _, institution := range f.institutions {
		if institution.UserID == userID {
			result = append(result, *institution)
		}
	}
	return result, nil
}

func (f *fakeInstitutionRepo) Create(ctx context.Context, institution *models.Institution) error {
	institution.ID = int64(len(f.institutions) + 1)
	f.institutions[institution.ID] = institution
	return nil
}

func (f *fakeInstitutionRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) (bool, error) {
	institution, ok := f.institutions[id]
	if !ok {
		return false, nil
	}
	if name, ok := fields["name"].(string); ok {
		institution.Name = name
	}
	if limit, ok := fields["absence_limit"].(float64); ok {
		institution.AbsenceLimit = limit
	}
	return true, nil
}

func (f *fakeInstitutionRepo) Delete(ctx context.Context, id int64) (bool, error) {
	if _, ok := f.institutions[id]; !ok {
		return false, nil
	}
	delete(f.institutions, id)
	return true, nil
}

type fakeSubjectRepo struct {
	subjects     map[int64]*models.Subject
	institutions *fakeInstitutionRepo
}

func (f *fakeSubjectRepo) FindByID(ctx context.Context, id int64) (*models.Subject, error) {
	subject, ok := f.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return subject, nil
}

func (f *fakeSubjectRepo) ListByInstitution(ctx context.Context, institutionID int64) ([]models.Subject, error) {
	var result []models.Subject
	for _, subject := range f.subjects {
		if subject.InstitutionID == institutionID {
			result = append(result, *subject)
		}
	}
	return result, nil
}

func (f *fakeSubjectRepo) OwnerOf(ctx context.Context, subjectID int64) (*models.SubjectOwner, error) {
	subject, ok := f.subjects[subjectID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	institution, ok := f.institutions.institutions[subject.InstitutionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.SubjectOwner{InstitutionID: institution.ID, OwnerUserID: institution.UserID}, nil
}

func (f *fakeSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = int64(len(f.subjects) + 1)
	f.subjects[subject.ID] = subject
	return nil
}

func (f *fakeSubjectRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) (bool, error) {
	subject, ok := f.subjects[id]
	if !ok {
		return false, nil
	}
	if name, ok := fields["name"].(string); ok {
		subject.Name = name
	}
	if absences, ok := fields["absence_count"].(int); ok {
		subject.AbsenceCount = absences
	}
	return true, nil
}

func (f *fakeSubjectRepo) Delete(ctx context.Context, id int64) (bool, error) {
	if _, ok := f.subjects[id]; !ok {
		return false, nil
	}
	delete(f.subjects, id)
	return true, nil
}

type handlerFixture struct {
	users        *fakeUserRepo
	institutions *fakeInstitutionRepo
	subjects     *fakeSubjectRepo
	userSvc      *service.UserService
	instSvc      *service.InstitutionService
	subjectSvc   *service.SubjectService
}

func newHandlerFixture() *handlerFixture {
	users := &fakeUserRepo{users: map[int64]*models.User{
		1: {ID: 1, Name: "Alice", Email: "alice@example.com"},
		2: {ID: 2, Name: "Bob", Email: "bob@example.com"},
	}}
	institutions := &fakeInstitutionRepo{institutions: map[int64]*models.Institution{
		10: {ID: 10, Name: "UFMG", UserID: 1},
		20: {ID: 20, Name: "USP", UserID: 2},
	}}
	subjects := &fakeSubjectRepo{
		subjects: map[int64]*models.Subject{
			100: {ID: 100, Name: "Calculus", Status: "active", InstitutionID: 10},
			200: {ID: 200, Name: "Physics", Status: "active", InstitutionID: 20},
		},
		institutions: institutions,
	}

	access := service.NewAccessService(users, institutions, subjects)
	return &handlerFixture{
		users:        users,
		institutions: institutions,
		subjects:     subjects,
		userSvc:      service.NewUserService(users, access, nil, nil),
		instSvc:      service.NewInstitutionService(institutions, users, access, nil, nil),
		subjectSvc:   service.NewSubjectService(subjects, access, nil, nil, nil),
	}
}

func testContext(t *testing.T, method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func asPrincipal(c *gin.Context, user *models.User) {
	c.Set(middleware.ContextUserKey, user)
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}
