package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skipd/skipd-api/internal/service"
)

func TestSubjectHandlerCreate(t *testing.T) {
	fixture := newHandlerFixture()
	handler := NewSubjectHandler(fixture.subjectSvc)

	c, w := testContext(t, http.MethodPost, "/institutions/10/subjects", service.CreateSubjectRequest{
		Name:          "Algorithms",
		RequiredHours: 80,
		ClassesMon:    2,
	})
	c.Params = gin.Params{{Key: "id", Value: "10"}}
	asPrincipal(c, fixture.users.users[1])

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	envelope := decodeEnvelope(t, w)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "Algorithms", data["name"])
	assert.Equal(t, "active", data["status"])
}

func TestSubjectHandlerCreateMissingInstitution(t *testing.T) {
	fixture := newHandlerFixture()
	handler := NewSubjectHandler(fixture.subjectSvc)

	before := len(fixture.subjects.subjects)
	c, w := testContext(t, http.MethodPost, "/institutions/999/subjects", service.CreateSubjectRequest{Name: "Ghost"})
	c.Params = gin.Params{{Key: "id", Value: "999"}}
	asPrincipal(c, fixture.users.users[1])

	handler.Create(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Len(t, fixture.subjects.subjects, before)
}

func TestSubjectHandlerListByInstitution(t *testing.T) {
	fixture := newHandlerFixture()
	handler := NewSubjectHandler(fixture.subjectSvc)

	c, w := testContext(t, http.MethodGet, "/institutions/10/subjects", nil)
	c.Params = gin.Params{{Key: "id", Value: "10"}}
	asPrincipal(c, fixture.users.users[1])

	handler.ListByInstitution(c)
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	data := envelope["data"].([]interface{})
	assert.Len(t, data, 1)
	meta := envelope["meta"].(map[string]interface{})
	assert.Equal(t, false, meta["cache_hit"])
}

func TestSubjectHandlerGetForeign(t *testing.T) {
	fixture := newHandlerFixture()
	handler := NewSubjectHandler(fixture.subjectSvc)

	c, w := testContext(t, http.MethodGet, "/subjects/200", nil)
	c.Params = gin.Params{{Key: "id", Value: "200"}}
	asPrincipal(c, fixture.users.users[1])

	handler.Get(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSubjectHandlerGetMissing(t *testing.T) {
	fixture := newHandlerFixture()
	handler := NewSubjectHandler(fixture.subjectSvc)

	c, w := testContext(t, http.MethodGet, "/subjects/999", nil)
	c.Params = gin.Params{{Key: "id", Value: "999"}}
	asPrincipal(c, fixture.users.users[1])

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubjectHandlerDeleteForeignLeavesSubject(t *testing.T) {
	fixture := newHandlerFixture()
	handler := NewSubjectHandler(fixture.subjectSvc)

	c, w := testContext(t, http.MethodDelete, "/subjects/200", nil)
	c.Params = gin.Params{{Key: "id", Value: "200"}}
	asPrincipal(c, fixture.users.users[1])

	handler.Delete(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, fixture.subjects.subjects, int64(200))
}

func TestSubjectHandlerExportCSV(t *testing.T) {
	fixture := newHandlerFixture()
	handler := NewSubjectHandler(fixture.subjectSvc)

	c, w := testContext(t, http.MethodGet, "/institutions/10/subjects/export?format=csv", nil)
	c.Params = gin.Params{{Key: "id", Value: "10"}}
	asPrincipal(c, fixture.users.users[1])

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "subjects-10.csv")
	assert.Contains(t, w.Body.String(), "Calculus")
}

func TestSubjectHandlerExportUnsupportedFormat(t *testing.T) {
	fixture := newHandlerFixture()
	handler := NewSubjectHandler(fixture.subjectSvc)

	c, w := testContext(t, http.MethodGet, "/institutions/10/subjects/export?format=xlsx", nil)
	c.Params = gin.Params{{Key: "id", Value: "10"}}
	asPrincipal(c, fixture.users.users[1])

	handler.Export(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
