package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/skipd/skipd-api/internal/models"
	appErrors "github.com/skipd/skipd-api/pkg/errors"
	"github.com/skipd/skipd-api/pkg/export"
)

type subjectRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Subject, error)
	ListByInstitution(ctx context.Context, institutionID int64) ([]models.Subject, error)
	OwnerOf(ctx context.Context, subjectID int64) (*models.SubjectOwner, error)
	Create(ctx context.Context, subject *models.Subject) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// CreateSubjectRequest captures fields for creating subjects. The weekly
// pattern counts scheduled class sessions per weekday.
type CreateSubjectRequest struct {
	Name          string `json:"name" validate:"required"`
	RequiredHours int    `json:"required_hours" validate:"gte=0"`
	Status        string `json:"status"`
	ClassesSun    int    `json:"classes_sunday" validate:"gte=0"`
	ClassesMon    int    `json:"classes_monday" validate:"gte=0"`
	ClassesTue    int    `json:"classes_tuesday" validate:"gte=0"`
	ClassesWed    int    `json:"classes_wednesday" validate:"gte=0"`
	ClassesThu    int    `json:"classes_thursday" validate:"gte=0"`
	ClassesFri    int    `json:"classes_friday" validate:"gte=0"`
	ClassesSat    int    `json:"classes_saturday" validate:"gte=0"`
}

// UpdateSubjectRequest modifies subject fields, changeset style.
type UpdateSubjectRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1"`
	RequiredHours *int    `json:"required_hours" validate:"omitempty,gte=0"`
	AbsenceCount  *int    `json:"absence_count" validate:"omitempty,gte=0"`
	Status        *string `json:"status"`
	ClassesSun    *int    `json:"classes_sunday" validate:"omitempty,gte=0"`
	ClassesMon    *int    `json:"classes_monday" validate:"omitempty,gte=0"`
	ClassesTue    *int    `json:"classes_tuesday" validate:"omitempty,gte=0"`
	ClassesWed    *int    `json:"classes_wednesday" validate:"omitempty,gte=0"`
	ClassesThu    *int    `json:"classes_thursday" validate:"omitempty,gte=0"`
	ClassesFri    *int    `json:"classes_friday" validate:"omitempty,gte=0"`
	ClassesSat    *int    `json:"classes_saturday" validate:"omitempty,gte=0"`
}

// ExportResult carries a rendered subject export.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// SubjectService handles subject workflows. Every operation resolves the
// ownership chain through the parent institution before touching data.
type SubjectService struct {
	repo      subjectRepository
	access    *AccessService
	cache     *CacheService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, access *AccessService, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{
		repo:      repo,
		access:    access,
		cache:     cache,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

func subjectListCacheKey(institutionID int64) string {
	return fmt.Sprintf("subjects:institution:%d", institutionID)
}

// Create adds a subject under the given institution. The institution must
// exist and belong to the principal.
func (s *SubjectService) Create(ctx context.Context, principalID, institutionID int64, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	institution, err := s.access.AuthorizeInstitution(ctx, principalID, institutionID)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = "active"
	}

	subject := &models.Subject{
		Name:          req.Name,
		RequiredHours: req.RequiredHours,
		Status:        status,
		ClassesSun:    req.ClassesSun,
		ClassesMon:    req.ClassesMon,
		ClassesTue:    req.ClassesTue,
		ClassesWed:    req.ClassesWed,
		ClassesThu:    req.ClassesThu,
		ClassesFri:    req.ClassesFri,
		ClassesSat:    req.ClassesSat,
		InstitutionID: institution.ID,
	}

	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}

	s.cache.Invalidate(ctx, subjectListCacheKey(institution.ID))
	s.logger.Info("subject created", zap.Int64("subject_id", subject.ID), zap.Int64("institution_id", institution.ID))
	return subject, nil
}

// Get returns a subject after walking its ownership chain.
func (s *SubjectService) Get(ctx context.Context, principalID, id int64) (*models.Subject, error) {
	return s.access.AuthorizeSubject(ctx, principalID, id)
}

// ListByInstitution returns every subject of an owned institution. The
// second return value reports whether the result came from cache.
func (s *SubjectService) ListByInstitution(ctx context.Context, principalID, institutionID int64) ([]models.Subject, bool, error) {
	if _, err := s.access.AuthorizeInstitution(ctx, principalID, institutionID); err != nil {
		return nil, false, err
	}

	key := subjectListCacheKey(institutionID)
	var cached []models.Subject
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}

	subjects, err := s.repo.ListByInstitution(ctx, institutionID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}

	s.cache.Set(ctx, key, subjects)
	return subjects, false, nil
}

// Update applies a changeset to a subject on the principal's chain.
func (s *SubjectService) Update(ctx context.Context, principalID, id int64, req UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.access.AuthorizeSubject(ctx, principalID, id)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.RequiredHours != nil {
		fields["required_hours"] = *req.RequiredHours
	}
	if req.AbsenceCount != nil {
		fields["absence_count"] = *req.AbsenceCount
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if req.ClassesSun != nil {
		fields["classes_sunday"] = *req.ClassesSun
	}
	if req.ClassesMon != nil {
		fields["classes_monday"] = *req.ClassesMon
	}
	if req.ClassesTue != nil {
		fields["classes_tuesday"] = *req.ClassesTue
	}
	if req.ClassesWed != nil {
		fields["classes_wednesday"] = *req.ClassesWed
	}
	if req.ClassesThu != nil {
		fields["classes_thursday"] = *req.ClassesThu
	}
	if req.ClassesFri != nil {
		fields["classes_friday"] = *req.ClassesFri
	}
	if req.ClassesSat != nil {
		fields["classes_saturday"] = *req.ClassesSat
	}

	if len(fields) == 0 {
		return subject, nil
	}

	found, err := s.repo.UpdateFields(ctx, id, fields)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload subject")
	}

	s.cache.Invalidate(ctx, subjectListCacheKey(subject.InstitutionID))
	return updated, nil
}

// Delete removes a subject on the principal's chain.
func (s *SubjectService) Delete(ctx context.Context, principalID, id int64) error {
	subject, err := s.access.AuthorizeSubject(ctx, principalID, id)
	if err != nil {
		return err
	}

	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	if !found {
		return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}

	s.cache.Invalidate(ctx, subjectListCacheKey(subject.InstitutionID))
	s.logger.Info("subject deleted", zap.Int64("subject_id", id))
	return nil
}

// Export renders the subjects of an owned institution as CSV or PDF.
func (s *SubjectService) Export(ctx context.Context, principalID, institutionID int64, format string) (*ExportResult, error) {
	institution, err := s.access.AuthorizeInstitution(ctx, principalID, institutionID)
	if err != nil {
		return nil, err
	}

	subjects, err := s.repo.ListByInstitution(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}

	table := export.Table{
		Title:   institution.Name,
		Columns: []string{"Name", "Status", "Required Hours", "Absences", "Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
	}
	for _, subject := range subjects {
		table.Rows = append(table.Rows, []string{
			subject.Name,
			subject.Status,
			strconv.Itoa(subject.RequiredHours),
			strconv.Itoa(subject.AbsenceCount),
			strconv.Itoa(subject.ClassesSun),
			strconv.Itoa(subject.ClassesMon),
			strconv.Itoa(subject.ClassesTue),
			strconv.Itoa(subject.ClassesWed),
			strconv.Itoa(subject.ClassesThu),
			strconv.Itoa(subject.ClassesFri),
			strconv.Itoa(subject.ClassesSat),
		})
	}

	switch format {
	case "", "csv":
		content, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("subjects-%d.csv", institutionID),
		}, nil
	case "pdf":
		content, err := s.pdf.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("subjects-%d.pdf", institutionID),
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
