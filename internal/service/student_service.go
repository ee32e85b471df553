package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/danuarta/mediaportal-api/internal/dto"
	"github.com/danuarta/mediaportal-api/internal/models"
	appErrors "github.com/danuarta/mediaportal-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error)
	ExistsByRollNumber(ctx context.Context, roll, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateSecret(ctx context.Context, id, secretHash string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

type rosterCache interface {
	DeleteByPattern(ctx context.Context, pattern string) error
	Publish(ctx context.Context, channel string, event interface{}) error
}

type rosterAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// rosterChannel carries roster change events so logged-in clients can
// refresh their student pickers.
const rosterChannel = "portal:events:roster"

// StudentService handles roster use-cases. All of them are admin-only;
// the handlers enforce that.
type StudentService struct {
	repo      studentRepository
	cache     rosterCache
	audit     rosterAuditor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the roster service.
func NewStudentService(repo studentRepository, cache rosterCache, audit rosterAuditor, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, cache: cache, audit: audit, validator: validate, logger: logger}
}

// List returns roster entries and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns a single roster entry.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new roster entry with a hashed login secret.
func (s *StudentService) Create(ctx context.Context, actorID string, req dto.CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	exists, err := s.repo.ExistsByUsername(ctx, req.Username, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate username")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already used")
	}

	exists, err = s.repo.ExistsByRollNumber(ctx, req.RollNumber, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate roll number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "roll number already used")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash secret")
	}

	student := &models.Student{
		Username:      req.Username,
		SecretHash:    string(hash),
		FullName:      req.FullName,
		RollNumber:    req.RollNumber,
		Class:         req.Class,
		Section:       req.Section,
		Phone:         req.Phone,
		GuardianPhone: req.GuardianPhone,
		Active:        true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.invalidate(ctx, "created", student.ID)
	s.recordAudit(ctx, actorID, models.AuditActionStudentCreate, student.ID)
	return student, nil
}

// Update edits a roster entry's profile fields.
func (s *StudentService) Update(ctx context.Context, actorID, id string, req dto.UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	exists, err := s.repo.ExistsByRollNumber(ctx, req.RollNumber, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate roll number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "roll number already used")
	}

	student.FullName = req.FullName
	student.RollNumber = req.RollNumber
	student.Class = req.Class
	student.Section = req.Section
	student.Phone = req.Phone
	student.GuardianPhone = req.GuardianPhone
	if req.Active != nil {
		student.Active = *req.Active
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	s.invalidate(ctx, "updated", student.ID)
	s.recordAudit(ctx, actorID, models.AuditActionStudentUpdate, student.ID)
	return student, nil
}

// ResetSecret replaces a student's login secret with a new hashed value.
func (s *StudentService) ResetSecret(ctx context.Context, actorID, id string, req dto.ResetStudentSecretRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid secret payload")
	}

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash secret")
	}

	if err := s.repo.UpdateSecret(ctx, id, string(hash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset secret")
	}

	s.recordAudit(ctx, actorID, models.AuditActionSecretReset, id)
	return nil
}

// Delete removes a roster entry permanently. Media the student uploaded or
// was assigned keeps its records; visibility rules simply stop matching.
func (s *StudentService) Delete(ctx context.Context, actorID, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}

	s.invalidate(ctx, "deleted", id)
	s.recordAudit(ctx, actorID, models.AuditActionStudentDelete, id)
	return nil
}

func (s *StudentService) invalidate(ctx context.Context, action, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "portal:students:*"); err != nil {
		s.logger.Warn("failed to invalidate roster cache", zap.Error(err))
	}
	event := map[string]string{"resource": "student", "action": action, "id": studentID}
	if err := s.cache.Publish(ctx, rosterChannel, event); err != nil {
		s.logger.Warn("failed to publish roster event", zap.Error(err))
	}
}

func (s *StudentService) recordAudit(ctx context.Context, actorID, action, studentID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "student",
		ResourceID: &studentID,
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record roster audit log", zap.Error(err))
	}
}
