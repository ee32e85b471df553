package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danuarta/mediaportal-api/internal/models"
	"github.com/danuarta/mediaportal-api/pkg/storage"
)

const studentsCollection = "students"

// localStudentRecord persists the full student including the secret hash,
// which the API model excludes from JSON.
type localStudentRecord struct {
	models.Student
	SecretHash string `json:"secret_hash"`
}

func toStudentRecord(s models.Student) localStudentRecord {
	return localStudentRecord{Student: s, SecretHash: s.SecretHash}
}

func (r localStudentRecord) toModel() models.Student {
	s := r.Student
	s.SecretHash = r.SecretHash
	return s
}

// LocalStudentRepository is the file-backed roster store used when no
// database is configured. It mirrors StudentRepository's behavior, including
// sql.ErrNoRows for missing records, so services work against either.
type LocalStudentRepository struct {
	store *storage.JSONStore
	mu    sync.Mutex
}

// NewLocalStudentRepository constructs a LocalStudentRepository.
func NewLocalStudentRepository(store *storage.JSONStore) *LocalStudentRepository {
	return &LocalStudentRepository{store: store}
}

func (r *LocalStudentRepository) load() ([]localStudentRecord, error) {
	var records []localStudentRecord
	if err := r.store.Load(studentsCollection, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// List returns roster entries matching the filter with a total count.
func (r *LocalStudentRepository) List(_ context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, 0, err
	}

	search := strings.ToLower(filter.Search)
	var matched []models.Student
	for _, rec := range records {
		s := rec.toModel()
		if filter.Class != "" && s.Class != filter.Class {
			continue
		}
		if filter.Section != "" && s.Section != filter.Section {
			continue
		}
		if filter.Active != nil && s.Active != *filter.Active {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(s.FullName), search) &&
			!strings.Contains(strings.ToLower(s.Username), search) &&
			!strings.Contains(strings.ToLower(s.RollNumber), search) {
			continue
		}
		matched = append(matched, s)
	}

	sortStudents(matched, filter.SortBy, filter.SortOrder)

	total := len(matched)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	start := (page - 1) * size
	if start >= total {
		return []models.Student{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func sortStudents(students []models.Student, sortBy, sortOrder string) {
	desc := strings.ToUpper(sortOrder) != "ASC"
	less := func(a, b models.Student) bool {
		switch sortBy {
		case "full_name":
			return a.FullName < b.FullName
		case "roll_number":
			return a.RollNumber < b.RollNumber
		case "class":
			return a.Class < b.Class
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(students, func(i, j int) bool {
		if desc {
			return less(students[j], students[i])
		}
		return less(students[i], students[j])
	})
}

// FindByID fetches a student by ID.
func (r *LocalStudentRepository) FindByID(_ context.Context, id string) (*models.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == id {
			s := rec.toModel()
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

// FindByUsername fetches a student by login username.
func (r *LocalStudentRepository) FindByUsername(_ context.Context, username string) (*models.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Username == username {
			s := rec.toModel()
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

// ExistsByUsername reports whether another student already uses the username.
func (r *LocalStudentRepository) ExistsByUsername(_ context.Context, username, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return false, err
	}
	for _, rec := range records {
		if rec.Username == username && rec.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// ExistsByRollNumber reports whether another student already uses the roll number.
func (r *LocalStudentRepository) ExistsByRollNumber(_ context.Context, roll, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return false, err
	}
	for _, rec := range records {
		if rec.RollNumber == roll && rec.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// Create appends a new roster entry.
func (r *LocalStudentRepository) Create(_ context.Context, student *models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	records = append(records, toStudentRecord(*student))
	return r.store.Save(studentsCollection, records)
}

// Update replaces the stored entry matching the student's ID.
func (r *LocalStudentRepository) Update(_ context.Context, student *models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	for i, rec := range records {
		if rec.ID == student.ID {
			student.UpdatedAt = time.Now().UTC()
			records[i] = toStudentRecord(*student)
			return r.store.Save(studentsCollection, records)
		}
	}
	return sql.ErrNoRows
}

// UpdateSecret replaces a student's secret hash.
func (r *LocalStudentRepository) UpdateSecret(_ context.Context, id, secretHash string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	for i, rec := range records {
		if rec.ID == id {
			records[i].SecretHash = secretHash
			records[i].UpdatedAt = updatedAt
			return r.store.Save(studentsCollection, records)
		}
	}
	return sql.ErrNoRows
}

// Delete removes the roster entry permanently.
func (r *LocalStudentRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	for i, rec := range records {
		if rec.ID == id {
			records = append(records[:i], records[i+1:]...)
			return r.store.Save(studentsCollection, records)
		}
	}
	return sql.ErrNoRows
}
