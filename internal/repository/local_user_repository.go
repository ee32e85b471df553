package repository

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danuarta/mediaportal-api/internal/models"
	"github.com/danuarta/mediaportal-api/pkg/storage"
)

const (
	usersCollection         = "users"
	refreshTokensCollection = "refresh_tokens"
	auditLogsCollection     = "audit_logs"
)

// localUserRecord persists the full account including the password hash,
// which the API model excludes from JSON.
type localUserRecord struct {
	models.User
	PasswordHash string `json:"password_hash"`
}

func toUserRecord(u models.User) localUserRecord {
	return localUserRecord{User: u, PasswordHash: u.PasswordHash}
}

func (r localUserRecord) toModel() models.User {
	u := r.User
	u.PasswordHash = r.PasswordHash
	return u
}

// LocalUserRepository is the file-backed account store used when no
// database is configured. It also carries refresh token sessions and the
// audit trail so authentication works fully offline.
type LocalUserRepository struct {
	store *storage.JSONStore
	mu    sync.Mutex
}

// NewLocalUserRepository constructs a LocalUserRepository.
func NewLocalUserRepository(store *storage.JSONStore) *LocalUserRepository {
	return &LocalUserRepository{store: store}
}

func (r *LocalUserRepository) loadUsers() ([]localUserRecord, error) {
	var records []localUserRecord
	if err := r.store.Load(usersCollection, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *LocalUserRepository) loadTokens() ([]models.RefreshToken, error) {
	var tokens []models.RefreshToken
	if err := r.store.Load(refreshTokensCollection, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// FindByEmail fetches an account by email.
func (r *LocalUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.loadUsers()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Email == email {
			u := rec.toModel()
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

// FindByID fetches an account by ID.
func (r *LocalUserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.loadUsers()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == id {
			u := rec.toModel()
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

// Create appends a new account.
func (r *LocalUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.loadUsers()
	if err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	records = append(records, toUserRecord(*user))
	return r.store.Save(usersCollection, records)
}

// UpdateLastLogin stamps the account's last successful login.
func (r *LocalUserRepository) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.loadUsers()
	if err != nil {
		return err
	}
	for i, rec := range records {
		if rec.ID == id {
			records[i].LastLogin = &ts
			records[i].UpdatedAt = ts
			return r.store.Save(usersCollection, records)
		}
	}
	return sql.ErrNoRows
}

// UpdatePassword replaces the account's password hash.
func (r *LocalUserRepository) UpdatePassword(_ context.Context, id, passwordHash string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.loadUsers()
	if err != nil {
		return err
	}
	for i, rec := range records {
		if rec.ID == id {
			records[i].PasswordHash = passwordHash
			records[i].UpdatedAt = updatedAt
			return r.store.Save(usersCollection, records)
		}
	}
	return sql.ErrNoRows
}

// CreateRefreshToken persists a refresh token session.
func (r *LocalUserRepository) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tokens, err := r.loadTokens()
	if err != nil {
		return err
	}
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	tokens = append(tokens, *token)
	return r.store.Save(refreshTokensCollection, tokens)
}

// FindRefreshToken fetches a refresh token session by its opaque token value.
func (r *LocalUserRepository) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tokens, err := r.loadTokens()
	if err != nil {
		return nil, err
	}
	for i := range tokens {
		if tokens[i].Token == token {
			found := tokens[i]
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

// RevokeRefreshToken marks a single refresh token session revoked.
func (r *LocalUserRepository) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tokens, err := r.loadTokens()
	if err != nil {
		return err
	}
	for i := range tokens {
		if tokens[i].ID == id {
			tokens[i].Revoked = true
			tokens[i].RevokedAt = &revokedAt
			return r.store.Save(refreshTokensCollection, tokens)
		}
	}
	return sql.ErrNoRows
}

// RevokeSubjectRefreshTokens revokes every active session for a subject.
func (r *LocalUserRepository) RevokeSubjectRefreshTokens(_ context.Context, subjectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tokens, err := r.loadTokens()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	changed := false
	for i := range tokens {
		if tokens[i].SubjectID == subjectID && !tokens[i].Revoked {
			tokens[i].Revoked = true
			tokens[i].RevokedAt = &now
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return r.store.Save(refreshTokensCollection, tokens)
}

// CreateAuditLog appends an audit trail record.
func (r *LocalUserRepository) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var logs []models.AuditLog
	if err := r.store.Load(auditLogsCollection, &logs); err != nil {
		return err
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	logs = append(logs, *log)
	return r.store.Save(auditLogsCollection, logs)
}
