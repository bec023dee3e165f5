package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/skillswap-api/internal/models"
)

const userColumns = `id, name, email, password_hash, role, location, bio, profile_photo_url,
	skills_offered, skills_wanted, availability, is_public, banned, rating, total_ratings,
	last_login, created_at, updated_at`

// UserRepository provides database access for users, their sessions and the audit trail.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail matches email case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.TrimSpace(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByIDs loads several users at once, keyed by id.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	result := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, pq.StringArray(ids)); err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// Create inserts user. A duplicate email surfaces as ErrUniqueViolation.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	normalizeArrays(user)

	const query = `INSERT INTO users (id, name, email, password_hash, role, location, bio, profile_photo_url,
	skills_offered, skills_wanted, availability, is_public, banned, rating, total_ratings, created_at, updated_at)
	VALUES (:id, :name, :email, :password_hash, :role, :location, :bio, :profile_photo_url,
	:skills_offered, :skills_wanted, :availability, :is_public, :banned, :rating, :total_ratings, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return mapWriteError("create user", err)
	}
	return nil
}

// UpdateProfile writes the self-editable profile columns.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	normalizeArrays(user)
	const query = `UPDATE users SET name = :name, location = :location, bio = :bio,
	profile_photo_url = :profile_photo_url, skills_offered = :skills_offered, skills_wanted = :skills_wanted,
	availability = :availability, is_public = :is_public, updated_at = :updated_at WHERE id = :id`
	return r.execOne(ctx, "update profile", query, user)
}

// Delete removes the user; swaps, feedback, notifications and sessions cascade.
// Everyone the user rated gets their rating recomputed in the same transaction.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var rated []string
	const ratedQuery = `SELECT DISTINCT to_user_id FROM feedback WHERE from_user_id = $1 AND to_user_id <> $1`
	if err := tx.SelectContext(ctx, &rated, ratedQuery, id); err != nil {
		return fmt.Errorf("load rated users: %w", err)
	}

	locks := append([]string{id}, rated...)
	sort.Strings(locks)
	for _, userID := range locks {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := requireRow(res, "delete user"); err != nil {
		return err
	}

	sort.Strings(rated)
	for _, userID := range rated {
		if _, err := recomputeRating(ctx, tx, userID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete user: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetBanned flips the banned flag. Bans also revoke every open refresh session.
func (r *UserRepository) SetBanned(ctx context.Context, id string, banned bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ban tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE users SET banned = $2, updated_at = $3 WHERE id = $1`, id, banned, now)
	if err != nil {
		return fmt.Errorf("set banned: %w", err)
	}
	if err := requireRow(res, "set banned"); err != nil {
		return err
	}
	if banned {
		if _, err := tx.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`, id, now); err != nil {
			return fmt.Errorf("revoke banned sessions: %w", err)
		}
	}
	return tx.Commit()
}

func (r *UserRepository) SetRole(ctx context.Context, id string, role models.UserRole) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`, id, role, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return requireRow(res, "set role")
}

// UpdateSkills is the moderation edit of skills and bio.
func (r *UserRepository) UpdateSkills(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	normalizeArrays(user)
	const query = `UPDATE users SET skills_offered = :skills_offered, skills_wanted = :skills_wanted,
	bio = :bio, updated_at = :updated_at WHERE id = :id`
	return r.execOne(ctx, "update skills", query, user)
}

// List is the admin listing with optional role, banned and free-text filters.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Banned != nil {
		args = append(args, *filter.Banned)
		conditions = append(conditions, fmt.Sprintf("banned = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+likePattern(strings.ToLower(s))+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(name) LIKE $%d)", len(args), len(args)))
	}

	return r.page(ctx, conditions, args, "created_at DESC", filter.Page, filter.PageSize)
}

// Search is the public directory: public, unbanned users other than the caller.
// Skill matches offered or wanted skills by substring; availability matches an exact slot.
func (r *UserRepository) Search(ctx context.Context, search models.UserSearch) ([]models.User, int, error) {
	conditions := []string{"is_public = TRUE", "banned = FALSE"}
	var args []interface{}

	if search.ExcludeID != "" {
		args = append(args, search.ExcludeID)
		conditions = append(conditions, fmt.Sprintf("id <> $%d", len(args)))
	}
	if s := strings.TrimSpace(search.Skill); s != "" {
		args = append(args, "%"+likePattern(strings.ToLower(s))+"%")
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(skills_offered || skills_wanted) AS skill WHERE LOWER(skill) LIKE $%d)", len(args)))
	}
	if a := strings.TrimSpace(search.Availability); a != "" {
		args = append(args, a)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(availability)", len(args)))
	}
	if l := strings.TrimSpace(search.Location); l != "" {
		args = append(args, "%"+likePattern(strings.ToLower(l))+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(location) LIKE $%d", len(args)))
	}

	return r.page(ctx, conditions, args, "rating DESC, total_ratings DESC, created_at DESC", search.Page, search.PageSize)
}

// SkillSuggestions returns distinct skill names containing query, prefix matches first.
func (r *UserRepository) SkillSuggestions(ctx context.Context, query string, limit int) ([]string, error) {
	const q = `SELECT skill FROM (
		SELECT DISTINCT TRIM(skill) AS skill
		FROM users, unnest(skills_offered || skills_wanted) AS skill
		WHERE is_public = TRUE AND banned = FALSE
	) s
	WHERE LOWER(skill) LIKE '%' || $1 || '%'
	ORDER BY CASE WHEN LOWER(skill) LIKE $1 || '%' THEN 0 ELSE 1 END, skill
	LIMIT $2`
	skills := make([]string, 0, limit)
	if err := r.db.SelectContext(ctx, &skills, q, likePattern(strings.ToLower(query)), limit); err != nil {
		return nil, fmt.Errorf("skill suggestions: %w", err)
	}
	return skills, nil
}

func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent)
	VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent
	FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken revokes an active token. A token already revoked yields sql.ErrNoRows.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1 AND revoked = FALSE`, id, revokedAt)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return requireRow(res, "revoke refresh token")
}

func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
	VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func (r *UserRepository) page(ctx context.Context, conditions []string, args []interface{}, order string, page, size int) ([]models.User, int, error) {
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	_, size, offset := models.NormalizePage(page, size)

	listQuery := fmt.Sprintf("SELECT %s FROM users%s ORDER BY %s LIMIT %d OFFSET %d", userColumns, where, order, size, offset)
	users := make([]models.User, 0)
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

func (r *UserRepository) execOne(ctx context.Context, op, query string, arg interface{}) error {
	res, err := r.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return requireRow(res, op)
}

func requireRow(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalizeArrays(u *models.User) {
	if u.SkillsOffered == nil {
		u.SkillsOffered = pq.StringArray{}
	}
	if u.SkillsWanted == nil {
		u.SkillsWanted = pq.StringArray{}
	}
	if u.Availability == nil {
		u.Availability = pq.StringArray{}
	}
}
