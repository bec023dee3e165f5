package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skillswap-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userColumnNames = []string{"id", "name", "email", "password_hash", "role", "location", "bio", "profile_photo_url",
	"skills_offered", "skills_wanted", "availability", "is_public", "banned", "rating", "total_ratings",
	"last_login", "created_at", "updated_at"}

func userRow(rows *sqlmock.Rows, id, name string, offered string) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, name, name+"@example.com", "hash", "USER", "Jakarta", "", "",
		offered, "{}", "{weekends}", true, false, "4.5", 2, nil, now, now)
}

func TestFindByEmailIsCaseInsensitive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("Ana@Example.com").
		WillReturnRows(userRow(sqlmock.NewRows(userColumnNames), "u1", "ana", "{Guitar,Python}"))

	user, err := repo.FindByEmail(context.Background(), " Ana@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"Guitar", "Python"}, user.SkillsOffered)
	assert.Equal(t, 4.5, user.Rating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE id = \\$1").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := repo.Create(context.Background(), &models.User{Name: "Ana", Email: "ana@example.com"})
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchBuildsFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE is_public = TRUE AND banned = FALSE AND id <> $1 AND EXISTS")).
		WithArgs("me", "%gui\\%%", "weekends", "%jak%").
		WillReturnRows(userRow(sqlmock.NewRows(userColumnNames), "u2", "budi", "{Guitar}"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE is_public = TRUE")).
		WithArgs("me", "%gui\\%%", "weekends", "%jak%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users, total, err := repo.Search(context.Background(), models.UserSearch{
		Skill: "Gui%", Availability: "weekends", Location: "Jak", ExcludeID: "me",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSkillSuggestions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY CASE WHEN LOWER(skill) LIKE $1 || '%' THEN 0 ELSE 1 END")).
		WithArgs("py", 10).
		WillReturnRows(sqlmock.NewRows([]string{"skill"}).AddRow("Python").AddRow("Happy Coding"))

	skills, err := repo.SkillSuggestions(context.Background(), "Py", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Python", "Happy Coding"}, skills)
}

func TestSetBannedRevokesSessions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET banned = $2")).
		WithArgs("u1", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE")).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.SetBanned(context.Background(), "u1", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetBannedMissingUserRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET banned = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SetBanned(context.Background(), "ghost", false)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserRecomputesRatedUsers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT to_user_id FROM feedback WHERE from_user_id = $1")).
		WithArgs("m").
		WillReturnRows(sqlmock.NewRows([]string{"to_user_id"}).AddRow("z").AddRow("a"))
	for _, id := range []string{"a", "m", "z"} {
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
	}
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs("m").WillReturnResult(sqlmock.NewResult(0, 1))
	for _, id := range []string{"a", "z"} {
		mock.ExpectQuery(`UPDATE users SET\s+rating`).WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "rating", "total_ratings"}).AddRow(id, "4.0", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "m"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingUserRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT to_user_id FROM feedback")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"to_user_id"}))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "ghost")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{UserID: "u1", Token: "token", ExpiresAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeRefreshTokenAlreadyRevoked(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1 AND revoked = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RevokeRefreshToken(context.Background(), "rt1", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
