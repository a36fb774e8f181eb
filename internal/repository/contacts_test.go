package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-shift/internal/domain"
)

func TestPostgresContactDirectory_LookupContact(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM users\s+WHERE user_id::text = \$1`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "username", "email"}).
			AddRow("u-1", "ana", "ana@example.com"))

	c, err := NewPostgresContactDirectory(db).LookupContact(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, &domain.Contact{OwnerID: "u-1", Username: "ana", Email: "ana@example.com"}, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContactDirectory_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dir := NewPostgresContactDirectory(db)

	mock.ExpectQuery(`FROM users`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	_, err = dir.LookupContact(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	// a user without an email cannot be reminded
	mock.ExpectQuery(`FROM users`).WithArgs("u-2").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "username", "email"}).AddRow("u-2", "ben", ""))
	_, err = dir.LookupContact(context.Background(), "u-2")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(`FROM users`).WithArgs("u-3").WillReturnError(errors.New("connection reset by peer"))
	_, err = dir.LookupContact(context.Background(), "u-3")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryContactDirectory(t *testing.T) {
	dir := NewMemoryContactDirectory(domain.Contact{OwnerID: "u-1", Username: "ana", Email: "ana@example.com"})

	c, err := dir.LookupContact(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", c.Email)

	_, err = dir.LookupContact(context.Background(), "u-2")
	assert.ErrorIs(t, err, ErrNotFound)

	dir.Upsert(domain.Contact{OwnerID: "u-2", Username: "ben", Email: " "})
	_, err = dir.LookupContact(context.Background(), "u-2")
	assert.ErrorIs(t, err, ErrNotFound)

	dir.Upsert(domain.Contact{OwnerID: "u-2", Username: "ben", Email: "ben@example.com"})
	c, err = dir.LookupContact(context.Background(), "u-2")
	require.NoError(t, err)
	assert.Equal(t, "ben", c.Username)
}
