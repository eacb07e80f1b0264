package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockPatientDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PatientRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPatientRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestGetAge_Success(t *testing.T) {
	db, mock, repo := setupMockPatientDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"age"}).AddRow(67)
	mock.ExpectQuery(`SELECT age`).
		WithArgs("SB-001").
		WillReturnRows(rows)

	age, err := repo.GetAge(context.Background(), "SB-001")

	require.NoError(t, err)
	assert.Equal(t, 67, age)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAge_UnknownDeviceReturnsZero(t *testing.T) {
	db, mock, repo := setupMockPatientDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT age`).
		WithArgs("SB-404").
		WillReturnError(sql.ErrNoRows)

	age, err := repo.GetAge(context.Background(), "SB-404")

	require.NoError(t, err)
	assert.Equal(t, 0, age)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAge_EmptyDeviceCode(t *testing.T) {
	db, _, repo := setupMockPatientDB(t)
	defer db.Close()

	_, err := repo.GetAge(context.Background(), "")

	assert.Error(t, err)
}
