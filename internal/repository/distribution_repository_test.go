package repository_test

import (
	"context"
	"testing"
	"time"

	"teamtasks/internal/apperr"
	"teamtasks/internal/model"
	"teamtasks/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestDistributionRepository_ApplyDistribution(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	repo := repository.NewDistributionRepository(nopLogger(), gormDB)

	assignments := []model.Assignment{
		{TaskID: "t1", UserID: "u1", ExpectedTemporal: "u1"},
		{TaskID: "t2", UserID: "u2", ExpectedTemporal: "u2"},
		{TaskID: "t3", UserID: "u1", ExpectedTemporal: "u1"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "task_lists" SET .* WHERE id = .* AND distribution_round = `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	for range assignments {
		mock.ExpectExec(`UPDATE "tasks" SET .* WHERE .*id_temporal_user_assigned = `).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(`UPDATE "users" SET "total_tasks_assigned"`).
		WithArgs(2, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "users" SET "total_tasks_assigned"`).
		WithArgs(1, "u2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "task_preferences"`).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`UPDATE "task_list_members" SET "preferences_done"`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	// Act
	round, counts, err := repo.ApplyDistribution(context.Background(), "list1", 3, assignments)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 4, round)
	assert.Equal(t, map[string]int{"u1": 2, "u2": 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepository_ApplyDistribution_StaleRound(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	repo := repository.NewDistributionRepository(nopLogger(), gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "task_lists" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	// Act
	_, _, err := repo.ApplyDistribution(context.Background(), "list1", 3,
		[]model.Assignment{{TaskID: "t1", UserID: "u1"}})

	// Assert
	assert.ErrorIs(t, err, apperr.ErrDistributionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepository_ApplyDistribution_TaskTakenMeanwhile(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	repo := repository.NewDistributionRepository(nopLogger(), gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "task_lists" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "tasks" SET .*\(available_to_assign = `).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	// Act
	_, _, err := repo.ApplyDistribution(context.Background(), "list1", 0,
		[]model.Assignment{{TaskID: "t1", UserID: "u1"}})

	// Assert
	assert.ErrorIs(t, err, apperr.ErrDistributionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepository_ApplyDistribution_Empty(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewDistributionRepository(nopLogger(), gormDB)

	_, _, err := repo.ApplyDistribution(context.Background(), "list1", 0, nil)

	assert.ErrorIs(t, err, apperr.ErrEmptyDistribution)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepository_SetPreferencesDone_NotMember(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	repo := repository.NewDistributionRepository(nopLogger(), gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "task_list_members" SET "preferences_done"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	// Act
	err := repo.SetPreferencesDone(context.Background(), "list1", "stranger", true)

	// Assert
	assert.ErrorIs(t, err, apperr.ErrUserDoesNotBelongToTeam)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepository_AddPreference_Limit(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	repo := repository.NewDistributionRepository(nopLogger(), gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "task_list_members" WHERE .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"task_list_id", "user_id", "score", "preferences_done"}).
			AddRow("list1", "u1", 0, false))
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id = `).
		WillReturnRows(taskRow(sqlmock.NewRows(taskColumns), "t9", "", true, false))
	mock.ExpectQuery(`SELECT .* FROM "task_preferences" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "task_list_id", "user_id", "task_id", "created_at"}).
			AddRow(1, "list1", "u1", "t1", time.Now()))
	mock.ExpectRollback()

	// Act
	err := repo.AddPreference(context.Background(), "list1", "u1", "t9", 1)

	// Assert
	assert.ErrorIs(t, err, apperr.ErrPreferenceLimit)
	assert.NoError(t, mock.ExpectationsWereMet())
}
